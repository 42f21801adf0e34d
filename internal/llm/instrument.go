package llm

import (
	"context"
	"time"

	"github.com/Srinivas26k/zoom-poll-service/internal/metrics"
)

// Instrumented wraps a provider so every request is timed and counted per
// provider. A nil metrics value returns the provider unchanged.
func Instrumented(p Provider, m *metrics.Metrics) Provider {
	if m == nil {
		return p
	}
	return &instrumented{provider: p, metrics: m}
}

type instrumented struct {
	provider Provider
	metrics  *metrics.Metrics
}

func (i *instrumented) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := i.provider.Generate(ctx, prompt)
	i.metrics.RecordLLMRequest(i.provider.Name(), time.Since(start).Seconds(), err)
	return text, err
}

func (i *instrumented) Name() string {
	return i.provider.Name()
}
