// Package capture provides microphone audio acquisition through PortAudio.
// It exposes a small Source interface so the recorder pipeline can run
// against fake PCM sources in tests.
package capture
