package audio

import "math"

// RMSLevel computes the root-mean-square level of PCM-16 samples, normalized
// to [0, 1]. An empty slice has level 0.
func RMSLevel(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// IsSilent reports whether the samples fall below the given RMS threshold.
// A threshold of 0 disables the gate.
func IsSilent(samples []int16, threshold float64) bool {
	if threshold <= 0 {
		return false
	}
	return RMSLevel(samples) < threshold
}
