// Package audio handles audio segmentation and format conversion.
// It accumulates PCM frames into fixed-duration segments for transcription,
// encodes segments to WAV, and provides an RMS level gate for skipping
// silent segments.
package audio
