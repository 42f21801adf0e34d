// Package recorder implements the meeting recording pipeline. A capture
// loop cuts microphone audio into fixed-duration segments, a bounded worker
// pool transcribes them, and an analysis loop turns the growing transcript
// into periodic meeting notes and Zoom polls. Sessions support pause and
// resume, and shutdown drains every queued segment before the summary is
// written.
package recorder
