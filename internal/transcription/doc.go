// Package transcription implements the HTTP client for the speech-to-text
// API. It sends audio segments as multipart form data to a Whisper-compatible
// server, implements retry logic with exponential backoff, and bounds request
// concurrency with a semaphore.
package transcription
