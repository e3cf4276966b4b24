// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Prober runs the binary through an injectable Runner so callers can test
// without ffprobe installed. Result helpers expose stream counts, size, and
// a millisecond-rounded duration used by assembly verification.
package ffprobe
