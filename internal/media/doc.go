// Package media defines the media operations the assembly engine relies on
// and ships an ffmpeg-backed implementation.
//
// Operations always produce outputs of exactly the requested duration,
// padding with silence, blank frames, or transparent frames when the source
// is shorter. Silent WAV segments are synthesized in-process with beep so
// voice fillers never depend on ffmpeg. Guarded wraps any implementation with
// the shared retry handler and a media circuit breaker.
package media
