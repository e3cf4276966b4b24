// Package breaker gates calls to a failing collaborator behind a
// Closed/Open/HalfOpen circuit built on sony/gobreaker.
//
// Rejections while open, and surplus half-open trials, surface as
// services.ErrBreakerOpen instead of the collaborator's own error so callers
// can skip straight to their fallback. Context cancellation is never counted
// against the collaborator and never resets its failure streak; a cancelled
// half-open trial proves nothing, so the circuit returns to Open.
package breaker
