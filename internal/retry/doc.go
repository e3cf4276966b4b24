// Package retry wraps fallible collaborator calls with bounded exponential
// backoff and jitter.
//
// Only errors accepted by the handler's Classifier are retried; everything
// else propagates on the first failure. When every attempt fails the handler
// returns an *ExhaustedError that matches services.ErrRetryExhausted and the
// last underlying error. Handlers keep no state between calls.
package retry
