package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransient         = errors.New("transient failure")
	ErrTimeout           = errors.New("timeout")
	ErrExternalTool      = errors.New("external tool error")
	ErrBreakerOpen       = errors.New("circuit breaker open")
	ErrParse             = errors.New("script parse error")
	ErrAssembly          = errors.New("assembly error")
	ErrResourceExhausted = errors.New("resources exhausted")
	ErrCancelled         = errors.New("job cancelled")
	ErrRetryExhausted    = errors.New("retries exhausted")
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
)

// Kind names a marker for configuration and structured logs.
type Kind string

const (
	KindTransient         Kind = "transient"
	KindTimeout           Kind = "timeout"
	KindExternalTool      Kind = "external_tool"
	KindBreakerOpen       Kind = "breaker_open"
	KindParse             Kind = "parse"
	KindAssembly          Kind = "assembly"
	KindResourceExhausted Kind = "resource_exhausted"
	KindCancelled         Kind = "cancelled"
	KindRetryExhausted    Kind = "retry_exhausted"
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindUnknown           Kind = "unknown"
)

var markers = []struct {
	kind   Kind
	marker error
}{
	// Order matters: the first match wins in Details, so the outermost
	// classification markers come before the ones they usually wrap.
	{KindCancelled, ErrCancelled},
	{KindParse, ErrParse},
	{KindAssembly, ErrAssembly},
	{KindBreakerOpen, ErrBreakerOpen},
	{KindRetryExhausted, ErrRetryExhausted},
	{KindResourceExhausted, ErrResourceExhausted},
	{KindTimeout, ErrTimeout},
	{KindExternalTool, ErrExternalTool},
	{KindTransient, ErrTransient},
	{KindValidation, ErrValidation},
	{KindNotFound, ErrNotFound},
}

// MarkerForKind resolves a configured marker name such as "transient".
func MarkerForKind(kind string) (error, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(kind)))
	for _, m := range markers {
		if m.kind == normalized {
			return m.marker, true
		}
	}
	return nil, false
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails is the structured view of a wrapped error used by logs and job
// records.
type ErrorDetails struct {
	Kind    Kind
	Message string
	Cause   error
}

// Details classifies err against the known markers.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: KindUnknown, Message: strings.TrimSpace(err.Error()), Cause: errors.Unwrap(err)}
	for _, m := range markers {
		if errors.Is(err, m.marker) {
			details.Kind = m.kind
			break
		}
	}
	return details
}

// IsFatal reports whether err should abort the job instead of being
// downgraded to a filler artifact.
func IsFatal(err error) bool {
	return errors.Is(err, ErrParse) || errors.Is(err, ErrAssembly)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
