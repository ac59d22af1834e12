package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAgentConstruction = errors.New("agent construction error")
	ErrAgentProcessing   = errors.New("agent processing error")
	ErrValidation        = errors.New("validation error")
	ErrProtocolDispatch  = errors.New("protocol dispatch error")
	ErrPipelineSetup     = errors.New("pipeline setup error")
	ErrConfiguration     = errors.New("configuration error")
	ErrNotFound          = errors.New("not found")
	ErrTimeout           = errors.New("timeout")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrAgentProcessing
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// JobFatal reports whether err should move the whole job to the error state.
// Only pipeline setup failures are fatal; every other marker is isolated to
// the agent that produced it.
func JobFatal(err error) bool {
	return errors.Is(err, ErrPipelineSetup)
}

// Retryable reports whether a failed agent invocation may be attempted again.
// Construction failures and validation failures are deterministic and never
// retried.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrAgentConstruction), errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration), errors.Is(err, ErrPipelineSetup):
		return false
	default:
		return true
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
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
