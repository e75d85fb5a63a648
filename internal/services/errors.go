package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAdaptor marks I/O, archive-format, and external-service failures
	// caught at a processor boundary. These count toward a run's skip total.
	ErrAdaptor = errors.New("adaptor failure")
	// ErrValidation marks bad inputs that require operator attention.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or contradictory configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks lookups for entities that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks failures that may succeed on retry.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
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

// IsRecoverable reports whether a failed item should be counted as a skip and
// retried on a later run. Validation, configuration, and not-found failures are
// permanent; everything else, including unclassified errors, is treated as
// recoverable so pipelines keep moving past one-off faults.
func IsRecoverable(err error) bool {
	return !errors.Is(err, ErrValidation) &&
		!errors.Is(err, ErrConfiguration) &&
		!errors.Is(err, ErrNotFound)
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
