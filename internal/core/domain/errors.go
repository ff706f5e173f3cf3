package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedDocumentType = errors.New("unsupported document type")
	ErrExtractionDegraded      = errors.New("extraction degraded")
	ErrSessionNotFound         = errors.New("session not found")
	ErrBackendTimeout          = errors.New("backend timeout")
	ErrBackendRateLimited      = errors.New("backend rate limited")
	ErrBackendExhausted        = errors.New("all answer backends failed")
	ErrMalformedOutput         = errors.New("malformed output")
	ErrInvalidInput            = errors.New("invalid input")
	ErrTemporary               = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
