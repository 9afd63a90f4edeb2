package models

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. Wrap with fmt.Errorf("%w: ...") and test with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrPermission       = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrNotRenderable    = errors.New("file type has no preview")
	ErrConverterFailure = errors.New("document conversion failed")
	ErrPersistence      = errors.New("persistence failure")
)

// BatchError reports a batch ingest that stopped part way through.
type BatchError struct {
	Succeeded int
	Name      string
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch upload stopped at %q after %d file(s): %v", e.Name, e.Succeeded, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
