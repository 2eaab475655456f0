package catalogue

import (
	"errors"
	"strings"

	"github.com/pot-code/trilha/internal/infrastructure/validate"
)

var (
	// ErrRejected input failed validation, nothing changed
	ErrRejected = errors.New("input rejected")
	// ErrModuleNotFound no module with the given id
	ErrModuleNotFound = errors.New("module not found")
	// ErrLessonNotFound the module has no lesson with the given id
	ErrLessonNotFound = errors.New("lesson not found")
)

// ValidationError carries the reason of every rejected field, matches ErrRejected
type ValidationError struct {
	Fields []*validate.FieldError
}

func newValidationError(fields []*validate.FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	reasons := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		reasons = append(reasons, f.Reason)
	}
	return ErrRejected.Error() + ": " + strings.Join(reasons, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrRejected
}
