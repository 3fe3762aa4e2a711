package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse is returned when the model produced no content.
	ErrEmptyResponse = errors.New("no response from extraction model")
	// ErrSchemaViolation is matched by every ValidationError.
	ErrSchemaViolation = errors.New("invalid recipe format")
	// ErrMalformedJSON is matched by a ValidationError for content that is not JSON.
	ErrMalformedJSON = errors.New("malformed recipe json")
)

// ValidationError describes why model output was rejected. Field is a dotted
// path such as "ingredients[2].name"; it is empty when the whole document is
// at fault.
type ValidationError struct {
	Field      string
	Constraint string
	Err        error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Err, e.Constraint)
	}
	return fmt.Sprintf("%s: %s: %s", e.Err, e.Field, e.Constraint)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports every ValidationError as a schema violation, malformed JSON
// included.
func (e *ValidationError) Is(target error) bool {
	return target == ErrSchemaViolation
}
