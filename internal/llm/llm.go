package llm

import (
	"context"
	"errors"
	"fmt"
)

// Gateway is the language-model capability the research components call.
// Generate returns free-form text; GenerateStructured asks the provider for
// a JSON object and decodes it into out (a pointer to a struct).
type Gateway interface {
	Generate(ctx context.Context, prompt, modelID string) (string, error)
	GenerateStructured(ctx context.Context, prompt string, out interface{}, modelID string) error
}

// Error is a failed call to the language-model provider.
type Error struct {
	Model string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm call failed (model=%s): %v", e.Model, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// SchemaViolation means the provider answered, but the payload did not match
// the requested structure.
type SchemaViolation struct {
	Model string
	Raw   string
	Err   error
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("llm structured output did not match schema (model=%s): %v", e.Model, e.Err)
}

func (e *SchemaViolation) Unwrap() error { return e.Err }

// IsSchemaViolation reports whether err is (or wraps) a SchemaViolation.
func IsSchemaViolation(err error) bool {
	var sv *SchemaViolation
	return errors.As(err, &sv)
}
