package aurora

import (
	"context"
	"strings"
)

// Violation pinpoints one offending argument field.
type Violation struct {
	// Field is the property path of the offending field, e.g. "/text".
	// Violations against the arguments object as a whole (such as a
	// missing required field) carry the root path "/".
	Field string

	// Message describes the violation.
	Message string
}

// ValidationError reports every schema violation found in a request's
// arguments, not just the first, so callers get complete diagnostics in one
// round trip.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		if v.Field == "" || v.Field == "/" {
			parts[i] = v.Message
			continue
		}
		parts[i] = v.Field + ": " + v.Message
	}
	return "invalid arguments: " + strings.Join(parts, "; ")
}

// ValidateArguments checks args against the tool's input schema. Absent
// arguments are validated as an empty object so required-field violations
// still surface. The returned error, if any, is a *ValidationError listing
// every violated field.
func ValidateArguments(ctx context.Context, tool Tool, args map[string]any) error {
	if tool.InputSchema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	vs := tool.InputSchema.Validate(ctx, args)
	errs := *vs.Errs
	if len(errs) == 0 {
		return nil
	}

	violations := make([]Violation, 0, len(errs))
	for _, kerr := range errs {
		violations = append(violations, Violation{
			Field:   kerr.PropertyPath,
			Message: kerr.Message,
		})
	}
	return &ValidationError{Violations: violations}
}
