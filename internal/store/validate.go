package store

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Problem describes one invalid attribute of one candidate. Index is the position
// of the candidate within its batch (always 0 for single updates).
type Problem struct {
	Index  int
	Field  string
	Reason string
}

// ValidationError lists every problem found in a batch of candidates.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("[%d].%s %s", p.Index, p.Field, p.Reason))
	}
	return ErrInvalidUser.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidUser
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// prepare normalizes and validates every candidate before anything is written.
func prepare(inputs []UserInput) ([]UserInput, error) {
	out := make([]UserInput, len(inputs))
	var problems []Problem

	for i, in := range inputs {
		in = in.Normalize()
		out[i] = in

		err := validate.Struct(in)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("validate user %d: %w", i, err)
		}
		for _, fe := range verrs {
			problems = append(problems, Problem{Index: i, Field: fe.Field(), Reason: describe(fe)})
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return out, nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return "must contain at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
