package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap/zapcore"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// FieldError describes why a single configuration key was rejected.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (f FieldError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("field", f.Field)
	enc.AddString("reason", f.Reason)
	return nil
}

// FieldErrors is a list of field-level problems.
type FieldErrors []FieldError

// MarshalLogArray implements zapcore.ArrayMarshaler.
func (fe FieldErrors) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, f := range fe {
		if err := enc.AppendObject(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidationError is returned when the environment does not describe a usable configuration.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Reason)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("env"), ",")
		if name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("tcpport", func(fl validator.FieldLevel) bool {
		port, err := strconv.Atoi(fl.Field().String())
		return err == nil && port > 0 && port <= 65535
	})
	return v
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) FieldErrors {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{{Field: "config", Reason: err.Error()}}
	}

	out := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Reason: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "tcpport":
		return "must be a TCP port between 1 and 65535"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
