// Package validation checks decoded JSON bodies against an explicit, ordered
// list of per-field constraints before they reach the services.
package validation

import (
	"fmt"
	"math"
	"strings"

	"sportstore/internal/apperrors"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Whole numbers outside [minInt, maxIntBound) do not fit an int64.
const (
	minInt      = -(1 << 63)
	maxIntBound = 1 << 63
)

// Kind is the JSON type a field must have.
type Kind int

const (
	String Kind = iota
	Number
	Integer
)

// Check is one constraint. Tag is evaluated with validator.Var; Constraint and
// Message are what clients see when it fails.
type Check struct {
	Constraint string
	Tag        string
	Message    string
}

// Field lists the checks for one body property, in evaluation order.
type Field struct {
	Name   string
	Kind   Kind
	Checks []Check
}

// Spec is the full set of fields a body may carry.
type Spec []Field

// Violation describes every constraint one property failed.
type Violation struct {
	Property    string            `json:"property"`
	Constraints map[string]string `json:"constraints"`
}

// ValidationError is returned when a body fails its Spec.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	props := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		props = append(props, v.Property)
	}
	return fmt.Sprintf("validation failed for %s", strings.Join(props, ", "))
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrValidationFailed
}

// NotEmpty rejects missing values and empty strings.
func NotEmpty(field string) Check {
	return Check{Constraint: "isNotEmpty", Tag: "required", Message: field + " should not be empty"}
}

// MaxLength limits a string to n characters.
func MaxLength(field string, n int) Check {
	return Check{
		Constraint: "maxLength",
		Tag:        fmt.Sprintf("max=%d", n),
		Message:    fmt.Sprintf("%s must be shorter than or equal to %d characters", field, n),
	}
}

// Min rejects numbers below n.
func Min(field string, n int) Check {
	return Check{
		Constraint: "min",
		Tag:        fmt.Sprintf("gte=%d", n),
		Message:    fmt.Sprintf("%s must not be less than %d", field, n),
	}
}

var validate = validator.New()

func typeCheck(name string, kind Kind, value interface{}) (interface{}, *Check) {
	switch kind {
	case String:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, &Check{Constraint: "isString", Message: name + " must be a string"}
	case Number:
		if f, ok := value.(float64); ok {
			return f, nil
		}
		return nil, &Check{Constraint: "isNumber", Message: name + " must be a number conforming to the specified constraints"}
	case Integer:
		if f, ok := value.(float64); ok && f == math.Trunc(f) && f >= minInt && f < maxIntBound {
			return int64(f), nil
		}
		return nil, &Check{Constraint: "isInt", Message: name + " must be an integer number"}
	}
	return nil, &Check{Constraint: "unknownKind", Message: name + " cannot be validated"}
}

// Validate checks body against spec. When partial is true, absent fields are
// skipped instead of failing NotEmpty. Properties not named in spec are
// ignored.
func Validate(spec Spec, body map[string]interface{}, partial bool) error {
	var violations []Violation
	for _, field := range spec {
		constraints := map[string]string{}

		raw, present := body[field.Name]
		if !present || raw == nil {
			if partial {
				continue
			}
			for _, check := range field.Checks {
				if check.Tag == "required" {
					constraints[check.Constraint] = check.Message
				}
			}
			if len(constraints) > 0 {
				violations = append(violations, Violation{Property: field.Name, Constraints: constraints})
			}
			continue
		}

		value, failed := typeCheck(field.Name, field.Kind, raw)
		if failed != nil {
			constraints[failed.Constraint] = failed.Message
			violations = append(violations, Violation{Property: field.Name, Constraints: constraints})
			continue
		}

		for _, check := range field.Checks {
			if check.Tag == "required" && field.Kind != String {
				// zero is a legitimate number; presence was checked above
				continue
			}
			if err := validate.Var(value, check.Tag); err != nil {
				constraints[check.Constraint] = check.Message
			}
		}
		if len(constraints) > 0 {
			violations = append(violations, Violation{Property: field.Name, Constraints: constraints})
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// Decode copies a validated body into out, matching properties to json tags.
func Decode(body map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(body)
}
