// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// report json names rather than Go field names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// probability: strictly between 0 and 1
	if err := validate.RegisterValidation("probability", func(fl validator.FieldLevel) bool {
		p := fl.Field().Float()
		return p > 0 && p < 1
	}); err != nil {
		panic(err)
	}
}

// FieldError is the first rule a request breaks
type FieldError struct {
	Field string
	Rule  string
	Param string
}

func (e *FieldError) Error() string {
	switch e.Rule {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "required_without":
		return fmt.Sprintf("%s is required without %s", e.Field, e.Param)
	case "probability":
		return fmt.Sprintf("%s must be between 0 and 1", e.Field)
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", e.Field, e.Param)
	}
	if e.Param != "" {
		return fmt.Sprintf("%s failed %s=%s", e.Field, e.Rule, e.Param)
	}
	return fmt.Sprintf("%s failed %s", e.Field, e.Rule)
}

// Validate checks struct tags and returns a *FieldError for the first failure
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		// drop the struct name prefix
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		return &FieldError{Field: field, Rule: fe.Tag(), Param: fe.Param()}
	}
	return err
}

// ApplyDefaults fills in parameters the request left at zero
func (r *CreateAuditRequest) ApplyDefaults() {
	if r.NumWinners == 0 {
		r.NumWinners = DefaultNumWinners
	}
	if r.InflationRate == 0 {
		r.InflationRate = DefaultInflationRate
	}
	if r.NumStages == 0 {
		r.NumStages = DefaultNumStages
	}
	if r.NumTrials == 0 {
		r.NumTrials = DefaultNumTrials
	}
}

// ApplyDefaults fills in parameters the request left at zero
func (r *SampleSizeRequest) ApplyDefaults() {
	if r.NumWinners == 0 {
		r.NumWinners = DefaultNumWinners
	}
	if r.InflationRate == 0 {
		r.InflationRate = DefaultInflationRate
	}
}

// ApplyDefaults fills in parameters the request left at zero
func (r *CreateContestRequest) ApplyDefaults() {
	if r.NumWinners == 0 {
		r.NumWinners = DefaultNumWinners
	}
}
