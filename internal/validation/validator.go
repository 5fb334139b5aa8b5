// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

// Package validation provides struct validation using go-playground/validator
// v10 behind a thread-safe singleton, with custom validators for the
// listening-context enums.
//
// Example:
//
//	type PreferencesRequest struct {
//	    PreferredGenres []string `validate:"required,min=1,max=10,dive,min=1,max=64"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    rw.ValidationError(verr.Error(), verr.Details())
//	    return
//	}
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/cadenzalabs/cadenza/internal/models"
)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single field validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// RequestValidationError collects the field errors of one request.
type RequestValidationError struct {
	fields []FieldError
}

// Error implements the error interface with a combined message.
func (ve *RequestValidationError) Error() string {
	if len(ve.fields) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve.fields))
	for i, fe := range ve.fields {
		messages[i] = fe.Message
	}
	return strings.Join(messages, "; ")
}

// Details returns the per-field errors for the API error payload.
func (ve *RequestValidationError) Details() []FieldError {
	return ve.fields
}

// GetValidator returns the singleton validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Listening-context enums. Empty values pass; use required to forbid.
		mustRegister("mood", func(fl validator.FieldLevel) bool {
			v := fl.Field().String()
			return v == "" || models.Mood(v).Valid()
		})
		mustRegister("activity", func(fl validator.FieldLevel) bool {
			v := fl.Field().String()
			return v == "" || models.Activity(v).Valid()
		})
		mustRegister("timebucket", func(fl validator.FieldLevel) bool {
			v := fl.Field().String()
			return v == "" || models.TimeBucket(v).Valid()
		})
		mustRegister("eventtype", func(fl validator.FieldLevel) bool {
			return models.EventType(fl.Field().String()).Valid()
		})
	})

	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// ValidateStruct validates a struct using the singleton validator.
// Returns nil when validation passes.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{fields: []FieldError{{
			Field:   "unknown",
			Tag:     "unknown",
			Message: err.Error(),
		}}}
	}

	fields := make([]FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translateError(fe),
		}
	}

	return &RequestValidationError{fields: fields}
}

// errorMessageTemplates maps tags without a parameter to message templates.
var errorMessageTemplates = map[string]string{
	"required":   "%s is required",
	"mood":       "%s must be one of CALM, HAPPY, SAD, ENERGETIC",
	"activity":   "%s must be one of WORK, EXERCISE, RELAX, PARTY",
	"timebucket": "%s must be one of MORNING, AFTERNOON, EVENING, NIGHT",
	"eventtype":  "%s must be one of PLAY, SKIP, LIKE, DISLIKE, ADD_TO_PLAYLIST",
}

// errorMessageWithParam maps tags whose message includes the parameter.
var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

// translateError converts a validator.FieldError to a human-readable message.
func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}
