package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/neomorfeo/adoptiq/internal/domain"
)

var validate = validator.New()

// normalizeDetails trims the free-text fields before validation.
func normalizeDetails(d domain.AdopterDetails) domain.AdopterDetails {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Reason = strings.TrimSpace(d.Reason)
	return d
}

// validateDetails reports the first failing field as a domain.ValidationError.
func validateDetails(d domain.AdopterDetails) error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &domain.ValidationError{Field: strings.ToLower(fe.Field()), Reason: reason(fe)}
	}
	return fmt.Errorf("validating adopter details: %w", err)
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

func requireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &domain.ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}
