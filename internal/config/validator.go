package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/loreguard-ai/loreguard/internal/types"
)

// Validator validates configuration values.
type Validator interface {
	Validate(cfg *Config) error
}

// validatorImpl implements Validator using go-playground/validator.
type validatorImpl struct {
	validate *validator.Validate
}

// NewValidator creates a Validator.
func NewValidator() Validator {
	return &validatorImpl{validate: validator.New()}
}

// Validate checks struct tags plus the cross-field rules tags can't
// express.
func (v *validatorImpl) Validate(cfg *Config) error {
	if cfg == nil {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "configuration is nil")
	}

	if err := v.validate.Struct(cfg); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return types.WrapError(types.CONFIG_VALIDATION_FAILED, "validation error", err)
		}
		messages := make([]string, 0, len(validationErrs))
		for _, e := range validationErrs {
			messages = append(messages, formatValidationError(e))
		}
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"configuration validation failed:\n  - "+strings.Join(messages, "\n  - "))
	}

	if cfg.Server.RateLimit.Enabled && cfg.Server.RateLimit.RequestsPerSecond <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"server.rate_limit.requests_per_second must be positive when rate limiting is enabled")
	}

	return nil
}

// formatValidationError renders one field error with its value.
func formatValidationError(e validator.FieldError) string {
	field := strings.ToLower(e.Namespace())
	field = strings.TrimPrefix(field, "config.")

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", field, e.Param(), e.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s (got: %v)", field, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", field, e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s failed %s validation (got: %v)", field, e.Tag(), e.Value())
	}
}
