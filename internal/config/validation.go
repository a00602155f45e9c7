// File: internal/config/validation.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// validateCustomRules covers cross-field rules.
func validateCustomRules(cfg *Config) error {
	if cfg.Credentials.Type == "badger" && cfg.Credentials.Path == "" {
		return fmt.Errorf("credentials.path: required for the badger store")
	}
	if cfg.Server.IdleTimeout < cfg.Server.TimeSlot {
		return fmt.Errorf("server.idle_timeout (%s) must not be shorter than server.time_slot (%s)",
			cfg.Server.IdleTimeout, cfg.Server.TimeSlot)
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == cfg.Server.Listen {
		return fmt.Errorf("metrics.listen: must differ from server.listen")
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
