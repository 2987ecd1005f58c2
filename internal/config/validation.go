package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs validation that cannot be expressed in tags.
func validateCustomRules(cfg *Config) error {
	if len(cfg.Users) == 0 {
		return errors.New("users: at least one account must be configured")
	}

	names := make(map[string]bool)
	for i, u := range cfg.Users {
		if names[u.Name] {
			return fmt.Errorf("users[%d]: duplicate account name %q", i, u.Name)
		}
		names[u.Name] = true
	}

	s := cfg.Server
	if (s.PassivePortMin == 0) != (s.PassivePortMax == 0) {
		return errors.New("server: passive_port_min and passive_port_max must be set together")
	}
	if s.PassivePortMin > s.PassivePortMax {
		return fmt.Errorf("server: passive port range [%d, %d] is inverted", s.PassivePortMin, s.PassivePortMax)
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
