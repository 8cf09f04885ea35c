package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrValidation wraps every configuration validation failure.
var ErrValidation = errors.New("invalid configuration")

var validate = validator.New()

// Validate checks the field constraints of the whole tree.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}
