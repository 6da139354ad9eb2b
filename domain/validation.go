package domain

import (
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// NewValidator returns a validator that also knows the "notblank" rule:
// a string made of blanks only is refused like an empty one.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return v
}
