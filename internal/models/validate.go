package models

import "github.com/go-playground/validator/v10"

// validate is the shared struct validator for request payloads.
var validate = validator.New()
