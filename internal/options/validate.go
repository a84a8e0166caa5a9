// Package options validates resolved configuration structs with
// go-playground/validator struct tags.
package options

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/erraggy/oasguard/oaserrors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their mapstructure (config file) name when they have one.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks v against its validate tags. The first violation is returned
// as a *oaserrors.ConfigError naming the field.
func Validate(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &oaserrors.ConfigError{Message: "invalid configuration", Cause: err}
	}
	fe := fieldErrs[0]
	return &oaserrors.ConfigError{
		Option:  fe.Namespace(),
		Value:   fe.Value(),
		Message: message(fe),
		Cause:   err,
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "hostname_port":
		return "must be a host:port address"
	}
	return fmt.Sprintf("failed validation for %q", fe.Tag())
}
