package service

import (
	"errors"
	"reflect"
	"strings"

	"Food_Share/internal/pkg"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their wire names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct collects every failing field into one Validation error.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return pkg.Validation(err.Error())
	}
	seen := make(map[string]bool, len(ve))
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		name := fe.Field()
		if i := strings.IndexByte(name, '['); i > 0 {
			name = name[:i]
		}
		if !seen[name] {
			seen[name] = true
			fields = append(fields, name)
		}
	}
	return pkg.Validation("missing or invalid fields", fields...)
}
