package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate is the shared struct validator. Field names in messages use the
// JSON tag so they match the request body.
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateStruct validates input and converts failures to a 400 AppError
func ValidateStruct(input interface{}) *AppError {
	if err := Validate.Struct(input); err != nil {
		return BadRequestError(ValidationErrorToMessage(err), err)
	}
	return nil
}

// ValidationErrorToMessage converts a validator.ValidationErrors to a string
func ValidationErrorToMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid data"
	}

	fields := []string{}
	tags := []string{}
	params := []string{}
	for _, e := range verrs {
		fields = append(fields, e.Field())
		tags = append(tags, e.ActualTag())
		if e.Param() != "" {
			params = append(params, e.Param())
		}
	}
	msg := fmt.Sprintf("Invalid field %s (%s)", strings.Join(fields, ", "), strings.Join(tags, ", "))
	if len(params) > 0 {
		msg += fmt.Sprintf(", parameter %s", strings.Join(params, ", "))
	}
	return msg
}
