package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

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

// ValidateStruct runs struct tag validation and reports failures as a *ValidationError
// keyed by the json field name.
func ValidateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[fe.Field()] = validationMessage(fe)
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "حقل مطلوب / required"
	case "email":
		return "بريد إلكتروني غير صالح / invalid email"
	case "max":
		return "القيمة طويلة جداً / too long (max " + fe.Param() + ")"
	case "oneof":
		return "قيمة غير مسموحة / must be one of " + fe.Param()
	case "gt", "gte":
		return "القيمة صغيرة جداً / must be greater than " + fe.Param()
	case "gtfield":
		return "يجب أن يكون بعد " + fe.Param() + " / must be after " + fe.Param()
	default:
		return "قيمة غير صالحة / invalid value"
	}
}
