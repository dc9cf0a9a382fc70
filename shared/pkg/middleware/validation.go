package middleware

import (
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/scp-mobile/platform/shared/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var orgRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// InitValidator registers the custom tags on a standalone validator and on gin's
func InitValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		register(validate)

		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			register(v)
		}
	})
	return validate
}

func register(v *validator.Validate) {
	_ = v.RegisterValidation("scpid", validateIdentifier)
	_ = v.RegisterValidation("org", validateOrg)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// GetValidator returns the singleton validator instance
func GetValidator() *validator.Validate {
	return InitValidator()
}

// validateIdentifier accepts store, item and location identifiers. Quotes are
// allowed (queries escape them); control characters never are.
func validateIdentifier(fl validator.FieldLevel) bool {
	return IsSafeIdentifier(fl.Field().String())
}

// IsSafeIdentifier reports whether s can be rendered into a vendor query
func IsSafeIdentifier(s string) bool {
	if strings.TrimSpace(s) == "" || len(s) > 128 {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func validateOrg(fl validator.FieldLevel) bool {
	return orgRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}

// ValidationErrorFormatter formats validation errors into a field map
func ValidationErrorFormatter(err error) map[string]string {
	fields := make(map[string]string)
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			fields[e.Field()] = formatValidationError(e)
		}
	}
	return fields
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_without", "required_with":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "scpid":
		return "must be a non-empty identifier without control characters"
	case "org":
		return "must be a valid organization code"
	case "dive":
		return "contains an invalid entry"
	default:
		return "is invalid"
	}
}

// ValidateStruct validates a struct using the shared validator
func ValidateStruct(obj interface{}) *errors.AppError {
	if err := GetValidator().Struct(obj); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return errors.ErrValidationWithFields("validation failed", ValidationErrorFormatter(validationErrors))
		}
		return errors.ErrBadRequest("validation failed: " + err.Error())
	}
	return nil
}
