package feedbackAuth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	phonePattern    = regexp.MustCompile(`^\+?1?\d{9,15}$`)
	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	// Empty phone numbers are allowed so a profile can clear the field.
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || phonePattern.MatchString(s)
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// checkStruct runs tag validation and converts failures into a
// *ValidationError keyed by snake_case field names.
func checkStruct(v *validator.Validate, s any) *ValidationError {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	out := &ValidationError{}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		out.Add("non_field_errors", err.Error())
		return out
	}
	for _, fe := range fieldErrs {
		out.Add(snakeCase(fe.Field()), fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid email address"
	case "max":
		return fmt.Sprintf("ensure this field has no more than %s characters", fe.Param())
	case "min":
		return "this field may not be blank"
	case "phone":
		return "phone number must be entered in the format '+999999999', up to 15 digits"
	case "username":
		return "enter a valid username; only letters, numbers and @/./+/-/_ are allowed"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return "invalid value"
	}
}

func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// checkPassword applies confirmation and policy rules. field names the
// password input, confirmField its confirmation.
func (e *Engine) checkPassword(verr *ValidationError, field, confirmField, pw, confirm string, attrs ...string) {
	if pw != confirm {
		verr.Add(confirmField, "password fields didn't match")
	}
	if len(pw) > e.config.Password.MaxPasswordBytes && e.config.Password.MaxPasswordBytes > 0 {
		verr.Add(field, "password is too long")
		return
	}
	for _, msg := range e.policy.Check(pw, attrs...) {
		verr.Add(field, msg)
	}
}
