package services

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/educlass/portal/internal/models"
)

// RegistrationInput is the registration form as submitted.
type RegistrationInput struct {
	FullName        string `json:"fullName" validate:"required"`
	Email           string `json:"email" validate:"required,emailshape"`
	Phone           string `json:"phone" validate:"required"`
	Course          string `json:"course" validate:"course"`
	Level           string `json:"level" validate:"level"`
	Gender          string `json:"gender" validate:"gender"`
	DateOfBirth     string `json:"dateOfBirth" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

// Normalized trims the free-text fields. Passwords are left as typed.
func (in RegistrationInput) Normalized() RegistrationInput {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	return in
}

// ValidationError maps form field names to the message shown under them.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("registration form has %d invalid field(s)", len(e.Fields))
}

var emailShape = regexp.MustCompile(`^\S+@\S+\.\S+$`)

var messages = map[string]string{
	"fullName.required":       "Full name is required",
	"email.required":          "Email is required",
	"email.emailshape":        "Invalid email format",
	"phone.required":          "Phone number is required",
	"course.course":           "Please select a course",
	"level.level":             "Please select a level",
	"gender.gender":           "Please select gender",
	"dateOfBirth.required":    "Date of birth is required",
	"password.required":       "Password is required",
	"password.min":            "Password must be at least 6 characters",
	"confirmPassword.eqfield": "Passwords do not match",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
		return emailShape.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("course", func(fl validator.FieldLevel) bool {
		return models.IsCourse(fl.Field().String())
	})
	_ = v.RegisterValidation("level", func(fl validator.FieldLevel) bool {
		return models.IsLevel(fl.Field().String())
	})
	_ = v.RegisterValidation("gender", func(fl validator.FieldLevel) bool {
		return models.IsGender(fl.Field().String())
	})
	return v
}

// ValidateRegistration checks every field and returns all violations at
// once, or nil. in should already be normalized.
func ValidateRegistration(in RegistrationInput) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out.Fields[field]; seen {
			continue
		}
		msg, ok := messages[field+"."+fe.Tag()]
		if !ok {
			msg = "Invalid value"
		}
		out.Fields[field] = msg
	}
	return out
}

