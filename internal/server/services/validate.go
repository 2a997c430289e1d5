package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/fitauth/internal/common"
	"github.com/dmitrijs2005/fitauth/internal/server/hasher"
	"github.com/go-playground/validator/v10"
)

// PasswordPolicy describes the rules every new password must satisfy.
// Clients may mirror it to validate before submitting.
var PasswordPolicy = struct {
	MinLength    int
	MaxBytes     int
	RequireUpper bool
	RequireLower bool
	RequireDigit bool
	Description  string
}{
	MinLength:    8,
	MaxBytes:     hasher.MaxPasswordBytes,
	RequireUpper: true,
	RequireLower: true,
	RequireDigit: true,
	Description:  "Password must be 8-72 characters and contain at least one uppercase letter, one lowercase letter and one number",
}

// CheckPassword reports whether pw satisfies PasswordPolicy.
func CheckPassword(pw string) bool {
	if len([]rune(pw)) < PasswordPolicy.MinLength || len(pw) > PasswordPolicy.MaxBytes {
		return false
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return (upper || !PasswordPolicy.RequireUpper) &&
		(lower || !PasswordPolicy.RequireLower) &&
		(digit || !PasswordPolicy.RequireDigit)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return CheckPassword(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register password validation: %v", err))
	}
	return v
}

// toValidationError converts validator output into a *common.ValidationError
// with one human-readable message per rejected field.
func toValidationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}

	out := &common.ValidationError{}
	for _, fe := range ves {
		out.Fields = append(out.Fields, common.FieldError{
			Field:   fieldPath(fe),
			Message: fieldMessage(fe),
		})
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

var fieldLabels = map[string]string{
	"fullName":      "Full name",
	"email":         "Email",
	"password":      "Password",
	"token":         "Token",
	"profilePic":    "Profile picture",
	"age":           "Age",
	"gender":        "Gender",
	"height":        "Height",
	"weight":        "Weight",
	"fitnessGoal":   "Fitness goal",
	"activityLevel": "Activity level",
}

func fieldMessage(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Please provide a valid email"
	case "password":
		return PasswordPolicy.Description
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "gte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s cannot exceed %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s cannot exceed %s", label, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", label, fe.Param())
	default:
		return label + " is invalid"
	}
}
