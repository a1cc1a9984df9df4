package domain

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the note-specific tags registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		validate.RegisterValidation("palette", func(fl validator.FieldLevel) bool {
			return ValidColor(fl.Field().String())
		})
	})
	return validate
}

// ValidatePatch checks a patch before it is allowed into the mutation log.
// A creating patch must carry a title and content.
func ValidatePatch(p Patch, creating bool) error {
	var errs []FieldError

	if creating {
		if p.Title == nil {
			errs = append(errs, FieldError{Field: string(FieldTitle), Message: "is required"})
		}
		if p.Content == nil {
			errs = append(errs, FieldError{Field: string(FieldContent), Message: "is required"})
		}
	} else if p.Empty() {
		errs = append(errs, FieldError{Field: "patch", Message: "must change at least one field"})
	}

	fieldErrs, err := structErrors(p)
	if err != nil {
		return err
	}
	errs = append(errs, fieldErrs...)

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// ValidateStruct runs the struct's validate tags and reports failures as a
// *ValidationError.
func ValidateStruct(v any) error {
	errs, err := structErrors(v)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func structErrors(v any) ([]FieldError, error) {
	err := Validator().Struct(v)
	if err == nil {
		return nil, nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil, err
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   strings.ToLower(fe.Field()),
			Message: fieldMessage(fe),
		})
	}
	return out, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank":
		return "must not be blank"
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "palette":
		return "must be one of " + strings.Join(Palette, ", ")
	default:
		return "failed " + fe.Tag()
	}
}
