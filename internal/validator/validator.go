package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/go-playground/validator/v10"
)

const (
	ErrRequired       = "is required"
	ErrMinLength      = "must be at least %s characters long"
	ErrMaxLength      = "must be at most %s characters long"
	ErrGreaterThan    = "must be greater than %s"
	ErrNotLessThan    = "must be %s or more"
	ErrItemType       = "must be one of COURSE, TASTER"
	ErrPromoCode      = "must be 2-32 letters, digits, dashes or underscores"
	ErrDefaultInvalid = "is invalid"
)

var promoCodeRgx = regexp.MustCompile(`^[A-Za-z0-9_-]{2,32}$`)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	validator.RegisterTagNameFunc(jsonFieldName)

	validator.RegisterValidation("not_blank", validateNotBlank)
	validator.RegisterValidation("item_type", validateItemType)
	validator.RegisterValidation("promo_code", validatePromoCode)

	return validator
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateItemType(fl validator.FieldLevel) bool {
	itemType, ok := fl.Field().Interface().(domain.ItemType)
	if !ok {
		return domain.ItemType(fl.Field().String()).Valid()
	}

	return itemType.Valid()
}

func validatePromoCode(fl validator.FieldLevel) bool {
	return promoCodeRgx.MatchString(fl.Field().String())
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required", "not_blank":
		return ErrRequired
	case "min":
		return fmt.Sprintf(ErrMinLength, err.Param())
	case "max":
		return fmt.Sprintf(ErrMaxLength, err.Param())
	case "gt":
		return fmt.Sprintf(ErrGreaterThan, err.Param())
	case "gte":
		return fmt.Sprintf(ErrNotLessThan, err.Param())
	case "item_type":
		return ErrItemType
	case "promo_code":
		return ErrPromoCode
	default:
		return ErrDefaultInvalid
	}
}

// FieldErrors flattens a validation failure into the per-field errors the
// engine reports. Errors that did not come from the validator map to a
// single entry without a path.
func FieldErrors(err error) []domain.FieldError {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []domain.FieldError{{Message: err.Error()}}
	}

	fieldErrors := make([]domain.FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		fieldErrors[i] = domain.FieldError{
			Path:    fe.Field(),
			Message: ValidationMessage(fe),
		}
	}

	return fieldErrors
}
