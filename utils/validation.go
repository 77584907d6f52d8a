package utils

import (
	"regexp"
	"sync"

	"reservo/models"

	"github.com/go-playground/validator/v10"
)

var (
	phonePattern = regexp.MustCompile(`^\d{9,10}$`)
	datePattern  = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the reservation rules registered:
// reservation_status, phone_digits, ddmmyyyy and time_slot.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("reservation_status", func(fl validator.FieldLevel) bool {
			return models.IsValidStatus(fl.Field().String())
		})
		_ = v.RegisterValidation("phone_digits", func(fl validator.FieldLevel) bool {
			return IsValidPhone(fl.Field().String())
		})
		_ = v.RegisterValidation("ddmmyyyy", func(fl validator.FieldLevel) bool {
			return IsValidDate(fl.Field().String())
		})
		_ = v.RegisterValidation("time_slot", func(fl validator.FieldLevel) bool {
			return models.IsValidTimeSlot(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// IsValidPhone reports whether s is a 9 to 10 digit string.
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// IsValidDate reports whether s matches DD/MM/YYYY.
func IsValidDate(s string) bool {
	return datePattern.MatchString(s)
}
