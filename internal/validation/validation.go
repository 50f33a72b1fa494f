package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"cylinder-backend/internal/ledger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report json names so messages match the request body.
	validate.RegisterTagNameFunc(jsonName)

	_ = validate.RegisterValidation("cylinder_type", func(fl validator.FieldLevel) bool {
		_, err := ledger.ParseCylinderType(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("payment_type", func(fl validator.FieldLevel) bool {
		_, err := ledger.ParsePaymentType(fl.Field().String())
		return err == nil
	})
}

// FieldErrors maps each failing field to the tag it failed.
func FieldErrors(err error) map[string]string {
	out := make(map[string]string)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return out
	}
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// Struct validates s and returns a 400 fiber error listing the failing fields.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	fields := FieldErrors(err)
	if len(fields) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, fields[name]))
	}
	return fiber.NewError(fiber.StatusBadRequest, "validation failed: "+strings.Join(parts, ", "))
}
