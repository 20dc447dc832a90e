package validator

import (
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Validator instance
var validate *validator.Validate

var maxWhole = decimal.NewFromInt(math.MaxInt64)

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Positive decimal carried as a string (Stripe metadata values are strings)
	validate.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err == nil && d.IsPositive()
	})

	// Positive whole number carried as a string, small enough for int64
	validate.RegisterValidation("positive_whole", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err == nil && d.IsPositive() && d.Equal(d.Truncate(0)) &&
			d.LessThanOrEqual(maxWhole)
	})

	// Internal ledger payment status
	validate.RegisterValidation("payment_status", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "pending", "processing", "completed", "failed", "refunded", "expired":
			return true
		}
		return false
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			fields[field] = "This field is required"
		case "email":
			fields[field] = "Invalid email format"
		case "uuid", "uuid4":
			fields[field] = "Invalid identifier"
		case "gte":
			fields[field] = "Value must be at least " + fe.Param()
		case "lte":
			fields[field] = "Value must be at most " + fe.Param()
		case "positive_decimal":
			fields[field] = "Must be a positive number"
		case "positive_whole":
			fields[field] = "Must be a positive whole number"
		case "payment_status":
			fields[field] = "Invalid status. Must be: pending, processing, completed, failed, refunded, or expired"
		default:
			fields[field] = "Invalid value"
		}
	}

	return fields
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
