package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dvloznov/commerce-analytics/internal/temporal"
)

// Error titles of 400 responses.
const (
	titleMissingParams   = "Missing parameters"
	titleInvalidDate     = "Invalid date format"
	titleInvalidTimezone = "Timezone invalid"
	titleInvalidPeriod   = "Invalid period format"
	titleInvalidRange    = "Invalid date range"
	titleInvalidBody     = "Invalid request body"
	titleInvalidParams   = "Invalid parameters"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// iana_zone accepts UTC and any zone the normalizer can load.
	err := v.RegisterValidation("iana_zone", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		if name == "UTC" {
			return true
		}
		_, ok := temporal.LookupZone(name)
		return ok
	})
	if err != nil {
		panic(fmt.Sprintf("register iana_zone validation: %v", err))
	}
	return v
}

// paramError is a client error ready to be written as a 400.
type paramError struct {
	title   string
	message string
}

func (e *paramError) Error() string {
	return e.title + ": " + e.message
}

// validateParams runs struct validation and maps the first failure onto the
// client error it should produce. Field names are reported as query
// parameter names via paramNames.
func validateParams(params any) *paramError {
	err := validate.Struct(params)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &paramError{title: titleInvalidParams, message: err.Error()}
	}

	// Missing parameters are reported before malformed ones.
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return &paramError{title: titleMissingParams, message: fmt.Sprintf("%s is required", paramName(fe))}
		}
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "datetime":
		return &paramError{title: titleInvalidDate, message: fmt.Sprintf("%s must be in YYYY-MM-DD format", paramName(fe))}
	case "iana_zone":
		return &paramError{title: titleInvalidTimezone, message: fmt.Sprintf("%q is not a valid IANA timezone name", fe.Value())}
	default:
		return &paramError{title: titleInvalidParams, message: fmt.Sprintf("%s is invalid", paramName(fe))}
	}
}

func paramName(fe validator.FieldError) string {
	if name, ok := paramNames[fe.Field()]; ok {
		return name
	}
	return fe.Field()
}

var paramNames = map[string]string{
	"StartDate": "start_date",
	"EndDate":   "end_date",
	"Date":      "date",
	"Timezone":  "timezone",
	"Period1":   "period1",
	"Period2":   "period2",
}
