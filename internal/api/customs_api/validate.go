package customs_api

import (
	"fmt"
	"strings"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/go-playground/validator/v10"
)

const (
	CountryTag        = "country"
	WebserviceTypeTag = "webservice_type"
)

var validations = map[string]func(fl validator.FieldLevel) bool{
	CountryTag:        validCountry,
	WebserviceTypeTag: validWebserviceType,
}

func validCountry(fl validator.FieldLevel) bool {
	_, ok := models.ParseCountry(fl.Field().String())
	return ok
}

func validWebserviceType(fl validator.FieldLevel) bool {
	return models.WebserviceType(fl.Field().String()).Valid()
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	for tag, fn := range validations {
		_ = v.RegisterValidation(tag, fn)
	}
	return v
}

// validationMessage flattens validator errors into "field: tag" pairs.
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Namespace(), e.Tag()))
	}
	return strings.Join(msgs, " and ")
}
