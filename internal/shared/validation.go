package shared

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldMessages maps "StructField.tag" to a user-facing message.
type FieldMessages map[string]string

// CollectValidatorErrors folds validator failures into ve. formNames maps
// Go struct fields to form field keys; unlisted fields fall back to the
// lowercased struct field name. Every failed field is collected so the
// caller can render all messages at once.
func CollectValidatorErrors(ve *ValidationError, err error, formNames map[string]string, messages FieldMessages) {
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		ve.Add("general", "The given data was invalid.")
		return
	}
	for _, fe := range verrs {
		field := formNames[fe.StructField()]
		if field == "" {
			field = strings.ToLower(fe.StructField())
		}
		msg := messages[fe.StructField()+"."+fe.Tag()]
		if msg == "" {
			msg = "The " + field + " field is invalid."
		}
		ve.Add(field, msg)
	}
}
