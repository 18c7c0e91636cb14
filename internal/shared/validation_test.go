package shared

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleInput struct {
	Name  string `validate:"required,max=255"`
	Email string `validate:"required,email"`
}

func TestCollectValidatorErrorsCollectsAllFields(t *testing.T) {
	validate := validator.New()
	err := validate.Struct(sampleInput{})
	require.Error(t, err)

	ve := NewValidationError()
	CollectValidatorErrors(ve, err, map[string]string{"Name": "name", "Email": "email"}, FieldMessages{
		"Name.required":  "The name field is required.",
		"Email.required": "The email address is required.",
	})

	require.True(t, ve.HasErrors())
	assert.Equal(t, "The name field is required.", ve.Fields["name"])
	assert.Equal(t, "The email address is required.", ve.Fields["email"])
}

func TestCollectValidatorErrorsFallsBackToGenericMessage(t *testing.T) {
	validate := validator.New()
	err := validate.Struct(sampleInput{Name: "ok", Email: "not-an-email"})
	require.Error(t, err)

	ve := NewValidationError()
	CollectValidatorErrors(ve, err, nil, nil)

	assert.Equal(t, "The email field is invalid.", ve.Fields["email"])
}

func TestValidationErrorFirstMessageWins(t *testing.T) {
	ve := NewValidationError()
	ve.Add("name", "first")
	ve.Add("name", "second")
	assert.Equal(t, "first", ve.Fields["name"])
}

func TestAsValidationError(t *testing.T) {
	ve := NewValidationError()
	ve.Add("name", "broken")

	got, ok := AsValidationError(error(ve))
	require.True(t, ok)
	assert.Equal(t, "broken", got.Fields["name"])

	_, ok = AsValidationError(ErrNotFound)
	assert.False(t, ok)
}
