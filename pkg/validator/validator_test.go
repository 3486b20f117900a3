package validator

import (
	"encoding/json"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name string `json:"name" binding:"required"`
}

type sample struct {
	Mobile string `json:"mobile_number" binding:"required,mobile"`
	Kind   string `json:"kind" binding:"required,oneof=day weekly"`
	Items  []item `json:"items" binding:"dive"`
}

func TestFieldErrorsUseJSONNames(t *testing.T) {
	Register()

	err := binding.Validator.ValidateStruct(&sample{
		Mobile: "12ab",
		Kind:   "monthly",
		Items:  []item{{Name: ""}},
	})
	require.Error(t, err)

	fields, ok := FieldErrors(err)
	require.True(t, ok)
	assert.Equal(t, "invalid mobile number", fields["mobile_number"])
	assert.Equal(t, "value is not one of the allowed options", fields["kind"])
	assert.Equal(t, "this field is required", fields["items[0].name"])
}

func TestFieldErrorsFromJSONTypeMismatch(t *testing.T) {
	var s struct {
		Age int `json:"age"`
	}
	err := json.Unmarshal([]byte(`{"age":"old"}`), &s)
	require.Error(t, err)

	fields, ok := FieldErrors(err)
	require.True(t, ok)
	assert.Equal(t, "must be a int", fields["age"])
}

func TestValidMobile(t *testing.T) {
	assert.True(t, ValidMobile("9876543210"))
	assert.True(t, ValidMobile("+919876543210"))
	assert.False(t, ValidMobile("98765"))
	assert.False(t, ValidMobile("98765abcde"))
}
