package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type boxInput struct {
	Name      string  `json:"name" validate:"required,min=2,max=120"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Rating    int     `json:"rating" validate:"gte=1,lte=5"`
	Tier      string  `json:"tier" validate:"omitempty,oneof=freemium premium"`
	Internal  string  `json:"-" validate:"omitempty,uuid"`
}

func validInput() boxInput {
	return boxInput{Name: "Boîte du parc", Latitude: 48.85, Longitude: 2.35, Rating: 4}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(validInput()))
}

func TestValidate_ReportsJSONNames(t *testing.T) {
	in := validInput()
	in.Name = ""

	fields := fieldsOf(t, Validate(in))
	assert.Equal(t, "is required", fields["name"])
}

func TestValidate_Messages(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*boxInput)
		field  string
		want   string
	}{
		{"too short", func(b *boxInput) { b.Name = "a" }, "name", "at least 2"},
		{"latitude", func(b *boxInput) { b.Latitude = 123 }, "latitude", "valid latitude"},
		{"longitude", func(b *boxInput) { b.Longitude = -200 }, "longitude", "valid longitude"},
		{"rating low", func(b *boxInput) { b.Rating = 0 }, "rating", "greater than or equal to 1"},
		{"rating high", func(b *boxInput) { b.Rating = 6 }, "rating", "less than or equal to 5"},
		{"tier", func(b *boxInput) { b.Tier = "gold" }, "tier", "one of"},
		{"json dash falls back to field name", func(b *boxInput) { b.Internal = "nope" }, "Internal", "valid UUID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			fields := fieldsOf(t, Validate(in))
			assert.Contains(t, fields[tt.field], tt.want)
		})
	}
}

func TestValidationError_ErrorString(t *testing.T) {
	err := Validate(boxInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'name' is required")
}

func TestDecodeAndValidate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Kiosque","latitude":45.7,"longitude":4.8,"rating":5}`))

	var in boxInput
	require.NoError(t, DecodeAndValidate(req, &in))
	assert.Equal(t, "Kiosque", in.Name)
	assert.Equal(t, 5, in.Rating)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{invalid"))

	var in boxInput
	err := DecodeAndValidate(req, &in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}
