package validation_test

import (
	"strings"
	"testing"

	"sportstore/internal/apperrors"
	"sportstore/internal/models"
	"sportstore/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBody() map[string]interface{} {
	return map[string]interface{}{
		"name":     "Balón Adidas",
		"category": "Fútbol",
		"price":    99.99,
		"stock":    float64(10),
		"brand":    "Adidas",
	}
}

func violationsOf(t *testing.T, err error) []validation.Violation {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	var vErr *validation.ValidationError
	require.ErrorAs(t, err, &vErr)
	return vErr.Violations
}

func TestValidate_AcceptsValidBody(t *testing.T) {
	assert.NoError(t, validation.Validate(validation.ProductSpec, validBody(), false))

	zero := validBody()
	zero["price"] = float64(0)
	zero["stock"] = float64(0)
	assert.NoError(t, validation.Validate(validation.ProductSpec, zero, false))

	// bounds are inclusive and counted in characters
	edge := validBody()
	edge["name"] = strings.Repeat("ñ", 100)
	edge["category"] = strings.Repeat("c", 50)
	edge["brand"] = strings.Repeat("b", 50)
	assert.NoError(t, validation.Validate(validation.ProductSpec, edge, false))
}

func TestValidate_FieldBounds(t *testing.T) {
	tests := []struct {
		field      string
		value      interface{}
		constraint string
	}{
		{"name", strings.Repeat("n", 101), "maxLength"},
		{"category", strings.Repeat("c", 51), "maxLength"},
		{"brand", strings.Repeat("b", 51), "maxLength"},
		{"price", -0.01, "min"},
		{"stock", float64(-1), "min"},
		{"name", "", "isNotEmpty"},
		{"price", "cheap", "isNumber"},
		{"stock", 2.5, "isInt"},
		{"stock", 1e19, "isInt"},
		{"stock", 9.3e18, "isInt"},
		{"stock", 1e300, "isInt"},
		{"brand", float64(7), "isString"},
	}

	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.constraint, func(t *testing.T) {
			body := validBody()
			body[tt.field] = tt.value

			violations := violationsOf(t, validation.Validate(validation.ProductSpec, body, false))
			require.Len(t, violations, 1)
			assert.Equal(t, tt.field, violations[0].Property)
			assert.Contains(t, violations[0].Constraints, tt.constraint)
		})
	}
}

func TestValidate_MissingFields(t *testing.T) {
	violations := violationsOf(t, validation.Validate(validation.ProductSpec, map[string]interface{}{}, false))

	require.Len(t, violations, 5)
	for i, want := range []string{"name", "category", "price", "stock", "brand"} {
		assert.Equal(t, want, violations[i].Property)
		assert.Equal(t, want+" should not be empty", violations[i].Constraints["isNotEmpty"])
	}
}

func TestValidate_Partial(t *testing.T) {
	assert.NoError(t, validation.Validate(validation.ProductSpec, map[string]interface{}{"stock": float64(4)}, true))
	assert.NoError(t, validation.Validate(validation.ProductSpec, map[string]interface{}{}, true))

	violations := violationsOf(t, validation.Validate(validation.ProductSpec, map[string]interface{}{"stock": float64(-4)}, true))
	require.Len(t, violations, 1)
	assert.Equal(t, "stock", violations[0].Property)
}

func TestDecode(t *testing.T) {
	var input models.ProductInput
	require.NoError(t, validation.Decode(validBody(), &input))
	assert.Equal(t, models.ProductInput{Name: "Balón Adidas", Category: "Fútbol", Price: 99.99, Stock: 10, Brand: "Adidas"}, input)

	var patch models.ProductPatch
	require.NoError(t, validation.Decode(map[string]interface{}{"stock": float64(4), "id": "ignored"}, &patch))
	require.NotNil(t, patch.Stock)
	assert.Equal(t, 4, *patch.Stock)
	assert.Nil(t, patch.Name)
	assert.Nil(t, patch.Price)
}
