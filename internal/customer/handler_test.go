package customer

import (
	"testing"

	"cylinder-backend/internal/models"
	"cylinder-backend/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCreateRequestNormalize(t *testing.T) {
	req := CreateCustomerRequest{Code: "  c-014 ", Name: " Hotel Sunrise ", Phone: " 0300 "}
	req.normalize()

	assert.Equal(t, "C-014", req.Code)
	assert.Equal(t, "Hotel Sunrise", req.Name)
	assert.Equal(t, "0300", req.Phone)
	assert.NoError(t, validation.Struct(req))
}

func TestCreateRequestRequiresCodeAndName(t *testing.T) {
	req := CreateCustomerRequest{Code: "   ", Name: ""}
	req.normalize()
	assert.Error(t, validation.Struct(req))
}

func TestUpdateRequestApply(t *testing.T) {
	cu := models.Customer{ID: 1, Code: "C-1", Name: "Old"}

	changed, err := UpdateCustomerRequest{Name: strPtr(" New ")}.apply(&cu)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "New", cu.Name)
	assert.Equal(t, "C-1 · New", cu.Label())

	changed, err = UpdateCustomerRequest{Code: strPtr("c-1")}.apply(&cu)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = UpdateCustomerRequest{Name: strPtr("  ")}.apply(&cu)
	assert.Error(t, err)
}

func TestToResponseCarriesLabel(t *testing.T) {
	resp := toResponse(models.Customer{ID: 7, Code: "K9", Name: "Canteen"})
	assert.Equal(t, uint(7), resp.ID)
	assert.Equal(t, "K9 · Canteen", resp.Label)
}
