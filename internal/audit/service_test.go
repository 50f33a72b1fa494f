package audit

import (
	"errors"
	"testing"

	"cylinder-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotNilIsJSONNull(t *testing.T) {
	assert.Equal(t, "null", snapshot(nil))
	assert.JSONEq(t, `{"a":1}`, snapshot(map[string]int{"a": 1}))
}

func TestDecodeEntityRoundTripsTransaction(t *testing.T) {
	row := models.CylinderTransaction{
		ID:           9,
		CustomerID:   3,
		CylinderType: "DELIVERED",
		UnitPrice:    decimal.RequireFromString("500.50"),
		Quantity:     2,
		Amount:       decimal.RequireFromString("1001"),
	}

	got, err := decodeEntity(models.EntityCylinderTransaction, snapshot(row))
	require.NoError(t, err)
	tx, ok := got.(*models.CylinderTransaction)
	require.True(t, ok)
	assert.Equal(t, uint(9), tx.ID)
	assert.Equal(t, "DELIVERED", tx.CylinderType)
	assert.True(t, tx.UnitPrice.Equal(row.UnitPrice))
	assert.True(t, tx.Amount.Equal(row.Amount))
}

func TestDecodeEntityUnknownType(t *testing.T) {
	_, err := decodeEntity("stock_entry", "{}")
	assert.True(t, errors.Is(err, ErrUnknownEntityType))
}

func TestDecodeEntityEmptySnapshot(t *testing.T) {
	got, err := decodeEntity(models.EntityCustomer, "null")
	require.NoError(t, err)
	assert.IsType(t, &models.Customer{}, got)
}
