package models

import (
	"fmt"
	"strconv"
	"time"

	"cylinder-backend/internal/ledger"

	"github.com/shopspring/decimal"
)

// CylinderTransaction - a delivery of filled cylinders or a receipt of empties/payment
type CylinderTransaction struct {
	ID                    uint            `gorm:"primaryKey"`
	CustomerID            uint            `gorm:"index;not null"`
	Customer              Customer        `gorm:"foreignKey:CustomerID"`
	CylinderType          string          `gorm:"type:varchar(20);not null;index"` // DELIVERED or RECEIVED
	CylinderLabel         *string         `gorm:"size:100"`                        // "12kg (Domestic cylinder)"
	UnitPrice             decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Quantity              int             `gorm:"not null;default:0"`
	EmptyCylinderReceived *int
	Amount                decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"` // quantity x unit price for deliveries
	PaymentType           *string         `gorm:"type:varchar(10)"`                      // CASH, CREDIT or null
	PaymentAmount         decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	PaymentReceivedBy     string          `gorm:"size:100"`
	DeliveredBy           string          `gorm:"size:100"`
	DeliveryDate          *time.Time      `gorm:"type:date;index"`
	Verified              bool            `gorm:"default:false"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ToLedger converts a row with its Customer preloaded into the engine's input.
// Unknown enum strings are rejected here so bad rows never reach aggregation.
func (t CylinderTransaction) ToLedger() (ledger.Transaction, error) {
	ct, err := ledger.ParseCylinderType(t.CylinderType)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("cylinder transaction %d: %w", t.ID, err)
	}

	pt := ledger.PaymentNone
	if t.PaymentType != nil {
		if pt, err = ledger.ParsePaymentType(*t.PaymentType); err != nil {
			return ledger.Transaction{}, fmt.Errorf("cylinder transaction %d: %w", t.ID, err)
		}
	}

	return ledger.Transaction{
		ID:                    strconv.FormatUint(uint64(t.ID), 10),
		CylinderType:          ct,
		CustomerName:          t.Customer.Label(),
		CylinderLabel:         t.CylinderLabel,
		UnitPrice:             t.UnitPrice,
		Quantity:              t.Quantity,
		EmptyCylinderReceived: t.EmptyCylinderReceived,
		Amount:                t.Amount,
		PaymentType:           pt,
		PaymentAmount:         t.PaymentAmount,
		PaymentReceivedBy:     t.PaymentReceivedBy,
		DeliveredBy:           t.DeliveredBy,
		DeliveryDate:          t.DeliveryDate,
		CreatedAt:             t.CreatedAt,
		Verified:              t.Verified,
	}, nil
}
