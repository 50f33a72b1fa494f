package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CylinderType string

const (
	CylinderDelivered CylinderType = "DELIVERED"
	CylinderReceived  CylinderType = "RECEIVED"
)

type PaymentType string

const (
	PaymentNone   PaymentType = ""
	PaymentCash   PaymentType = "CASH"
	PaymentCredit PaymentType = "CREDIT"
)

var (
	ErrUnknownCylinderType = errors.New("unknown cylinder type")
	ErrUnknownPaymentType  = errors.New("unknown payment type")
)

// ParseCylinderType accepts DELIVERED or RECEIVED in any case.
func ParseCylinderType(s string) (CylinderType, error) {
	switch CylinderType(strings.ToUpper(strings.TrimSpace(s))) {
	case CylinderDelivered:
		return CylinderDelivered, nil
	case CylinderReceived:
		return CylinderReceived, nil
	}
	return "", fmt.Errorf("%w: %q (expected DELIVERED or RECEIVED)", ErrUnknownCylinderType, s)
}

// ParsePaymentType maps an empty string to PaymentNone.
func ParsePaymentType(s string) (PaymentType, error) {
	switch PaymentType(strings.ToUpper(strings.TrimSpace(s))) {
	case PaymentNone:
		return PaymentNone, nil
	case PaymentCash:
		return PaymentCash, nil
	case PaymentCredit:
		return PaymentCredit, nil
	}
	return "", fmt.Errorf("%w: %q (expected CASH, CREDIT or empty)", ErrUnknownPaymentType, s)
}

func (t CylinderType) Valid() bool {
	return t == CylinderDelivered || t == CylinderReceived
}

func (p PaymentType) Valid() bool {
	return p == PaymentNone || p == PaymentCash || p == PaymentCredit
}

// Transaction is one delivery or receipt line as supplied by the data-access layer.
// The engine never mutates it.
type Transaction struct {
	ID           string
	CylinderType CylinderType
	CustomerName string
	// CylinderLabel is nil when the entry form left the cylinder class empty.
	CylinderLabel *string
	UnitPrice     decimal.Decimal
	Quantity      int
	// EmptyCylinderReceived, when set, is the received count for RECEIVED rows.
	EmptyCylinderReceived *int
	Amount                decimal.Decimal
	PaymentType           PaymentType
	PaymentAmount         decimal.Decimal
	PaymentReceivedBy     string
	DeliveredBy           string
	DeliveryDate          *time.Time
	CreatedAt             time.Time
	Verified              bool
}

// ReceivedCount is the number of empty cylinders a RECEIVED row brings back.
func (t Transaction) ReceivedCount() int {
	if t.EmptyCylinderReceived != nil {
		return *t.EmptyCylinderReceived
	}
	return t.Quantity
}

func (t Transaction) Label() string {
	if t.CylinderLabel == nil {
		return ""
	}
	return *t.CylinderLabel
}

// Validate checks the closed enums the bucketing depends on.
func (t Transaction) Validate() error {
	if !t.CylinderType.Valid() {
		return fmt.Errorf("transaction %s: %w: %q", t.ID, ErrUnknownCylinderType, string(t.CylinderType))
	}
	if !t.PaymentType.Valid() {
		return fmt.Errorf("transaction %s: %w: %q", t.ID, ErrUnknownPaymentType, string(t.PaymentType))
	}
	return nil
}
