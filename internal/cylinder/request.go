package cylinder

import (
	"strings"
	"time"

	"cylinder-backend/internal/ledger"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// -------------------------
// Request/Response Types
// -------------------------

type CreateTransactionRequest struct {
	CustomerID            uint            `json:"customer_id" validate:"required"`
	CylinderType          string          `json:"cylinder_type" validate:"required,cylinder_type"` // DELIVERED or RECEIVED
	CylinderLabel         *string         `json:"cylinder_label" validate:"omitempty,max=100"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
	Quantity              int             `json:"quantity" validate:"gte=0"`
	EmptyCylinderReceived *int            `json:"empty_cylinder_received" validate:"omitempty,gte=0"`
	PaymentType           *string         `json:"payment_type" validate:"omitempty,payment_type"`
	PaymentAmount         decimal.Decimal `json:"payment_amount"`
	PaymentReceivedBy     string          `json:"payment_received_by" validate:"max=100"`
	DeliveredBy           string          `json:"delivered_by" validate:"max=100"`
	DeliveryDate          *string         `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateTransactionRequest replaces the editable fields of an entry. The
// customer and the cylinder type cannot change after creation.
type UpdateTransactionRequest struct {
	CylinderLabel         *string         `json:"cylinder_label" validate:"omitempty,max=100"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
	Quantity              int             `json:"quantity" validate:"gte=0"`
	EmptyCylinderReceived *int            `json:"empty_cylinder_received" validate:"omitempty,gte=0"`
	PaymentType           *string         `json:"payment_type" validate:"omitempty,payment_type"`
	PaymentAmount         decimal.Decimal `json:"payment_amount"`
	PaymentReceivedBy     string          `json:"payment_received_by" validate:"max=100"`
	DeliveredBy           string          `json:"delivered_by" validate:"max=100"`
	DeliveryDate          *string         `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
}

type TransactionResponse struct {
	ID                    uint            `json:"id"`
	CustomerID            uint            `json:"customer_id"`
	CustomerName          string          `json:"customer_name"`
	CylinderType          string          `json:"cylinder_type"`
	CylinderLabel         *string         `json:"cylinder_label"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
	Quantity              int             `json:"quantity"`
	EmptyCylinderReceived *int            `json:"empty_cylinder_received"`
	Amount                decimal.Decimal `json:"amount"`
	PaymentType           *string         `json:"payment_type"`
	PaymentAmount         decimal.Decimal `json:"payment_amount"`
	PaymentReceivedBy     string          `json:"payment_received_by"`
	DeliveredBy           string          `json:"delivered_by"`
	DeliveryDate          *string         `json:"delivery_date"`
	Verified              bool            `json:"verified"`
	CreatedAt             string          `json:"created_at"`
	UpdatedAt             string          `json:"updated_at"`
}

func toResponse(t models.CylinderTransaction) TransactionResponse {
	var date *string
	if t.DeliveryDate != nil {
		d := t.DeliveryDate.Format(dateLayout)
		date = &d
	}
	return TransactionResponse{
		ID:                    t.ID,
		CustomerID:            t.CustomerID,
		CustomerName:          t.Customer.Label(),
		CylinderType:          t.CylinderType,
		CylinderLabel:         t.CylinderLabel,
		UnitPrice:             t.UnitPrice,
		Quantity:              t.Quantity,
		EmptyCylinderReceived: t.EmptyCylinderReceived,
		Amount:                t.Amount,
		PaymentType:           t.PaymentType,
		PaymentAmount:         t.PaymentAmount,
		PaymentReceivedBy:     t.PaymentReceivedBy,
		DeliveredBy:           t.DeliveredBy,
		DeliveryDate:          date,
		Verified:              t.Verified,
		CreatedAt:             t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             t.UpdatedAt.Format(time.RFC3339),
	}
}

// entryFields is the part shared by create and update.
type entryFields struct {
	CylinderLabel         *string
	UnitPrice             decimal.Decimal
	Quantity              int
	EmptyCylinderReceived *int
	PaymentType           *string
	PaymentAmount         decimal.Decimal
	PaymentReceivedBy     string
	DeliveredBy           string
	DeliveryDate          *string
}

func (r CreateTransactionRequest) fields() entryFields {
	return entryFields{r.CylinderLabel, r.UnitPrice, r.Quantity, r.EmptyCylinderReceived,
		r.PaymentType, r.PaymentAmount, r.PaymentReceivedBy, r.DeliveredBy, r.DeliveryDate}
}

func (r UpdateTransactionRequest) fields() entryFields {
	return entryFields{r.CylinderLabel, r.UnitPrice, r.Quantity, r.EmptyCylinderReceived,
		r.PaymentType, r.PaymentAmount, r.PaymentReceivedBy, r.DeliveredBy, r.DeliveryDate}
}

func badRequest(msg string) error {
	return fiber.NewError(fiber.StatusBadRequest, msg)
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// applyEntry validates f against the rules of ct and writes it onto row.
// DELIVERED rows get amount = quantity x unit price and carry no payment.
// RECEIVED rows carry no amount; a payment needs a payment type.
func applyEntry(row *models.CylinderTransaction, ct ledger.CylinderType, f entryFields) error {
	if f.UnitPrice.IsNegative() {
		return badRequest("unit_price cannot be negative")
	}
	if f.PaymentAmount.IsNegative() {
		return badRequest("payment_amount cannot be negative")
	}

	var date *time.Time
	if f.DeliveryDate != nil && strings.TrimSpace(*f.DeliveryDate) != "" {
		d, err := time.Parse(dateLayout, strings.TrimSpace(*f.DeliveryDate))
		if err != nil {
			return badRequest("delivery_date must be YYYY-MM-DD")
		}
		date = &d
	}

	pt := ledger.PaymentNone
	if f.PaymentType != nil {
		parsed, err := ledger.ParsePaymentType(*f.PaymentType)
		if err != nil {
			return badRequest("payment_type must be CASH or CREDIT")
		}
		pt = parsed
	}

	row.CylinderType = string(ct)
	row.CylinderLabel = trimmedOrNil(f.CylinderLabel)
	row.UnitPrice = f.UnitPrice
	row.Quantity = f.Quantity
	row.DeliveredBy = strings.TrimSpace(f.DeliveredBy)
	row.DeliveryDate = date

	switch ct {
	case ledger.CylinderDelivered:
		if f.Quantity <= 0 {
			return badRequest("quantity must be greater than 0 for a delivery")
		}
		if pt != ledger.PaymentNone || !f.PaymentAmount.IsZero() || f.EmptyCylinderReceived != nil {
			return badRequest("payments and empty cylinders are recorded as RECEIVED entries")
		}
		row.Amount = f.UnitPrice.Mul(decimal.NewFromInt(int64(f.Quantity)))
		row.EmptyCylinderReceived = nil
		row.PaymentType = nil
		row.PaymentAmount = decimal.Zero
		row.PaymentReceivedBy = ""

	case ledger.CylinderReceived:
		if f.Quantity == 0 && f.EmptyCylinderReceived == nil && f.PaymentAmount.IsZero() {
			return badRequest("a receipt needs returned cylinders or a payment")
		}
		if f.PaymentAmount.IsPositive() && pt == ledger.PaymentNone {
			return badRequest("payment_type is required when payment_amount is set")
		}
		if pt == ledger.PaymentCash && strings.TrimSpace(f.PaymentReceivedBy) == "" {
			return badRequest("payment_received_by is required for cash payments")
		}
		row.Amount = decimal.Zero
		row.EmptyCylinderReceived = f.EmptyCylinderReceived
		row.PaymentAmount = f.PaymentAmount
		row.PaymentReceivedBy = strings.TrimSpace(f.PaymentReceivedBy)
		row.PaymentType = nil
		if pt != ledger.PaymentNone {
			s := string(pt)
			row.PaymentType = &s
		}
	}
	return nil
}

// buildTransaction turns a create request into a row ready to insert.
func buildTransaction(req CreateTransactionRequest) (models.CylinderTransaction, error) {
	if err := validation.Struct(req); err != nil {
		return models.CylinderTransaction{}, err
	}
	ct, err := ledger.ParseCylinderType(req.CylinderType)
	if err != nil {
		return models.CylinderTransaction{}, badRequest("cylinder_type must be DELIVERED or RECEIVED")
	}

	row := models.CylinderTransaction{CustomerID: req.CustomerID}
	if err := applyEntry(&row, ct, req.fields()); err != nil {
		return models.CylinderTransaction{}, err
	}
	return row, nil
}

// updateTransaction applies an update request to an existing row. Editing
// clears verification so the changed entry is checked again.
func updateTransaction(row *models.CylinderTransaction, req UpdateTransactionRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	ct, err := ledger.ParseCylinderType(row.CylinderType)
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	if err := applyEntry(row, ct, req.fields()); err != nil {
		return err
	}
	row.Verified = false
	return nil
}
