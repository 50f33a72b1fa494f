package cylinder

import (
	"cylinder-backend/internal/ledger"

	"github.com/shopspring/decimal"
)

// dateGroupSlots is the number of alternating colour bands on the ledger screen.
const dateGroupSlots = 2

// LedgerRow is one rendered ledger line.
type LedgerRow struct {
	Key            string   `json:"key"`
	ID             string   `json:"id"`
	TransactionIDs []string `json:"transaction_ids"`
	DeliveryDate   *string  `json:"delivery_date"`
	CustomerName   string   `json:"customer_name"`
	CylinderLabel  *string  `json:"cylinder_label"`
	DeliveredBy    string   `json:"delivered_by"`
	Verified       bool     `json:"verified"`

	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`

	ReceivedCylinders  int             `json:"received_cylinders"`
	RemainingCylinders *int            `json:"remaining_cylinders"`
	PaymentAmount      decimal.Decimal `json:"payment_amount"`
	PaymentType        string          `json:"payment_type"`
	PaymentReceivedBy  string          `json:"payment_received_by"`
	ReceiptIDs         []string        `json:"receipt_ids"`

	// Cumulative is nil when the row's amount is not positive.
	Cumulative *decimal.Decimal `json:"cumulative"`
	// RemainingAmount is "Nill" on the newest row and empty on suppressed rows.
	RemainingAmount string `json:"remaining_amount"`

	DateGroup ledger.DateGroup `json:"date_group"`
}

type PeriodResponse struct {
	Month string `json:"month"`
	Year  string `json:"year"`
}

// Report is the fully balanced ledger of one customer and period. It is what
// gets cached; pages are cut from it per request.
type Report struct {
	CustomerID uint           `json:"customer_id"`
	Period     PeriodResponse `json:"period"`
	Rows       []LedgerRow    `json:"rows"`
	Summary    ledger.Summary `json:"summary"`
	// UnmatchedReceipts counts receipt buckets with no delivery row of the same key.
	UnmatchedReceipts int `json:"unmatched_receipts"`
}

type LedgerResponse struct {
	CustomerID        uint                   `json:"customer_id"`
	Period            PeriodResponse         `json:"period"`
	Rows              []LedgerRow            `json:"rows"`
	Summary           ledger.Summary         `json:"summary"`
	UnmatchedReceipts int                    `json:"unmatched_receipts"`
	Pagination        ledger.Page[LedgerRow] `json:"pagination"`
}

func renderRow(r ledger.Row, g ledger.DateGroup) LedgerRow {
	d := r.Delivery
	out := LedgerRow{
		Key:            d.Key.String(),
		ID:             d.ID,
		TransactionIDs: d.TransactionIDs,
		CustomerName:   d.CustomerName,
		CylinderLabel:  d.CylinderLabel,
		DeliveredBy:    d.DeliveredBy,
		Verified:       d.Verified,
		UnitPrice:      d.UnitPrice,
		Quantity:       d.Quantity,
		Amount:         d.Amount,
		PaymentAmount:  decimal.Zero,
		ReceiptIDs:     []string{},
		DateGroup:      g,
	}
	if d.DeliveryDate != nil {
		s := ledger.DateKey(d.DeliveryDate)
		out.DeliveryDate = &s
	}

	if rc := r.Receipt; rc != nil {
		out.ReceivedCylinders = rc.ReceivedCylinders
		out.PaymentAmount = rc.PaymentAmount
		out.PaymentType = string(rc.PaymentType)
		out.PaymentReceivedBy = rc.PaymentReceivedBy
		out.ReceiptIDs = rc.TransactionIDs
	}
	if left, ok := r.RemainingCylinders(); ok {
		out.RemainingCylinders = &left
	}
	if cum, ok := r.DisplayCumulative(); ok {
		out.Cumulative = &cum
	}
	out.RemainingAmount = r.RemainingLabel()
	return out
}

// BuildReport renders a reconciled ledger for the wire.
func BuildReport(customerID uint, res *ledger.Result) Report {
	groups := ledger.DateGroups(res.Rows, dateGroupSlots)
	rows := make([]LedgerRow, len(res.Rows))
	matched := 0
	for i, r := range res.Rows {
		rows[i] = renderRow(r, groups[i])
		if r.Receipt != nil {
			matched++
		}
	}
	return Report{
		CustomerID:        customerID,
		Period:            PeriodResponse{Month: res.Period.Month, Year: res.Period.Year},
		Rows:              rows,
		Summary:           res.Summary,
		UnmatchedReceipts: len(res.Receipts) - matched,
	}
}

// Page cuts one page from the report. Balances were applied to the full set,
// so every row keeps the values it has on the unpaged ledger.
func (r Report) Page(page, size int) LedgerResponse {
	p := ledger.Paginate(r.Rows, page, size)
	return LedgerResponse{
		CustomerID:        r.CustomerID,
		Period:            r.Period,
		Rows:              p.Rows,
		Summary:           r.Summary,
		UnmatchedReceipts: r.UnmatchedReceipts,
		Pagination:        p,
	}
}
