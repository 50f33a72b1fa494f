package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// NillLabel is shown for the remaining amount of the newest row.
const NillLabel = "Nill"

// Row is a delivery aggregate with its receipt and running balance.
type Row struct {
	Delivery DeliveryAggregate
	// Receipt is set only when a receipt bucket has exactly the same key.
	Receipt *ReceiptAggregate
	// Cumulative is the sum of this row's amount and every newer row's amount.
	Cumulative decimal.Decimal
	// Previous is the next-newer row's cumulative total, nil on the newest row.
	Previous *decimal.Decimal
}

func newer(a, b *DeliveryAggregate) bool {
	aUndated, bUndated := undated(a.DeliveryDate), undated(b.DeliveryDate)
	switch {
	case aUndated && !bUndated:
		return false
	case !aUndated && bUndated:
		return true
	case !aUndated && !bUndated:
		da, db := DateKey(a.DeliveryDate), DateKey(b.DeliveryDate)
		if da != db {
			return da > db
		}
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Order returns the aggregates newest first: delivery day, then creation time, then id.
// Undated rows sort after every dated row.
func Order(rows []*DeliveryAggregate) []DeliveryAggregate {
	sorted := make([]*DeliveryAggregate, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return newer(sorted[i], sorted[j])
	})

	out := make([]DeliveryAggregate, len(sorted))
	for i, r := range sorted {
		out[i] = *r
	}
	return out
}

// ApplyBalances walks the newest-first rows once, accumulating towards the oldest.
// It must run on the full ordered set, never on a page.
func ApplyBalances(ordered []DeliveryAggregate) []Row {
	rows := make([]Row, len(ordered))
	running := decimal.Zero
	for i, d := range ordered {
		rows[i] = Row{Delivery: d}
		if i > 0 {
			prev := running
			rows[i].Previous = &prev
		}
		running = running.Add(d.Amount)
		rows[i].Cumulative = running
	}
	return rows
}

func (r Row) displayable() bool {
	return r.Delivery.Amount.IsPositive()
}

// DisplayCumulative is the grand total shown for the row. Rows without a positive
// amount show nothing.
func (r Row) DisplayCumulative() (decimal.Decimal, bool) {
	if !r.displayable() {
		return decimal.Zero, false
	}
	return r.Cumulative, true
}

// DisplayRemaining is the amount still owed before this row. It is false for
// suppressed rows and for the newest row.
func (r Row) DisplayRemaining() (decimal.Decimal, bool) {
	if !r.displayable() || r.Previous == nil {
		return decimal.Zero, false
	}
	return *r.Previous, true
}

// RemainingLabel renders the remaining amount the way the ledger screen prints it.
func (r Row) RemainingLabel() string {
	if !r.displayable() {
		return ""
	}
	if r.Previous == nil {
		return NillLabel
	}
	return r.Previous.StringFixed(2)
}

// RemainingCylinders is delivered minus received for the matched receipt.
// Over-receipt is reported as not displayable instead of a negative count.
func (r Row) RemainingCylinders() (int, bool) {
	received := 0
	if r.Receipt != nil {
		received = r.Receipt.ReceivedCylinders
	}
	left := r.Delivery.Quantity - received
	if left < 0 {
		return 0, false
	}
	return left, true
}
