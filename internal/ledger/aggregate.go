package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AggregateKey identifies a bucket: same day, customer, cylinder class and unit price.
// It is a comparable struct so it can be used directly as a map key.
type AggregateKey struct {
	DateKey       string `json:"date_key"`
	CustomerName  string `json:"customer_name"`
	CylinderLabel string `json:"cylinder_label"`
	UnitPrice     string `json:"unit_price"`
}

// KeyOf builds the bucket key of a transaction. The price is kept in its canonical
// decimal form so 500 and 500.00 land in the same bucket.
func KeyOf(tx Transaction) AggregateKey {
	return AggregateKey{
		DateKey:       DateKey(tx.DeliveryDate),
		CustomerName:  tx.CustomerName,
		CylinderLabel: tx.Label(),
		UnitPrice:     tx.UnitPrice.String(),
	}
}

const keySeparator = "|"

var keyEscaper = strings.NewReplacer(`\`, `\\`, keySeparator, `\`+keySeparator)

// String renders the key as a single token for JSON maps and cache keys.
// Backslash and the separator are escaped inside each field so two different keys
// can never render the same string.
func (k AggregateKey) String() string {
	return strings.Join([]string{
		keyEscaper.Replace(k.DateKey),
		keyEscaper.Replace(k.CustomerName),
		keyEscaper.Replace(k.CylinderLabel),
		keyEscaper.Replace(k.UnitPrice),
	}, keySeparator)
}

// DeliveryAggregate is one display row of the ledger before balances are applied.
type DeliveryAggregate struct {
	Key           AggregateKey
	CustomerName  string
	CylinderLabel *string
	UnitPrice     decimal.Decimal
	Quantity      int
	Amount        decimal.Decimal
	DeliveredBy   string
	Verified      bool
	DeliveryDate  *time.Time
	// CreatedAt and ID belong to the earliest contributing transaction.
	CreatedAt      time.Time
	ID             string
	TransactionIDs []string
}

// ReceiptAggregate sums the receipts sharing a key.
type ReceiptAggregate struct {
	Key               AggregateKey
	Quantity          int
	ReceivedCylinders int
	PaymentAmount     decimal.Decimal
	PaymentType       PaymentType
	PaymentReceivedBy string
	TransactionIDs    []string

	cashAt  *Transaction
	firstAt *Transaction
}

type Aggregates struct {
	Delivered map[AggregateKey]*DeliveryAggregate
	Received  map[AggregateKey]*ReceiptAggregate
}

// earlier orders transactions by creation time then id.
func earlier(a, b Transaction) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Aggregate buckets the transactions in a single pass. Buckets do not depend on the
// input order: seed metadata comes from the earliest created contributor.
func Aggregate(txs []Transaction) Aggregates {
	agg := Aggregates{
		Delivered: make(map[AggregateKey]*DeliveryAggregate),
		Received:  make(map[AggregateKey]*ReceiptAggregate),
	}
	seeds := make(map[AggregateKey]Transaction)

	for _, tx := range txs {
		key := KeyOf(tx)
		switch tx.CylinderType {
		case CylinderDelivered:
			row, ok := agg.Delivered[key]
			if !ok {
				row = &DeliveryAggregate{Key: key, Amount: decimal.Zero}
				agg.Delivered[key] = row
			}
			row.Quantity += tx.Quantity
			row.Amount = row.Amount.Add(tx.Amount)
			row.TransactionIDs = append(row.TransactionIDs, tx.ID)
			if seed, ok := seeds[key]; !ok || earlier(tx, seed) {
				seeds[key] = tx
				row.seed(tx)
			}

		case CylinderReceived:
			row, ok := agg.Received[key]
			if !ok {
				row = &ReceiptAggregate{Key: key, PaymentAmount: decimal.Zero}
				agg.Received[key] = row
			}
			row.add(tx)
		}
	}

	for _, row := range agg.Delivered {
		sort.Strings(row.TransactionIDs)
	}
	for _, row := range agg.Received {
		sort.Strings(row.TransactionIDs)
		row.resolveReceiver()
	}
	return agg
}

func (r *DeliveryAggregate) seed(tx Transaction) {
	r.CustomerName = tx.CustomerName
	r.CylinderLabel = tx.CylinderLabel
	r.UnitPrice = tx.UnitPrice
	r.DeliveredBy = tx.DeliveredBy
	r.Verified = tx.Verified
	r.DeliveryDate = tx.DeliveryDate
	if undated(r.DeliveryDate) {
		r.DeliveryDate = nil
	}
	r.CreatedAt = tx.CreatedAt
	r.ID = tx.ID
}

func (r *ReceiptAggregate) add(tx Transaction) {
	r.Quantity += tx.Quantity
	r.ReceivedCylinders += tx.ReceivedCount()
	r.PaymentAmount = r.PaymentAmount.Add(tx.PaymentAmount)
	r.TransactionIDs = append(r.TransactionIDs, tx.ID)

	// CASH wins over everything; otherwise the first typed receipt decides.
	switch {
	case tx.PaymentType == PaymentCash:
		r.PaymentType = PaymentCash
	case r.PaymentType == PaymentNone:
		r.PaymentType = tx.PaymentType
	}

	if tx.PaymentType == PaymentCash && (r.cashAt == nil || earlier(*r.cashAt, tx)) {
		t := tx
		r.cashAt = &t
	}
	if r.firstAt == nil || earlier(tx, *r.firstAt) {
		t := tx
		r.firstAt = &t
	}
}

// resolveReceiver picks the most recent CASH receiver, falling back to the
// earliest receipt of the bucket.
func (r *ReceiptAggregate) resolveReceiver() {
	switch {
	case r.cashAt != nil:
		r.PaymentReceivedBy = r.cashAt.PaymentReceivedBy
	case r.firstAt != nil:
		r.PaymentReceivedBy = r.firstAt.PaymentReceivedBy
	}
	r.cashAt, r.firstAt = nil, nil
}
