package ledger

import (
	"github.com/shopspring/decimal"
)

// Summary totals come from the raw filtered transactions, not from the aggregated rows,
// so receipts without a matching delivery still count here.
type Summary struct {
	DeliveredTransactions int             `json:"delivered_transactions"`
	ReceivedTransactions  int             `json:"received_transactions"`
	TotalQuantity         int             `json:"total_quantity"`
	TotalReceivedQuantity int             `json:"total_received_quantity"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	TotalPaymentAmount    decimal.Decimal `json:"total_payment_amount"`
}

type Result struct {
	Period   Period
	Rows     []Row
	Receipts map[AggregateKey]*ReceiptAggregate
	Summary  Summary
}

// Summarize totals the filtered transactions.
func Summarize(txs []Transaction) Summary {
	s := Summary{TotalAmount: decimal.Zero, TotalPaymentAmount: decimal.Zero}
	for _, tx := range txs {
		switch tx.CylinderType {
		case CylinderDelivered:
			s.DeliveredTransactions++
			s.TotalQuantity += tx.Quantity
			s.TotalAmount = s.TotalAmount.Add(tx.Amount)
		case CylinderReceived:
			s.ReceivedTransactions++
			s.TotalReceivedQuantity += tx.ReceivedCount()
			s.TotalPaymentAmount = s.TotalPaymentAmount.Add(tx.PaymentAmount)
		}
	}
	return s
}

// Reconcile filters, aggregates, orders and balances a customer's transactions.
// It only fails on transactions carrying an unknown cylinder or payment type.
func Reconcile(txs []Transaction, p Period) (*Result, error) {
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, err
		}
	}

	p = p.Normalize()
	filtered := Filter(txs, p)
	agg := Aggregate(filtered)

	delivered := make([]*DeliveryAggregate, 0, len(agg.Delivered))
	for _, d := range agg.Delivered {
		delivered = append(delivered, d)
	}

	rows := ApplyBalances(Order(delivered))
	for i := range rows {
		if receipt, ok := agg.Received[rows[i].Delivery.Key]; ok {
			rows[i].Receipt = receipt
		}
	}

	return &Result{
		Period:   p,
		Rows:     rows,
		Receipts: agg.Received,
		Summary:  Summarize(filtered),
	}, nil
}
