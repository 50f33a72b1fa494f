package cylinder

import (
	"context"
	"fmt"

	"cylinder-backend/internal/ledger"
	"cylinder-backend/internal/models"

	"gorm.io/gorm"
)

// TransactionSource loads the ledger input for one customer.
type TransactionSource interface {
	LoadLedgerTransactions(ctx context.Context, customerID uint) ([]ledger.Transaction, error)
}

type GormSource struct {
	db *gorm.DB
}

func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{db: db}
}

// LoadLedgerTransactions returns every row of the customer, period filtering is
// left to the ledger so the running balance and the summary see the same data.
func (s *GormSource) LoadLedgerTransactions(ctx context.Context, customerID uint) ([]ledger.Transaction, error) {
	var rows []models.CylinderTransaction
	err := s.db.WithContext(ctx).
		Preload("Customer").
		Where("customer_id = ?", customerID).
		Order("delivery_date DESC NULLS LAST, created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load cylinder transactions for customer %d: %w", customerID, err)
	}

	out := make([]ledger.Transaction, 0, len(rows))
	for _, r := range rows {
		tx, err := r.ToLedger()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}
