package services

import (
	"context"

	"gorm.io/gorm"

	"nutritrack/apperr"
)

// TxRunner is the transaction boundary for multi-table writes. fn receives
// a transaction handle already bound to ctx.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return apperr.New(apperr.CodeInternal, "tx", "transaction runner has nil db")
	}
	return r.db.WithContext(ctx).Transaction(fn)
}
