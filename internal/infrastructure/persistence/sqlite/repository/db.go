package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"rosterrecon/internal/ports"
)

// dbFromContext returns the transaction carried by ctx, or the base handle.
func dbFromContext(ctx context.Context, base *gorm.DB) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return base.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

// inTx runs fn inside the caller's transaction, or opens one when there is none.
func inTx(ctx context.Context, base *gorm.DB, fn func(ctx context.Context) error) error {
	if ports.InTx(ctx) {
		return fn(ctx)
	}
	return base.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
}
