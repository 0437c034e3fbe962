package uow

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"rosterrecon/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm.
type UnitOfWork struct {
	db   *gorm.DB
	opts *sql.TxOptions
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// NewUnitOfWorkWithIsolation opens every transaction at the named isolation level.
// An empty name keeps the driver default.
func NewUnitOfWorkWithIsolation(db *gorm.DB, isolation string) (*UnitOfWork, error) {
	level, err := ParseIsolation(isolation)
	if err != nil {
		return nil, err
	}
	u := &UnitOfWork{db: db}
	if level != sql.LevelDefault {
		u.opts = &sql.TxOptions{Isolation: level}
	}
	return u, nil
}

// WithTx joins the transaction already carried by ctx instead of nesting one.
func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ports.InTx(ctx) {
		return fn(ctx)
	}

	run := func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	}
	if u.opts != nil {
		return u.db.WithContext(ctx).Transaction(run, u.opts)
	}
	return u.db.WithContext(ctx).Transaction(run)
}

func ParseIsolation(name string) (sql.IsolationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return sql.LevelDefault, nil
	case "serializable":
		return sql.LevelSerializable, nil
	case "repeatable_read", "repeatable-read":
		return sql.LevelRepeatableRead, nil
	case "read_committed", "read-committed":
		return sql.LevelReadCommitted, nil
	default:
		return sql.LevelDefault, fmt.Errorf("unsupported isolation level %q", name)
	}
}
