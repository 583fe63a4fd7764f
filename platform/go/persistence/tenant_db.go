package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TenantDB wraps a pgx pool to execute queries inside transactions whose
// app.tenant_id setting drives the row-level security policies.
type TenantDB struct {
	pool txBeginner
}

func NewTenantDB(pool *pgxpool.Pool) *TenantDB {
	if pool == nil {
		panic("TenantDB requires pool")
	}
	return &TenantDB{pool: pool}
}

// WithAdmin executes fn inside a transaction that is not tenant-restricted.
// It is used for tenant registry, identity, own-profile and discovery queries.
func (db *TenantDB) WithAdmin(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.run(ctx, "", fn)
}

// WithTenant executes fn inside a transaction restricted to scope.TenantID.
func (db *TenantDB) WithTenant(ctx context.Context, scope tenant.Scope, fn func(tx pgx.Tx) error) error {
	if scope.TenantID == uuid.Nil {
		return ErrTenantRequired
	}
	return db.run(ctx, scope.TenantID.String(), fn)
}

func (db *TenantDB) run(ctx context.Context, tenantID string, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT set_config('app.tenant_id', $1, true)`, tenantID); err != nil {
		return fmt.Errorf("set tenant: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
