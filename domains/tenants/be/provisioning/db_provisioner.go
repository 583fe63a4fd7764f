package provisioning

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
)

// DBProvisioner owns the schema of the shared database.
type DBProvisioner struct {
	pool   *pgxpool.Pool
	dsn    string
	logger *zap.Logger
}

func NewDBProvisioner(pool *pgxpool.Pool, dsn string, logger *zap.Logger) *DBProvisioner {
	if pool == nil {
		panic("db provisioner requires pool")
	}
	if dsn == "" {
		panic("db provisioner requires dsn")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBProvisioner{pool: pool, dsn: dsn, logger: logger}
}

// Ensure applies pending migrations and logs the resulting version.
func (p *DBProvisioner) Ensure(ctx context.Context) error {
	if err := persistence.Migrate(ctx, p.dsn); err != nil {
		return err
	}
	version, err := persistence.MigrationVersion(ctx, p.dsn)
	if err != nil {
		return err
	}
	p.logger.Info("database migrated", zap.Int64("version", version))
	return nil
}

// Check pings the pool.
func (p *DBProvisioner) Check(ctx context.Context) error {
	if err := persistence.Ping(ctx, p.pool); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}
