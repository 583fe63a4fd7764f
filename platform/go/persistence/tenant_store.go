package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const TenantsTable = "tenants"

// Tenant represents a row in the tenants table.
type Tenant struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	Slug      string    `db:"slug"`
	Logo      *string   `db:"logo"`
	Address   *string   `db:"address"`
	Phone     *string   `db:"phone"`
	Email     *string   `db:"email"`
	Website   *string   `db:"website"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

const tenantColumns = "id, name, slug, logo, address, phone, email, website, created_at, updated_at"

// TenantStore provides access to the tenants table. Tenants are not row-level
// restricted; callers pass the tenant id explicitly.
type TenantStore struct {
	db *TenantDB
}

func NewTenantStore(db *TenantDB) *TenantStore {
	if db == nil {
		panic("tenant store requires TenantDB")
	}
	return &TenantStore{db: db}
}

// CreateTenantParams captures the fields required to insert a tenant.
type CreateTenantParams struct {
	ID   uuid.UUID
	Name string
	Slug string
}

// CreateTenant inserts a tenant. A duplicated slug returns ErrConflict.
func (s *TenantStore) CreateTenant(ctx context.Context, params CreateTenantParams) (Tenant, error) {
	if params.ID == uuid.Nil {
		return Tenant{}, errors.New("tenant id is required")
	}
	slug, err := NormalizeSlug(params.Slug)
	if err != nil {
		return Tenant{}, err
	}

	var out Tenant
	err = s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`
            INSERT INTO %s (id, name, slug)
            VALUES ($1, $2, $3)
            RETURNING %s
        `, TenantsTable, tenantColumns), params.ID, strings.TrimSpace(params.Name), slug)

		var scanErr error
		out, scanErr = scanTenant(row)
		return scanErr
	})
	if err != nil {
		if isUniqueViolation(err) {
			return Tenant{}, ErrConflict
		}
		return Tenant{}, fmt.Errorf("create tenant: %w", err)
	}
	return out, nil
}

// GetTenant returns the tenant by id.
func (s *TenantStore) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error) {
	var out Tenant
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, tenantColumns, TenantsTable), id)
		var scanErr error
		out, scanErr = scanTenant(row)
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return out, nil
}

// SlugTaken reports whether a tenant already uses slug.
func (s *TenantStore) SlugTaken(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE slug = $1)`, TenantsTable), slug).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

// UpdateTenantParams holds the editable church settings; nil fields are left untouched.
type UpdateTenantParams struct {
	Name    *string
	Address *string
	Phone   *string
	Email   *string
	Website *string
	Logo    *string
}

// UpdateTenant applies the provided fields and returns the updated record.
func (s *TenantStore) UpdateTenant(ctx context.Context, id uuid.UUID, params UpdateTenantParams) (Tenant, error) {
	set := newSetBuilder()
	set.add("name", params.Name)
	set.add("address", params.Address)
	set.add("phone", params.Phone)
	set.add("email", params.Email)
	set.add("website", params.Website)
	set.add("logo", params.Logo)
	if set.empty() {
		return Tenant{}, errors.New("no fields to update")
	}

	args := append(set.args, id)
	query := fmt.Sprintf(`
        UPDATE %s
        SET %s, updated_at = NOW()
        WHERE id = $%d
        RETURNING %s
    `, TenantsTable, set.sql(), len(args), tenantColumns)

	var out Tenant
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		var scanErr error
		out, scanErr = scanTenant(tx.QueryRow(ctx, query, args...))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, fmt.Errorf("update tenant: %w", err)
	}
	return out, nil
}

// DeleteTenant removes a tenant and, by cascade, its rows.
func (s *TenantStore) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	var affected int64
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		tag, execErr := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, TenantsTable), id)
		affected = tag.RowsAffected()
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Logo, &t.Address, &t.Phone, &t.Email, &t.Website, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Tenant{}, err
	}
	return t, nil
}
