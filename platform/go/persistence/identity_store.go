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

const IdentitiesTable = "identities"

// Identity is a locally managed login (local auth provider only).
type Identity struct {
	ID               uuid.UUID  `db:"id"`
	Email            string     `db:"email"`
	Name             string     `db:"name"`
	PasswordHash     string     `db:"password_hash"`
	EmailConfirmedAt *time.Time `db:"email_confirmed_at"`
	SessionEpoch     int        `db:"session_epoch"`
	CreatedAt        time.Time  `db:"created_at"`
}

const identityColumns = "id, email, name, password_hash, email_confirmed_at, session_epoch, created_at"

// CreateIdentityParams captures the fields required to insert an identity.
type CreateIdentityParams struct {
	ID               uuid.UUID
	Email            string
	Name             string
	PasswordHash     string
	EmailConfirmedAt *time.Time
}

// IdentityStore persists local identities.
type IdentityStore struct {
	db *TenantDB
}

func NewIdentityStore(db *TenantDB) *IdentityStore {
	if db == nil {
		panic("identity store requires TenantDB")
	}
	return &IdentityStore{db: db}
}

// CreateIdentity inserts an identity. A duplicated email returns ErrConflict.
func (s *IdentityStore) CreateIdentity(ctx context.Context, params CreateIdentityParams) (Identity, error) {
	if params.ID == uuid.Nil {
		return Identity{}, errors.New("identity id is required")
	}

	var out Identity
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`
            INSERT INTO %s (id, email, name, password_hash, email_confirmed_at)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING %s
        `, IdentitiesTable, identityColumns),
			params.ID,
			strings.ToLower(strings.TrimSpace(params.Email)),
			strings.TrimSpace(params.Name),
			params.PasswordHash,
			params.EmailConfirmedAt,
		)
		var scanErr error
		out, scanErr = scanIdentity(row)
		return scanErr
	})
	if err != nil {
		if isUniqueViolation(err) {
			return Identity{}, ErrConflict
		}
		return Identity{}, fmt.Errorf("create identity: %w", err)
	}
	return out, nil
}

func (s *IdentityStore) GetIdentity(ctx context.Context, id uuid.UUID) (Identity, error) {
	return s.getBy(ctx, "id = $1", id)
}

func (s *IdentityStore) GetIdentityByEmail(ctx context.Context, email string) (Identity, error) {
	return s.getBy(ctx, "LOWER(email) = LOWER($1)", strings.TrimSpace(email))
}

func (s *IdentityStore) getBy(ctx context.Context, where string, arg any) (Identity, error) {
	var out Identity
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, identityColumns, IdentitiesTable, where), arg)
		var scanErr error
		out, scanErr = scanIdentity(row)
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, fmt.Errorf("get identity: %w", err)
	}
	return out, nil
}

func (s *IdentityStore) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return s.exec(ctx, fmt.Sprintf(`UPDATE %s SET password_hash = $2, updated_at = NOW() WHERE id = $1`, IdentitiesTable), id, hash)
}

// BumpSessionEpoch invalidates every token issued before the call.
func (s *IdentityStore) BumpSessionEpoch(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, fmt.Sprintf(`UPDATE %s SET session_epoch = session_epoch + 1, updated_at = NOW() WHERE id = $1`, IdentitiesTable), id)
}

func (s *IdentityStore) ConfirmEmail(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, fmt.Sprintf(`UPDATE %s SET email_confirmed_at = COALESCE(email_confirmed_at, NOW()), updated_at = NOW() WHERE id = $1`, IdentitiesTable), id)
}

func (s *IdentityStore) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, IdentitiesTable), id)
}

func (s *IdentityStore) exec(ctx context.Context, query string, args ...any) error {
	var affected int64
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		tag, execErr := tx.Exec(ctx, query, args...)
		affected = tag.RowsAffected()
		return execErr
	})
	if err != nil {
		return fmt.Errorf("identity write: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanIdentity(row pgx.Row) (Identity, error) {
	var i Identity
	if err := row.Scan(&i.ID, &i.Email, &i.Name, &i.PasswordHash, &i.EmailConfirmedAt, &i.SessionEpoch, &i.CreatedAt); err != nil {
		return Identity{}, err
	}
	return i, nil
}
