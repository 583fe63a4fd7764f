package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

const ProfilesTable = "profiles"

// Profile is the application user linked one-to-one with an identity.
type Profile struct {
	ID        uuid.UUID  `db:"id"`
	TenantID  *uuid.UUID `db:"tenant_id"`
	Name      string     `db:"name"`
	Email     string     `db:"email"`
	Phone     *string    `db:"phone"`
	Role      string     `db:"role"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

const profileColumns = "id, tenant_id, name, email, phone, role::text, created_at, updated_at"

// CreateProfileParams captures the fields required to insert a profile.
type CreateProfileParams struct {
	ID       uuid.UUID
	TenantID *uuid.UUID
	Name     string
	Email    string
	Phone    *string
	Role     string
}

// UpdateProfileParams represents admin-editable fields.
type UpdateProfileParams struct {
	Name  *string
	Phone *string
	Role  *string
}

// ProfileStore exposes persistence helpers for the profiles table.
type ProfileStore struct {
	db *TenantDB
}

func NewProfileStore(db *TenantDB) *ProfileStore {
	if db == nil {
		panic("profile store requires TenantDB")
	}
	return &ProfileStore{db: db}
}

// CreateProfile inserts a profile. It runs unrestricted because sign-up creates
// the profile before any tenant scope exists; TenantID pins the row.
func (s *ProfileStore) CreateProfile(ctx context.Context, params CreateProfileParams) (Profile, error) {
	if params.ID == uuid.Nil {
		return Profile{}, errors.New("profile id is required")
	}

	var out Profile
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`
            INSERT INTO %s (id, tenant_id, name, email, phone, role)
            VALUES ($1, $2, $3, $4, $5, $6::user_role)
            RETURNING %s
        `, ProfilesTable, profileColumns),
			params.ID,
			params.TenantID,
			strings.TrimSpace(params.Name),
			strings.ToLower(strings.TrimSpace(params.Email)),
			params.Phone,
			params.Role,
		)
		var scanErr error
		out, scanErr = scanProfile(row)
		return scanErr
	})
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return Profile{}, ErrConflict
		case isForeignKeyViolation(err):
			return Profile{}, ErrInvalidReference
		}
		return Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return out, nil
}

// GetProfile returns the profile for an identity id, regardless of tenant.
// It backs session restore, where the tenant is not known yet.
func (s *ProfileStore) GetProfile(ctx context.Context, id uuid.UUID) (Profile, error) {
	var out Profile
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, profileColumns, ProfilesTable), id)
		var scanErr error
		out, scanErr = scanProfile(row)
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return out, nil
}

// ListProfiles returns the tenant's profiles, newest first.
func (s *ProfileStore) ListProfiles(ctx context.Context, scope tenant.Scope) ([]Profile, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM %s
        WHERE tenant_id = $1
        ORDER BY created_at DESC
    `, profileColumns, ProfilesTable)

	profiles := make([]Profile, 0)
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, scope.TenantID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			p, scanErr := scanProfile(rows)
			if scanErr != nil {
				return fmt.Errorf("scan profile: %w", scanErr)
			}
			profiles = append(profiles, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// UpdateProfile applies admin edits within the tenant.
func (s *ProfileStore) UpdateProfile(ctx context.Context, scope tenant.Scope, id uuid.UUID, params UpdateProfileParams) (Profile, error) {
	set := newSetBuilder()
	set.add("name", params.Name)
	set.add("phone", params.Phone)
	set.cast("role", params.Role, "user_role")
	if set.empty() {
		return Profile{}, errors.New("no fields to update")
	}

	args := append(set.args, id, scope.TenantID)
	query := fmt.Sprintf(`
        UPDATE %s
        SET %s, updated_at = NOW()
        WHERE id = $%d AND tenant_id = $%d
        RETURNING %s
    `, ProfilesTable, set.sql(), len(args)-1, len(args), profileColumns)

	var out Profile
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		var scanErr error
		out, scanErr = scanProfile(tx.QueryRow(ctx, query, args...))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return out, nil
}

// UpdateOwnProfile lets a user edit their own name and phone.
func (s *ProfileStore) UpdateOwnProfile(ctx context.Context, id uuid.UUID, name, phone *string) (Profile, error) {
	set := newSetBuilder()
	set.add("name", name)
	set.add("phone", phone)
	if set.empty() {
		return Profile{}, errors.New("no fields to update")
	}

	args := append(set.args, id)
	query := fmt.Sprintf(`
        UPDATE %s
        SET %s, updated_at = NOW()
        WHERE id = $%d
        RETURNING %s
    `, ProfilesTable, set.sql(), len(args), profileColumns)

	var out Profile
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		var scanErr error
		out, scanErr = scanProfile(tx.QueryRow(ctx, query, args...))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("update own profile: %w", err)
	}
	return out, nil
}

// DeleteProfile removes the profile row within the tenant. The identity is kept.
func (s *ProfileStore) DeleteProfile(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	var affected int64
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		tag, execErr := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND tenant_id = $2`, ProfilesTable), id, scope.TenantID)
		affected = tag.RowsAffected()
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveProfile deletes a profile by id without tenant restriction. It is used
// to compensate sign-up and provisioning sagas.
func (s *ProfileStore) RemoveProfile(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, ProfilesTable), id)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("remove profile: %w", err)
	}
	return nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	if err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Email, &p.Phone, &p.Role, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Profile{}, err
	}
	return p, nil
}
