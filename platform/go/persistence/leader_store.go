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

const LeadersTable = "leaders"

// Leader represents a row in the leaders table.
type Leader struct {
	ID                         uuid.UUID  `db:"id"`
	TenantID                   uuid.UUID  `db:"tenant_id"`
	Name                       string     `db:"name"`
	Email                      string     `db:"email"`
	Phone                      string     `db:"phone"`
	Type                       string     `db:"type"`
	Permissions                []string   `db:"permissions"`
	IsAvailableForAppointments bool       `db:"is_available_for_appointments"`
	UserID                     *uuid.UUID `db:"user_id"`
	CreatedAt                  time.Time  `db:"created_at"`
	UpdatedAt                  time.Time  `db:"updated_at"`
}

const leaderColumns = "id, tenant_id, name, email, phone, type::text, permissions, is_available_for_appointments, user_id, created_at, updated_at"

// CreateLeaderParams captures the fields required to insert a leader.
type CreateLeaderParams struct {
	ID                         uuid.UUID
	Name                       string
	Email                      string
	Phone                      string
	Type                       string
	Permissions                []string
	IsAvailableForAppointments *bool
}

// UpdateLeaderParams holds the editable fields. The linked user is not editable here.
type UpdateLeaderParams struct {
	Name                       *string
	Email                      *string
	Phone                      *string
	Type                       *string
	Permissions                *[]string
	IsAvailableForAppointments *bool
}

// LeaderStore exposes persistence helpers for the leaders table.
type LeaderStore struct {
	db *TenantDB
}

func NewLeaderStore(db *TenantDB) *LeaderStore {
	if db == nil {
		panic("leader store requires TenantDB")
	}
	return &LeaderStore{db: db}
}

func (s *LeaderStore) CreateLeader(ctx context.Context, scope tenant.Scope, params CreateLeaderParams) (Leader, error) {
	if params.ID == uuid.Nil {
		params.ID = uuid.New()
	}
	ins := newInsertBuilder()
	ins.value("id", params.ID)
	ins.value("tenant_id", scope.TenantID)
	ins.value("name", strings.TrimSpace(params.Name))
	ins.value("email", strings.ToLower(strings.TrimSpace(params.Email)))
	ins.value("phone", strings.TrimSpace(params.Phone))
	ins.castValue("type", params.Type, "leader_type")
	if params.Permissions != nil {
		ins.value("permissions", params.Permissions)
	}
	insertOptional(ins, "is_available_for_appointments", params.IsAvailableForAppointments, "")

	query := fmt.Sprintf(`
        INSERT INTO %s (%s) VALUES (%s)
        RETURNING %s
    `, LeadersTable, ins.columns(), ins.values(), leaderColumns)

	var out Leader
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		var scanErr error
		out, scanErr = scanLeader(tx.QueryRow(ctx, query, ins.args...))
		return scanErr
	})
	if err != nil {
		if isUniqueViolation(err) {
			return Leader{}, ErrConflict
		}
		return Leader{}, fmt.Errorf("create leader: %w", err)
	}
	return out, nil
}

// ListLeaders returns the tenant's leaders, newest first.
func (s *LeaderStore) ListLeaders(ctx context.Context, scope tenant.Scope) ([]Leader, error) {
	return s.list(ctx, scope, "", "created_at DESC")
}

// ListAvailableLeaders returns the tenant's bookable leaders ordered by name.
func (s *LeaderStore) ListAvailableLeaders(ctx context.Context, scope tenant.Scope) ([]Leader, error) {
	return s.list(ctx, scope, "is_available_for_appointments", "name ASC")
}

func (s *LeaderStore) list(ctx context.Context, scope tenant.Scope, where, order string) ([]Leader, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = $1`, leaderColumns, LeadersTable)
	if where != "" {
		query += " AND " + where
	}
	query += " ORDER BY " + order

	var leaders []Leader
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		var queryErr error
		leaders, queryErr = collectLeaders(ctx, tx, query, scope.TenantID)
		return queryErr
	})
	if err != nil {
		return nil, fmt.Errorf("list leaders: %w", err)
	}
	return leaders, nil
}

// ListBookableLeaders is the cross-tenant discovery query: every leader
// available for appointments, ordered by name.
func (s *LeaderStore) ListBookableLeaders(ctx context.Context) ([]Leader, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM %s
        WHERE is_available_for_appointments
        ORDER BY name ASC
    `, leaderColumns, LeadersTable)

	var leaders []Leader
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		var queryErr error
		leaders, queryErr = collectLeaders(ctx, tx, query)
		return queryErr
	})
	if err != nil {
		return nil, fmt.Errorf("list bookable leaders: %w", err)
	}
	return leaders, nil
}

// GetBookableLeader returns an available leader from any tenant.
func (s *LeaderStore) GetBookableLeader(ctx context.Context, id uuid.UUID) (Leader, error) {
	var out Leader
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND is_available_for_appointments`, leaderColumns, LeadersTable), id)
		var scanErr error
		out, scanErr = scanLeader(row)
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Leader{}, ErrNotFound
		}
		return Leader{}, fmt.Errorf("get bookable leader: %w", err)
	}
	return out, nil
}

func (s *LeaderStore) GetLeader(ctx context.Context, scope tenant.Scope, id uuid.UUID) (Leader, error) {
	var out Leader
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND tenant_id = $2`, leaderColumns, LeadersTable), id, scope.TenantID)
		var scanErr error
		out, scanErr = scanLeader(row)
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Leader{}, ErrNotFound
		}
		return Leader{}, fmt.Errorf("get leader: %w", err)
	}
	return out, nil
}

func (s *LeaderStore) UpdateLeader(ctx context.Context, scope tenant.Scope, id uuid.UUID, params UpdateLeaderParams) (Leader, error) {
	set := newSetBuilder()
	set.add("name", params.Name)
	if params.Email != nil {
		email := strings.ToLower(*params.Email)
		set.add("email", &email)
	}
	set.add("phone", params.Phone)
	set.cast("type", params.Type, "leader_type")
	setOptional(set, "permissions", params.Permissions)
	setOptional(set, "is_available_for_appointments", params.IsAvailableForAppointments)
	if set.empty() {
		return Leader{}, errors.New("no fields to update")
	}

	args := append(set.args, id, scope.TenantID)
	query := fmt.Sprintf(`
        UPDATE %s
        SET %s, updated_at = NOW()
        WHERE id = $%d AND tenant_id = $%d
        RETURNING %s
    `, LeadersTable, set.sql(), len(args)-1, len(args), leaderColumns)

	var out Leader
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		var scanErr error
		out, scanErr = scanLeader(tx.QueryRow(ctx, query, args...))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Leader{}, ErrNotFound
		}
		return Leader{}, fmt.Errorf("update leader: %w", err)
	}
	return out, nil
}

// LinkUser sets user_id once. A leader that is already linked returns ErrConflict.
func (s *LeaderStore) LinkUser(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID) (Leader, error) {
	query := fmt.Sprintf(`
        UPDATE %s
        SET user_id = $1, updated_at = NOW()
        WHERE id = $2 AND tenant_id = $3 AND user_id IS NULL
        RETURNING %s
    `, LeadersTable, leaderColumns)

	var out Leader
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		var scanErr error
		out, scanErr = scanLeader(tx.QueryRow(ctx, query, userID, id, scope.TenantID))
		if !errors.Is(scanErr, pgx.ErrNoRows) {
			return scanErr
		}

		var exists bool
		if err := tx.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1 AND tenant_id = $2)`, LeadersTable), id, scope.TenantID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}
		return ErrNotFound
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound):
			return Leader{}, err
		case isUniqueViolation(err):
			return Leader{}, ErrConflict
		}
		return Leader{}, fmt.Errorf("link leader user: %w", err)
	}
	return out, nil
}

func (s *LeaderStore) DeleteLeader(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	return deleteScoped(ctx, s.db, scope, LeadersTable, id)
}

func (s *LeaderStore) CountLeaders(ctx context.Context, scope tenant.Scope) (int, error) {
	return countScoped(ctx, s.db, scope, LeadersTable, "")
}

func collectLeaders(ctx context.Context, tx pgx.Tx, query string, args ...any) ([]Leader, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leaders := make([]Leader, 0)
	for rows.Next() {
		l, scanErr := scanLeader(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan leader: %w", scanErr)
		}
		leaders = append(leaders, l)
	}
	return leaders, rows.Err()
}

func scanLeader(row pgx.Row) (Leader, error) {
	var l Leader
	if err := row.Scan(&l.ID, &l.TenantID, &l.Name, &l.Email, &l.Phone, &l.Type, &l.Permissions, &l.IsAvailableForAppointments, &l.UserID, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return Leader{}, err
	}
	return l, nil
}
