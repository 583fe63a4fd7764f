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

const AppointmentsTable = "appointments"

// Appointment represents a row in the appointments table.
type Appointment struct {
	ID           uuid.UUID `db:"id"`
	TenantID     uuid.UUID `db:"tenant_id"`
	LeaderID     uuid.UUID `db:"leader_id"`
	MemberID     uuid.UUID `db:"member_id"`
	Title        string    `db:"title"`
	Description  *string   `db:"description"`
	ScheduledAt  time.Time `db:"scheduled_at"`
	Duration     int       `db:"duration"`
	Status       string    `db:"status"`
	VisitHistory *string   `db:"visit_history"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

const appointmentColumns = "id, tenant_id, leader_id, member_id, title, description, scheduled_at, duration, status::text, visit_history, created_at, updated_at"

// CreateAppointmentParams captures the insert fields. Nil Duration and Status
// take the column defaults (60 minutes, scheduled).
type CreateAppointmentParams struct {
	ID           uuid.UUID
	LeaderID     uuid.UUID
	MemberID     uuid.UUID
	Title        string
	Description  *string
	ScheduledAt  time.Time
	Duration     *int
	Status       *string
	VisitHistory *string
}

// UpdateAppointmentParams holds the editable fields. Any status may be set.
type UpdateAppointmentParams struct {
	LeaderID     *uuid.UUID
	MemberID     *uuid.UUID
	Title        *string
	Description  *string
	ScheduledAt  *time.Time
	Duration     *int
	Status       *string
	VisitHistory *string
}

// AppointmentRange filters ListAppointmentsBetween. LeaderID is optional.
type AppointmentRange struct {
	From     time.Time
	To       time.Time
	LeaderID *uuid.UUID
}

// AppointmentStore exposes persistence helpers for the appointments table.
type AppointmentStore struct {
	db *TenantDB
}

func NewAppointmentStore(db *TenantDB) *AppointmentStore {
	if db == nil {
		panic("appointment store requires TenantDB")
	}
	return &AppointmentStore{db: db}
}

// CreateAppointment inserts an appointment only when the leader and the member
// both belong to the scope's tenant; otherwise it returns ErrInvalidReference.
func (s *AppointmentStore) CreateAppointment(ctx context.Context, scope tenant.Scope, params CreateAppointmentParams) (Appointment, error) {
	if params.ID == uuid.Nil {
		params.ID = uuid.New()
	}

	ins := newInsertBuilder()
	ins.castValue("id", params.ID, "uuid")
	ins.castValue("tenant_id", scope.TenantID, "uuid")
	ins.castValue("leader_id", params.LeaderID, "uuid")
	ins.castValue("member_id", params.MemberID, "uuid")
	ins.castValue("title", strings.TrimSpace(params.Title), "text")
	insertOptional(ins, "description", params.Description, "text")
	ins.castValue("scheduled_at", params.ScheduledAt, "timestamptz")
	insertOptional(ins, "duration", params.Duration, "integer")
	insertOptional(ins, "status", params.Status, "appointment_status")
	insertOptional(ins, "visit_history", params.VisitHistory, "text")

	tenantArg := ins.arg(scope.TenantID)
	leaderArg := ins.arg(params.LeaderID)
	memberArg := ins.arg(params.MemberID)

	query := fmt.Sprintf(`
        INSERT INTO %s (%s)
        SELECT %s
        WHERE EXISTS (SELECT 1 FROM %s WHERE id = %s AND tenant_id = %s)
          AND EXISTS (SELECT 1 FROM %s WHERE id = %s AND tenant_id = %s)
        RETURNING %s
    `, AppointmentsTable, ins.columns(), ins.values(),
		LeadersTable, leaderArg, tenantArg,
		MembersTable, memberArg, tenantArg,
		appointmentColumns)

	var out Appointment
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		var scanErr error
		out, scanErr = scanAppointment(tx.QueryRow(ctx, query, ins.args...))
		return scanErr
	})
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return Appointment{}, ErrInvalidReference
		case isUniqueViolation(err):
			return Appointment{}, ErrConflict
		}
		return Appointment{}, fmt.Errorf("create appointment: %w", err)
	}
	return out, nil
}

// ListAppointments returns the tenant's appointments by scheduled time.
func (s *AppointmentStore) ListAppointments(ctx context.Context, scope tenant.Scope) ([]Appointment, error) {
	return s.list(ctx, scope, "")
}

// ListAppointmentsBetween returns appointments scheduled in [From, To].
func (s *AppointmentStore) ListAppointmentsBetween(ctx context.Context, scope tenant.Scope, r AppointmentRange) ([]Appointment, error) {
	where := "scheduled_at >= $2 AND scheduled_at <= $3"
	args := []any{r.From, r.To}
	if r.LeaderID != nil {
		where += " AND leader_id = $4"
		args = append(args, *r.LeaderID)
	}
	return s.list(ctx, scope, where, args...)
}

func (s *AppointmentStore) list(ctx context.Context, scope tenant.Scope, where string, args ...any) ([]Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = $1`, appointmentColumns, AppointmentsTable)
	if where != "" {
		query += " AND " + where
	}
	query += " ORDER BY scheduled_at ASC"

	appointments := make([]Appointment, 0)
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, append([]any{scope.TenantID}, args...)...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			a, scanErr := scanAppointment(rows)
			if scanErr != nil {
				return fmt.Errorf("scan appointment: %w", scanErr)
			}
			appointments = append(appointments, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

func (s *AppointmentStore) GetAppointment(ctx context.Context, scope tenant.Scope, id uuid.UUID) (Appointment, error) {
	var out Appointment
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND tenant_id = $2`, appointmentColumns, AppointmentsTable), id, scope.TenantID)
		var scanErr error
		out, scanErr = scanAppointment(row)
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return out, nil
}

func (s *AppointmentStore) UpdateAppointment(ctx context.Context, scope tenant.Scope, id uuid.UUID, params UpdateAppointmentParams) (Appointment, error) {
	set := newSetBuilder()
	setOptional(set, "leader_id", params.LeaderID)
	setOptional(set, "member_id", params.MemberID)
	set.add("title", params.Title)
	set.add("description", params.Description)
	setOptional(set, "scheduled_at", params.ScheduledAt)
	setOptional(set, "duration", params.Duration)
	set.cast("status", params.Status, "appointment_status")
	set.add("visit_history", params.VisitHistory)
	if set.empty() {
		return Appointment{}, errors.New("no fields to update")
	}

	args := append(set.args, id, scope.TenantID)
	query := fmt.Sprintf(`
        UPDATE %s
        SET %s, updated_at = NOW()
        WHERE id = $%d AND tenant_id = $%d
        RETURNING %s
    `, AppointmentsTable, set.sql(), len(args)-1, len(args), appointmentColumns)

	var out Appointment
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		var scanErr error
		out, scanErr = scanAppointment(tx.QueryRow(ctx, query, args...))
		return scanErr
	})
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return Appointment{}, ErrNotFound
		case isCheckViolation(err):
			return Appointment{}, ErrInvalidValue
		}
		return Appointment{}, fmt.Errorf("update appointment: %w", err)
	}
	return out, nil
}

// UpdateAppointmentStatus sets status on every listed appointment of the
// tenant and returns how many rows changed.
func (s *AppointmentStore) UpdateAppointmentStatus(ctx context.Context, scope tenant.Scope, ids []uuid.UUID, status string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var affected int64
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		tag, execErr := tx.Exec(ctx, fmt.Sprintf(`
            UPDATE %s
            SET status = $1::appointment_status, updated_at = NOW()
            WHERE tenant_id = $2 AND id = ANY($3)
        `, AppointmentsTable), status, scope.TenantID, ids)
		affected = tag.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("update appointment status: %w", err)
	}
	return int(affected), nil
}

func (s *AppointmentStore) DeleteAppointment(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	return deleteScoped(ctx, s.db, scope, AppointmentsTable, id)
}

// CountUpcomingAppointments counts scheduled appointments at or after now.
func (s *AppointmentStore) CountUpcomingAppointments(ctx context.Context, scope tenant.Scope, now time.Time) (int, error) {
	return countScoped(ctx, s.db, scope, AppointmentsTable, "status = 'scheduled' AND scheduled_at >= $2", now)
}

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment
	if err := row.Scan(&a.ID, &a.TenantID, &a.LeaderID, &a.MemberID, &a.Title, &a.Description, &a.ScheduledAt, &a.Duration, &a.Status, &a.VisitHistory, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Appointment{}, err
	}
	return a, nil
}
