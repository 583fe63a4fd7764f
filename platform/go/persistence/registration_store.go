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

const RegistrationsTable = "event_registrations"

// Registration represents a row in the event_registrations table.
type Registration struct {
	ID            uuid.UUID `db:"id"`
	TenantID      uuid.UUID `db:"tenant_id"`
	EventID       uuid.UUID `db:"event_id"`
	AttendeeName  string    `db:"attendee_name"`
	AttendeeEmail string    `db:"attendee_email"`
	AttendeePhone string    `db:"attendee_phone"`
	PaymentStatus *string   `db:"payment_status"`
	RegisteredAt  time.Time `db:"registered_at"`
}

const registrationColumns = "id, tenant_id, event_id, attendee_name, attendee_email, attendee_phone, payment_status::text, registered_at"

// RegisterParams captures the attendee data of a public registration.
type RegisterParams struct {
	AttendeeName  string
	AttendeeEmail string
	AttendeePhone string
}

// RegistrationStore exposes persistence helpers for event registrations.
type RegistrationStore struct {
	db *TenantDB
}

func NewRegistrationStore(db *TenantDB) *RegistrationStore {
	if db == nil {
		panic("registration store requires TenantDB")
	}
	return &RegistrationStore{db: db}
}

// Register adds an attendee to a public event. The event row is locked,
// max_attendees is enforced, current_attendees is incremented in the same
// transaction, and payment_status is 'pending' only for paid events.
func (s *RegistrationStore) Register(ctx context.Context, eventID uuid.UUID, params RegisterParams) (Registration, error) {
	var out Registration
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		var (
			tenantID        uuid.UUID
			maxAttendees    *int
			current         int
			requiresPayment bool
		)
		err := tx.QueryRow(ctx, fmt.Sprintf(`
            SELECT tenant_id, max_attendees, current_attendees, requires_payment
            FROM %s WHERE id = $1 AND is_public
            FOR UPDATE
        `, EventsTable), eventID).Scan(&tenantID, &maxAttendees, &current, &requiresPayment)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if maxAttendees != nil && current >= *maxAttendees {
			return ErrEventFull
		}

		var paymentStatus *string
		if requiresPayment {
			pending := "pending"
			paymentStatus = &pending
		}

		row := tx.QueryRow(ctx, fmt.Sprintf(`
            INSERT INTO %s (tenant_id, event_id, attendee_name, attendee_email, attendee_phone, payment_status)
            VALUES ($1, $2, $3, $4, $5, $6::payment_status)
            RETURNING %s
        `, RegistrationsTable, registrationColumns),
			tenantID, eventID,
			strings.TrimSpace(params.AttendeeName),
			strings.ToLower(strings.TrimSpace(params.AttendeeEmail)),
			strings.TrimSpace(params.AttendeePhone),
			paymentStatus,
		)
		if out, err = scanRegistration(row); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET current_attendees = current_attendees + 1, updated_at = NOW() WHERE id = $1`, EventsTable), eventID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrEventFull) {
			return Registration{}, err
		}
		return Registration{}, fmt.Errorf("register attendee: %w", err)
	}
	return out, nil
}

// ListRegistrations returns an event's registrations, newest first.
func (s *RegistrationStore) ListRegistrations(ctx context.Context, scope tenant.Scope, eventID uuid.UUID) ([]Registration, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM %s
        WHERE tenant_id = $1 AND event_id = $2
        ORDER BY registered_at DESC
    `, registrationColumns, RegistrationsTable)

	registrations := make([]Registration, 0)
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, scope.TenantID, eventID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			r, scanErr := scanRegistration(rows)
			if scanErr != nil {
				return fmt.Errorf("scan registration: %w", scanErr)
			}
			registrations = append(registrations, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return registrations, nil
}

func scanRegistration(row pgx.Row) (Registration, error) {
	var r Registration
	if err := row.Scan(&r.ID, &r.TenantID, &r.EventID, &r.AttendeeName, &r.AttendeeEmail, &r.AttendeePhone, &r.PaymentStatus, &r.RegisteredAt); err != nil {
		return Registration{}, err
	}
	return r, nil
}
