package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

const EventsTable = "events"

// Event represents a row in the events table. Price is NUMERIC(10,2) and is
// only set when RequiresPayment is true.
type Event struct {
	ID               uuid.UUID           `db:"id"`
	TenantID         uuid.UUID           `db:"tenant_id"`
	Title            string              `db:"title"`
	Description      string              `db:"description"`
	ScheduledAt      time.Time           `db:"scheduled_at"`
	Location         string              `db:"location"`
	Banner           *string             `db:"banner"`
	Speakers         []string            `db:"speakers"`
	MaxAttendees     *int                `db:"max_attendees"`
	CurrentAttendees int                 `db:"current_attendees"`
	RequiresPayment  bool                `db:"requires_payment"`
	Price            decimal.NullDecimal `db:"price"`
	IsPublic         bool                `db:"is_public"`
	CreatedAt        time.Time           `db:"created_at"`
	UpdatedAt        time.Time           `db:"updated_at"`
}

// price is read as text so the exact NUMERIC value reaches decimal.Decimal.
const eventColumns = "id, tenant_id, title, description, scheduled_at, location, banner, speakers, max_attendees, current_attendees, requires_payment, price::text, is_public, created_at, updated_at"

// CreateEventParams captures the insert fields. current_attendees always starts at 0.
type CreateEventParams struct {
	ID              uuid.UUID
	Title           string
	Description     string
	ScheduledAt     time.Time
	Location        string
	Banner          *string
	Speakers        []string
	MaxAttendees    *int
	RequiresPayment bool
	Price           decimal.NullDecimal
	IsPublic        bool
}

// UpdateEventParams holds the editable fields. A non-nil Price with Valid
// false clears the column.
type UpdateEventParams struct {
	Title           *string
	Description     *string
	ScheduledAt     *time.Time
	Location        *string
	Banner          *string
	Speakers        *[]string
	MaxAttendees    *int
	RequiresPayment *bool
	Price           *decimal.NullDecimal
	IsPublic        *bool
}

// EventStore exposes persistence helpers for the events table.
type EventStore struct {
	db *TenantDB
}

func NewEventStore(db *TenantDB) *EventStore {
	if db == nil {
		panic("event store requires TenantDB")
	}
	return &EventStore{db: db}
}

func (s *EventStore) CreateEvent(ctx context.Context, scope tenant.Scope, params CreateEventParams) (Event, error) {
	if params.ID == uuid.Nil {
		params.ID = uuid.New()
	}
	speakers := params.Speakers
	if speakers == nil {
		speakers = []string{}
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (id, tenant_id, title, description, scheduled_at, location, banner,
            speakers, max_attendees, requires_payment, price, is_public)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric, $12)
        RETURNING %s
    `, EventsTable, eventColumns)

	var out Event
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, query,
			params.ID, scope.TenantID, strings.TrimSpace(params.Title), params.Description,
			params.ScheduledAt, strings.TrimSpace(params.Location), params.Banner, speakers,
			params.MaxAttendees, params.RequiresPayment, priceArg(params.Price), params.IsPublic,
		)
		var scanErr error
		out, scanErr = scanEvent(row)
		return scanErr
	})
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return Event{}, ErrConflict
		case isCheckViolation(err):
			return Event{}, ErrInvalidValue
		}
		return Event{}, fmt.Errorf("create event: %w", err)
	}
	return out, nil
}

// ListEvents returns the tenant's events by scheduled time.
func (s *EventStore) ListEvents(ctx context.Context, scope tenant.Scope) ([]Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = $1 ORDER BY scheduled_at ASC`, eventColumns, EventsTable)
	return s.listScoped(ctx, scope, query, scope.TenantID)
}

// ListUpcomingEvents returns at most limit events scheduled at or after now.
func (s *EventStore) ListUpcomingEvents(ctx context.Context, scope tenant.Scope, now time.Time, limit int) ([]Event, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM %s
        WHERE tenant_id = $1 AND scheduled_at >= $2
        ORDER BY scheduled_at ASC
        LIMIT $3
    `, eventColumns, EventsTable)
	return s.listScoped(ctx, scope, query, scope.TenantID, now, limit)
}

// ListPublicEvents is the cross-tenant discovery query for public events
// scheduled at or after since.
func (s *EventStore) ListPublicEvents(ctx context.Context, since time.Time) ([]Event, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM %s
        WHERE is_public AND scheduled_at >= $1
        ORDER BY scheduled_at ASC
    `, eventColumns, EventsTable)

	var events []Event
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		var queryErr error
		events, queryErr = collectEvents(ctx, tx, query, since)
		return queryErr
	})
	if err != nil {
		return nil, fmt.Errorf("list public events: %w", err)
	}
	return events, nil
}

// GetPublicEvent returns a public event from any tenant.
func (s *EventStore) GetPublicEvent(ctx context.Context, id uuid.UUID) (Event, error) {
	var out Event
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND is_public`, eventColumns, EventsTable), id)
		var scanErr error
		out, scanErr = scanEvent(row)
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, fmt.Errorf("get public event: %w", err)
	}
	return out, nil
}

func (s *EventStore) listScoped(ctx context.Context, scope tenant.Scope, query string, args ...any) ([]Event, error) {
	var events []Event
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		var queryErr error
		events, queryErr = collectEvents(ctx, tx, query, args...)
		return queryErr
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (s *EventStore) GetEvent(ctx context.Context, scope tenant.Scope, id uuid.UUID) (Event, error) {
	var out Event
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND tenant_id = $2`, eventColumns, EventsTable), id, scope.TenantID)
		var scanErr error
		out, scanErr = scanEvent(row)
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, fmt.Errorf("get event: %w", err)
	}
	return out, nil
}

func (s *EventStore) UpdateEvent(ctx context.Context, scope tenant.Scope, id uuid.UUID, params UpdateEventParams) (Event, error) {
	set := newSetBuilder()
	set.add("title", params.Title)
	setOptional(set, "description", params.Description)
	setOptional(set, "scheduled_at", params.ScheduledAt)
	set.add("location", params.Location)
	setOptional(set, "banner", params.Banner)
	setOptional(set, "speakers", params.Speakers)
	setOptional(set, "max_attendees", params.MaxAttendees)
	setOptional(set, "requires_payment", params.RequiresPayment)
	if params.Price != nil {
		set.args = append(set.args, priceArg(*params.Price))
		set.parts = append(set.parts, fmt.Sprintf("price = $%d::numeric", len(set.args)))
	}
	setOptional(set, "is_public", params.IsPublic)
	if set.empty() {
		return Event{}, errors.New("no fields to update")
	}

	args := append(set.args, id, scope.TenantID)
	query := fmt.Sprintf(`
        UPDATE %s
        SET %s, updated_at = NOW()
        WHERE id = $%d AND tenant_id = $%d
        RETURNING %s
    `, EventsTable, set.sql(), len(args)-1, len(args), eventColumns)

	var out Event
	err := s.db.WithTenant(ctx, scope, func(tx pgx.Tx) error {
		var scanErr error
		out, scanErr = scanEvent(tx.QueryRow(ctx, query, args...))
		return scanErr
	})
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return Event{}, ErrNotFound
		case isCheckViolation(err):
			return Event{}, ErrInvalidValue
		}
		return Event{}, fmt.Errorf("update event: %w", err)
	}
	return out, nil
}

func (s *EventStore) DeleteEvent(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	return deleteScoped(ctx, s.db, scope, EventsTable, id)
}

// CountUpcomingEvents counts events scheduled at or after now.
func (s *EventStore) CountUpcomingEvents(ctx context.Context, scope tenant.Scope, now time.Time) (int, error) {
	return countScoped(ctx, s.db, scope, EventsTable, "scheduled_at >= $2", now)
}

func priceArg(price decimal.NullDecimal) *string {
	if !price.Valid {
		return nil
	}
	v := price.Decimal.StringFixed(2)
	return &v
}

func collectEvents(ctx context.Context, tx pgx.Tx, query string, args ...any) ([]Event, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		e, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan event: %w", scanErr)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanEvent(row pgx.Row) (Event, error) {
	var (
		e     Event
		price *string
	)
	if err := row.Scan(&e.ID, &e.TenantID, &e.Title, &e.Description, &e.ScheduledAt, &e.Location, &e.Banner,
		&e.Speakers, &e.MaxAttendees, &e.CurrentAttendees, &e.RequiresPayment, &price, &e.IsPublic,
		&e.CreatedAt, &e.UpdatedAt); err != nil {
		return Event{}, err
	}
	if price != nil {
		d, err := decimal.NewFromString(*price)
		if err != nil {
			return Event{}, fmt.Errorf("parse price %q: %w", *price, err)
		}
		e.Price = decimal.NewNullDecimal(d)
	}
	return e, nil
}
