package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wilsonllucena/igreja-conciliada/domains/appointments/be/repo"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

// Domain sentinel errors.
var (
	ErrNotFound       = errors.New("appointment not found")
	ErrConflict       = errors.New("appointment conflict")
	ErrTenantRequired = errors.New("tenant required")
)

// Status is the appointment_status enum.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates an appointment status value.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return s, true
	default:
		return "", false
	}
}

// Appointment represents the domain view of an appointment record.
type Appointment struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	LeaderID     uuid.UUID
	MemberID     uuid.UUID
	Title        string
	Description  *string
	ScheduledAt  time.Time
	Duration     int
	Status       Status
	VisitHistory *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// End is the scheduled end time.
func (a Appointment) End() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.Duration) * time.Minute)
}

// CreateInput is validated against the appointment schema. ScheduledAt is RFC 3339.
type CreateInput struct {
	LeaderID     string  `json:"leader_id,omitempty"`
	MemberID     string  `json:"member_id,omitempty"`
	Title        string  `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	ScheduledAt  string  `json:"scheduled_at,omitempty"`
	Duration     *int    `json:"duration,omitempty"`
	Status       *string `json:"status,omitempty"`
	VisitHistory *string `json:"visit_history,omitempty"`
}

// UpdateInput holds the fields to change; nil fields are left untouched.
type UpdateInput struct {
	LeaderID     *uuid.UUID
	MemberID     *uuid.UUID
	Title        *string
	Description  *string
	ScheduledAt  *time.Time
	Duration     *int
	Status       *string
	VisitHistory *string
}

// Range selects appointments scheduled within [From, To], optionally for one leader.
type Range struct {
	From     time.Time
	To       time.Time
	LeaderID *uuid.UUID
}

// Service defines the business operations for the appointments domain.
type Service interface {
	List(ctx context.Context) ([]Appointment, error)
	ListByDateRange(ctx context.Context, r Range) ([]Appointment, error)
	Create(ctx context.Context, input CreateInput) (Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (Appointment, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Appointment, error)
	Complete(ctx context.Context, id uuid.UUID) (Appointment, error)
	UpdateStatus(ctx context.Context, ids []uuid.UUID, status string) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo repo.Repository
}

// New constructs an appointments Service backed by the provided repository.
func New(r repo.Repository) Service {
	if r == nil {
		panic("appointments repository is required")
	}
	return &service{repo: r}
}

func (s *service) List(ctx context.Context) ([]Appointment, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	return mapAppointments(records), nil
}

func (s *service) ListByDateRange(ctx context.Context, r Range) ([]Appointment, error) {
	verr := &validation.Error{}
	if r.From.IsZero() {
		verr.Add("from", "is required")
	}
	if r.To.IsZero() {
		verr.Add("to", "is required")
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		verr.Add("to", "must not be before from")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	records, err := s.repo.ListBetween(ctx, persistence.AppointmentRange{From: r.From, To: r.To, LeaderID: r.LeaderID})
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	return mapAppointments(records), nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (Appointment, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.ScheduledAt = strings.TrimSpace(input.ScheduledAt)

	if err := validation.Validate(validation.Appointment, input); err != nil {
		return Appointment{}, err
	}

	// The schema has already checked the formats.
	scheduledAt, err := time.Parse(time.RFC3339, input.ScheduledAt)
	if err != nil {
		return Appointment{}, &validation.Error{Fields: map[string][]string{"scheduled_at": {"must be an RFC 3339 timestamp"}}}
	}

	record, err := s.repo.Create(ctx, persistence.CreateAppointmentParams{
		ID:           uuid.New(),
		LeaderID:     uuid.MustParse(input.LeaderID),
		MemberID:     uuid.MustParse(input.MemberID),
		Title:        input.Title,
		Description:  input.Description,
		ScheduledAt:  scheduledAt.UTC(),
		Duration:     input.Duration,
		Status:       input.Status,
		VisitHistory: input.VisitHistory,
	})
	if err != nil {
		return Appointment{}, mapPersistenceError(err)
	}
	return mapAppointment(record), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (Appointment, error) {
	if id == uuid.Nil {
		return Appointment{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Appointment{}, mapPersistenceError(err)
	}
	return mapAppointment(record), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Appointment, error) {
	if id == uuid.Nil {
		return Appointment{}, ErrNotFound
	}

	params, err := buildUpdateParams(input)
	if err != nil {
		return Appointment{}, err
	}

	record, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return Appointment{}, mapPersistenceError(err)
	}
	return mapAppointment(record), nil
}

// Complete marks the appointment as completed.
func (s *service) Complete(ctx context.Context, id uuid.UUID) (Appointment, error) {
	status := string(StatusCompleted)
	return s.Update(ctx, id, UpdateInput{Status: &status})
}

// UpdateStatus sets the same status on every listed appointment and reports
// how many were changed. Ids of other tenants are ignored.
func (s *service) UpdateStatus(ctx context.Context, ids []uuid.UUID, status string) (int, error) {
	verr := &validation.Error{}
	parsed, ok := ParseStatus(status)
	if !ok {
		verr.Add("status", "must be one of scheduled, completed, cancelled")
	}
	if len(ids) == 0 {
		verr.Add("ids", "at least one appointment is required")
	}
	if err := verr.OrNil(); err != nil {
		return 0, err
	}

	n, err := s.repo.UpdateStatus(ctx, ids, string(parsed))
	if err != nil {
		return 0, mapPersistenceError(err)
	}
	return n, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrNotFound
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapPersistenceError(err)
	}
	return nil
}

func buildUpdateParams(input UpdateInput) (persistence.UpdateAppointmentParams, error) {
	verr := &validation.Error{}
	params := persistence.UpdateAppointmentParams{
		LeaderID:     input.LeaderID,
		MemberID:     input.MemberID,
		Description:  input.Description,
		Duration:     input.Duration,
		VisitHistory: input.VisitHistory,
	}
	fieldsSet := 0

	if input.LeaderID != nil {
		fieldsSet++
	}
	if input.MemberID != nil {
		fieldsSet++
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			verr.Add("title", "cannot be empty")
		}
		params.Title = &title
		fieldsSet++
	}
	if input.Description != nil {
		fieldsSet++
	}
	if input.ScheduledAt != nil {
		at := input.ScheduledAt.UTC()
		params.ScheduledAt = &at
		fieldsSet++
	}
	if input.Duration != nil {
		if d := *input.Duration; d < validation.MinDuration || d > validation.MaxDuration {
			verr.Add("duration", fmt.Sprintf("must be between %d and %d minutes", validation.MinDuration, validation.MaxDuration))
		}
		fieldsSet++
	}
	if input.Status != nil {
		status, ok := ParseStatus(*input.Status)
		if !ok {
			verr.Add("status", "must be one of scheduled, completed, cancelled")
		}
		value := string(status)
		params.Status = &value
		fieldsSet++
	}
	if input.VisitHistory != nil {
		fieldsSet++
	}

	if fieldsSet == 0 {
		verr.Add("payload", "at least one field must be provided")
	}
	if err := verr.OrNil(); err != nil {
		return persistence.UpdateAppointmentParams{}, err
	}
	return params, nil
}

func mapAppointments(records []persistence.Appointment) []Appointment {
	out := make([]Appointment, 0, len(records))
	for _, record := range records {
		out = append(out, mapAppointment(record))
	}
	return out
}

func mapAppointment(record persistence.Appointment) Appointment {
	return Appointment{
		ID:           record.ID,
		TenantID:     record.TenantID,
		LeaderID:     record.LeaderID,
		MemberID:     record.MemberID,
		Title:        record.Title,
		Description:  record.Description,
		ScheduledAt:  record.ScheduledAt,
		Duration:     record.Duration,
		Status:       Status(record.Status),
		VisitHistory: record.VisitHistory,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

func mapPersistenceError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConflict):
		return ErrConflict
	case errors.Is(err, persistence.ErrTenantRequired):
		return ErrTenantRequired
	case errors.Is(err, persistence.ErrInvalidReference):
		return &validation.Error{Fields: map[string][]string{
			"leader_id": {"must reference a leader of this church"},
			"member_id": {"must reference a member of this church"},
		}}
	case errors.Is(err, persistence.ErrInvalidValue):
		return &validation.Error{Fields: map[string][]string{"payload": {err.Error()}}}
	default:
		return err
	}
}
