// Package service implements the public, unauthenticated side of the system:
// browsing bookable leaders and public events across every church, event
// registration and appointment booking.
package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/domains/discovery/be/repo"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/metrics"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/saga"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

// Domain sentinel errors.
var (
	ErrNotFound  = errors.New("not found")
	ErrEventFull = errors.New("event is full")
)

// Raw HTML in descriptions is escaped; WithUnsafe stays off.
var markdown = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkhtml.WithHardWraps(),
	),
)

// Leader is a bookable leader as shown on the public booking page.
type Leader struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Name     string
	Type     string
}

// Event is a public event. DescriptionHTML is the rendered markdown.
type Event struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	Title            string
	Description      string
	DescriptionHTML  string
	ScheduledAt      time.Time
	Location         string
	Banner           *string
	Speakers         []string
	MaxAttendees     *int
	CurrentAttendees int
	RequiresPayment  bool
	Price            decimal.NullDecimal
}

// SpotsLeft is nil for events without an attendee limit.
func (e Event) SpotsLeft() *int {
	if e.MaxAttendees == nil {
		return nil
	}
	left := *e.MaxAttendees - e.CurrentAttendees
	if left < 0 {
		left = 0
	}
	return &left
}

// RegistrationInput is validated against the registration schema.
type RegistrationInput struct {
	AttendeeName  string `json:"attendee_name,omitempty"`
	AttendeeEmail string `json:"attendee_email,omitempty"`
	AttendeePhone string `json:"attendee_phone,omitempty"`
}

// Registration is the stored registration.
type Registration struct {
	ID            uuid.UUID
	EventID       uuid.UUID
	AttendeeName  string
	AttendeeEmail string
	PaymentStatus *string
	RegisteredAt  time.Time
}

// Visitor describes someone booking without being a member yet.
type Visitor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// BookingInput is validated against the booking schema. Exactly one of
// MemberID and Visitor must be set.
type BookingInput struct {
	LeaderID    string   `json:"leader_id,omitempty"`
	MemberID    string   `json:"member_id,omitempty"`
	Visitor     *Visitor `json:"visitor,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	ScheduledAt string   `json:"scheduled_at,omitempty"`
	Duration    *int     `json:"duration,omitempty"`
}

// Booking is the appointment created by a public booking.
type Booking struct {
	AppointmentID uuid.UUID
	TenantID      uuid.UUID
	LeaderID      uuid.UUID
	MemberID      uuid.UUID
	ScheduledAt   time.Time
	Duration      int
	Status        string
}

// Service defines the public discovery operations.
type Service interface {
	ListAvailableLeaders(ctx context.Context) ([]Leader, error)
	ListPublicEvents(ctx context.Context) ([]Event, error)
	GetPublicEvent(ctx context.Context, id uuid.UUID) (Event, error)
	RegisterForEvent(ctx context.Context, eventID uuid.UUID, input RegistrationInput) (Registration, error)
	BookAppointment(ctx context.Context, input BookingInput) (Booking, error)
}

// Deps carries the optional collaborators.
type Deps struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

type service struct {
	repo repo.Repository
	deps Deps
}

// New constructs a discovery Service backed by the provided repository.
func New(r repo.Repository, deps Deps) Service {
	if r == nil {
		panic("discovery repository is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &service{repo: r, deps: deps}
}

func (s *service) ListAvailableLeaders(ctx context.Context) ([]Leader, error) {
	records, err := s.repo.ListBookableLeaders(ctx)
	if err != nil {
		return nil, err
	}

	leaders := make([]Leader, 0, len(records))
	for _, l := range records {
		leaders = append(leaders, Leader{ID: l.ID, TenantID: l.TenantID, Name: l.Name, Type: l.Type})
	}
	return leaders, nil
}

// ListPublicEvents returns public events from now on, soonest first.
func (s *service) ListPublicEvents(ctx context.Context) ([]Event, error) {
	records, err := s.repo.ListPublicEvents(ctx, s.deps.Now().UTC())
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(records))
	for _, record := range records {
		events = append(events, s.mapEvent(record))
	}
	return events, nil
}

// GetPublicEvent returns ErrNotFound for missing and non-public events alike.
func (s *service) GetPublicEvent(ctx context.Context, id uuid.UUID) (Event, error) {
	if id == uuid.Nil {
		return Event{}, ErrNotFound
	}

	record, err := s.repo.GetPublicEvent(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Event{}, ErrNotFound
		}
		return Event{}, err
	}
	return s.mapEvent(record), nil
}

// RegisterForEvent adds an attendee and bumps current_attendees atomically.
// Payment is pending only when the event requires it.
func (s *service) RegisterForEvent(ctx context.Context, eventID uuid.UUID, input RegistrationInput) (Registration, error) {
	input.AttendeeName = strings.TrimSpace(input.AttendeeName)
	input.AttendeeEmail = strings.ToLower(strings.TrimSpace(input.AttendeeEmail))
	input.AttendeePhone = strings.TrimSpace(input.AttendeePhone)
	if err := validation.Validate(validation.Registration, input); err != nil {
		return Registration{}, err
	}
	if eventID == uuid.Nil {
		return Registration{}, ErrNotFound
	}

	record, err := s.repo.Register(ctx, eventID, persistence.RegisterParams(input))
	if err != nil {
		switch {
		case errors.Is(err, persistence.ErrNotFound):
			return Registration{}, ErrNotFound
		case errors.Is(err, persistence.ErrEventFull):
			return Registration{}, ErrEventFull
		}
		return Registration{}, err
	}

	return Registration{
		ID:            record.ID,
		EventID:       record.EventID,
		AttendeeName:  record.AttendeeName,
		AttendeeEmail: record.AttendeeEmail,
		PaymentStatus: record.PaymentStatus,
		RegisteredAt:  record.RegisteredAt,
	}, nil
}

// BookAppointment books a scheduled appointment with an available leader in
// the leader's church. A visitor is first registered as an active member of
// that church and removed again if the appointment cannot be created.
func (s *service) BookAppointment(ctx context.Context, input BookingInput) (Booking, error) {
	input.LeaderID = strings.TrimSpace(input.LeaderID)
	input.MemberID = strings.TrimSpace(input.MemberID)
	input.Title = strings.TrimSpace(input.Title)
	input.ScheduledAt = strings.TrimSpace(input.ScheduledAt)
	if input.Visitor != nil {
		input.Visitor.Name = strings.TrimSpace(input.Visitor.Name)
		input.Visitor.Email = strings.ToLower(strings.TrimSpace(input.Visitor.Email))
		input.Visitor.Phone = strings.TrimSpace(input.Visitor.Phone)
	}

	verr := &validation.Error{}
	verr.Merge(validation.Validate(validation.Booking, input))
	if (input.MemberID == "") == (input.Visitor == nil) {
		verr.Add("member_id", "provide either member_id or visitor")
	}
	if err := verr.OrNil(); err != nil {
		return Booking{}, err
	}

	scheduledAt, err := time.Parse(time.RFC3339, input.ScheduledAt)
	if err != nil {
		return Booking{}, &validation.Error{Fields: map[string][]string{"scheduled_at": {"must be an RFC 3339 timestamp"}}}
	}

	leader, err := s.repo.GetBookableLeader(ctx, uuid.MustParse(input.LeaderID))
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, err
	}
	scope := tenant.Scope{TenantID: leader.TenantID}

	var (
		memberID    uuid.UUID
		appointment persistence.Appointment
		steps       []saga.Step
	)
	if input.Visitor != nil {
		visitor := *input.Visitor
		steps = append(steps, saga.Step{
			Name: "create_visitor",
			Do: func(ctx context.Context) error {
				active := "active"
				member, err := s.repo.CreateMember(ctx, scope, persistence.CreateMemberParams{
					ID:     uuid.New(),
					Name:   visitor.Name,
					Email:  visitor.Email,
					Phone:  visitor.Phone,
					Status: &active,
				})
				if err != nil {
					return err
				}
				memberID = member.ID
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.repo.DeleteMember(ctx, scope, memberID)
			},
		})
	} else {
		memberID = uuid.MustParse(input.MemberID)
	}

	steps = append(steps, saga.Step{
		Name: "create_appointment",
		Do: func(ctx context.Context) error {
			scheduled := "scheduled"
			var err error
			appointment, err = s.repo.CreateAppointment(ctx, scope, persistence.CreateAppointmentParams{
				ID:          uuid.New(),
				LeaderID:    leader.ID,
				MemberID:    memberID,
				Title:       input.Title,
				Description: input.Description,
				ScheduledAt: scheduledAt.UTC(),
				Duration:    input.Duration,
				Status:      &scheduled,
			})
			if errors.Is(err, persistence.ErrInvalidReference) {
				return &validation.Error{Fields: map[string][]string{"member_id": {"member does not belong to the leader's church"}}}
			}
			return err
		},
	})

	result := saga.Run(ctx, s.deps.Logger, steps...)
	s.deps.Metrics.ObserveSaga("public_booking", string(result.Outcome))
	if err := result.Err(); err != nil {
		return Booking{}, err
	}

	return Booking{
		AppointmentID: appointment.ID,
		TenantID:      appointment.TenantID,
		LeaderID:      appointment.LeaderID,
		MemberID:      appointment.MemberID,
		ScheduledAt:   appointment.ScheduledAt,
		Duration:      appointment.Duration,
		Status:        appointment.Status,
	}, nil
}

func (s *service) mapEvent(record persistence.Event) Event {
	return Event{
		ID:               record.ID,
		TenantID:         record.TenantID,
		Title:            record.Title,
		Description:      record.Description,
		DescriptionHTML:  s.render(record.ID, record.Description),
		ScheduledAt:      record.ScheduledAt,
		Location:         record.Location,
		Banner:           record.Banner,
		Speakers:         record.Speakers,
		MaxAttendees:     record.MaxAttendees,
		CurrentAttendees: record.CurrentAttendees,
		RequiresPayment:  record.RequiresPayment,
		Price:            record.Price,
	}
}

func (s *service) render(eventID uuid.UUID, description string) string {
	if strings.TrimSpace(description) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(description), &buf); err != nil {
		s.deps.Logger.Warn("render event description", zap.String("event_id", eventID.String()), zap.Error(err))
		return ""
	}
	return buf.String()
}
