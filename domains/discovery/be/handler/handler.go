package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/domains/discovery/be/service"
	platformlogging "github.com/wilsonllucena/igreja-conciliada/platform/go/logging"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/problem"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/saga"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

type operation string

const (
	leadersOperation  operation = "publicLeadersList"
	eventsOperation   operation = "publicEventsList"
	eventOperation    operation = "publicEventsGet"
	registerOperation operation = "publicEventsRegister"
	bookOperation     operation = "publicAppointmentsBook"
)

// Leader is the public view of a bookable leader.
type Leader struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenantId"`
	Name     string    `json:"name"`
	Type     string    `json:"type"`
}

// Event is the public view of an event.
type Event struct {
	ID               uuid.UUID `json:"id"`
	TenantID         uuid.UUID `json:"tenantId"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	DescriptionHTML  string    `json:"descriptionHtml"`
	ScheduledAt      time.Time `json:"scheduledAt"`
	Location         string    `json:"location"`
	Banner           *string   `json:"banner,omitempty"`
	Speakers         []string  `json:"speakers"`
	MaxAttendees     *int      `json:"maxAttendees,omitempty"`
	CurrentAttendees int       `json:"currentAttendees"`
	SpotsLeft        *int      `json:"spotsLeft,omitempty"`
	RequiresPayment  bool      `json:"requiresPayment"`
	Price            *string   `json:"price,omitempty"`
}

// Register is the public registration request body.
type Register struct {
	AttendeeName  string `json:"attendeeName"`
	AttendeeEmail string `json:"attendeeEmail"`
	AttendeePhone string `json:"attendeePhone"`
}

// Registration is returned after a successful registration.
type Registration struct {
	ID            uuid.UUID `json:"id"`
	EventID       uuid.UUID `json:"eventId"`
	AttendeeName  string    `json:"attendeeName"`
	AttendeeEmail string    `json:"attendeeEmail"`
	PaymentStatus *string   `json:"paymentStatus,omitempty"`
	RegisteredAt  time.Time `json:"registeredAt"`
}

// Visitor is the contact of someone who is not a member yet.
type Visitor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Book is the public booking request body.
type Book struct {
	LeaderID    string   `json:"leaderId"`
	MemberID    string   `json:"memberId,omitempty"`
	Visitor     *Visitor `json:"visitor,omitempty"`
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	ScheduledAt string   `json:"scheduledAt"`
	Duration    *int     `json:"duration,omitempty"`
}

// Booking is returned after a successful booking.
type Booking struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	TenantID      uuid.UUID `json:"tenantId"`
	LeaderID      uuid.UUID `json:"leaderId"`
	MemberID      uuid.UUID `json:"memberId"`
	ScheduledAt   time.Time `json:"scheduledAt"`
	Duration      int       `json:"duration"`
	Status        string    `json:"status"`
}

// Handler exposes the discovery service on the unauthenticated /public routes.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("discovery service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Leaders implements GET /public/leaders.
func (h *Handler) Leaders(w http.ResponseWriter, r *http.Request) {
	leaders, err := h.svc.ListAvailableLeaders(r.Context())
	if err != nil {
		h.writeError(w, r, err, leadersOperation)
		return
	}

	items := make([]Leader, 0, len(leaders))
	for _, l := range leaders {
		items = append(items, Leader(l))
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Events implements GET /public/events.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListPublicEvents(r.Context())
	if err != nil {
		h.writeError(w, r, err, eventsOperation)
		return
	}

	items := make([]Event, 0, len(events))
	for _, e := range events {
		items = append(items, toAPIEvent(e))
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Event implements GET /public/events/{eventId}.
func (h *Handler) Event(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	event, err := h.svc.GetPublicEvent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, eventOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIEvent(event))
}

// Register implements POST /public/events/{eventId}/registrations.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	var body Register
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
		return
	}

	reg, err := h.svc.RegisterForEvent(r.Context(), id, service.RegistrationInput(body))
	if err != nil {
		h.writeError(w, r, err, registerOperation)
		return
	}
	problem.WriteJSON(w, http.StatusCreated, Registration(reg))
}

// Book implements POST /public/appointments.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var body Book
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
		return
	}

	input := service.BookingInput{
		LeaderID:    body.LeaderID,
		MemberID:    body.MemberID,
		Title:       body.Title,
		Description: body.Description,
		ScheduledAt: body.ScheduledAt,
		Duration:    body.Duration,
	}
	if body.Visitor != nil {
		visitor := service.Visitor(*body.Visitor)
		input.Visitor = &visitor
	}

	booking, err := h.svc.BookAppointment(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err, bookOperation)
		return
	}
	problem.WriteJSON(w, http.StatusCreated, Booking(booking))
}

func toAPIEvent(e service.Event) Event {
	out := Event{
		ID:               e.ID,
		TenantID:         e.TenantID,
		Title:            e.Title,
		Description:      e.Description,
		DescriptionHTML:  e.DescriptionHTML,
		ScheduledAt:      e.ScheduledAt,
		Location:         e.Location,
		Banner:           e.Banner,
		Speakers:         e.Speakers,
		MaxAttendees:     e.MaxAttendees,
		CurrentAttendees: e.CurrentAttendees,
		SpotsLeft:        e.SpotsLeft(),
		RequiresPayment:  e.RequiresPayment,
	}
	if out.Speakers == nil {
		out.Speakers = []string{}
	}
	if e.Price.Valid {
		price := e.Price.Decimal.StringFixed(2)
		out.Price = &price
	}
	return out
}

func (h *Handler) eventID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "eventId"))
	if err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid identifier", "eventId must be a UUID", problem.TypeValidation, nil))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, op operation) {
	problem.Write(w, h.problemForError(r.Context(), err, op))
}

func (h *Handler) problemForError(ctx context.Context, err error, op operation) problem.Details {
	status, title, detail, problemType, fields := classifyError(err)

	logger := platformlogging.FromContextOr(ctx, h.logger)
	fieldsForLog := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", status),
		zap.Error(err),
	}
	if saga.NeedsCleanup(err) {
		fieldsForLog = append(fieldsForLog, zap.Bool("cleanupRequired", true))
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("public operation failed", fieldsForLog...)
	case status == http.StatusNotFound:
		logger.Info("public resource not found", fieldsForLog...)
	default:
		logger.Warn("public request rejected", fieldsForLog...)
	}

	return problem.New(status, title, detail, problemType, fields)
}

func classifyError(err error) (status int, title, detail, problemType string, fieldErrors map[string][]string) {
	var validationErr *validation.Error
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "Validation failed", "one or more fields are invalid", problem.TypeValidation, validationErr.Fields
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "Resource not found", "resource not found", problem.TypeNotFound, nil
	case errors.Is(err, service.ErrEventFull):
		return http.StatusConflict, "Event full", fmt.Sprintf("%s: no spots left", service.ErrEventFull), problem.TypeConflict, nil
	default:
		return http.StatusInternalServerError, "Internal server error", "an unexpected error occurred", problem.TypeInternal, nil
	}
}
