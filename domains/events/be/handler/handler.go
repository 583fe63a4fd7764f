package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/domains/events/be/service"
	platformlogging "github.com/wilsonllucena/igreja-conciliada/platform/go/logging"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/problem"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/saga"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/storage"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

type operation string

const (
	listOperation          operation = "eventsList"
	upcomingOperation      operation = "eventsUpcoming"
	createOperation        operation = "eventsCreate"
	getOperation           operation = "eventsGet"
	updateOperation        operation = "eventsUpdate"
	deleteOperation        operation = "eventsDelete"
	bannerOperation        operation = "eventsBanner"
	linkOperation          operation = "eventsLink"
	registrationsOperation operation = "eventsRegistrations"
)

// Event is the JSON representation of an event. Price is a decimal string.
type Event struct {
	ID               uuid.UUID `json:"id"`
	TenantID         uuid.UUID `json:"tenantId"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	ScheduledAt      time.Time `json:"scheduledAt"`
	Location         string    `json:"location"`
	Banner           *string   `json:"banner,omitempty"`
	Speakers         []string  `json:"speakers"`
	MaxAttendees     *int      `json:"maxAttendees,omitempty"`
	CurrentAttendees int       `json:"currentAttendees"`
	RequiresPayment  bool      `json:"requiresPayment"`
	Price            *string   `json:"price,omitempty"`
	IsPublic         bool      `json:"isPublic"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// CreateEvent is the create request body. As multipart/form-data it travels
// in the "event" field next to an optional "banner" file.
type CreateEvent struct {
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	ScheduledAt     string   `json:"scheduledAt"`
	Location        string   `json:"location"`
	Banner          *string  `json:"banner,omitempty"`
	Speakers        []string `json:"speakers,omitempty"`
	MaxAttendees    *int     `json:"maxAttendees,omitempty"`
	RequiresPayment bool     `json:"requiresPayment,omitempty"`
	Price           *string  `json:"price,omitempty"`
	IsPublic        bool     `json:"isPublic,omitempty"`
}

// UpdateEvent is the partial update request body.
type UpdateEvent struct {
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	ScheduledAt     *time.Time `json:"scheduledAt,omitempty"`
	Location        *string    `json:"location,omitempty"`
	Speakers        *[]string  `json:"speakers,omitempty"`
	MaxAttendees    *int       `json:"maxAttendees,omitempty"`
	RequiresPayment *bool      `json:"requiresPayment,omitempty"`
	Price           *string    `json:"price,omitempty"`
	IsPublic        *bool      `json:"isPublic,omitempty"`
}

// Registration is the JSON representation of an event registration.
type Registration struct {
	ID            uuid.UUID `json:"id"`
	EventID       uuid.UUID `json:"eventId"`
	AttendeeName  string    `json:"attendeeName"`
	AttendeeEmail string    `json:"attendeeEmail"`
	AttendeePhone string    `json:"attendeePhone,omitempty"`
	PaymentStatus *string   `json:"paymentStatus,omitempty"`
	RegisteredAt  time.Time `json:"registeredAt"`
}

// Handler exposes the events service over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("events service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": toAPIEvents(events)})
}

// Upcoming implements GET /events/upcoming?limit=.
func (h *Handler) Upcoming(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			problem.Write(w, problem.New(http.StatusBadRequest, "Invalid query", "limit must be a positive integer", problem.TypeValidation, nil))
			return
		}
		limit = n
	}

	events, err := h.svc.ListUpcoming(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err, upcomingOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": toAPIEvents(events)})
}

// Create implements POST /events. A multipart body creates the event and its
// banner together.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var (
		body   CreateEvent
		banner *service.BannerUpload
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageBytes+1<<20)
		if err := r.ParseMultipartForm(storage.MaxImageBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeBannerTooLarge(w)
				return
			}
			problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
			return
		}
		dec := json.NewDecoder(strings.NewReader(r.FormValue("event")))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
			return
		}
		file, header, err := r.FormFile("banner")
		switch {
		case err == nil:
			defer file.Close()
			if header.Size > storage.MaxImageBytes {
				writeBannerTooLarge(w)
				return
			}
			banner = &service.BannerUpload{
				Filename:    header.Filename,
				ContentType: storage.ContentTypeFor(header.Filename, header.Header.Get("Content-Type")),
				Body:        file,
			}
		case !errors.Is(err, http.ErrMissingFile):
			problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
			return
		}
	} else if err := problem.DecodeJSON(r, &body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
		return
	}

	created, err := h.svc.Create(r.Context(), service.CreateInput(body), banner)
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/events/%s", created.ID))
	problem.WriteJSON(w, http.StatusCreated, toAPIEvent(created))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	event, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIEvent(event))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body UpdateEvent
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
		return
	}

	updated, err := h.svc.Update(r.Context(), id, service.UpdateInput(body))
	if err != nil {
		h.writeError(w, r, err, updateOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIEvent(updated))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err, deleteOperation)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadBanner implements PUT /events/{id}/banner?filename=. The body is the raw image.
func (h *Handler) UploadBanner(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	filename := r.URL.Query().Get("filename")
	body := http.MaxBytesReader(w, r.Body, storage.MaxImageBytes)
	defer body.Close()

	updated, err := h.svc.ReplaceBanner(r.Context(), id, service.BannerUpload{
		Filename:    filename,
		ContentType: storage.ContentTypeFor(filename, r.Header.Get("Content-Type")),
		Body:        body,
	})
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeBannerTooLarge(w)
			return
		}
		h.writeError(w, r, err, bannerOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIEvent(updated))
}

// Link implements GET /events/{id}/link.
func (h *Handler) Link(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.svc.Get(r.Context(), id); err != nil {
		h.writeError(w, r, err, linkOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, map[string]string{"url": h.svc.PublicLink(id)})
}

// Registrations implements GET /events/{id}/registrations.
func (h *Handler) Registrations(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	registrations, err := h.svc.Registrations(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, registrationsOperation)
		return
	}

	items := make([]Registration, 0, len(registrations))
	for _, reg := range registrations {
		items = append(items, Registration(reg))
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func toAPIEvents(events []service.Event) []Event {
	items := make([]Event, 0, len(events))
	for _, e := range events {
		items = append(items, toAPIEvent(e))
	}
	return items
}

func toAPIEvent(e service.Event) Event {
	out := Event{
		ID:               e.ID,
		TenantID:         e.TenantID,
		Title:            e.Title,
		Description:      e.Description,
		ScheduledAt:      e.ScheduledAt,
		Location:         e.Location,
		Banner:           e.Banner,
		Speakers:         e.Speakers,
		MaxAttendees:     e.MaxAttendees,
		CurrentAttendees: e.CurrentAttendees,
		RequiresPayment:  e.RequiresPayment,
		IsPublic:         e.IsPublic,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
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

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid identifier", "id must be a UUID", problem.TypeValidation, nil))
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
		logger.Error("events operation failed", fieldsForLog...)
	case status == http.StatusNotFound:
		logger.Info("events resource not found", fieldsForLog...)
	default:
		logger.Warn("events request rejected", fieldsForLog...)
	}

	return problem.New(status, title, detail, problemType, fields)
}

func classifyError(err error) (status int, title, detail, problemType string, fieldErrors map[string][]string) {
	var validationErr *validation.Error
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "Validation failed", "one or more fields are invalid", problem.TypeValidation, validationErr.Fields
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "Resource not found", "event not found", problem.TypeNotFound, nil
	case errors.Is(err, service.ErrConflict), errors.Is(err, storage.ErrObjectExists):
		return http.StatusConflict, "Conflict", "event conflict", problem.TypeConflict, nil
	case errors.Is(err, service.ErrTenantRequired):
		return http.StatusForbidden, "Forbidden", "a church is required for this operation", problem.TypeForbidden, nil
	default:
		return http.StatusInternalServerError, "Internal server error", "an unexpected error occurred", problem.TypeInternal, nil
	}
}

func writeBannerTooLarge(w http.ResponseWriter) {
	problem.Write(w, problem.New(http.StatusRequestEntityTooLarge, "Payload too large", "banner must be at most 5 MiB", problem.TypeValidation, nil))
}
