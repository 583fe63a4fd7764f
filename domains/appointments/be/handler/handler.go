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

	"github.com/wilsonllucena/igreja-conciliada/domains/appointments/be/service"
	platformlogging "github.com/wilsonllucena/igreja-conciliada/platform/go/logging"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/problem"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

type operation string

const (
	listOperation         operation = "appointmentsList"
	createOperation       operation = "appointmentsCreate"
	getOperation          operation = "appointmentsGet"
	updateOperation       operation = "appointmentsUpdate"
	completeOperation     operation = "appointmentsComplete"
	updateStatusOperation operation = "appointmentsUpdateStatus"
	deleteOperation       operation = "appointmentsDelete"
)

// Appointment is the JSON representation of an appointment.
type Appointment struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenantId"`
	LeaderID     uuid.UUID `json:"leaderId"`
	MemberID     uuid.UUID `json:"memberId"`
	Title        string    `json:"title"`
	Description  *string   `json:"description,omitempty"`
	ScheduledAt  time.Time `json:"scheduledAt"`
	Duration     int       `json:"duration"`
	Status       string    `json:"status"`
	VisitHistory *string   `json:"visitHistory,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreateAppointment is the create request body.
type CreateAppointment struct {
	LeaderID     string  `json:"leaderId"`
	MemberID     string  `json:"memberId"`
	Title        string  `json:"title"`
	Description  *string `json:"description,omitempty"`
	ScheduledAt  string  `json:"scheduledAt"`
	Duration     *int    `json:"duration,omitempty"`
	Status       *string `json:"status,omitempty"`
	VisitHistory *string `json:"visitHistory,omitempty"`
}

// UpdateAppointment is the partial update request body.
type UpdateAppointment struct {
	LeaderID     *uuid.UUID `json:"leaderId,omitempty"`
	MemberID     *uuid.UUID `json:"memberId,omitempty"`
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	ScheduledAt  *time.Time `json:"scheduledAt,omitempty"`
	Duration     *int       `json:"duration,omitempty"`
	Status       *string    `json:"status,omitempty"`
	VisitHistory *string    `json:"visitHistory,omitempty"`
}

// UpdateStatus is the bulk status request body.
type UpdateStatus struct {
	IDs    []uuid.UUID `json:"ids"`
	Status string      `json:"status"`
}

// Handler exposes the appointments service over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("appointments service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// List implements GET /appointments. With from and to it lists the range,
// optionally narrowed by leaderId.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		appointments []service.Appointment
		err          error
	)
	if q.Get("from") == "" && q.Get("to") == "" {
		appointments, err = h.svc.List(r.Context())
	} else {
		var rng service.Range
		rng, err = parseRange(q.Get("from"), q.Get("to"), q.Get("leaderId"))
		if err == nil {
			appointments, err = h.svc.ListByDateRange(r.Context(), rng)
		}
	}
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}

	items := make([]Appointment, 0, len(appointments))
	for _, a := range appointments {
		items = append(items, toAPIAppointment(a))
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body CreateAppointment
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
		return
	}

	created, err := h.svc.Create(r.Context(), service.CreateInput(body))
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/appointments/%s", created.ID))
	problem.WriteJSON(w, http.StatusCreated, toAPIAppointment(created))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	appointment, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIAppointment(appointment))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body UpdateAppointment
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
		return
	}

	updated, err := h.svc.Update(r.Context(), id, service.UpdateInput(body))
	if err != nil {
		h.writeError(w, r, err, updateOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIAppointment(updated))
}

// Complete implements POST /appointments/{id}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	completed, err := h.svc.Complete(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, completeOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIAppointment(completed))
}

// UpdateStatus implements PUT /appointments/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body UpdateStatus
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
		return
	}

	n, err := h.svc.UpdateStatus(r.Context(), body.IDs, body.Status)
	if err != nil {
		h.writeError(w, r, err, updateStatusOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, map[string]int{"updated": n})
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

func parseRange(from, to, leader string) (service.Range, error) {
	verr := &validation.Error{}
	var rng service.Range

	parse := func(field, raw string) time.Time {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			verr.Add(field, "must be an RFC 3339 timestamp")
		}
		return t
	}
	rng.From = parse("from", from)
	rng.To = parse("to", to)

	if leader != "" {
		id, err := uuid.Parse(leader)
		if err != nil {
			verr.Add("leaderId", "must be a UUID")
		} else {
			rng.LeaderID = &id
		}
	}
	return rng, verr.OrNil()
}

func toAPIAppointment(a service.Appointment) Appointment {
	return Appointment{
		ID:           a.ID,
		TenantID:     a.TenantID,
		LeaderID:     a.LeaderID,
		MemberID:     a.MemberID,
		Title:        a.Title,
		Description:  a.Description,
		ScheduledAt:  a.ScheduledAt,
		Duration:     a.Duration,
		Status:       string(a.Status),
		VisitHistory: a.VisitHistory,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
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

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("appointments operation failed", fieldsForLog...)
	case status == http.StatusNotFound:
		logger.Info("appointments resource not found", fieldsForLog...)
	default:
		logger.Warn("appointments request rejected", fieldsForLog...)
	}

	return problem.New(status, title, detail, problemType, fields)
}

func classifyError(err error) (status int, title, detail, problemType string, fieldErrors map[string][]string) {
	var validationErr *validation.Error
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "Validation failed", "one or more fields are invalid", problem.TypeValidation, validationErr.Fields
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "Resource not found", "appointment not found", problem.TypeNotFound, nil
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "Conflict", "appointment conflict", problem.TypeConflict, nil
	case errors.Is(err, service.ErrTenantRequired):
		return http.StatusForbidden, "Forbidden", "a church is required for this operation", problem.TypeForbidden, nil
	default:
		return http.StatusInternalServerError, "Internal server error", "an unexpected error occurred", problem.TypeInternal, nil
	}
}
