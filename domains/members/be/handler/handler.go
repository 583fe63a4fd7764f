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

	"github.com/wilsonllucena/igreja-conciliada/domains/members/be/service"
	platformlogging "github.com/wilsonllucena/igreja-conciliada/platform/go/logging"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/problem"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

const dateLayout = "2006-01-02"

type operation string

const (
	listOperation       operation = "membersList"
	createOperation     operation = "membersCreate"
	createBulkOperation operation = "membersCreateBulk"
	getOperation        operation = "membersGet"
	updateOperation     operation = "membersUpdate"
	deleteOperation     operation = "membersDelete"
)

// Member is the JSON representation of a member.
type Member struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenantId"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Address     *string   `json:"address,omitempty"`
	DateOfBirth *string   `json:"dateOfBirth,omitempty"`
	Groups      []string  `json:"groups"`
	Status      string    `json:"status"`
	JoinedAt    string    `json:"joinedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateMember is the create request body.
type CreateMember struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Address     *string  `json:"address,omitempty"`
	DateOfBirth *string  `json:"dateOfBirth,omitempty"`
	Groups      []string `json:"groups,omitempty"`
	Status      *string  `json:"status,omitempty"`
	JoinedAt    *string  `json:"joinedAt,omitempty"`
}

// UpdateMember is the partial update request body.
type UpdateMember struct {
	Name        *string   `json:"name,omitempty"`
	Email       *string   `json:"email,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	Address     *string   `json:"address,omitempty"`
	DateOfBirth *string   `json:"dateOfBirth,omitempty"`
	Groups      *[]string `json:"groups,omitempty"`
	Status      *string   `json:"status,omitempty"`
	JoinedAt    *string   `json:"joinedAt,omitempty"`
}

// Handler exposes the members service over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("members service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}

	items := make([]Member, 0, len(members))
	for _, m := range members {
		items = append(items, toAPIMember(m))
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body CreateMember
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
		return
	}

	created, err := h.svc.Create(r.Context(), toServiceCreateInput(body))
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/members/%s", created.ID))
	problem.WriteJSON(w, http.StatusCreated, toAPIMember(created))
}

func (h *Handler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Members []CreateMember `json:"members"`
	}
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
		return
	}

	inputs := make([]service.CreateInput, 0, len(body.Members))
	for _, m := range body.Members {
		inputs = append(inputs, toServiceCreateInput(m))
	}

	created, err := h.svc.CreateBulk(r.Context(), inputs)
	if err != nil {
		h.writeError(w, r, err, createBulkOperation)
		return
	}

	items := make([]Member, 0, len(created))
	for _, m := range created {
		items = append(items, toAPIMember(m))
	}
	problem.WriteJSON(w, http.StatusCreated, map[string]any{"items": items})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	member, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIMember(member))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body UpdateMember
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
		return
	}

	updated, err := h.svc.Update(r.Context(), id, service.UpdateInput(body))
	if err != nil {
		h.writeError(w, r, err, updateOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIMember(updated))
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

func toAPIMember(m service.Member) Member {
	out := Member{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		Address:   m.Address,
		Groups:    m.Groups,
		Status:    string(m.Status),
		JoinedAt:  m.JoinedAt.Format(dateLayout),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if out.Groups == nil {
		out.Groups = []string{}
	}
	if m.DateOfBirth != nil {
		dob := m.DateOfBirth.Format(dateLayout)
		out.DateOfBirth = &dob
	}
	return out
}

func toServiceCreateInput(body CreateMember) service.CreateInput {
	return service.CreateInput{
		Name:        body.Name,
		Email:       body.Email,
		Phone:       body.Phone,
		Address:     body.Address,
		DateOfBirth: body.DateOfBirth,
		Groups:      body.Groups,
		Status:      body.Status,
		JoinedAt:    body.JoinedAt,
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
	status, title, detail, problemType, fields := h.classifyError(err)

	logger := h.loggerFrom(ctx)
	fieldsForLog := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", status),
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("members operation failed", append(fieldsForLog, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("members resource not found", append(fieldsForLog, zap.Error(err))...)
	default:
		logger.Warn("members request rejected", append(fieldsForLog, zap.Error(err))...)
	}

	return problem.New(status, title, detail, problemType, fields)
}

func (h *Handler) classifyError(err error) (status int, title, detail, problemType string, fieldErrors map[string][]string) {
	var validationErr *validation.Error
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest,
			"Validation failed",
			"one or more fields are invalid",
			problem.TypeValidation,
			validationErr.Fields
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound,
			"Resource not found",
			"member not found",
			problem.TypeNotFound,
			nil
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict,
			"Conflict",
			"member conflict",
			problem.TypeConflict,
			nil
	case errors.Is(err, service.ErrTenantRequired):
		return http.StatusForbidden,
			"Forbidden",
			"a church is required for this operation",
			problem.TypeForbidden,
			nil
	default:
		return http.StatusInternalServerError,
			"Internal server error",
			"an unexpected error occurred",
			problem.TypeInternal,
			nil
	}
}

func (h *Handler) loggerFrom(ctx context.Context) *zap.Logger {
	return platformlogging.FromContextOr(ctx, h.logger)
}
