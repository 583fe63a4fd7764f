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

	"github.com/wilsonllucena/igreja-conciliada/domains/leaders/be/service"
	platformauth "github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	platformlogging "github.com/wilsonllucena/igreja-conciliada/platform/go/logging"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/problem"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

type operation string

const (
	listOperation          operation = "leadersList"
	listAvailableOperation operation = "leadersListAvailable"
	createOperation        operation = "leadersCreate"
	getOperation           operation = "leadersGet"
	updateOperation        operation = "leadersUpdate"
	deleteOperation        operation = "leadersDelete"
	createUserOperation    operation = "leadersCreateUser"
)

// Leader is the JSON representation of a leader.
type Leader struct {
	ID                         uuid.UUID  `json:"id"`
	TenantID                   uuid.UUID  `json:"tenantId"`
	Name                       string     `json:"name"`
	Email                      string     `json:"email"`
	Phone                      string     `json:"phone"`
	Type                       string     `json:"type"`
	Permissions                []string   `json:"permissions"`
	IsAvailableForAppointments bool       `json:"isAvailableForAppointments"`
	UserID                     *uuid.UUID `json:"userId,omitempty"`
	CreatedAt                  time.Time  `json:"createdAt"`
	UpdatedAt                  time.Time  `json:"updatedAt"`
}

// CreateLeader is the create request body.
type CreateLeader struct {
	Name                       string   `json:"name"`
	Email                      string   `json:"email"`
	Phone                      string   `json:"phone"`
	Type                       string   `json:"type"`
	Permissions                []string `json:"permissions,omitempty"`
	IsAvailableForAppointments *bool    `json:"isAvailableForAppointments,omitempty"`
}

// UpdateLeader is the partial update request body.
type UpdateLeader struct {
	Name                       *string   `json:"name,omitempty"`
	Email                      *string   `json:"email,omitempty"`
	Phone                      *string   `json:"phone,omitempty"`
	Type                       *string   `json:"type,omitempty"`
	Permissions                *[]string `json:"permissions,omitempty"`
	IsAvailableForAppointments *bool     `json:"isAvailableForAppointments,omitempty"`
}

// CreateLeaderUser is the body of POST /leaders/{id}/user.
type CreateLeaderUser struct {
	Password string `json:"password"`
}

// Handler exposes the leaders service over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("leaders service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	leaders, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": toAPILeaders(leaders)})
}

// ListAvailable implements GET /leaders/available.
func (h *Handler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	leaders, err := h.svc.ListAvailable(r.Context())
	if err != nil {
		h.writeError(w, r, err, listAvailableOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": toAPILeaders(leaders)})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body CreateLeader
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
		return
	}

	created, err := h.svc.Create(r.Context(), service.CreateInput(body))
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/leaders/%s", created.ID))
	problem.WriteJSON(w, http.StatusCreated, toAPILeader(created))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	leader, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPILeader(leader))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body UpdateLeader
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
		return
	}

	updated, err := h.svc.Update(r.Context(), id, service.UpdateInput(body))
	if err != nil {
		h.writeError(w, r, err, updateOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPILeader(updated))
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

// CreateUser implements POST /leaders/{id}/user.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body CreateLeaderUser
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
		return
	}

	linked, err := h.svc.CreateUserForLeader(r.Context(), id, body.Password)
	if err != nil {
		h.writeError(w, r, err, createUserOperation)
		return
	}
	problem.WriteJSON(w, http.StatusCreated, toAPILeader(linked))
}

func toAPILeaders(leaders []service.Leader) []Leader {
	items := make([]Leader, 0, len(leaders))
	for _, l := range leaders {
		items = append(items, toAPILeader(l))
	}
	return items
}

func toAPILeader(l service.Leader) Leader {
	permissions := make([]string, 0, len(l.Permissions))
	for _, p := range l.Permissions {
		permissions = append(permissions, string(p))
	}
	return Leader{
		ID:                         l.ID,
		TenantID:                   l.TenantID,
		Name:                       l.Name,
		Email:                      l.Email,
		Phone:                      l.Phone,
		Type:                       l.Type,
		Permissions:                permissions,
		IsAvailableForAppointments: l.IsAvailableForAppointments,
		UserID:                     l.UserID,
		CreatedAt:                  l.CreatedAt,
		UpdatedAt:                  l.UpdatedAt,
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
	p := classifyError(err)

	logger := platformlogging.FromContextOr(ctx, h.logger)
	fieldsForLog := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", p.Status),
		zap.Error(err),
	}

	switch {
	case p.Status >= http.StatusInternalServerError:
		logger.Error("leaders operation failed", fieldsForLog...)
	case p.Status == http.StatusNotFound:
		logger.Info("leaders resource not found", fieldsForLog...)
	default:
		logger.Warn("leaders request rejected", fieldsForLog...)
	}
	return p
}

func classifyError(err error) problem.Details {
	var (
		validationErr *validation.Error
		authErr       *platformauth.Error
	)
	switch {
	case errors.As(err, &validationErr):
		return problem.New(http.StatusBadRequest, "Validation failed", "one or more fields are invalid", problem.TypeValidation, validationErr.Fields)
	case errors.As(err, &authErr) && authErr.Kind == platformauth.KindAlreadyRegistered:
		p := problem.New(http.StatusConflict, "Conflict", authErr.Kind.Message(), problem.TypeAuth, nil)
		p.Code = string(authErr.Kind)
		return p
	case errors.Is(err, service.ErrNotFound):
		return problem.New(http.StatusNotFound, "Resource not found", "leader not found", problem.TypeNotFound, nil)
	case errors.Is(err, service.ErrAlreadyLinked):
		return problem.New(http.StatusConflict, "Conflict", "leader already has a user", problem.TypeConflict, nil)
	case errors.Is(err, service.ErrConflict):
		return problem.New(http.StatusConflict, "Conflict", "leader conflict", problem.TypeConflict, nil)
	case errors.Is(err, service.ErrTenantRequired):
		return problem.New(http.StatusForbidden, "Forbidden", "a church is required for this operation", problem.TypeForbidden, nil)
	default:
		return problem.New(http.StatusInternalServerError, "Internal server error", "an unexpected error occurred", problem.TypeInternal, nil)
	}
}
