package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/domains/profiles/be/service"
	platformlogging "github.com/wilsonllucena/igreja-conciliada/platform/go/logging"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/problem"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

type operation string

const (
	listOperation     operation = "usersList"
	getOperation      operation = "usersGet"
	updateOperation   operation = "usersUpdate"
	meGetOperation    operation = "usersMe"
	meUpdateOperation operation = "usersUpdateMe"
	deleteOperation   operation = "usersDelete"
)

// User is the JSON representation of a profile.
type User struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  *uuid.UUID `json:"tenantId,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     *string    `json:"phone,omitempty"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// UpdateUser is the admin update request body.
type UpdateUser struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Role  *string `json:"role,omitempty"`
}

// UpdateMe is the self-service update request body.
type UpdateMe struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// Handler exposes the profiles service over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("profiles service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, logger: logger}
}

// List implements GET /users.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}

	items := make([]User, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, toAPIUser(p))
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	profile, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIUser(profile))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body UpdateUser
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
		return
	}

	updated, err := h.svc.Update(r.Context(), id, service.UpdateInput(body))
	if err != nil {
		h.writeError(w, r, err, updateOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIUser(updated))
}

// Delete removes the profile; the sign-in identity is left in place.
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

// Me implements GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.Me(r.Context())
	if err != nil {
		h.writeError(w, r, err, meGetOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIUser(profile))
}

// UpdateMe implements PUT /me.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var body UpdateMe
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
		return
	}

	updated, err := h.svc.UpdateSelf(r.Context(), service.UpdateSelfInput(body))
	if err != nil {
		h.writeError(w, r, err, meUpdateOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIUser(updated))
}

func toAPIUser(p service.Profile) User {
	return User{
		ID:        p.ID,
		TenantID:  p.TenantID,
		Name:      p.Name,
		Email:     p.Email,
		Phone:     p.Phone,
		Role:      string(p.Role),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
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
		logger.Error("users operation failed", fieldsForLog...)
	case status == http.StatusNotFound:
		logger.Info("users resource not found", fieldsForLog...)
	default:
		logger.Warn("users request rejected", fieldsForLog...)
	}

	return problem.New(status, title, detail, problemType, fields)
}

func classifyError(err error) (status int, title, detail, problemType string, fieldErrors map[string][]string) {
	var validationErr *validation.Error
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "Validation failed", "one or more fields are invalid", problem.TypeValidation, validationErr.Fields
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, "Unauthorized", "sign in to continue", problem.TypeUnauthorized, nil
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "Resource not found", "user not found", problem.TypeNotFound, nil
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "Conflict", "user conflict", problem.TypeConflict, nil
	case errors.Is(err, service.ErrTenantRequired):
		return http.StatusForbidden, "Forbidden", "a church is required for this operation", problem.TypeForbidden, nil
	default:
		return http.StatusInternalServerError, "Internal server error", "an unexpected error occurred", problem.TypeInternal, nil
	}
}
