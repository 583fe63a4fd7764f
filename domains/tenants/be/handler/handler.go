package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/service"
	platformlogging "github.com/wilsonllucena/igreja-conciliada/platform/go/logging"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/problem"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/storage"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

type operation string

const (
	currentOperation  operation = "tenantCurrent"
	settingsOperation operation = "tenantUpdateSettings"
	logoOperation     operation = "tenantUploadLogo"
	statsOperation    operation = "tenantStats"
)

// Tenant is the JSON representation of a church.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Logo      *string   `json:"logo,omitempty"`
	Address   *string   `json:"address,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Website   *string   `json:"website,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stats is the JSON representation of the dashboard counters.
type Stats struct {
	ActiveMembers        int `json:"activeMembers"`
	Leaders              int `json:"leaders"`
	UpcomingEvents       int `json:"upcomingEvents"`
	UpcomingAppointments int `json:"upcomingAppointments"`
}

// UpdateSettings is the church settings request body.
type UpdateSettings struct {
	Name    *string `json:"name,omitempty"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
	Website *string `json:"website,omitempty"`
}

// Handler exposes the tenants service over HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("tenants service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Current implements GET /tenant.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Current(r.Context())
	if err != nil {
		h.writeError(w, r, err, currentOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPITenant(t))
}

// UpdateSettings implements PUT /tenant/settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body UpdateSettings
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
		return
	}

	t, err := h.svc.UpdateSettings(r.Context(), service.SettingsInput(body))
	if err != nil {
		h.writeError(w, r, err, settingsOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPITenant(t))
}

// UploadLogo implements PUT /tenant/logo?filename=. The body is the raw image.
func (h *Handler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	contentType := storage.ContentTypeFor(filename, r.Header.Get("Content-Type"))
	body := http.MaxBytesReader(w, r.Body, storage.MaxImageBytes)
	defer body.Close()

	t, err := h.svc.UploadLogo(r.Context(), filename, contentType, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			problem.Write(w, problem.New(http.StatusRequestEntityTooLarge, "Payload too large", "logo must be at most 5 MiB", problem.TypeValidation, nil))
			return
		}
		h.writeError(w, r, err, logoOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPITenant(t))
}

// Stats implements GET /tenant/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err, statsOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, Stats(stats))
}

func toAPITenant(t service.Tenant) Tenant {
	return Tenant{
		ID:        t.ID,
		Name:      t.Name,
		Slug:      t.Slug,
		Logo:      t.Logo,
		Address:   t.Address,
		Phone:     t.Phone,
		Email:     t.Email,
		Website:   t.Website,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, op operation) {
	status, title, detail, problemType, fields := h.classifyError(err)

	logger := h.loggerFrom(r.Context())
	fieldsForLog := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", status),
		zap.Error(err),
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("tenants operation failed", fieldsForLog...)
	case status == http.StatusNotFound:
		logger.Info("tenants resource not found", fieldsForLog...)
	default:
		logger.Warn("tenants request rejected", fieldsForLog...)
	}

	problem.Write(w, problem.New(status, title, detail, problemType, fields))
}

func (h *Handler) classifyError(err error) (status int, title, detail, problemType string, fields map[string][]string) {
	var validationErr *validation.Error
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "Validation failed", "one or more fields are invalid", problem.TypeValidation, validationErr.Fields
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "Resource not found", "tenant not found", problem.TypeNotFound, nil
	case errors.Is(err, service.ErrConflictSlug):
		return http.StatusConflict, "Conflict", "tenant slug already exists", problem.TypeConflict, nil
	case errors.Is(err, service.ErrTenantRequired):
		return http.StatusForbidden, "Forbidden", "a church is required for this operation", problem.TypeForbidden, nil
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "Forbidden", "admin role required", problem.TypeForbidden, nil
	default:
		return http.StatusInternalServerError, "Internal server error", "an unexpected error occurred", problem.TypeInternal, nil
	}
}

func (h *Handler) loggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := platformlogging.FromContext(ctx); ok {
		return logger
	}
	return h.logger
}
