package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/service"
	platformauth "github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	platformlogging "github.com/wilsonllucena/igreja-conciliada/platform/go/logging"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/problem"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/saga"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

type operation string

const (
	signUpOperation     operation = "authSignUp"
	signInOperation     operation = "authSignIn"
	signOutOperation    operation = "authSignOut"
	sessionOperation    operation = "authSession"
	passwordOperation   operation = "authUpdatePassword"
	createUserOperation operation = "usersCreate"
)

// Profile is the JSON representation of a signed-in user's profile.
type Profile struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  *uuid.UUID `json:"tenantId,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     *string    `json:"phone,omitempty"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// User is the identity half of a session.
type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	EmailConfirmed bool      `json:"emailConfirmed"`
	Name           string    `json:"name,omitempty"`
}

// Session is returned by sign-in and session restore.
type Session struct {
	AccessToken string     `json:"accessToken"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	User        User       `json:"user"`
	Profile     *Profile   `json:"profile,omitempty"`
}

// Account is returned by sign-up and user creation.
type Account struct {
	User    User    `json:"user"`
	Profile Profile `json:"profile"`
}

// SignUp is the sign-up request body.
type SignUp struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	Name             string `json:"name"`
	OrganizationName string `json:"organizationName,omitempty"`
}

// SignIn is the sign-in request body.
type SignIn struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdatePassword is the password change request body.
type UpdatePassword struct {
	Password string `json:"password"`
}

// CreateUser is the admin request to add a user to the church.
type CreateUser struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Role     string  `json:"role"`
	Phone    *string `json:"phone,omitempty"`
}

// Handler exposes the accounts service over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("accounts service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// SignUp implements POST /auth/signup.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var body SignUp
	if err := problem.DecodeJSON(r, &body); err != nil {
		writeBadBody(w, err)
		return
	}

	account, err := h.svc.SignUp(r.Context(), service.SignUpInput{
		Email:            body.Email,
		Password:         body.Password,
		Name:             body.Name,
		OrganizationName: body.OrganizationName,
	})
	if err != nil {
		h.writeError(w, r, err, signUpOperation)
		return
	}
	problem.WriteJSON(w, http.StatusCreated, toAPIAccount(account))
}

// SignIn implements POST /auth/signin.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var body SignIn
	if err := problem.DecodeJSON(r, &body); err != nil {
		writeBadBody(w, err)
		return
	}

	session, err := h.svc.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		h.writeError(w, r, err, signInOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPISession(session))
}

// SignOut implements POST /auth/signout.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	token, ok := platformauth.BearerToken(r)
	if !ok {
		h.writeError(w, r, service.ErrUnauthenticated, signOutOperation)
		return
	}
	if err := h.svc.SignOut(r.Context(), token); err != nil {
		h.writeError(w, r, err, signOutOperation)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session implements GET /auth/session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	token, ok := platformauth.BearerToken(r)
	if !ok {
		h.writeError(w, r, service.ErrUnauthenticated, sessionOperation)
		return
	}
	session, err := h.svc.Session(r.Context(), token)
	if err != nil {
		h.writeError(w, r, err, sessionOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPISession(session))
}

// UpdatePassword implements PUT /auth/password.
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var body UpdatePassword
	if err := problem.DecodeJSON(r, &body); err != nil {
		writeBadBody(w, err)
		return
	}
	if err := h.svc.UpdatePassword(r.Context(), body.Password); err != nil {
		h.writeError(w, r, err, passwordOperation)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateUser implements POST /users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var body CreateUser
	if err := problem.DecodeJSON(r, &body); err != nil {
		writeBadBody(w, err)
		return
	}

	account, err := h.svc.CreateUser(r.Context(), service.CreateUserInput(body))
	if err != nil {
		h.writeError(w, r, err, createUserOperation)
		return
	}
	w.Header().Set("Location", "/api/v1/users/"+account.Profile.ID.String())
	problem.WriteJSON(w, http.StatusCreated, toAPIAccount(account))
}

func writeBadBody(w http.ResponseWriter, err error) {
	problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", err.Error(), problem.TypeValidation, nil))
}

func toAPIUser(identity platformauth.Identity) User {
	return User{ID: identity.ID, Email: identity.Email, EmailConfirmed: identity.EmailConfirmed, Name: identity.Name}
}

func toAPIProfile(p service.Profile) Profile {
	return Profile{
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

func toAPIAccount(a service.Account) Account {
	return Account{User: toAPIUser(a.Identity), Profile: toAPIProfile(a.Profile)}
}

func toAPISession(s service.Session) Session {
	out := Session{AccessToken: s.AccessToken, User: toAPIUser(s.Identity)}
	if !s.ExpiresAt.IsZero() {
		expiresAt := s.ExpiresAt
		out.ExpiresAt = &expiresAt
	}
	if s.Profile != nil {
		p := toAPIProfile(*s.Profile)
		out.Profile = &p
	}
	return out
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, op operation) {
	p := classifyError(err)

	logger := platformlogging.FromContextOr(r.Context(), h.logger)
	fieldsForLog := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", p.Status),
		zap.Error(err),
	}
	if saga.NeedsCleanup(err) {
		fieldsForLog = append(fieldsForLog, zap.Bool("cleanupRequired", true))
	}

	switch {
	case p.Status >= http.StatusInternalServerError:
		logger.Error("accounts operation failed", fieldsForLog...)
	default:
		logger.Warn("accounts request rejected", fieldsForLog...)
	}

	problem.Write(w, p)
}

// classifyError maps auth kinds to their status; the detail carries the
// localized message so clients can show it as is.
func classifyError(err error) problem.Details {
	var (
		validationErr *validation.Error
		authErr       *platformauth.Error
	)
	switch {
	case errors.As(err, &validationErr):
		return problem.New(http.StatusBadRequest, "Validation failed", "one or more fields are invalid", problem.TypeValidation, validationErr.Fields)
	case errors.As(err, &authErr):
		status := http.StatusInternalServerError
		switch authErr.Kind {
		case platformauth.KindInvalidCredentials:
			status = http.StatusUnauthorized
		case platformauth.KindEmailUnconfirmed:
			status = http.StatusForbidden
		case platformauth.KindAlreadyRegistered:
			status = http.StatusConflict
		}
		p := problem.New(status, "Authentication failed", authErr.Kind.Message(), problem.TypeAuth, nil)
		p.Code = string(authErr.Kind)
		return p
	case errors.Is(err, service.ErrUnauthenticated):
		return problem.New(http.StatusUnauthorized, "Unauthorized", "sign in required", problem.TypeUnauthorized, nil)
	case errors.Is(err, service.ErrForbidden):
		return problem.New(http.StatusForbidden, "Forbidden", "admin role required", problem.TypeForbidden, nil)
	case errors.Is(err, service.ErrTenantRequired):
		return problem.New(http.StatusForbidden, "Forbidden", "a church is required for this operation", problem.TypeForbidden, nil)
	case errors.Is(err, service.ErrConflict):
		return problem.New(http.StatusConflict, "Conflict", "profile already exists", problem.TypeConflict, nil)
	default:
		return problem.New(http.StatusInternalServerError, "Internal server error", "an unexpected error occurred", problem.TypeInternal, nil)
	}
}
