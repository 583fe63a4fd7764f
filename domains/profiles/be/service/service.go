package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/domains/profiles/be/repo"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/access"
	platformauth "github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
	tenantmiddleware "github.com/wilsonllucena/igreja-conciliada/platform/go/tenant/middleware"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

// Domain sentinel errors.
var (
	ErrNotFound        = errors.New("profile not found")
	ErrConflict        = errors.New("profile conflict")
	ErrTenantRequired  = errors.New("tenant required")
	ErrUnauthenticated = errors.New("not signed in")
)

// Profile represents the domain view of a profile record.
type Profile struct {
	ID        uuid.UUID
	TenantID  *uuid.UUID
	Name      string
	Email     string
	Phone     *string
	Role      access.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpdateInput encapsulates fields that can be modified by administrators.
type UpdateInput struct {
	Name  *string
	Phone *string
	Role  *string
}

// UpdateSelfInput encapsulates fields that the signed-in user can modify.
type UpdateSelfInput struct {
	Name  *string
	Phone *string
}

// ScopeInvalidator forgets a user's cached tenant scope.
type ScopeInvalidator interface {
	Invalidate(userID uuid.UUID)
}

// Service defines the business operations for the profiles domain.
type Service interface {
	List(ctx context.Context) ([]Profile, error)
	Get(ctx context.Context, id uuid.UUID) (Profile, error)
	Me(ctx context.Context) (Profile, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Profile, error)
	UpdateSelf(ctx context.Context, input UpdateSelfInput) (Profile, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ResolveScope(ctx context.Context, userID uuid.UUID) (tenant.Scope, error)
}

// Deps carries the collaborators beyond the repository. Both are optional.
type Deps struct {
	Scopes ScopeInvalidator
	Logger *zap.Logger
}

type service struct {
	repo   repo.Repository
	scopes ScopeInvalidator
	logger *zap.Logger
}

// New constructs a profiles Service instance backed by the provided repository.
func New(r repo.Repository, deps Deps) Service {
	if r == nil {
		panic("profiles repository is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &service{repo: r, scopes: deps.Scopes, logger: deps.Logger}
}

func (s *service) List(ctx context.Context) ([]Profile, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, mapPersistenceError(err)
	}

	profiles := make([]Profile, 0, len(records))
	for _, record := range records {
		profiles = append(profiles, mapProfile(record))
	}
	return profiles, nil
}

// Get returns a profile of the caller's tenant.
func (s *service) Get(ctx context.Context, id uuid.UUID) (Profile, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return Profile{}, ErrTenantRequired
	}
	if id == uuid.Nil {
		return Profile{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Profile{}, mapPersistenceError(err)
	}
	if record.TenantID == nil || *record.TenantID != scope.TenantID {
		return Profile{}, ErrNotFound
	}
	return mapProfile(record), nil
}

func (s *service) Me(ctx context.Context) (Profile, error) {
	id, err := callerID(ctx)
	if err != nil {
		return Profile{}, err
	}

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Profile{}, mapPersistenceError(err)
	}
	return mapProfile(record), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Profile, error) {
	if id == uuid.Nil {
		return Profile{}, ErrNotFound
	}

	params, err := buildUpdateParams(input)
	if err != nil {
		return Profile{}, err
	}

	record, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return Profile{}, mapPersistenceError(err)
	}
	s.invalidate(id)
	return mapProfile(record), nil
}

// UpdateSelf edits the caller's name and phone. The merged profile must still
// satisfy the profile schema.
func (s *service) UpdateSelf(ctx context.Context, input UpdateSelfInput) (Profile, error) {
	id, err := callerID(ctx)
	if err != nil {
		return Profile{}, err
	}
	if input.Name == nil && input.Phone == nil {
		return Profile{}, &validation.Error{Fields: map[string][]string{"payload": {"at least one field must be provided"}}}
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Profile{}, mapPersistenceError(err)
	}

	var name, phone *string
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		name = &trimmed
		current.Name = trimmed
	}
	if input.Phone != nil {
		trimmed := strings.TrimSpace(*input.Phone)
		phone = &trimmed
		current.Phone = &trimmed
	}
	if err := validation.Validate(validation.Profile, schemaView(current)); err != nil {
		return Profile{}, err
	}

	record, err := s.repo.UpdateOwn(ctx, id, name, phone)
	if err != nil {
		return Profile{}, mapPersistenceError(err)
	}
	return mapProfile(record), nil
}

// Delete removes the profile row only; the identity stays and can sign in
// again without a profile.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrNotFound
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapPersistenceError(err)
	}
	s.invalidate(id)
	return nil
}

// ResolveScope maps a signed-in identity to its tenant and role. A profile
// without a church yields a scope with a nil tenant.
func (s *service) ResolveScope(ctx context.Context, userID uuid.UUID) (tenant.Scope, error) {
	record, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return tenant.Scope{}, tenantmiddleware.ErrNoProfile
		}
		return tenant.Scope{}, err
	}

	scope := tenant.Scope{UserID: userID}
	if record.TenantID != nil {
		scope.TenantID = *record.TenantID
	}
	if role, ok := access.ParseRole(record.Role); ok {
		scope.Role = string(role)
	} else {
		s.logger.Warn("profile has an unknown role", zap.String("user_id", userID.String()), zap.String("role", record.Role))
	}
	return scope, nil
}

func (s *service) invalidate(id uuid.UUID) {
	if s.scopes != nil {
		s.scopes.Invalidate(id)
	}
}

func buildUpdateParams(input UpdateInput) (persistence.UpdateProfileParams, error) {
	verr := &validation.Error{}
	params := persistence.UpdateProfileParams{}
	fieldsSet := 0

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			verr.Add("name", "cannot be empty")
		} else {
			params.Name = &name
			fieldsSet++
		}
	}
	if input.Phone != nil {
		phone := strings.TrimSpace(*input.Phone)
		params.Phone = &phone
		fieldsSet++
	}
	if input.Role != nil {
		role, ok := access.ParseRole(*input.Role)
		if !ok {
			verr.Add("role", "must be one of admin, leader, member")
		} else {
			value := string(role)
			params.Role = &value
			fieldsSet++
		}
	}

	if fieldsSet == 0 && len(verr.Fields) == 0 {
		verr.Add("payload", "at least one field must be provided")
	}
	if err := verr.OrNil(); err != nil {
		return persistence.UpdateProfileParams{}, err
	}
	return params, nil
}

type profileDocument struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone,omitempty"`
	Role  string  `json:"role"`
}

func schemaView(p persistence.Profile) profileDocument {
	doc := profileDocument{ID: p.ID.String(), Name: p.Name, Email: p.Email, Role: p.Role}
	if p.Phone != nil && *p.Phone != "" {
		doc.Phone = p.Phone
	}
	return doc
}

func callerID(ctx context.Context) (uuid.UUID, error) {
	creds, ok := platformauth.UserFromContext(ctx)
	if !ok || creds == nil {
		return uuid.Nil, ErrUnauthenticated
	}
	id, err := uuid.Parse(creds.Id)
	if err != nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return id, nil
}

func mapProfile(record persistence.Profile) Profile {
	role, _ := access.ParseRole(record.Role)
	return Profile{
		ID:        record.ID,
		TenantID:  record.TenantID,
		Name:      record.Name,
		Email:     record.Email,
		Phone:     record.Phone,
		Role:      role,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
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
	default:
		return err
	}
}
