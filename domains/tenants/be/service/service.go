package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/access"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/pubsub"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/storage"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

// Errors returned by the service layer.
var (
	ErrNotFound       = errors.New("tenant not found")
	ErrConflictSlug   = errors.New("tenant slug already exists")
	ErrTenantRequired = errors.New("tenant required")
	ErrForbidden      = errors.New("admin role required")
)

// maxSlugAttempts bounds the "-2", "-3", ... suffixes tried for a taken slug.
const maxSlugAttempts = 50

// Tenant represents a church.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	Logo      *string
	Address   *string
	Phone     *string
	Email     *string
	Website   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput represents the request to create a tenant. An empty Slug is
// derived from Name.
type CreateInput struct {
	Name string
	Slug string
}

// SettingsInput holds the editable church settings; nil fields are left untouched.
type SettingsInput struct {
	Name    *string `json:"name,omitempty"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
	Website *string `json:"website,omitempty"`
}

// Stats are the dashboard counters of the current tenant.
type Stats struct {
	ActiveMembers        int
	Leaders              int
	UpcomingEvents       int
	UpcomingAppointments int
}

// Repository abstracts persistence.
type Repository interface {
	Create(ctx context.Context, t Tenant) (Tenant, error)
	Get(ctx context.Context, id uuid.UUID) (Tenant, error)
	SlugTaken(ctx context.Context, slug string) (bool, error)
	Update(ctx context.Context, id uuid.UUID, params persistence.UpdateTenantParams) (Tenant, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service provides tenant operations.
type Service struct {
	repo Repository
	deps Deps
}

// New constructs a Service with required dependencies.
func New(repo Repository, deps Deps) *Service {
	if repo == nil {
		panic("tenants repo is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{repo: repo, deps: deps}
}

// Updates exposes the tenant-updated topic, if configured.
func (s *Service) Updates() *pubsub.Topic[tenant.Updated] {
	return s.deps.Updates
}

// Create inserts a tenant with a unique slug derived from the name.
func (s *Service) Create(ctx context.Context, input CreateInput) (Tenant, error) {
	name := strings.TrimSpace(input.Name)
	verr := &validation.Error{}
	if len([]rune(name)) < 2 {
		verr.Add("name", "must be at least 2 characters")
	}

	base := input.Slug
	if strings.TrimSpace(base) == "" {
		base = name
	}
	slug, err := persistence.SlugFromName(base)
	if err != nil {
		verr.Add("slug", err.Error())
	}
	if err := verr.OrNil(); err != nil {
		return Tenant{}, err
	}

	slug, err = s.uniqueSlug(ctx, slug)
	if err != nil {
		return Tenant{}, err
	}

	created, err := s.repo.Create(ctx, Tenant{ID: uuid.New(), Name: name, Slug: slug})
	if err != nil {
		return Tenant{}, err
	}
	return created, nil
}

func (s *Service) uniqueSlug(ctx context.Context, base string) (string, error) {
	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		taken, err := s.repo.SlugTaken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", ErrConflictSlug
}

// Get returns a tenant by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Tenant, error) {
	return s.repo.Get(ctx, id)
}

// Current returns the caller's tenant.
func (s *Service) Current(ctx context.Context) (Tenant, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return Tenant{}, ErrTenantRequired
	}
	return s.repo.Get(ctx, scope.TenantID)
}

// Delete removes a tenant. Sign-up uses it as a compensation step.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// UpdateSettings applies church settings. Admin only.
func (s *Service) UpdateSettings(ctx context.Context, input SettingsInput) (Tenant, error) {
	scope, err := requireAdmin(ctx)
	if err != nil {
		return Tenant{}, err
	}

	if input == (SettingsInput{}) {
		return Tenant{}, &validation.Error{Fields: map[string][]string{"payload": {"at least one field must be provided"}}}
	}
	if err := validation.Validate(validation.TenantSettings, input); err != nil {
		return Tenant{}, err
	}

	updated, err := s.repo.Update(ctx, scope.TenantID, persistence.UpdateTenantParams{
		Name:    trimmed(input.Name),
		Address: trimmed(input.Address),
		Phone:   trimmed(input.Phone),
		Email:   trimmed(input.Email),
		Website: trimmed(input.Website),
	})
	if err != nil {
		return Tenant{}, err
	}

	s.publish(ctx, updated)
	return updated, nil
}

// UploadLogo stores the church logo at {tenantID}.{ext}, replacing any
// previous file, and publishes tenant.Updated. Admin only.
func (s *Service) UploadLogo(ctx context.Context, filename, contentType string, r io.Reader) (Tenant, error) {
	scope, err := requireAdmin(ctx)
	if err != nil {
		return Tenant{}, err
	}
	if s.deps.Logos == nil {
		return Tenant{}, errors.New("logo bucket not configured")
	}
	if !storage.AllowedImage(contentType) {
		return Tenant{}, &validation.Error{Fields: map[string][]string{"file": {"must be a PNG, JPEG, WebP, GIF or SVG image"}}}
	}

	objectPath := storage.LogoPath(scope.TenantID, filename, contentType)
	if err := s.deps.Logos.Upload(ctx, objectPath, r, contentType, true); err != nil {
		return Tenant{}, fmt.Errorf("upload logo: %w", err)
	}

	url := s.deps.Logos.PublicURL(objectPath)
	updated, err := s.repo.Update(ctx, scope.TenantID, persistence.UpdateTenantParams{Logo: &url})
	if err != nil {
		return Tenant{}, err
	}

	s.publish(ctx, updated)
	return updated, nil
}

// Stats computes the dashboard counters concurrently.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return Stats{}, ErrTenantRequired
	}
	if s.deps.Stats == nil {
		return Stats{}, errors.New("stats counter not configured")
	}

	now := s.deps.Now()
	var out Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.ActiveMembers, err = s.deps.Stats.CountActiveMembers(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		out.Leaders, err = s.deps.Stats.CountLeaders(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		out.UpcomingEvents, err = s.deps.Stats.CountUpcomingEvents(gctx, scope, now)
		return err
	})
	g.Go(func() (err error) {
		out.UpcomingAppointments, err = s.deps.Stats.CountUpcomingAppointments(gctx, scope, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, fmt.Errorf("compute stats: %w", err)
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, t Tenant) {
	if s.deps.Updates == nil {
		return
	}
	s.deps.Updates.Publish(ctx, tenant.Updated{TenantID: t.ID, Logo: t.Logo, UpdatedAt: t.UpdatedAt})
}

func requireAdmin(ctx context.Context) (tenant.Scope, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return tenant.Scope{}, ErrTenantRequired
	}
	role, _ := access.ParseRole(scope.Role)
	if !role.IsAdmin() {
		return tenant.Scope{}, ErrForbidden
	}
	return scope, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
