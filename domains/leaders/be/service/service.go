package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	accountsservice "github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/service"
	"github.com/wilsonllucena/igreja-conciliada/domains/leaders/be/repo"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/access"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/metrics"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/saga"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

// Domain sentinel errors.
var (
	ErrNotFound       = errors.New("leader not found")
	ErrConflict       = errors.New("leader conflict")
	ErrAlreadyLinked  = errors.New("leader already has a user")
	ErrTenantRequired = errors.New("tenant required")
)

// Types lists the accepted leader_type values.
var Types = []string{"Pastor", "Líder de Louvor", "Líder de Jovens", "Líder Infantil", "Diácono", "Presbítero"}

// Leader represents the domain view of a leader record.
type Leader struct {
	ID                         uuid.UUID
	TenantID                   uuid.UUID
	Name                       string
	Email                      string
	Phone                      string
	Type                       string
	Permissions                []access.Capability
	IsAvailableForAppointments bool
	UserID                     *uuid.UUID
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// CreateInput is validated against the leader schema.
type CreateInput struct {
	Name                       string   `json:"name,omitempty"`
	Email                      string   `json:"email,omitempty"`
	Phone                      string   `json:"phone,omitempty"`
	Type                       string   `json:"type,omitempty"`
	Permissions                []string `json:"permissions,omitempty"`
	IsAvailableForAppointments *bool    `json:"is_available_for_appointments,omitempty"`
}

// UpdateInput holds the fields to change; nil fields are left untouched.
type UpdateInput struct {
	Name                       *string
	Email                      *string
	Phone                      *string
	Type                       *string
	Permissions                *[]string
	IsAvailableForAppointments *bool
}

// Provisioner creates and removes the login behind a leader.
type Provisioner interface {
	Provision(ctx context.Context, input accountsservice.ProvisionInput) (accountsservice.Account, error)
	Deprovision(ctx context.Context, userID uuid.UUID) error
}

// Service defines the business operations for the leaders domain.
type Service interface {
	List(ctx context.Context) ([]Leader, error)
	ListAvailable(ctx context.Context) ([]Leader, error)
	Create(ctx context.Context, input CreateInput) (Leader, error)
	Get(ctx context.Context, id uuid.UUID) (Leader, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Leader, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CreateUserForLeader(ctx context.Context, id uuid.UUID, password string) (Leader, error)
}

// Deps carries the optional collaborators.
type Deps struct {
	Accounts Provisioner
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

type service struct {
	repo repo.Repository
	deps Deps
}

// New constructs a leaders Service. Deps.Accounts is needed only by
// CreateUserForLeader.
func New(r repo.Repository, deps Deps) Service {
	if r == nil {
		panic("leaders repository is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &service{repo: r, deps: deps}
}

func (s *service) List(ctx context.Context) ([]Leader, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	return mapLeaders(records), nil
}

func (s *service) ListAvailable(ctx context.Context) ([]Leader, error) {
	records, err := s.repo.ListAvailable(ctx)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	return mapLeaders(records), nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (Leader, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)

	if err := validation.Validate(validation.Leader, input); err != nil {
		return Leader{}, err
	}

	record, err := s.repo.Create(ctx, persistence.CreateLeaderParams{
		ID:                         uuid.New(),
		Name:                       input.Name,
		Email:                      input.Email,
		Phone:                      input.Phone,
		Type:                       input.Type,
		Permissions:                input.Permissions,
		IsAvailableForAppointments: input.IsAvailableForAppointments,
	})
	if err != nil {
		return Leader{}, mapPersistenceError(err)
	}
	return mapLeader(record), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (Leader, error) {
	if id == uuid.Nil {
		return Leader{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Leader{}, mapPersistenceError(err)
	}
	return mapLeader(record), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Leader, error) {
	if id == uuid.Nil {
		return Leader{}, ErrNotFound
	}

	params, err := buildUpdateParams(input)
	if err != nil {
		return Leader{}, err
	}

	record, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return Leader{}, mapPersistenceError(err)
	}
	return mapLeader(record), nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrNotFound
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapPersistenceError(err)
	}
	return nil
}

// CreateUserForLeader provisions a login with role leader for the leader's
// email and links it. A failed link removes the login again, so user_id is
// either set to a working account or left NULL.
func (s *service) CreateUserForLeader(ctx context.Context, id uuid.UUID, password string) (Leader, error) {
	if s.deps.Accounts == nil {
		return Leader{}, errors.New("leaders service has no account provisioner")
	}
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return Leader{}, ErrTenantRequired
	}

	leader, err := s.Get(ctx, id)
	if err != nil {
		return Leader{}, err
	}
	if leader.UserID != nil {
		return Leader{}, ErrAlreadyLinked
	}

	verr := &validation.Error{}
	verr.CheckPassword("password", password)
	if err := verr.OrNil(); err != nil {
		return Leader{}, err
	}

	var (
		account accountsservice.Account
		linked  persistence.Leader
	)
	phone := leader.Phone
	result := saga.Run(ctx, s.deps.Logger,
		saga.Step{
			Name: "provision_account",
			Do: func(ctx context.Context) (err error) {
				account, err = s.deps.Accounts.Provision(ctx, accountsservice.ProvisionInput{
					TenantID: scope.TenantID,
					Name:     leader.Name,
					Email:    leader.Email,
					Password: password,
					Phone:    &phone,
					Role:     access.RoleLeader,
				})
				return err
			},
			Compensate: func(ctx context.Context) error {
				return s.deps.Accounts.Deprovision(ctx, account.Identity.ID)
			},
		},
		saga.Step{
			Name: "link_user",
			Do: func(ctx context.Context) (err error) {
				linked, err = s.repo.LinkUser(ctx, leader.ID, account.Identity.ID)
				return mapLinkError(err)
			},
		},
	)
	s.deps.Metrics.ObserveSaga("leader_user", string(result.Outcome))
	if err := result.Err(); err != nil {
		return Leader{}, err
	}
	return mapLeader(linked), nil
}

func buildUpdateParams(input UpdateInput) (persistence.UpdateLeaderParams, error) {
	verr := &validation.Error{}
	params := persistence.UpdateLeaderParams{
		Permissions:                input.Permissions,
		IsAvailableForAppointments: input.IsAvailableForAppointments,
	}
	fieldsSet := 0

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			verr.Add("name", "cannot be empty")
		}
		params.Name = &name
		fieldsSet++
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" {
			verr.Add("email", "cannot be empty")
		}
		params.Email = &email
		fieldsSet++
	}
	if input.Phone != nil {
		phone := strings.TrimSpace(*input.Phone)
		params.Phone = &phone
		fieldsSet++
	}
	if input.Type != nil {
		if !validType(*input.Type) {
			verr.Add("type", "must be one of "+strings.Join(Types, ", "))
		}
		params.Type = input.Type
		fieldsSet++
	}
	if input.Permissions != nil {
		for _, p := range *input.Permissions {
			if !validPermission(p) {
				verr.Add("permissions", "unknown permission "+p)
			}
		}
		fieldsSet++
	}
	if input.IsAvailableForAppointments != nil {
		fieldsSet++
	}

	if fieldsSet == 0 {
		verr.Add("payload", "at least one field must be provided")
	}
	if err := verr.OrNil(); err != nil {
		return persistence.UpdateLeaderParams{}, err
	}
	return params, nil
}

func validType(t string) bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

func validPermission(p string) bool {
	switch access.Capability(p) {
	case access.ViewMembers, access.CreateAppointments, access.ManageEvents, access.ViewReports, access.EditMemberBasicInfo:
		return true
	}
	return false
}

func mapLeaders(records []persistence.Leader) []Leader {
	leaders := make([]Leader, 0, len(records))
	for _, record := range records {
		leaders = append(leaders, mapLeader(record))
	}
	return leaders
}

func mapLeader(record persistence.Leader) Leader {
	permissions := make([]access.Capability, 0, len(record.Permissions))
	for _, p := range record.Permissions {
		permissions = append(permissions, access.Capability(p))
	}
	return Leader{
		ID:                         record.ID,
		TenantID:                   record.TenantID,
		Name:                       record.Name,
		Email:                      record.Email,
		Phone:                      record.Phone,
		Type:                       record.Type,
		Permissions:                permissions,
		IsAvailableForAppointments: record.IsAvailableForAppointments,
		UserID:                     record.UserID,
		CreatedAt:                  record.CreatedAt,
		UpdatedAt:                  record.UpdatedAt,
	}
}

func mapLinkError(err error) error {
	if errors.Is(err, persistence.ErrConflict) {
		return ErrAlreadyLinked
	}
	return mapPersistenceError(err)
}

func mapPersistenceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConflict):
		return ErrConflict
	case errors.Is(err, persistence.ErrTenantRequired):
		return ErrTenantRequired
	case errors.Is(err, persistence.ErrInvalidValue):
		return &validation.Error{Fields: map[string][]string{"payload": {err.Error()}}}
	default:
		return err
	}
}
