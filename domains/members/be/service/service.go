package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wilsonllucena/igreja-conciliada/domains/members/be/repo"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

// Domain sentinel errors.
var (
	ErrNotFound       = errors.New("member not found")
	ErrConflict       = errors.New("member conflict")
	ErrTenantRequired = errors.New("tenant required")
)

const dateLayout = "2006-01-02"

// Status is the member_status enum.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ParseStatus validates a member status value.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusActive, StatusInactive:
		return s, true
	default:
		return "", false
	}
}

// Member represents the domain view of a member record.
type Member struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        string
	Email       string
	Phone       string
	Address     *string
	DateOfBirth *time.Time
	Groups      []string
	Status      Status
	JoinedAt    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateInput is validated against the member schema. Dates use YYYY-MM-DD.
type CreateInput struct {
	Name        string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Address     *string  `json:"address,omitempty"`
	DateOfBirth *string  `json:"date_of_birth,omitempty"`
	Groups      []string `json:"groups,omitempty"`
	Status      *string  `json:"status,omitempty"`
	JoinedAt    *string  `json:"joined_at,omitempty"`
}

// UpdateInput holds the fields to change; nil fields are left untouched.
type UpdateInput struct {
	Name        *string
	Email       *string
	Phone       *string
	Address     *string
	DateOfBirth *string
	Groups      *[]string
	Status      *string
	JoinedAt    *string
}

// Service defines the business operations for the members domain.
type Service interface {
	List(ctx context.Context) ([]Member, error)
	Create(ctx context.Context, input CreateInput) (Member, error)
	CreateBulk(ctx context.Context, inputs []CreateInput) ([]Member, error)
	Get(ctx context.Context, id uuid.UUID) (Member, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Member, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo repo.Repository
}

// New constructs a members Service backed by the provided repository.
func New(r repo.Repository) Service {
	if r == nil {
		panic("members repository is required")
	}
	return &service{repo: r}
}

func (s *service) List(ctx context.Context) ([]Member, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, mapPersistenceError(err)
	}

	members := make([]Member, 0, len(records))
	for _, record := range records {
		members = append(members, mapMember(record))
	}
	return members, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (Member, error) {
	params, err := buildCreateParams(input)
	if err != nil {
		return Member{}, err
	}

	record, err := s.repo.Create(ctx, params)
	if err != nil {
		return Member{}, mapPersistenceError(err)
	}
	return mapMember(record), nil
}

// CreateBulk validates every row before writing any of them. Field paths are
// prefixed with the row index.
func (s *service) CreateBulk(ctx context.Context, inputs []CreateInput) ([]Member, error) {
	verr := &validation.Error{}
	if len(inputs) == 0 {
		verr.Add("members", "at least one member is required")
		return nil, verr
	}

	params := make([]persistence.CreateMemberParams, 0, len(inputs))
	for i, input := range inputs {
		p, err := buildCreateParams(input)
		if err != nil {
			var rowErr *validation.Error
			if !errors.As(err, &rowErr) {
				return nil, err
			}
			for field, messages := range rowErr.Fields {
				for _, m := range messages {
					verr.Add(fmt.Sprintf("members.%d.%s", i, field), m)
				}
			}
			continue
		}
		params = append(params, p)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	records, err := s.repo.CreateMany(ctx, params)
	if err != nil {
		return nil, mapPersistenceError(err)
	}

	members := make([]Member, 0, len(records))
	for _, record := range records {
		members = append(members, mapMember(record))
	}
	return members, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (Member, error) {
	if id == uuid.Nil {
		return Member{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Member{}, mapPersistenceError(err)
	}
	return mapMember(record), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Member, error) {
	if id == uuid.Nil {
		return Member{}, ErrNotFound
	}

	params, err := buildUpdateParams(input)
	if err != nil {
		return Member{}, err
	}

	record, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return Member{}, mapPersistenceError(err)
	}
	return mapMember(record), nil
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

func buildCreateParams(input CreateInput) (persistence.CreateMemberParams, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)

	if err := validation.Validate(validation.Member, input); err != nil {
		return persistence.CreateMemberParams{}, err
	}

	params := persistence.CreateMemberParams{
		ID:      uuid.New(),
		Name:    input.Name,
		Email:   input.Email,
		Phone:   input.Phone,
		Address: input.Address,
		Groups:  input.Groups,
		Status:  input.Status,
	}

	verr := &validation.Error{}
	params.DateOfBirth = parseDate(verr, "date_of_birth", input.DateOfBirth)
	params.JoinedAt = parseDate(verr, "joined_at", input.JoinedAt)
	if err := verr.OrNil(); err != nil {
		return persistence.CreateMemberParams{}, err
	}
	return params, nil
}

func buildUpdateParams(input UpdateInput) (persistence.UpdateMemberParams, error) {
	verr := &validation.Error{}
	params := persistence.UpdateMemberParams{
		Address: input.Address,
		Groups:  input.Groups,
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
	if input.Status != nil {
		status, ok := ParseStatus(*input.Status)
		if !ok {
			verr.Add("status", "must be one of active, inactive")
		}
		value := string(status)
		params.Status = &value
		fieldsSet++
	}
	if input.DateOfBirth != nil {
		params.DateOfBirth = parseDate(verr, "date_of_birth", input.DateOfBirth)
		fieldsSet++
	}
	if input.JoinedAt != nil {
		params.JoinedAt = parseDate(verr, "joined_at", input.JoinedAt)
		fieldsSet++
	}
	if input.Address != nil {
		fieldsSet++
	}
	if input.Groups != nil {
		fieldsSet++
	}

	if fieldsSet == 0 {
		verr.Add("payload", "at least one field must be provided")
	}
	if err := verr.OrNil(); err != nil {
		return persistence.UpdateMemberParams{}, err
	}
	return params, nil
}

func parseDate(verr *validation.Error, field string, raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(*raw))
	if err != nil {
		verr.Add(field, "must be a date (YYYY-MM-DD)")
		return nil
	}
	return &t
}

func mapMember(record persistence.Member) Member {
	return Member{
		ID:          record.ID,
		TenantID:    record.TenantID,
		Name:        record.Name,
		Email:       record.Email,
		Phone:       record.Phone,
		Address:     record.Address,
		DateOfBirth: record.DateOfBirth,
		Groups:      record.Groups,
		Status:      Status(record.Status),
		JoinedAt:    record.JoinedAt,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
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
	case errors.Is(err, persistence.ErrInvalidValue):
		return &validation.Error{Fields: map[string][]string{"payload": {err.Error()}}}
	default:
		return err
	}
}
