package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/domains/events/be/repo"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/metrics"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/saga"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/storage"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

// Domain sentinel errors.
var (
	ErrNotFound       = errors.New("event not found")
	ErrConflict       = errors.New("event conflict")
	ErrTenantRequired = errors.New("tenant required")
)

// DefaultUpcomingLimit is used by ListUpcoming when no positive limit is given.
const DefaultUpcomingLimit = 10

// Event represents the domain view of an event record.
type Event struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	Title            string
	Description      string
	ScheduledAt      time.Time
	Location         string
	Banner           *string
	Speakers         []string
	MaxAttendees     *int
	CurrentAttendees int
	RequiresPayment  bool
	Price            decimal.NullDecimal
	IsPublic         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Registration is an attendee of an event.
type Registration struct {
	ID            uuid.UUID
	EventID       uuid.UUID
	AttendeeName  string
	AttendeeEmail string
	AttendeePhone string
	PaymentStatus *string
	RegisteredAt  time.Time
}

// CreateInput is validated against the event schema. ScheduledAt is RFC 3339
// and Price a decimal string; Price is dropped when RequiresPayment is false.
type CreateInput struct {
	Title           string   `json:"title,omitempty"`
	Description     string   `json:"description,omitempty"`
	ScheduledAt     string   `json:"scheduled_at,omitempty"`
	Location        string   `json:"location,omitempty"`
	Banner          *string  `json:"banner,omitempty"`
	Speakers        []string `json:"speakers,omitempty"`
	MaxAttendees    *int     `json:"max_attendees,omitempty"`
	RequiresPayment bool     `json:"requires_payment,omitempty"`
	Price           *string  `json:"price,omitempty"`
	IsPublic        bool     `json:"is_public,omitempty"`
}

// UpdateInput holds the fields to change; nil fields are left untouched.
type UpdateInput struct {
	Title           *string
	Description     *string
	ScheduledAt     *time.Time
	Location        *string
	Speakers        *[]string
	MaxAttendees    *int
	RequiresPayment *bool
	Price           *string
	IsPublic        *bool
}

// BannerUpload is an image to store in the banners bucket.
type BannerUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Service defines the business operations for the events domain.
type Service interface {
	List(ctx context.Context) ([]Event, error)
	ListUpcoming(ctx context.Context, limit int) ([]Event, error)
	Create(ctx context.Context, input CreateInput, banner *BannerUpload) (Event, error)
	Get(ctx context.Context, id uuid.UUID) (Event, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UploadBanner(ctx context.Context, eventID uuid.UUID, upload BannerUpload) (string, error)
	ReplaceBanner(ctx context.Context, eventID uuid.UUID, upload BannerUpload) (Event, error)
	PublicLink(id uuid.UUID) string
	Registrations(ctx context.Context, eventID uuid.UUID) ([]Registration, error)
}

// Deps carries the collaborators beyond the repository.
type Deps struct {
	Banners       storage.Bucket
	PublicBaseURL string
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

type service struct {
	repo repo.Repository
	deps Deps
}

// New constructs an events Service backed by the provided repository.
func New(r repo.Repository, deps Deps) Service {
	if r == nil {
		panic("events repository is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	deps.PublicBaseURL = strings.TrimRight(deps.PublicBaseURL, "/")
	return &service{repo: r, deps: deps}
}

func (s *service) List(ctx context.Context) ([]Event, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	return mapEvents(records), nil
}

func (s *service) ListUpcoming(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	records, err := s.repo.ListUpcoming(ctx, s.deps.Now().UTC(), limit)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	return mapEvents(records), nil
}

// Create inserts the event. With a banner it runs as a saga: insert, upload,
// then set the banner URL; a failure removes what was already written.
func (s *service) Create(ctx context.Context, input CreateInput, banner *BannerUpload) (Event, error) {
	params, err := buildCreateParams(input)
	if err != nil {
		return Event{}, err
	}

	if banner == nil {
		record, err := s.repo.Create(ctx, params)
		if err != nil {
			return Event{}, mapPersistenceError(err)
		}
		return mapEvent(record), nil
	}

	if err := s.checkBanner(*banner); err != nil {
		return Event{}, err
	}

	var (
		created    persistence.Event
		objectPath string
	)
	result := saga.Run(ctx, s.deps.Logger,
		saga.Step{
			Name: "insert_event",
			Do: func(ctx context.Context) (err error) {
				created, err = s.repo.Create(ctx, params)
				return mapPersistenceError(err)
			},
			Compensate: func(ctx context.Context) error {
				return s.repo.Delete(ctx, created.ID)
			},
		},
		saga.Step{
			Name: "upload_banner",
			Do: func(ctx context.Context) error {
				objectPath = storage.BannerPath(created.ID, s.deps.Now(), banner.Filename, banner.ContentType)
				return s.deps.Banners.Upload(ctx, objectPath, banner.Body, banner.ContentType, false)
			},
			Compensate: func(ctx context.Context) error {
				return s.deps.Banners.Delete(ctx, objectPath)
			},
		},
		saga.Step{
			Name: "set_banner",
			Do: func(ctx context.Context) (err error) {
				url := s.deps.Banners.PublicURL(objectPath)
				created, err = s.repo.Update(ctx, created.ID, persistence.UpdateEventParams{Banner: &url})
				return mapPersistenceError(err)
			},
		},
	)
	s.deps.Metrics.ObserveSaga("event_with_banner", string(result.Outcome))
	if err := result.Err(); err != nil {
		return Event{}, err
	}
	return mapEvent(created), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (Event, error) {
	if id == uuid.Nil {
		return Event{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Event{}, mapPersistenceError(err)
	}
	return mapEvent(record), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Event, error) {
	if id == uuid.Nil {
		return Event{}, ErrNotFound
	}

	params, err := buildUpdateParams(input)
	if err != nil {
		return Event{}, err
	}

	// Price and requires_payment must stay consistent with the stored row.
	if input.Price != nil && input.RequiresPayment == nil || input.RequiresPayment != nil && *input.RequiresPayment && input.Price == nil {
		current, err := s.Get(ctx, id)
		if err != nil {
			return Event{}, err
		}
		if err := checkPriceAgainst(current, input); err != nil {
			return Event{}, err
		}
	}

	record, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return Event{}, mapPersistenceError(err)
	}
	return mapEvent(record), nil
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

// UploadBanner stores the image at banners/{eventID}-{unixMillis}.{ext} and
// returns its public URL. The event row is not touched.
func (s *service) UploadBanner(ctx context.Context, eventID uuid.UUID, upload BannerUpload) (string, error) {
	if err := s.checkBanner(upload); err != nil {
		return "", err
	}

	objectPath := storage.BannerPath(eventID, s.deps.Now(), upload.Filename, upload.ContentType)
	if err := s.deps.Banners.Upload(ctx, objectPath, upload.Body, upload.ContentType, false); err != nil {
		return "", fmt.Errorf("upload banner: %w", err)
	}
	return s.deps.Banners.PublicURL(objectPath), nil
}

// ReplaceBanner uploads a new banner and points the event at it. The new
// object is removed again if the event cannot be updated.
func (s *service) ReplaceBanner(ctx context.Context, eventID uuid.UUID, upload BannerUpload) (Event, error) {
	if _, err := s.Get(ctx, eventID); err != nil {
		return Event{}, err
	}

	var (
		objectPath string
		updated    persistence.Event
	)
	result := saga.Run(ctx, s.deps.Logger,
		saga.Step{
			Name: "upload_banner",
			Do: func(ctx context.Context) error {
				if err := s.checkBanner(upload); err != nil {
					return err
				}
				objectPath = storage.BannerPath(eventID, s.deps.Now(), upload.Filename, upload.ContentType)
				return s.deps.Banners.Upload(ctx, objectPath, upload.Body, upload.ContentType, false)
			},
			Compensate: func(ctx context.Context) error {
				return s.deps.Banners.Delete(ctx, objectPath)
			},
		},
		saga.Step{
			Name: "set_banner",
			Do: func(ctx context.Context) (err error) {
				url := s.deps.Banners.PublicURL(objectPath)
				updated, err = s.repo.Update(ctx, eventID, persistence.UpdateEventParams{Banner: &url})
				return mapPersistenceError(err)
			},
		},
	)
	s.deps.Metrics.ObserveSaga("event_banner", string(result.Outcome))
	if err := result.Err(); err != nil {
		return Event{}, err
	}
	return mapEvent(updated), nil
}

// PublicLink is the shareable page of an event.
func (s *service) PublicLink(id uuid.UUID) string {
	return fmt.Sprintf("%s/evento/%s", s.deps.PublicBaseURL, id)
}

func (s *service) Registrations(ctx context.Context, eventID uuid.UUID) ([]Registration, error) {
	if _, err := s.Get(ctx, eventID); err != nil {
		return nil, err
	}

	records, err := s.repo.ListRegistrations(ctx, eventID)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	out := make([]Registration, 0, len(records))
	for _, r := range records {
		out = append(out, Registration{
			ID:            r.ID,
			EventID:       r.EventID,
			AttendeeName:  r.AttendeeName,
			AttendeeEmail: r.AttendeeEmail,
			AttendeePhone: r.AttendeePhone,
			PaymentStatus: r.PaymentStatus,
			RegisteredAt:  r.RegisteredAt,
		})
	}
	return out, nil
}

func (s *service) checkBanner(upload BannerUpload) error {
	if s.deps.Banners == nil {
		return errors.New("banner bucket not configured")
	}
	if !storage.AllowedImage(upload.ContentType) {
		return &validation.Error{Fields: map[string][]string{"banner": {"must be a PNG, JPEG, WebP, GIF or SVG image"}}}
	}
	return nil
}

func buildCreateParams(input CreateInput) (persistence.CreateEventParams, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Location = strings.TrimSpace(input.Location)
	input.ScheduledAt = strings.TrimSpace(input.ScheduledAt)
	if !input.RequiresPayment {
		input.Price = nil
	}

	verr := &validation.Error{}
	verr.Merge(validation.Validate(validation.Event, input))

	var price decimal.NullDecimal
	if input.RequiresPayment {
		price = parsePrice(verr, input.Price)
	}
	if err := verr.OrNil(); err != nil {
		return persistence.CreateEventParams{}, err
	}

	scheduledAt, err := time.Parse(time.RFC3339, input.ScheduledAt)
	if err != nil {
		return persistence.CreateEventParams{}, &validation.Error{Fields: map[string][]string{"scheduled_at": {"must be an RFC 3339 timestamp"}}}
	}

	return persistence.CreateEventParams{
		ID:              uuid.New(),
		Title:           input.Title,
		Description:     input.Description,
		ScheduledAt:     scheduledAt.UTC(),
		Location:        input.Location,
		Banner:          input.Banner,
		Speakers:        input.Speakers,
		MaxAttendees:    input.MaxAttendees,
		RequiresPayment: input.RequiresPayment,
		Price:           price,
		IsPublic:        input.IsPublic,
	}, nil
}

func buildUpdateParams(input UpdateInput) (persistence.UpdateEventParams, error) {
	verr := &validation.Error{}
	params := persistence.UpdateEventParams{
		Description:     input.Description,
		Speakers:        input.Speakers,
		RequiresPayment: input.RequiresPayment,
		IsPublic:        input.IsPublic,
	}
	fieldsSet := 0

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			verr.Add("title", "cannot be empty")
		}
		params.Title = &title
		fieldsSet++
	}
	if input.Location != nil {
		location := strings.TrimSpace(*input.Location)
		if location == "" {
			verr.Add("location", "cannot be empty")
		}
		params.Location = &location
		fieldsSet++
	}
	if input.ScheduledAt != nil {
		at := input.ScheduledAt.UTC()
		params.ScheduledAt = &at
		fieldsSet++
	}
	if input.MaxAttendees != nil {
		if *input.MaxAttendees < 1 {
			verr.Add("max_attendees", "must be >= 1")
		}
		params.MaxAttendees = input.MaxAttendees
		fieldsSet++
	}
	if input.RequiresPayment != nil && !*input.RequiresPayment {
		params.Price = &decimal.NullDecimal{}
	} else if input.Price != nil {
		price := parsePrice(verr, input.Price)
		params.Price = &price
	}
	for _, set := range []bool{input.Description != nil, input.Speakers != nil, input.RequiresPayment != nil, input.Price != nil, input.IsPublic != nil} {
		if set {
			fieldsSet++
		}
	}

	if fieldsSet == 0 {
		verr.Add("payload", "at least one field must be provided")
	}
	if err := verr.OrNil(); err != nil {
		return persistence.UpdateEventParams{}, err
	}
	return params, nil
}

func checkPriceAgainst(current Event, input UpdateInput) error {
	verr := &validation.Error{}
	if input.Price != nil && input.RequiresPayment == nil && !current.RequiresPayment {
		verr.Add("price", "is only allowed when the event requires payment")
	}
	if input.RequiresPayment != nil && *input.RequiresPayment && input.Price == nil && !current.Price.Valid {
		verr.Add("price", "is required when the event requires payment")
	}
	return verr.OrNil()
}

func parsePrice(verr *validation.Error, raw *string) decimal.NullDecimal {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		verr.Add("price", "is required when the event requires payment")
		return decimal.NullDecimal{}
	}
	price, err := decimal.NewFromString(strings.TrimSpace(*raw))
	if err != nil {
		verr.Add("price", "must be a decimal number")
		return decimal.NullDecimal{}
	}
	verr.CheckPrice("price", price)
	return decimal.NullDecimal{Decimal: price, Valid: true}
}

func mapEvents(records []persistence.Event) []Event {
	out := make([]Event, 0, len(records))
	for _, record := range records {
		out = append(out, mapEvent(record))
	}
	return out
}

func mapEvent(record persistence.Event) Event {
	return Event{
		ID:               record.ID,
		TenantID:         record.TenantID,
		Title:            record.Title,
		Description:      record.Description,
		ScheduledAt:      record.ScheduledAt,
		Location:         record.Location,
		Banner:           record.Banner,
		Speakers:         record.Speakers,
		MaxAttendees:     record.MaxAttendees,
		CurrentAttendees: record.CurrentAttendees,
		RequiresPayment:  record.RequiresPayment,
		Price:            record.Price,
		IsPublic:         record.IsPublic,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
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
