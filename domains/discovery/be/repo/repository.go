package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

// Repository is the cross-tenant surface behind the public pages. Writes take
// an explicit scope because there is no signed-in caller to derive it from.
type Repository interface {
	ListBookableLeaders(ctx context.Context) ([]persistence.Leader, error)
	GetBookableLeader(ctx context.Context, id uuid.UUID) (persistence.Leader, error)
	ListPublicEvents(ctx context.Context, since time.Time) ([]persistence.Event, error)
	GetPublicEvent(ctx context.Context, id uuid.UUID) (persistence.Event, error)
	Register(ctx context.Context, eventID uuid.UUID, params persistence.RegisterParams) (persistence.Registration, error)
	CreateMember(ctx context.Context, scope tenant.Scope, params persistence.CreateMemberParams) (persistence.Member, error)
	DeleteMember(ctx context.Context, scope tenant.Scope, id uuid.UUID) error
	CreateAppointment(ctx context.Context, scope tenant.Scope, params persistence.CreateAppointmentParams) (persistence.Appointment, error)
}

// Stores groups the persistence stores the repository delegates to.
type Stores struct {
	Leaders       *persistence.LeaderStore
	Events        *persistence.EventStore
	Registrations *persistence.RegistrationStore
	Members       *persistence.MemberStore
	Appointments  *persistence.AppointmentStore
}

type postgresRepository struct {
	stores Stores
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(stores Stores) Repository {
	if stores.Leaders == nil || stores.Events == nil || stores.Registrations == nil || stores.Members == nil || stores.Appointments == nil {
		panic("discovery repository requires every store")
	}
	return &postgresRepository{stores: stores}
}

func (r *postgresRepository) ListBookableLeaders(ctx context.Context) ([]persistence.Leader, error) {
	return r.stores.Leaders.ListBookableLeaders(ctx)
}

func (r *postgresRepository) GetBookableLeader(ctx context.Context, id uuid.UUID) (persistence.Leader, error) {
	return r.stores.Leaders.GetBookableLeader(ctx, id)
}

func (r *postgresRepository) ListPublicEvents(ctx context.Context, since time.Time) ([]persistence.Event, error) {
	return r.stores.Events.ListPublicEvents(ctx, since)
}

func (r *postgresRepository) GetPublicEvent(ctx context.Context, id uuid.UUID) (persistence.Event, error) {
	return r.stores.Events.GetPublicEvent(ctx, id)
}

func (r *postgresRepository) Register(ctx context.Context, eventID uuid.UUID, params persistence.RegisterParams) (persistence.Registration, error) {
	return r.stores.Registrations.Register(ctx, eventID, params)
}

func (r *postgresRepository) CreateMember(ctx context.Context, scope tenant.Scope, params persistence.CreateMemberParams) (persistence.Member, error) {
	return r.stores.Members.CreateMember(ctx, scope, params)
}

func (r *postgresRepository) DeleteMember(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	return r.stores.Members.DeleteMember(ctx, scope, id)
}

func (r *postgresRepository) CreateAppointment(ctx context.Context, scope tenant.Scope, params persistence.CreateAppointmentParams) (persistence.Appointment, error) {
	return r.stores.Appointments.CreateAppointment(ctx, scope, params)
}
