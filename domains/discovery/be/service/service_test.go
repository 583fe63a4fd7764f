package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/saga"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

// memoryRepository keeps rows of several churches to exercise cross-tenant reads.
type memoryRepository struct {
	leaders        []persistence.Leader
	events         []persistence.Event
	registrations  []persistence.Registration
	members        []persistence.Member
	appointments   []persistence.Appointment
	appointmentErr error
	repoCalls      int
}

func (m *memoryRepository) ListBookableLeaders(context.Context) ([]persistence.Leader, error) {
	m.repoCalls++
	var out []persistence.Leader
	for _, l := range m.leaders {
		if l.IsAvailableForAppointments {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memoryRepository) GetBookableLeader(_ context.Context, id uuid.UUID) (persistence.Leader, error) {
	m.repoCalls++
	for _, l := range m.leaders {
		if l.ID == id && l.IsAvailableForAppointments {
			return l, nil
		}
	}
	return persistence.Leader{}, persistence.ErrNotFound
}

func (m *memoryRepository) ListPublicEvents(_ context.Context, since time.Time) ([]persistence.Event, error) {
	m.repoCalls++
	var out []persistence.Event
	for _, e := range m.events {
		if e.IsPublic && !e.ScheduledAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryRepository) GetPublicEvent(_ context.Context, id uuid.UUID) (persistence.Event, error) {
	m.repoCalls++
	for _, e := range m.events {
		if e.ID == id && e.IsPublic {
			return e, nil
		}
	}
	return persistence.Event{}, persistence.ErrNotFound
}

func (m *memoryRepository) Register(_ context.Context, eventID uuid.UUID, p persistence.RegisterParams) (persistence.Registration, error) {
	m.repoCalls++
	for i := range m.events {
		e := &m.events[i]
		if e.ID != eventID {
			continue
		}
		if e.MaxAttendees != nil && e.CurrentAttendees >= *e.MaxAttendees {
			return persistence.Registration{}, persistence.ErrEventFull
		}
		e.CurrentAttendees++
		reg := persistence.Registration{
			ID: uuid.New(), TenantID: e.TenantID, EventID: e.ID,
			AttendeeName: p.AttendeeName, AttendeeEmail: p.AttendeeEmail, AttendeePhone: p.AttendeePhone,
		}
		if e.RequiresPayment {
			pending := "pending"
			reg.PaymentStatus = &pending
		}
		m.registrations = append(m.registrations, reg)
		return reg, nil
	}
	return persistence.Registration{}, persistence.ErrNotFound
}

func (m *memoryRepository) CreateMember(_ context.Context, scope tenant.Scope, p persistence.CreateMemberParams) (persistence.Member, error) {
	m.repoCalls++
	member := persistence.Member{ID: p.ID, TenantID: scope.TenantID, Name: p.Name, Email: p.Email, Phone: p.Phone, Status: *p.Status}
	m.members = append(m.members, member)
	return member, nil
}

func (m *memoryRepository) DeleteMember(_ context.Context, scope tenant.Scope, id uuid.UUID) error {
	for i, member := range m.members {
		if member.ID == id && member.TenantID == scope.TenantID {
			m.members = append(m.members[:i], m.members[i+1:]...)
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (m *memoryRepository) CreateAppointment(_ context.Context, scope tenant.Scope, p persistence.CreateAppointmentParams) (persistence.Appointment, error) {
	m.repoCalls++
	if m.appointmentErr != nil {
		return persistence.Appointment{}, m.appointmentErr
	}
	found := false
	for _, member := range m.members {
		if member.ID == p.MemberID && member.TenantID == scope.TenantID {
			found = true
		}
	}
	if !found {
		return persistence.Appointment{}, persistence.ErrInvalidReference
	}
	a := persistence.Appointment{
		ID: p.ID, TenantID: scope.TenantID, LeaderID: p.LeaderID, MemberID: p.MemberID,
		Title: p.Title, ScheduledAt: p.ScheduledAt, Duration: 60, Status: *p.Status,
	}
	if p.Duration != nil {
		a.Duration = *p.Duration
	}
	m.appointments = append(m.appointments, a)
	return a, nil
}

var fixedNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, r *memoryRepository) Service {
	t.Helper()
	return New(r, Deps{Logger: zaptest.NewLogger(t), Now: func() time.Time { return fixedNow }})
}

func intPtr(v int) *int { return &v }

func TestListAvailableLeadersAcrossTenants(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	repo := &memoryRepository{leaders: []persistence.Leader{
		{ID: uuid.New(), TenantID: a, Name: "Pr. João", Type: "pastor", IsAvailableForAppointments: true},
		{ID: uuid.New(), TenantID: b, Name: "Maria", Type: "leader", IsAvailableForAppointments: true},
		{ID: uuid.New(), TenantID: b, Name: "Oculto", Type: "leader"},
	}}

	leaders, err := newTestService(t, repo).ListAvailableLeaders(context.Background())
	require.NoError(t, err)
	require.Len(t, leaders, 2)
	require.Equal(t, a, leaders[0].TenantID)
	require.Equal(t, b, leaders[1].TenantID)
}

func TestPublicEventsRenderMarkdown(t *testing.T) {
	t.Parallel()

	public := persistence.Event{
		ID: uuid.New(), Title: "Vigília", IsPublic: true, ScheduledAt: fixedNow.Add(time.Hour),
		Description: "Noite de **oração**\n<script>alert(1)</script>",
	}
	private := persistence.Event{ID: uuid.New(), Title: "Reunião interna", ScheduledAt: fixedNow.Add(time.Hour)}
	past := persistence.Event{ID: uuid.New(), Title: "Antigo", IsPublic: true, ScheduledAt: fixedNow.Add(-time.Hour)}
	repo := &memoryRepository{events: []persistence.Event{public, private, past}}
	svc := newTestService(t, repo)

	events, err := svc.ListPublicEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Contains(t, events[0].DescriptionHTML, "<strong>oração</strong>")
	require.NotContains(t, events[0].DescriptionHTML, "<script>")

	_, err = svc.GetPublicEvent(context.Background(), private.ID)
	require.ErrorIs(t, err, ErrNotFound)

	event, err := svc.GetPublicEvent(context.Background(), past.ID)
	require.NoError(t, err)
	require.Equal(t, "Antigo", event.Title)
}

func TestRegisterForEvent(t *testing.T) {
	t.Parallel()

	free := persistence.Event{ID: uuid.New(), IsPublic: true, MaxAttendees: intPtr(1)}
	paid := persistence.Event{ID: uuid.New(), IsPublic: true, RequiresPayment: true}
	repo := &memoryRepository{events: []persistence.Event{free, paid}}
	svc := newTestService(t, repo)
	input := RegistrationInput{AttendeeName: "Ana Souza", AttendeeEmail: " Ana@Example.com ", AttendeePhone: "11987654321"}

	reg, err := svc.RegisterForEvent(context.Background(), free.ID, input)
	require.NoError(t, err)
	require.Nil(t, reg.PaymentStatus)
	require.Equal(t, "ana@example.com", reg.AttendeeEmail)
	require.Equal(t, 1, repo.events[0].CurrentAttendees)

	_, err = svc.RegisterForEvent(context.Background(), free.ID, input)
	require.ErrorIs(t, err, ErrEventFull)
	require.Equal(t, 1, repo.events[0].CurrentAttendees)

	reg, err = svc.RegisterForEvent(context.Background(), paid.ID, input)
	require.NoError(t, err)
	require.Equal(t, "pending", *reg.PaymentStatus)

	_, err = svc.RegisterForEvent(context.Background(), uuid.New(), input)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterForEventValidatesBeforeWriting(t *testing.T) {
	t.Parallel()

	repo := &memoryRepository{}
	_, err := newTestService(t, repo).RegisterForEvent(context.Background(), uuid.New(), RegistrationInput{AttendeeName: "A"})

	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"attendee_name", "attendee_email", "attendee_phone"} {
		require.Contains(t, verr.Fields, field)
	}
	require.Zero(t, repo.repoCalls)
}

func TestBookAppointmentAsVisitor(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	leader := persistence.Leader{ID: uuid.New(), TenantID: tenantID, Name: "Pr. João", IsAvailableForAppointments: true}
	repo := &memoryRepository{leaders: []persistence.Leader{leader}}

	booking, err := newTestService(t, repo).BookAppointment(context.Background(), BookingInput{
		LeaderID:    leader.ID.String(),
		Visitor:     &Visitor{Name: "Carlos Lima", Email: "carlos@example.com", Phone: "11912345678"},
		Title:       "Aconselhamento",
		ScheduledAt: fixedNow.Add(24 * time.Hour).Format(time.RFC3339),
		Duration:    intPtr(45),
	})
	require.NoError(t, err)
	require.Equal(t, tenantID, booking.TenantID)
	require.Equal(t, "scheduled", booking.Status)
	require.Equal(t, 45, booking.Duration)
	require.Len(t, repo.members, 1)
	require.Equal(t, tenantID, repo.members[0].TenantID)
	require.Equal(t, "active", repo.members[0].Status)
	require.Equal(t, repo.members[0].ID, booking.MemberID)
}

func TestBookAppointmentCompensatesVisitor(t *testing.T) {
	t.Parallel()

	leader := persistence.Leader{ID: uuid.New(), TenantID: uuid.New(), IsAvailableForAppointments: true}
	repo := &memoryRepository{leaders: []persistence.Leader{leader}, appointmentErr: errors.New("db down")}

	_, err := newTestService(t, repo).BookAppointment(context.Background(), BookingInput{
		LeaderID:    leader.ID.String(),
		Visitor:     &Visitor{Name: "Carlos Lima", Email: "carlos@example.com", Phone: "11912345678"},
		Title:       "Aconselhamento",
		ScheduledAt: fixedNow.Format(time.RFC3339),
	})
	require.Error(t, err)

	var sagaErr *saga.Error
	require.ErrorAs(t, err, &sagaErr)
	require.Equal(t, saga.OutcomeCompensated, sagaErr.Result.Outcome)
	require.Empty(t, repo.members)
}

func TestBookAppointmentMemberFromOtherChurch(t *testing.T) {
	t.Parallel()

	leader := persistence.Leader{ID: uuid.New(), TenantID: uuid.New(), IsAvailableForAppointments: true}
	outsider := persistence.Member{ID: uuid.New(), TenantID: uuid.New()}
	repo := &memoryRepository{leaders: []persistence.Leader{leader}, members: []persistence.Member{outsider}}

	_, err := newTestService(t, repo).BookAppointment(context.Background(), BookingInput{
		LeaderID:    leader.ID.String(),
		MemberID:    outsider.ID.String(),
		Title:       "Visita",
		ScheduledAt: fixedNow.Format(time.RFC3339),
	})
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "member_id")
	require.Empty(t, repo.appointments)
}

func TestBookAppointmentValidation(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		input BookingInput
		field string
	}{
		"member and visitor": {
			input: BookingInput{
				LeaderID: uuid.NewString(), MemberID: uuid.NewString(), Title: "x",
				Visitor:     &Visitor{Name: "Ana Souza", Email: "ana@example.com", Phone: "11987654321"},
				ScheduledAt: fixedNow.Format(time.RFC3339),
			},
			field: "member_id",
		},
		"neither": {
			input: BookingInput{LeaderID: uuid.NewString(), Title: "x", ScheduledAt: fixedNow.Format(time.RFC3339)},
			field: "member_id",
		},
		"duration": {
			input: BookingInput{
				LeaderID: uuid.NewString(), MemberID: uuid.NewString(), Title: "x",
				ScheduledAt: fixedNow.Format(time.RFC3339), Duration: intPtr(500),
			},
			field: "duration",
		},
		"visitor phone": {
			input: BookingInput{
				LeaderID: uuid.NewString(), Title: "x", ScheduledAt: fixedNow.Format(time.RFC3339),
				Visitor: &Visitor{Name: "Ana Souza", Email: "ana@example.com", Phone: "12"},
			},
			field: "visitor.phone",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &memoryRepository{}
			_, err := newTestService(t, repo).BookAppointment(context.Background(), tc.input)

			var verr *validation.Error
			require.ErrorAs(t, err, &verr)
			require.Contains(t, verr.Fields, tc.field, strings.Join(keys(verr.Fields), ","))
			require.Zero(t, repo.repoCalls)
		})
	}
}

func TestBookAppointmentUnknownLeader(t *testing.T) {
	t.Parallel()

	_, err := newTestService(t, &memoryRepository{}).BookAppointment(context.Background(), BookingInput{
		LeaderID: uuid.NewString(), MemberID: uuid.NewString(), Title: "x", ScheduledAt: fixedNow.Format(time.RFC3339),
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func keys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
