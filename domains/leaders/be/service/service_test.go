package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	accountsservice "github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/access"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/saga"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

// memoryRepository mirrors the store: newest first, available ordered by name,
// and a link that only succeeds while user_id is NULL.
type memoryRepository struct {
	rows    []persistence.Leader
	linkErr error
}

func (m *memoryRepository) List(ctx context.Context) ([]persistence.Leader, error) {
	if _, ok := tenant.FromContext(ctx); !ok {
		return nil, persistence.ErrTenantRequired
	}
	out := make([]persistence.Leader, 0, len(m.rows))
	for i := len(m.rows) - 1; i >= 0; i-- {
		out = append(out, m.rows[i])
	}
	return out, nil
}

func (m *memoryRepository) ListAvailable(context.Context) ([]persistence.Leader, error) {
	var out []persistence.Leader
	for _, l := range m.rows {
		if l.IsAvailableForAppointments {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRepository) Create(ctx context.Context, p persistence.CreateLeaderParams) (persistence.Leader, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return persistence.Leader{}, persistence.ErrTenantRequired
	}
	l := persistence.Leader{
		ID: p.ID, TenantID: scope.TenantID, Name: p.Name, Email: p.Email, Phone: p.Phone, Type: p.Type,
		Permissions: p.Permissions, CreatedAt: time.Now(),
	}
	if p.IsAvailableForAppointments != nil {
		l.IsAvailableForAppointments = *p.IsAvailableForAppointments
	}
	m.rows = append(m.rows, l)
	return l, nil
}

func (m *memoryRepository) find(id uuid.UUID) (int, error) {
	for i, l := range m.rows {
		if l.ID == id {
			return i, nil
		}
	}
	return -1, persistence.ErrNotFound
}

func (m *memoryRepository) Get(_ context.Context, id uuid.UUID) (persistence.Leader, error) {
	i, err := m.find(id)
	if err != nil {
		return persistence.Leader{}, err
	}
	return m.rows[i], nil
}

func (m *memoryRepository) Update(_ context.Context, id uuid.UUID, p persistence.UpdateLeaderParams) (persistence.Leader, error) {
	i, err := m.find(id)
	if err != nil {
		return persistence.Leader{}, err
	}
	if p.Name != nil {
		m.rows[i].Name = *p.Name
	}
	if p.Type != nil {
		m.rows[i].Type = *p.Type
	}
	if p.IsAvailableForAppointments != nil {
		m.rows[i].IsAvailableForAppointments = *p.IsAvailableForAppointments
	}
	return m.rows[i], nil
}

func (m *memoryRepository) LinkUser(_ context.Context, id, userID uuid.UUID) (persistence.Leader, error) {
	if m.linkErr != nil {
		return persistence.Leader{}, m.linkErr
	}
	i, err := m.find(id)
	if err != nil {
		return persistence.Leader{}, err
	}
	if m.rows[i].UserID != nil {
		return persistence.Leader{}, persistence.ErrConflict
	}
	m.rows[i].UserID = &userID
	return m.rows[i], nil
}

func (m *memoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	i, err := m.find(id)
	if err != nil {
		return err
	}
	m.rows = append(m.rows[:i], m.rows[i+1:]...)
	return nil
}

type fakeProvisioner struct {
	provisionErr  error
	provisioned   []accountsservice.ProvisionInput
	deprovisioned []uuid.UUID
}

func (f *fakeProvisioner) Provision(_ context.Context, input accountsservice.ProvisionInput) (accountsservice.Account, error) {
	if f.provisionErr != nil {
		return accountsservice.Account{}, f.provisionErr
	}
	f.provisioned = append(f.provisioned, input)
	id := uuid.New()
	return accountsservice.Account{
		Identity: auth.Identity{ID: id, Email: input.Email},
		Profile:  accountsservice.Profile{ID: id, TenantID: &input.TenantID, Role: input.Role},
	}, nil
}

func (f *fakeProvisioner) Deprovision(_ context.Context, id uuid.UUID) error {
	f.deprovisioned = append(f.deprovisioned, id)
	return nil
}

func scopedCtx() context.Context {
	return tenant.WithScope(context.Background(), tenant.Scope{TenantID: uuid.New(), UserID: uuid.New(), Role: "admin"})
}

func boolPtr(b bool) *bool { return &b }

func validInput(name string) CreateInput {
	return CreateInput{Name: name, Email: "lider@example.com", Phone: "11987654321", Type: "Pastor"}
}

func TestCreateValidatesBeforeRepository(t *testing.T) {
	t.Parallel()

	repo := &memoryRepository{}
	svc := New(repo, Deps{})

	_, err := svc.Create(scopedCtx(), CreateInput{Name: "J", Email: "bad", Phone: "12", Type: "Bispo", Permissions: []string{"fly"}})
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"name", "email", "phone", "type"} {
		require.Contains(t, verr.Fields, field)
	}
	require.Empty(t, repo.rows)
}

func TestListAvailableOrdersByName(t *testing.T) {
	t.Parallel()

	ctx := scopedCtx()
	svc := New(&memoryRepository{}, Deps{})
	for _, name := range []string{"Pedro Alves", "Ana Souza", "Bruno Costa"} {
		input := validInput(name)
		input.IsAvailableForAppointments = boolPtr(name != "Bruno Costa")
		_, err := svc.Create(ctx, input)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "Bruno Costa", all[0].Name)

	available, err := svc.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 2)
	require.Equal(t, "Ana Souza", available[0].Name)
	require.Equal(t, "Pedro Alves", available[1].Name)
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	ctx := scopedCtx()
	svc := New(&memoryRepository{}, Deps{})
	created, err := svc.Create(ctx, validInput("Marcos Lima"))
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := svc.Update(ctx, created.ID, UpdateInput{})
		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
		require.Contains(t, verr.Fields, "payload")
	})

	t.Run("unknown type", func(t *testing.T) {
		bad := "Bispo"
		_, err := svc.Update(ctx, created.ID, UpdateInput{Type: &bad})
		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
		require.Contains(t, verr.Fields, "type")
	})

	t.Run("applies", func(t *testing.T) {
		kind := "Diácono"
		updated, err := svc.Update(ctx, created.ID, UpdateInput{Type: &kind, IsAvailableForAppointments: boolPtr(true)})
		require.NoError(t, err)
		require.Equal(t, "Diácono", updated.Type)
		require.True(t, updated.IsAvailableForAppointments)
	})

	t.Run("missing", func(t *testing.T) {
		name := "Outro Nome"
		_, err := svc.Update(ctx, uuid.New(), UpdateInput{Name: &name})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateUserForLeader(t *testing.T) {
	t.Parallel()

	t.Run("links the provisioned account", func(t *testing.T) {
		t.Parallel()
		ctx := scopedCtx()
		accounts := &fakeProvisioner{}
		svc := New(&memoryRepository{}, Deps{Accounts: accounts})
		leader, err := svc.Create(ctx, validInput("Marcos Lima"))
		require.NoError(t, err)

		linked, err := svc.CreateUserForLeader(ctx, leader.ID, "Senha123")
		require.NoError(t, err)
		require.NotNil(t, linked.UserID)
		require.Len(t, accounts.provisioned, 1)
		require.Equal(t, access.RoleLeader, accounts.provisioned[0].Role)
		require.Equal(t, "lider@example.com", accounts.provisioned[0].Email)

		_, err = svc.CreateUserForLeader(ctx, leader.ID, "Senha123")
		require.ErrorIs(t, err, ErrAlreadyLinked)
	})

	t.Run("already registered email leaves user unset", func(t *testing.T) {
		t.Parallel()
		ctx := scopedCtx()
		accounts := &fakeProvisioner{provisionErr: auth.NewError(auth.KindAlreadyRegistered, nil)}
		repo := &memoryRepository{}
		svc := New(repo, Deps{Accounts: accounts})
		leader, err := svc.Create(ctx, validInput("Marcos Lima"))
		require.NoError(t, err)

		_, err = svc.CreateUserForLeader(ctx, leader.ID, "Senha123")
		require.Equal(t, auth.KindAlreadyRegistered, auth.KindOf(err))

		got, err := svc.Get(ctx, leader.ID)
		require.NoError(t, err)
		require.Nil(t, got.UserID)
	})

	t.Run("failed link deprovisions", func(t *testing.T) {
		t.Parallel()
		ctx := scopedCtx()
		accounts := &fakeProvisioner{}
		repo := &memoryRepository{}
		svc := New(repo, Deps{Accounts: accounts})
		leader, err := svc.Create(ctx, validInput("Marcos Lima"))
		require.NoError(t, err)
		repo.linkErr = persistence.ErrConflict

		_, err = svc.CreateUserForLeader(ctx, leader.ID, "Senha123")
		require.ErrorIs(t, err, ErrAlreadyLinked)
		require.False(t, saga.NeedsCleanup(err))
		require.Len(t, accounts.deprovisioned, 1)
	})

	t.Run("weak password", func(t *testing.T) {
		t.Parallel()
		ctx := scopedCtx()
		accounts := &fakeProvisioner{}
		svc := New(&memoryRepository{}, Deps{Accounts: accounts})
		leader, err := svc.Create(ctx, validInput("Marcos Lima"))
		require.NoError(t, err)

		_, err = svc.CreateUserForLeader(ctx, leader.ID, "abc")
		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
		require.Empty(t, accounts.provisioned)
	})
}

func TestListRequiresTenant(t *testing.T) {
	t.Parallel()

	svc := New(&memoryRepository{}, Deps{})
	_, err := svc.List(context.Background())
	require.ErrorIs(t, err, ErrTenantRequired)
}
