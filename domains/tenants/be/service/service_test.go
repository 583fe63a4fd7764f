package service_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/repo"
	"github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/pubsub"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/storage"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

type stubCounter struct {
	members, leaders, events, appointments int
	err                                    error
	calls                                  atomic.Int32
}

func (s *stubCounter) CountActiveMembers(context.Context, tenant.Scope) (int, error) {
	s.calls.Add(1)
	return s.members, nil
}

func (s *stubCounter) CountLeaders(context.Context, tenant.Scope) (int, error) {
	s.calls.Add(1)
	return s.leaders, nil
}

func (s *stubCounter) CountUpcomingEvents(context.Context, tenant.Scope, time.Time) (int, error) {
	s.calls.Add(1)
	return s.events, s.err
}

func (s *stubCounter) CountUpcomingAppointments(context.Context, tenant.Scope, time.Time) (int, error) {
	s.calls.Add(1)
	return s.appointments, nil
}

func adminCtx(id uuid.UUID) context.Context {
	return tenant.WithScope(context.Background(), tenant.Scope{TenantID: id, UserID: uuid.New(), Role: "admin"})
}

func TestCreateDerivesUniqueSlug(t *testing.T) {
	t.Parallel()

	svc := service.New(repo.NewMemoryRepository(), service.Deps{})
	ctx := context.Background()

	first, err := svc.Create(ctx, service.CreateInput{Name: "Igreja São João"})
	require.NoError(t, err)
	require.Equal(t, "igreja-sao-joao", first.Slug)

	second, err := svc.Create(ctx, service.CreateInput{Name: "Igreja Sao Joao"})
	require.NoError(t, err)
	require.Equal(t, "igreja-sao-joao-2", second.Slug)

	got, err := svc.Get(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, "Igreja Sao Joao", got.Name)
}

func TestCreateRejectsShortName(t *testing.T) {
	t.Parallel()

	_, err := service.New(repo.NewMemoryRepository(), service.Deps{}).Create(context.Background(), service.CreateInput{Name: "X"})

	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "name")
}

func TestGetMissingIsNotFound(t *testing.T) {
	t.Parallel()

	_, err := service.New(repo.NewMemoryRepository(), service.Deps{}).Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestCurrentRequiresTenant(t *testing.T) {
	t.Parallel()

	_, err := service.New(repo.NewMemoryRepository(), service.Deps{}).Current(context.Background())
	require.ErrorIs(t, err, service.ErrTenantRequired)
}

func TestUpdateSettings(t *testing.T) {
	t.Parallel()

	updates := pubsub.NewTopic[tenant.Updated]()
	var published []tenant.Updated
	updates.Subscribe(func(_ context.Context, u tenant.Updated) { published = append(published, u) })

	svc := service.New(repo.NewMemoryRepository(), service.Deps{Updates: updates})
	created, err := svc.Create(context.Background(), service.CreateInput{Name: "Igreja Central"})
	require.NoError(t, err)

	t.Run("non admin", func(t *testing.T) {
		ctx := tenant.WithScope(context.Background(), tenant.Scope{TenantID: created.ID, Role: "leader"})
		name := "Outra"
		_, err := svc.UpdateSettings(ctx, service.SettingsInput{Name: &name})
		require.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("invalid email", func(t *testing.T) {
		email := "nope"
		_, err := svc.UpdateSettings(adminCtx(created.ID), service.SettingsInput{Email: &email})
		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
		require.Contains(t, verr.Fields, "email")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := svc.UpdateSettings(adminCtx(created.ID), service.SettingsInput{})
		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
	})

	t.Run("applies", func(t *testing.T) {
		address, website := " Rua das Flores, 10 ", "https://igrejacentral.org"
		updated, err := svc.UpdateSettings(adminCtx(created.ID), service.SettingsInput{Address: &address, Website: &website})
		require.NoError(t, err)
		require.Equal(t, "Rua das Flores, 10", *updated.Address)
		require.Equal(t, "Igreja Central", updated.Name)
		require.Len(t, published, 1)
	})
}

func TestUploadLogoUpsertsAndPublishes(t *testing.T) {
	t.Parallel()

	bucket := storage.NewLocalBucket(t.TempDir(), storage.LogosBucket, "http://localhost:8080")
	updates := pubsub.NewTopic[tenant.Updated]()
	received := make(chan tenant.Updated, 2)
	updates.Subscribe(func(_ context.Context, u tenant.Updated) { received <- u })

	svc := service.New(repo.NewMemoryRepository(), service.Deps{Logos: bucket, Updates: updates})
	created, err := svc.Create(context.Background(), service.CreateInput{Name: "Igreja Central"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		updated, err := svc.UploadLogo(adminCtx(created.ID), "logo.PNG", "image/png", strings.NewReader("png-bytes"))
		require.NoError(t, err)
		require.NotNil(t, updated.Logo)
		require.True(t, strings.HasSuffix(*updated.Logo, created.ID.String()+".png"))
	}

	u := <-received
	require.Equal(t, created.ID, u.TenantID)
	require.NotNil(t, u.Logo)

	_, err = svc.UploadLogo(adminCtx(created.ID), "notes.txt", "text/plain", strings.NewReader("x"))
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
}

func TestStats(t *testing.T) {
	t.Parallel()

	counter := &stubCounter{members: 12, leaders: 3, events: 2, appointments: 5}
	svc := service.New(repo.NewMemoryRepository(), service.Deps{Stats: counter})

	stats, err := svc.Stats(adminCtx(uuid.New()))
	require.NoError(t, err)
	require.Equal(t, service.Stats{ActiveMembers: 12, Leaders: 3, UpcomingEvents: 2, UpcomingAppointments: 5}, stats)
	require.EqualValues(t, 4, counter.calls.Load())

	failing := &stubCounter{err: errors.New("db down")}
	_, err = service.New(repo.NewMemoryRepository(), service.Deps{Stats: failing}).Stats(adminCtx(uuid.New()))
	require.Error(t, err)
}
