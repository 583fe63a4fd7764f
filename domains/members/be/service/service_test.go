package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

type mockRepository struct {
	listFn       func(ctx context.Context) ([]persistence.Member, error)
	createFn     func(ctx context.Context, params persistence.CreateMemberParams) (persistence.Member, error)
	createManyFn func(ctx context.Context, params []persistence.CreateMemberParams) ([]persistence.Member, error)
	getFn        func(ctx context.Context, id uuid.UUID) (persistence.Member, error)
	updateFn     func(ctx context.Context, id uuid.UUID, params persistence.UpdateMemberParams) (persistence.Member, error)
	deleteFn     func(ctx context.Context, id uuid.UUID) error
}

func (m *mockRepository) List(ctx context.Context) ([]persistence.Member, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx)
}

func (m *mockRepository) Create(ctx context.Context, params persistence.CreateMemberParams) (persistence.Member, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, params)
}

func (m *mockRepository) CreateMany(ctx context.Context, params []persistence.CreateMemberParams) ([]persistence.Member, error) {
	if m.createManyFn == nil {
		panic("createManyFn not configured")
	}
	return m.createManyFn(ctx, params)
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Member, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func (m *mockRepository) Update(ctx context.Context, id uuid.UUID, params persistence.UpdateMemberParams) (persistence.Member, error) {
	if m.updateFn == nil {
		panic("updateFn not configured")
	}
	return m.updateFn(ctx, id, params)
}

func (m *mockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn == nil {
		panic("deleteFn not configured")
	}
	return m.deleteFn(ctx, id)
}

// memoryRepository keeps rows in insertion order and lists newest first.
func memoryRepository() *mockRepository {
	var rows []persistence.Member
	return &mockRepository{
		listFn: func(context.Context) ([]persistence.Member, error) {
			out := make([]persistence.Member, 0, len(rows))
			for i := len(rows) - 1; i >= 0; i-- {
				out = append(out, rows[i])
			}
			return out, nil
		},
		createFn: func(_ context.Context, p persistence.CreateMemberParams) (persistence.Member, error) {
			m := persistence.Member{ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone, Status: "active", CreatedAt: time.Now()}
			rows = append(rows, m)
			return m, nil
		},
		deleteFn: func(_ context.Context, id uuid.UUID) error {
			for i, m := range rows {
				if m.ID == id {
					rows = append(rows[:i], rows[i+1:]...)
					return nil
				}
			}
			return persistence.ErrNotFound
		},
	}
}

func validInput() CreateInput {
	return CreateInput{Name: "Maria Silva", Email: "Maria@Example.com", Phone: "(11) 98765-4321"}
}

func TestServiceCreateValidation(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})

	_, err := svc.Create(context.Background(), CreateInput{Email: "not-an-email", Phone: "11987654321"})
	require.Error(t, err)

	var validationErr *validation.Error
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "name")
	require.Contains(t, validationErr.Fields, "email")
}

func TestServiceCreateRejectsBadDate(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})
	input := validInput()
	dob := "31/12/1990"
	input.DateOfBirth = &dob

	_, err := svc.Create(context.Background(), input)

	var validationErr *validation.Error
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "date_of_birth")
}

func TestServiceCreateThenListThenDelete(t *testing.T) {
	t.Parallel()

	svc := New(memoryRepository())
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	require.Equal(t, "maria@example.com", created.Email)

	listed, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, created.ID, listed[0].ID)

	require.NoError(t, svc.Delete(ctx, created.ID))

	listed, err = svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, listed)

	require.ErrorIs(t, svc.Delete(ctx, created.ID), ErrNotFound)
}

func TestServiceCreateParsesDates(t *testing.T) {
	t.Parallel()

	var captured persistence.CreateMemberParams
	svc := New(&mockRepository{
		createFn: func(_ context.Context, p persistence.CreateMemberParams) (persistence.Member, error) {
			captured = p
			return persistence.Member{ID: p.ID}, nil
		},
	})

	input := validInput()
	dob, joined := "1990-05-17", "2024-01-07"
	input.DateOfBirth = &dob
	input.JoinedAt = &joined
	input.Groups = []string{"Louvor", "Jovens"}

	_, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, captured.DateOfBirth)
	require.Equal(t, time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC), *captured.DateOfBirth)
	require.Equal(t, []string{"Louvor", "Jovens"}, captured.Groups)
}

func TestServiceCreateBulkValidatesEveryRowFirst(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})

	_, err := svc.CreateBulk(context.Background(), []CreateInput{validInput(), {Name: "X"}})

	var validationErr *validation.Error
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "members.1.name")
	require.Contains(t, validationErr.Fields, "members.1.email")
	require.NotContains(t, validationErr.Fields, "members.0.name")
}

func TestServiceCreateBulkWritesOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	svc := New(&mockRepository{
		createManyFn: func(_ context.Context, params []persistence.CreateMemberParams) ([]persistence.Member, error) {
			calls++
			out := make([]persistence.Member, 0, len(params))
			for _, p := range params {
				out = append(out, persistence.Member{ID: p.ID, Name: p.Name})
			}
			return out, nil
		},
	})

	second := validInput()
	second.Name = "João Souza"
	members, err := svc.CreateBulk(context.Background(), []CreateInput{validInput(), second})
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, 1, calls)
}

func TestServiceUpdate(t *testing.T) {
	t.Parallel()

	t.Run("empty update", func(t *testing.T) {
		_, err := New(&mockRepository{}).Update(context.Background(), uuid.New(), UpdateInput{})
		var validationErr *validation.Error
		require.True(t, errors.As(err, &validationErr))
		require.Contains(t, validationErr.Fields, "payload")
	})

	t.Run("invalid status", func(t *testing.T) {
		bad := "archived"
		_, err := New(&mockRepository{}).Update(context.Background(), uuid.New(), UpdateInput{Status: &bad})
		var validationErr *validation.Error
		require.True(t, errors.As(err, &validationErr))
		require.Contains(t, validationErr.Fields, "status")
	})

	t.Run("parses status", func(t *testing.T) {
		var captured persistence.UpdateMemberParams
		svc := New(&mockRepository{
			updateFn: func(_ context.Context, id uuid.UUID, p persistence.UpdateMemberParams) (persistence.Member, error) {
				captured = p
				return persistence.Member{ID: id, Status: *p.Status}, nil
			},
		})
		status := " Inactive "
		member, err := svc.Update(context.Background(), uuid.New(), UpdateInput{Status: &status})
		require.NoError(t, err)
		require.Equal(t, "inactive", *captured.Status)
		require.Equal(t, StatusInactive, member.Status)
	})

	t.Run("not found", func(t *testing.T) {
		svc := New(&mockRepository{
			updateFn: func(context.Context, uuid.UUID, persistence.UpdateMemberParams) (persistence.Member, error) {
				return persistence.Member{}, persistence.ErrNotFound
			},
		})
		name := "Ana Lima"
		_, err := svc.Update(context.Background(), uuid.New(), UpdateInput{Name: &name})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestServiceListRequiresTenant(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{
		listFn: func(context.Context) ([]persistence.Member, error) {
			return nil, persistence.ErrTenantRequired
		},
	})

	_, err := svc.List(context.Background())
	require.ErrorIs(t, err, ErrTenantRequired)
}
