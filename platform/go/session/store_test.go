package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/access"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/notify"
)

type mockBackend struct {
	signInFn  func(ctx context.Context, email, password string) (Account, error)
	signUpFn  func(ctx context.Context, input SignUpInput) error
	signOutFn func(ctx context.Context, accessToken string) error
	sessionFn func(ctx context.Context, accessToken string) (Account, error)

	mu           sync.Mutex
	sessionCalls int
}

func (m *mockBackend) SignIn(ctx context.Context, email, password string) (Account, error) {
	if m.signInFn == nil {
		panic("signInFn not configured")
	}
	return m.signInFn(ctx, email, password)
}

func (m *mockBackend) SignUp(ctx context.Context, input SignUpInput) error {
	if m.signUpFn == nil {
		panic("signUpFn not configured")
	}
	return m.signUpFn(ctx, input)
}

func (m *mockBackend) SignOut(ctx context.Context, accessToken string) error {
	if m.signOutFn == nil {
		panic("signOutFn not configured")
	}
	return m.signOutFn(ctx, accessToken)
}

func (m *mockBackend) Session(ctx context.Context, accessToken string) (Account, error) {
	if m.sessionFn == nil {
		panic("sessionFn not configured")
	}
	m.mu.Lock()
	m.sessionCalls++
	m.mu.Unlock()
	return m.sessionFn(ctx, accessToken)
}

func (m *mockBackend) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionCalls
}

func fixtureAccount(role access.Role, tenantID *uuid.UUID) Account {
	id := uuid.New()
	return Account{
		AccessToken: "token-" + id.String(),
		ExpiresAt:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Identity:    auth.Identity{ID: id, Email: "ana@example.com", Name: "Ana"},
		Profile:     &Profile{ID: id, TenantID: tenantID, Name: "Ana", Email: "ana@example.com", Role: role},
	}
}

func newTestStore(t *testing.T, backend Backend, tokens TokenStore) (*Store, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	store := NewStore(backend, tokens, Options{Notifier: rec, Logger: zaptest.NewLogger(t)})
	t.Cleanup(store.Close)
	return store, rec
}

func collectKinds(store *Store) func() []ChangeKind {
	var (
		mu    sync.Mutex
		kinds []ChangeKind
	)
	store.Subscribe(func(_ context.Context, c Change) {
		mu.Lock()
		kinds = append(kinds, c.Kind)
		mu.Unlock()
	})
	return func() []ChangeKind {
		mu.Lock()
		defer mu.Unlock()
		return append([]ChangeKind(nil), kinds...)
	}
}

func TestRestoreSessionWithoutTokenStaysSignedOut(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, &mockBackend{}, &MemoryTokenStore{})
	store.RestoreSession(context.Background())

	_, ok := store.Identity()
	require.False(t, ok)
	require.False(t, store.IsMember())
}

func TestRestoreSessionLoadsIdentityAndProfile(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	account := fixtureAccount(access.RoleLeader, &tenantID)
	backend := &mockBackend{
		sessionFn: func(_ context.Context, token string) (Account, error) {
			require.Equal(t, account.AccessToken, token)
			return account, nil
		},
	}
	tokens := &MemoryTokenStore{}
	require.NoError(t, tokens.Save(context.Background(), Token{AccessToken: account.AccessToken}))

	store, _ := newTestStore(t, backend, tokens)
	kinds := collectKinds(store)
	store.RestoreSession(context.Background())

	identity, ok := store.Identity()
	require.True(t, ok)
	require.Equal(t, account.Identity.ID, identity.ID)

	profile, ok := store.Profile()
	require.True(t, ok)
	require.Equal(t, access.RoleLeader, profile.Role)
	require.Equal(t, []ChangeKind{ProfileLoaded, SignedIn}, kinds())
}

func TestRestoreSessionNeverFails(t *testing.T) {
	t.Parallel()

	t.Run("expired token is cleared", func(t *testing.T) {
		t.Parallel()
		backend := &mockBackend{
			sessionFn: func(context.Context, string) (Account, error) {
				return Account{}, ErrUnauthenticated
			},
		}
		tokens := &MemoryTokenStore{}
		require.NoError(t, tokens.Save(context.Background(), Token{AccessToken: "stale"}))

		store, _ := newTestStore(t, backend, tokens)
		store.RestoreSession(context.Background())

		_, ok := store.Identity()
		require.False(t, ok)
		stored, err := tokens.Load(context.Background())
		require.NoError(t, err)
		require.Empty(t, stored.AccessToken)
	})

	t.Run("backend failure keeps token", func(t *testing.T) {
		t.Parallel()
		backend := &mockBackend{
			sessionFn: func(context.Context, string) (Account, error) {
				return Account{}, errors.New("connection refused")
			},
		}
		tokens := &MemoryTokenStore{}
		require.NoError(t, tokens.Save(context.Background(), Token{AccessToken: "kept"}))

		store, _ := newTestStore(t, backend, tokens)
		store.RestoreSession(context.Background())

		_, ok := store.Identity()
		require.False(t, ok)
		stored, err := tokens.Load(context.Background())
		require.NoError(t, err)
		require.Equal(t, "kept", stored.AccessToken)
	})
}

func TestSignInPersistsTokenAndLoadsProfileThroughChanges(t *testing.T) {
	t.Parallel()

	account := fixtureAccount(access.RoleMember, nil)
	backend := &mockBackend{
		signInFn: func(_ context.Context, email, password string) (Account, error) {
			require.Equal(t, "a@b.com", email)
			require.Equal(t, "Secret123", password)
			withoutProfile := account
			withoutProfile.Profile = nil
			return withoutProfile, nil
		},
		sessionFn: func(context.Context, string) (Account, error) {
			return account, nil
		},
	}
	tokens := &MemoryTokenStore{}
	store, _ := newTestStore(t, backend, tokens)

	require.NoError(t, store.SignIn(context.Background(), "a@b.com", "Secret123"))

	stored, err := tokens.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, account.AccessToken, stored.AccessToken)
	require.Equal(t, account.AccessToken, store.AccessToken())
	require.Equal(t, 1, backend.calls())

	profile, ok := store.Profile()
	require.True(t, ok)
	require.Equal(t, account.Profile.ID, profile.ID)
}

func TestSignInReturnsTypedAuthError(t *testing.T) {
	t.Parallel()

	backend := &mockBackend{
		signInFn: func(context.Context, string, string) (Account, error) {
			return Account{}, auth.NewError(auth.KindInvalidCredentials, nil)
		},
	}
	tokens := &MemoryTokenStore{}
	store, _ := newTestStore(t, backend, tokens)

	err := store.SignIn(context.Background(), "a@b.com", "wrong")
	require.Equal(t, auth.KindInvalidCredentials, auth.KindOf(err))

	_, ok := store.Identity()
	require.False(t, ok)
	stored, _ := tokens.Load(context.Background())
	require.Empty(t, stored.AccessToken)
}

func TestSignUpForwardsOrganization(t *testing.T) {
	t.Parallel()

	var got SignUpInput
	backend := &mockBackend{
		signUpFn: func(_ context.Context, input SignUpInput) error {
			got = input
			return nil
		},
	}
	store, _ := newTestStore(t, backend, nil)

	require.NoError(t, store.SignUp(context.Background(), "a@b.com", "Secret123", "Ana", "Igreja X"))
	require.Equal(t, SignUpInput{Email: "a@b.com", Password: "Secret123", Name: "Ana", OrganizationName: "Igreja X"}, got)

	_, ok := store.Identity()
	require.False(t, ok)
}

func TestRefreshProfileKeepsPreviousOnFailure(t *testing.T) {
	t.Parallel()

	account := fixtureAccount(access.RoleAdmin, nil)
	var next func() (Account, error)
	backend := &mockBackend{
		signInFn: func(context.Context, string, string) (Account, error) { return account, nil },
		sessionFn: func(context.Context, string) (Account, error) {
			if next != nil {
				return next()
			}
			return account, nil
		},
	}
	store, rec := newTestStore(t, backend, nil)
	require.NoError(t, store.SignIn(context.Background(), "a@b.com", "Secret123"))
	require.True(t, store.IsAdmin())

	t.Run("backend error", func(t *testing.T) {
		next = func() (Account, error) { return Account{}, errors.New("timeout") }
		err := store.RefreshProfile(context.Background())
		require.Error(t, err)
		require.True(t, store.IsAdmin())
	})

	t.Run("missing role", func(t *testing.T) {
		next = func() (Account, error) {
			broken := account
			p := *account.Profile
			p.Role = ""
			broken.Profile = &p
			return broken, nil
		}
		err := store.RefreshProfile(context.Background())
		require.ErrorIs(t, err, ErrMalformedProfile)
		require.True(t, store.IsAdmin())
	})

	t.Run("absent row", func(t *testing.T) {
		next = func() (Account, error) {
			absent := account
			absent.Profile = nil
			return absent, nil
		}
		err := store.RefreshProfile(context.Background())
		require.ErrorIs(t, err, ErrMalformedProfile)
		require.True(t, store.IsAdmin())
	})

	require.Len(t, rec.Errors(), 3)
}

func TestRefreshProfileRequiresIdentity(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, &mockBackend{}, nil)
	require.ErrorIs(t, store.RefreshProfile(context.Background()), ErrUnauthenticated)
}

func TestSignOutClearsStateEvenWhenRevokeFails(t *testing.T) {
	t.Parallel()

	account := fixtureAccount(access.RoleLeader, nil)
	backend := &mockBackend{
		signInFn:  func(context.Context, string, string) (Account, error) { return account, nil },
		sessionFn: func(context.Context, string) (Account, error) { return account, nil },
		signOutFn: func(_ context.Context, token string) error {
			require.Equal(t, account.AccessToken, token)
			return errors.New("network down")
		},
	}
	tokens := &MemoryTokenStore{}
	store, _ := newTestStore(t, backend, tokens)
	require.NoError(t, store.SignIn(context.Background(), "a@b.com", "Secret123"))
	kinds := collectKinds(store)

	err := store.SignOut(context.Background())
	require.Error(t, err)

	_, ok := store.Identity()
	require.False(t, ok)
	_, ok = store.Profile()
	require.False(t, ok)
	require.Empty(t, store.AccessToken())
	stored, _ := tokens.Load(context.Background())
	require.Empty(t, stored.AccessToken)
	require.Equal(t, []ChangeKind{SignedOut}, kinds())
}

func TestRoleHierarchyAndPermissions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role                        access.Role
		admin, leader, member       bool
		manageEvents, registerEvent bool
	}{
		{access.RoleAdmin, true, true, true, true, true},
		{access.RoleLeader, false, true, true, true, false},
		{access.RoleMember, false, false, true, false, true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(string(tc.role), func(t *testing.T) {
			t.Parallel()
			account := fixtureAccount(tc.role, nil)
			backend := &mockBackend{
				signInFn:  func(context.Context, string, string) (Account, error) { return account, nil },
				sessionFn: func(context.Context, string) (Account, error) { return account, nil },
			}
			store, _ := newTestStore(t, backend, nil)
			require.NoError(t, store.SignIn(context.Background(), "a@b.com", "Secret123"))

			require.Equal(t, tc.admin, store.IsAdmin())
			require.Equal(t, tc.leader, store.IsLeader())
			require.Equal(t, tc.member, store.IsMember())
			require.Equal(t, tc.manageEvents, store.HasPermission(access.ManageEvents))
			require.Equal(t, tc.registerEvent, store.HasPermission(access.RegisterForEvents))
			if store.IsAdmin() {
				require.True(t, store.IsLeader())
			}
			if store.IsLeader() {
				require.True(t, store.IsMember())
			}
		})
	}

	t.Run("signed out", func(t *testing.T) {
		t.Parallel()
		store, _ := newTestStore(t, &mockBackend{}, nil)
		require.False(t, store.IsMember())
		require.False(t, store.HasPermission(access.ViewPublicEvents))
	})
}

func TestFileTokenStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "igreja", "session.yaml")
	store := FileTokenStore{Path: path}
	ctx := context.Background()

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, empty.AccessToken)

	want := Token{AccessToken: "abc", ExpiresAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), Email: "a@b.com"}
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want.AccessToken, got.AccessToken)
	require.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, got.AccessToken)
}
