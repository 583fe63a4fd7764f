package local

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
)

type memoryIdentities struct {
	mu   sync.Mutex
	byID map[uuid.UUID]persistence.Identity
}

func newMemoryIdentities() *memoryIdentities {
	return &memoryIdentities{byID: make(map[uuid.UUID]persistence.Identity)}
}

func (m *memoryIdentities) CreateIdentity(_ context.Context, params persistence.CreateIdentityParams) (persistence.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(params.Email)
	for _, existing := range m.byID {
		if existing.Email == email {
			return persistence.Identity{}, persistence.ErrConflict
		}
	}
	record := persistence.Identity{
		ID:               params.ID,
		Email:            email,
		Name:             params.Name,
		PasswordHash:     params.PasswordHash,
		EmailConfirmedAt: params.EmailConfirmedAt,
		CreatedAt:        time.Now(),
	}
	m.byID[record.ID] = record
	return record, nil
}

func (m *memoryIdentities) GetIdentity(_ context.Context, id uuid.UUID) (persistence.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.byID[id]
	if !ok {
		return persistence.Identity{}, persistence.ErrNotFound
	}
	return record, nil
}

func (m *memoryIdentities) GetIdentityByEmail(_ context.Context, email string) (persistence.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.byID {
		if record.Email == email {
			return record, nil
		}
	}
	return persistence.Identity{}, persistence.ErrNotFound
}

func (m *memoryIdentities) update(id uuid.UUID, fn func(*persistence.Identity)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.byID[id]
	if !ok {
		return persistence.ErrNotFound
	}
	fn(&record)
	m.byID[id] = record
	return nil
}

func (m *memoryIdentities) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	return m.update(id, func(r *persistence.Identity) { r.PasswordHash = hash })
}

func (m *memoryIdentities) BumpSessionEpoch(_ context.Context, id uuid.UUID) error {
	return m.update(id, func(r *persistence.Identity) { r.SessionEpoch++ })
}

func (m *memoryIdentities) ConfirmEmail(_ context.Context, id uuid.UUID) error {
	now := time.Now()
	return m.update(id, func(r *persistence.Identity) { r.EmailConfirmedAt = &now })
}

func (m *memoryIdentities) DeleteIdentity(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestProvider(t *testing.T, cfg Config) (*Provider, *memoryIdentities) {
	t.Helper()
	store := newMemoryIdentities()
	cfg.Secret = testSecret
	cfg.BcryptCost = bcrypt.MinCost
	p, err := New(store, cfg)
	require.NoError(t, err)
	return p, store
}

func TestNewRejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := New(newMemoryIdentities(), Config{Secret: []byte("short")})
	require.Error(t, err)
}

func TestSignUpThenSignIn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, _ := newTestProvider(t, Config{})

	identity, err := p.SignUp(ctx, auth.SignUpParams{Email: "pastor@example.com", Password: "Senha123", Name: "Pastor"})
	require.NoError(t, err)
	require.True(t, identity.EmailConfirmed)

	session, err := p.SignIn(ctx, "  Pastor@Example.com ", "Senha123")
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken)
	require.Equal(t, identity.ID, session.Identity.ID)

	verified, err := p.Verify(ctx, session.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "pastor@example.com", verified.Email)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, _ := newTestProvider(t, Config{})

	_, err := p.SignUp(ctx, auth.SignUpParams{Email: "dup@example.com", Password: "Senha123", Name: "A"})
	require.NoError(t, err)

	_, err = p.SignUp(ctx, auth.SignUpParams{Email: "dup@example.com", Password: "Senha123", Name: "B"})
	require.Equal(t, auth.KindAlreadyRegistered, auth.KindOf(err))
}

func TestSignInFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, _ := newTestProvider(t, Config{RequireEmailConfirmation: true})

	identity, err := p.SignUp(ctx, auth.SignUpParams{Email: "new@example.com", Password: "Senha123", Name: "Novo"})
	require.NoError(t, err)
	require.False(t, identity.EmailConfirmed)

	_, err = p.SignIn(ctx, "missing@example.com", "Senha123")
	require.Equal(t, auth.KindInvalidCredentials, auth.KindOf(err))

	_, err = p.SignIn(ctx, "new@example.com", "wrong")
	require.Equal(t, auth.KindInvalidCredentials, auth.KindOf(err))

	_, err = p.SignIn(ctx, "new@example.com", "Senha123")
	require.Equal(t, auth.KindEmailUnconfirmed, auth.KindOf(err))

	require.NoError(t, p.ConfirmEmail(ctx, identity.ID))
	_, err = p.SignIn(ctx, "new@example.com", "Senha123")
	require.NoError(t, err)
}

func TestSignOutRevokesSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, _ := newTestProvider(t, Config{})

	_, err := p.SignUp(ctx, auth.SignUpParams{Email: "out@example.com", Password: "Senha123", Name: "Out"})
	require.NoError(t, err)
	session, err := p.SignIn(ctx, "out@example.com", "Senha123")
	require.NoError(t, err)

	require.NoError(t, p.SignOut(ctx, session.AccessToken))

	_, err = p.Verify(ctx, session.AccessToken)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	// already revoked tokens sign out quietly
	require.NoError(t, p.SignOut(ctx, session.AccessToken))
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	p, store := newTestProvider(t, Config{TokenTTL: time.Minute, Now: clock})

	_, err := p.SignUp(ctx, auth.SignUpParams{Email: "exp@example.com", Password: "Senha123", Name: "Exp"})
	require.NoError(t, err)
	session, err := p.SignIn(ctx, "exp@example.com", "Senha123")
	require.NoError(t, err)

	later, err := New(store, Config{Secret: testSecret, Now: func() time.Time { return now.Add(2 * time.Minute) }})
	require.NoError(t, err)
	_, err = later.Verify(ctx, session.AccessToken)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	other, err := New(store, Config{Secret: []byte("ffffffffffffffffffffffffffffffff"), Now: clock})
	require.NoError(t, err)
	_, err = other.Verify(ctx, session.AccessToken)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = p.Verify(ctx, "not-a-token")
	require.True(t, errors.Is(err, auth.ErrInvalidToken))
}

func TestUpdatePasswordAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, _ := newTestProvider(t, Config{})

	identity, err := p.SignUp(ctx, auth.SignUpParams{Email: "pw@example.com", Password: "Senha123", Name: "Pw"})
	require.NoError(t, err)

	require.NoError(t, p.UpdatePassword(ctx, identity.ID, "NovaSenha9"))
	_, err = p.SignIn(ctx, "pw@example.com", "Senha123")
	require.Equal(t, auth.KindInvalidCredentials, auth.KindOf(err))
	_, err = p.SignIn(ctx, "pw@example.com", "NovaSenha9")
	require.NoError(t, err)

	require.NoError(t, p.DeleteIdentity(ctx, identity.ID))
	require.NoError(t, p.DeleteIdentity(ctx, identity.ID))
}
