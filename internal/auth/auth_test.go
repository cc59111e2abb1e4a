// AngelaMos | 2026
// auth_test.go

package auth

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorser/backend/internal/config"
	"github.com/sorser/backend/internal/core"
)

func newJWT(t *testing.T) *JWTManager {
	t.Helper()
	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(priv, pub))

	m, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:     priv,
		PublicKeyPath:      pub,
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 24 * time.Hour,
		Issuer:             "sorser",
		Audience:           "sorser-api",
	})
	require.NoError(t, err)
	return m
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*UserInfo
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Create(_ context.Context, email, hash, name string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return nil, core.ErrDuplicateKey
		}
	}
	u := &UserInfo{ID: "u-" + email, Email: email, Name: name, PasswordHash: hash, CreatedAt: time.Now()}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memUsers) IncrementTokenVersion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id].TokenVersion++
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id].PasswordHash = hash
	return nil
}

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
}

func (m *memTokens) Create(_ context.Context, t *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	cp.CreatedAt = time.Now()
	m.tokens[t.ID] = &cp
	return nil
}

func (m *memTokens) FindByHash(_ context.Context, hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memTokens) FindByID(_ context.Context, id string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTokens) Rotate(_ context.Context, id, nextID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok || t.RotatedAt != nil {
		return core.ErrNotFound
	}
	now := time.Now()
	t.RotatedAt = &now
	t.RotatedTo = &nextID
	return nil
}

func (m *memTokens) revokeWhere(match func(*RefreshToken) bool, reason RevokeReason) int64 {
	var n int64
	now := time.Now()
	for _, t := range m.tokens {
		if t.RevokedAt == nil && match(t) {
			t.RevokedAt = &now
			t.RevokedReason = &reason
			n++
		}
	}
	return n
}

func (m *memTokens) Revoke(_ context.Context, id string, reason RevokeReason) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revokeWhere(func(t *RefreshToken) bool { return t.ID == id }, reason) == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (m *memTokens) RevokeFamily(_ context.Context, family string, reason RevokeReason) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revokeWhere(func(t *RefreshToken) bool { return t.FamilyID == family }, reason), nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string, reason RevokeReason) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revokeWhere(func(t *RefreshToken) bool { return t.UserID == userID }, reason), nil
}

func (m *memTokens) ActiveSessions(_ context.Context, userID string) ([]RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RefreshToken
	now := time.Now()
	for _, t := range m.tokens {
		if t.UserID == userID && t.State(now) == TokenActive {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTokens) PruneExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tokens {
		if t.ExpiresAt.Before(before) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

// reasons lists the recorded reason of every revoked token of userID.
func (m *memTokens) reasons(userID string) []RevokeReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RevokeReason
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedReason != nil {
			out = append(out, *t.RevokedReason)
		}
	}
	return out
}

func newService(t *testing.T) (*Service, *memUsers) {
	t.Helper()
	svc, users, _ := newServiceWithTokens(t)
	return svc, users
}

func newServiceWithTokens(t *testing.T) (*Service, *memUsers, *memTokens) {
	t.Helper()
	users := &memUsers{users: map[string]*UserInfo{}}
	tokens := &memTokens{tokens: map[string]*RefreshToken{}}
	return NewService(tokens, newJWT(t), users, nil), users, tokens
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newJWT(t)

	tok, err := m.CreateAccessToken(AccessTokenClaims{UserID: "u-1", TokenVersion: 3})
	require.NoError(t, err)

	claims, err := m.VerifyAccessToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, 3, claims.TokenVersion)

	_, err = newJWT(t).VerifyAccessToken(context.Background(), tok)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestRegisterThenLogin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{
		Email: "ana@example.com", Password: "correct-horse", Name: "Ana",
	}, "test", "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", reg.User.Email)
	assert.NotEmpty(t, reg.Tokens.AccessToken)

	_, err = svc.Register(ctx, RegisterRequest{
		Email: "ana@example.com", Password: "another-pass", Name: "Ana",
	}, "test", "127.0.0.1")
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = svc.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "wrong-pass"}, "test", "127.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	login, err := svc.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "correct-horse"}, "test", "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)
}

func TestBlockedUserCannotLoginOrRefresh(t *testing.T) {
	svc, users := newService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{
		Email: "bo@example.com", Password: "correct-horse", Name: "Bo",
	}, "test", "127.0.0.1")
	require.NoError(t, err)

	users.users[reg.User.ID].Blocked = true

	_, err = svc.Login(ctx, LoginRequest{Email: "bo@example.com", Password: "correct-horse"}, "test", "127.0.0.1")
	assert.ErrorIs(t, err, core.ErrAccountBlocked)

	_, err = svc.Refresh(ctx, reg.Tokens.RefreshToken, "test", "127.0.0.1")
	assert.ErrorIs(t, err, core.ErrAccountBlocked)

	sessions, err := svc.GetActiveSessions(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRefreshReuseRevokesFamily(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{
		Email: "cy@example.com", Password: "correct-horse", Name: "Cy",
	}, "test", "127.0.0.1")
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, reg.Tokens.RefreshToken, "test", "127.0.0.1")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, reg.Tokens.RefreshToken, "test", "127.0.0.1")
	assert.ErrorIs(t, err, ErrTokenReuse)

	_, err = svc.Refresh(ctx, next.Tokens.RefreshToken, "test", "127.0.0.1")
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestRevocationsRecordTheirReason(t *testing.T) {
	svc, _, tokens := newServiceWithTokens(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{
		Email: "ed@example.com", Password: "correct-horse", Name: "Ed",
	}, "test", "127.0.0.1")
	require.NoError(t, err)
	second, err := svc.Login(ctx, LoginRequest{Email: "ed@example.com", Password: "correct-horse"}, "test", "10.0.0.2")
	require.NoError(t, err)

	sessions, err := svc.GetActiveSessions(ctx, reg.User.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	require.NoError(t, svc.Logout(ctx, second.Tokens.RefreshToken, reg.User.ID))
	assert.Equal(t, []RevokeReason{ReasonLogout}, tokens.reasons(reg.User.ID))

	require.NoError(t, svc.ChangePassword(ctx, reg.User.ID, "correct-horse", "battery-staple"))
	assert.ElementsMatch(t, []RevokeReason{ReasonLogout, ReasonPasswordChanged}, tokens.reasons(reg.User.ID))

	n, err := tokens.RevokeAllForUser(ctx, reg.User.ID, ReasonAccountBlocked)
	require.NoError(t, err)
	assert.Zero(t, n, "already revoked tokens keep their first reason")

	sessions, err = svc.GetActiveSessions(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestTokenState(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Hour)
	reason := ReasonLogout

	assert.Equal(t, TokenActive, (&RefreshToken{ExpiresAt: later}).State(now))
	assert.Equal(t, TokenExpired, (&RefreshToken{ExpiresAt: now}).State(now))
	assert.Equal(t, TokenRevoked, (&RefreshToken{ExpiresAt: later, RevokedAt: &now, RevokedReason: &reason}).State(now))
	assert.Equal(t, TokenRotated, (&RefreshToken{ExpiresAt: later, RotatedAt: &now, RevokedAt: &now}).State(now))
}

func TestPruneSessionsKeepsRecentlyExpired(t *testing.T) {
	tokens := &memTokens{tokens: map[string]*RefreshToken{}}
	now := time.Now()
	ctx := context.Background()

	require.NoError(t, tokens.Create(ctx, &RefreshToken{ID: "old", ExpiresAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, tokens.Create(ctx, &RefreshToken{ID: "recent", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, tokens.Create(ctx, &RefreshToken{ID: "live", ExpiresAt: now.Add(time.Hour)}))

	n, err := PruneSessions(ctx, tokens, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = tokens.FindByID(ctx, "old")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = tokens.FindByID(ctx, "recent")
	assert.NoError(t, err)
}

func TestVerifyAccessTokenChecksVersion(t *testing.T) {
	svc, users := newService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{
		Email: "di@example.com", Password: "correct-horse", Name: "Di",
	}, "test", "127.0.0.1")
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(ctx, reg.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)

	require.NoError(t, users.IncrementTokenVersion(ctx, reg.User.ID))
	_, err = svc.VerifyAccessToken(ctx, reg.Tokens.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)

	users.users[reg.User.ID].Blocked = true
	_, err = svc.VerifyAccessToken(ctx, reg.Tokens.AccessToken)
	assert.ErrorIs(t, err, core.ErrAccountBlocked)
}

func TestRevokedAccessTokenIsRejected(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := &memUsers{users: map[string]*UserInfo{}}
	tokens := &memTokens{tokens: map[string]*RefreshToken{}}
	svc := NewService(tokens, newJWT(t), users, rdb)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{
		Email: "ed@example.com", Password: "correct-horse", Name: "Ed",
	}, "test", "127.0.0.1")
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(ctx, reg.Tokens.AccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, claims.ID)

	require.NoError(t, svc.RevokeAccessToken(ctx, claims.ID, claims.ExpiresAt))
	assert.True(t, mr.Exists("blacklist:"+claims.ID))

	_, err = svc.VerifyAccessToken(ctx, reg.Tokens.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}
