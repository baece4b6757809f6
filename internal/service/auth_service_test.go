package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glowspa/api/internal/config"
	"glowspa/api/internal/models"
	"glowspa/api/internal/security"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Security: config.SecurityConfig{
			JWTAccessSecret:    "test-secret",
			AccessTTL:          15 * time.Minute,
			RefreshTTL:         7 * 24 * time.Hour,
			SessionTTL:         24 * time.Hour,
			LockoutMaxAttempts: 5,
			LockoutWindow:      15 * time.Minute,
		},
	}
}

func newTestService(t *testing.T) (*AuthService, *fakeCredentialStore, *fakeSessionStore) {
	t.Helper()
	users := newFakeCredentialStore()
	sessions := newFakeSessionStore()
	svc := NewAuthService(users, sessions, nil, testConfig(), zerolog.Nop())
	return svc, users, sessions
}

func seedUser(t *testing.T, users *fakeCredentialStore, email, password string) models.User {
	t.Helper()
	hash, err := security.HashPassword(password)
	require.NoError(t, err)
	user := models.User{
		ID:           "user-" + email,
		Email:        email,
		PasswordHash: hash,
		DisplayName:  "Test User",
		Status:       models.UserStatusActive,
	}
	users.add(user)
	return user
}

func TestAuthenticateAndValidate(t *testing.T) {
	svc, users, sessions := newTestService(t)
	user := seedUser(t, users, "nurse@glowspa.test", "correct horse battery")
	ctx := context.Background()

	result, err := svc.Authenticate(ctx, AuthenticateInput{
		Identifier: "Nurse@GlowSpa.test",
		Password:   "correct horse battery",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.Nil(t, result.User.PasswordHash)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, int64(900), result.ExpiresInSeconds)

	// The session is live immediately after authentication.
	sessionCtx, err := svc.ValidateAccessToken(ctx, result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, sessionCtx.UserID)
	assert.Equal(t, result.SessionID, sessionCtx.SessionID)
	assert.Equal(t, 1, sessions.touches[result.SessionID], "validation should extend the sliding window")

	// And registered in the per-user set.
	ids, err := sessions.UserSessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Contains(t, ids, result.SessionID)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc, users, sessions := newTestService(t)
	seedUser(t, users, "nurse@glowspa.test", "right")
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, AuthenticateInput{Identifier: "nurse@glowspa.test", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.Equal(t, int64(1), sessions.lockouts["nurse@glowspa.test"])
}

func TestAuthenticateUnknownIdentifier(t *testing.T) {
	svc, _, sessions := newTestService(t)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, AuthenticateInput{Identifier: "ghost@glowspa.test", Password: "whatever"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.Equal(t, int64(1), sessions.lockouts["ghost@glowspa.test"], "unknown identifiers count toward lockout too")
}

func TestDecoyHashIsWellFormed(t *testing.T) {
	// A decoy that fails to parse would skip the argon2 work and make the
	// unknown-identifier path measurably faster than a real verification.
	ok, err := security.VerifyPassword("anything", decoyHash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockoutBlocksCorrectCredential(t *testing.T) {
	svc, users, _ := newTestService(t)
	seedUser(t, users, "nurse@glowspa.test", "right")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Authenticate(ctx, AuthenticateInput{Identifier: "nurse@glowspa.test", Password: "wrong"})
		assert.ErrorIs(t, err, ErrInvalidCredential)
	}

	lookupsBefore := users.lookups
	_, err := svc.Authenticate(ctx, AuthenticateInput{Identifier: "nurse@glowspa.test", Password: "right"})
	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.Equal(t, lookupsBefore, users.lookups, "locked identifiers must not reach the credential store")
}

func TestClearLockoutRestoresAccess(t *testing.T) {
	svc, users, _ := newTestService(t)
	seedUser(t, users, "nurse@glowspa.test", "right")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = svc.Authenticate(ctx, AuthenticateInput{Identifier: "nurse@glowspa.test", Password: "wrong"})
	}
	_, err := svc.Authenticate(ctx, AuthenticateInput{Identifier: "nurse@glowspa.test", Password: "right"})
	require.ErrorIs(t, err, ErrAccountLocked)

	require.NoError(t, svc.ClearLockout(ctx, "nurse@glowspa.test"))

	_, err = svc.Authenticate(ctx, AuthenticateInput{Identifier: "nurse@glowspa.test", Password: "right"})
	assert.NoError(t, err)
}

func TestSuccessfulLoginClearsLockoutCounter(t *testing.T) {
	svc, users, sessions := newTestService(t)
	seedUser(t, users, "nurse@glowspa.test", "right")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = svc.Authenticate(ctx, AuthenticateInput{Identifier: "nurse@glowspa.test", Password: "wrong"})
	}
	_, err := svc.Authenticate(ctx, AuthenticateInput{Identifier: "nurse@glowspa.test", Password: "right"})
	require.NoError(t, err)
	assert.Zero(t, sessions.lockouts["nurse@glowspa.test"])
}

func TestRefreshRotationIsSingleUse(t *testing.T) {
	svc, users, _ := newTestService(t)
	seedUser(t, users, "nurse@glowspa.test", "right")
	ctx := context.Background()

	login, err := svc.Authenticate(ctx, AuthenticateInput{Identifier: "nurse@glowspa.test", Password: "right"})
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)
	assert.Equal(t, login.SessionID, rotated.SessionID, "rotation keeps the session")

	// Replaying the consumed token is a security event: the whole session
	// family dies with it.
	_, err = svc.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenReuse)

	_, err = svc.ValidateAccessToken(ctx, rotated.AccessToken)
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestRefreshWithMalformedToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Refresh(context.Background(), "not-a-refresh-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeSessionInvalidatesAccessToken(t *testing.T) {
	svc, users, _ := newTestService(t)
	seedUser(t, users, "nurse@glowspa.test", "right")
	ctx := context.Background()

	login, err := svc.Authenticate(ctx, AuthenticateInput{Identifier: "nurse@glowspa.test", Password: "right"})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeSession(ctx, login.SessionID))

	// The JWT itself has not expired, but the backing session is gone.
	_, err = svc.ValidateAccessToken(ctx, login.AccessToken)
	assert.ErrorIs(t, err, ErrSessionExpired)

	// Revoking again is a no-op, not an error.
	assert.NoError(t, svc.RevokeSession(ctx, login.SessionID))
}

func TestRevokeAllSessions(t *testing.T) {
	svc, users, sessions := newTestService(t)
	user := seedUser(t, users, "nurse@glowspa.test", "right")
	ctx := context.Background()

	first, err := svc.Authenticate(ctx, AuthenticateInput{Identifier: "nurse@glowspa.test", Password: "right"})
	require.NoError(t, err)
	second, err := svc.Authenticate(ctx, AuthenticateInput{Identifier: "nurse@glowspa.test", Password: "right"})
	require.NoError(t, err)
	require.NotEqual(t, first.SessionID, second.SessionID)

	require.NoError(t, svc.RevokeAllSessions(ctx, user.ID))

	_, err = svc.ValidateAccessToken(ctx, first.AccessToken)
	assert.ErrorIs(t, err, ErrSessionExpired)
	_, err = svc.ValidateAccessToken(ctx, second.AccessToken)
	assert.ErrorIs(t, err, ErrSessionExpired)

	ids, err := sessions.UserSessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestChangePasswordRevokesEverySession(t *testing.T) {
	svc, users, _ := newTestService(t)
	user := seedUser(t, users, "nurse@glowspa.test", "old password!")
	ctx := context.Background()

	login, err := svc.Authenticate(ctx, AuthenticateInput{Identifier: "nurse@glowspa.test", Password: "old password!"})
	require.NoError(t, err)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "old password!", "new password!!"))

	_, err = svc.ValidateAccessToken(ctx, login.AccessToken)
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, err = svc.Authenticate(ctx, AuthenticateInput{Identifier: "nurse@glowspa.test", Password: "old password!"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = svc.Authenticate(ctx, AuthenticateInput{Identifier: "nurse@glowspa.test", Password: "new password!!"})
	assert.NoError(t, err)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	svc, users, _ := newTestService(t)
	user := seedUser(t, users, "nurse@glowspa.test", "old password!")

	err := svc.ChangePassword(context.Background(), user.ID, "not it", "new password!!")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestDisabledUserCannotAuthenticate(t *testing.T) {
	svc, users, _ := newTestService(t)
	hash, err := security.HashPassword("right")
	require.NoError(t, err)
	users.add(models.User{
		ID:           "u-disabled",
		Email:        "gone@glowspa.test",
		PasswordHash: hash,
		Status:       models.UserStatusDisabled,
	})

	_, err = svc.Authenticate(context.Background(), AuthenticateInput{Identifier: "gone@glowspa.test", Password: "right"})
	assert.ErrorIs(t, err, ErrUserDisabled)
}

func TestStoreOutageIsNotACredentialFailure(t *testing.T) {
	svc, users, sessions := newTestService(t)
	seedUser(t, users, "nurse@glowspa.test", "right")
	sessions.err = errStoreDown

	_, err := svc.Authenticate(context.Background(), AuthenticateInput{Identifier: "nurse@glowspa.test", Password: "right"})
	assert.ErrorIs(t, err, ErrInfrastructure)
	assert.NotErrorIs(t, err, ErrInvalidCredential)
}

func TestValidateGarbageToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.ValidateAccessToken(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenSignedWithOtherSecret(t *testing.T) {
	svc, _, _ := newTestService(t)
	token, err := security.GenerateAccessToken("other-secret", "u1", "s1", time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
