package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"glowspa/api/internal/audit"
	"glowspa/api/internal/config"
	"glowspa/api/internal/models"
	"glowspa/api/internal/repository"
	"glowspa/api/internal/security"
)

// CredentialStore is the read/write surface the service needs from the user
// backend. *repository.UserRepository satisfies it.
type CredentialStore interface {
	FindByIdentifier(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	Assignments(ctx context.Context, userID string) ([]models.RoleAssignment, error)
	UpdatePassword(ctx context.Context, userID string, passwordHash []byte) error
}

// SessionStore is the TTL key-value surface backing sessions, refresh
// hashes, lockout counters and per-user session sets.
// *repository.SessionStore satisfies it.
type SessionStore interface {
	PutSession(ctx context.Context, session models.Session, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
	TouchSession(ctx context.Context, sessionID string, ttl time.Duration) error
	DeleteSession(ctx context.Context, sessionID string) error
	PutRefreshHash(ctx context.Context, sessionID string, hash []byte, ttl time.Duration) error
	RotateRefreshHash(ctx context.Context, sessionID string, oldHash, newHash []byte, ttl time.Duration) (repository.RotateResult, error)
	DeleteRefreshHash(ctx context.Context, sessionID string) error
	IncrLockout(ctx context.Context, identifier string, window time.Duration) (int64, error)
	GetLockout(ctx context.Context, identifier string) (int64, error)
	ClearLockout(ctx context.Context, identifier string) error
	AddUserSession(ctx context.Context, userID, sessionID string) error
	RemoveUserSession(ctx context.Context, userID, sessionID string) error
	UserSessions(ctx context.Context, userID string) ([]string, error)
}

// AuthService owns the session lifecycle: credential validation behind the
// lockout gate, token issuance, sliding validation, refresh rotation with
// reuse detection, and revocation.
type AuthService struct {
	users    CredentialStore
	sessions SessionStore
	auditor  *audit.Recorder
	cfg      *config.AppConfig
	log      zerolog.Logger
}

func NewAuthService(
	users CredentialStore,
	sessions SessionStore,
	auditor *audit.Recorder,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		auditor:  auditor,
		cfg:      cfg,
		log:      log,
	}
}

// decoyHash is a well-formed argon2id hash (with the default parameters)
// that matches no password. Compared against when no credential exists.
var decoyHash = []byte("$argon2id$v=19$t=3,m=65536,p=2$AAAAAAAAAAAAAAAAAAAAAA==$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")

type AuthenticateInput struct {
	Identifier        string
	Password          string
	DeviceFingerprint string
	DeviceClass       models.DeviceClass
	IPAddress         string
	UserAgent         string
}

type AuthResult struct {
	AccessToken      string
	RefreshToken     string
	ExpiresInSeconds int64
	SessionID        string
	User             models.User
}

// Authenticate validates credentials and opens a session. The lockout gate
// runs before the credential store is consulted, so a locked identifier
// learns nothing about whether its password was correct.
func (s *AuthService) Authenticate(ctx context.Context, input AuthenticateInput) (AuthResult, error) {
	identifier := strings.TrimSpace(strings.ToLower(input.Identifier))
	if identifier == "" || input.Password == "" {
		return AuthResult{}, ErrInvalidCredential
	}

	count, err := s.sessions.GetLockout(ctx, identifier)
	if err != nil {
		return AuthResult{}, infraErr("lockout lookup", err)
	}
	if count >= int64(s.cfg.Security.LockoutMaxAttempts) {
		s.auditor.Record(audit.Event{Actor: identifier, Action: audit.ActionLockout, IPAddress: input.IPAddress})
		return AuthResult{}, ErrAccountLocked
	}

	user, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Burn the same hashing cost a real verification would, so
			// response timing does not reveal whether the identifier exists.
			_, _ = security.VerifyPassword(input.Password, decoyHash)
			return AuthResult{}, s.registerFailure(ctx, identifier, input.IPAddress)
		}
		return AuthResult{}, infraErr("credential lookup", err)
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return AuthResult{}, infraErr("verify password", err)
	}
	if !ok {
		return AuthResult{}, s.registerFailure(ctx, identifier, input.IPAddress)
	}

	if user.Status != models.UserStatusActive {
		return AuthResult{}, ErrUserDisabled
	}

	if err := s.sessions.ClearLockout(ctx, identifier); err != nil {
		return AuthResult{}, infraErr("clear lockout", err)
	}

	result, err := s.openSession(ctx, user, input)
	if err != nil {
		return AuthResult{}, err
	}

	s.auditor.Record(audit.Event{Actor: user.ID, Action: audit.ActionLogin, IPAddress: input.IPAddress})
	return result, nil
}

func (s *AuthService) registerFailure(ctx context.Context, identifier, ip string) error {
	count, err := s.sessions.IncrLockout(ctx, identifier, s.cfg.Security.LockoutWindow)
	if err != nil {
		return infraErr("lockout increment", err)
	}
	event := audit.ActionLoginFailed
	if count >= int64(s.cfg.Security.LockoutMaxAttempts) {
		event = audit.ActionLockout
		s.log.Warn().Str("identifier", identifier).Int64("attempts", count).Msg("identifier locked out")
	}
	s.auditor.Record(audit.Event{Actor: identifier, Action: event, IPAddress: ip})
	return ErrInvalidCredential
}

// openSession persists the session and refresh record before any token
// leaves the service. A caller that vanishes mid-call at worst leaves an
// unused valid session behind, never a token without a backing session.
func (s *AuthService) openSession(ctx context.Context, user models.User, input AuthenticateInput) (AuthResult, error) {
	sessionID, err := security.NewSessionID()
	if err != nil {
		return AuthResult{}, infraErr("session id", err)
	}

	now := time.Now().UTC()
	session := models.Session{
		ID:                sessionID,
		UserID:            user.ID,
		DeviceFingerprint: input.DeviceFingerprint,
		DeviceClass:       input.DeviceClass,
		IPAddress:         input.IPAddress,
		UserAgent:         input.UserAgent,
		CreatedAt:         now,
		LastSeenAt:        now,
	}

	refreshToken, refreshHash, err := security.NewRefreshToken(sessionID)
	if err != nil {
		return AuthResult{}, infraErr("refresh token", err)
	}

	if err := s.sessions.PutSession(ctx, session, s.cfg.Security.SessionTTL); err != nil {
		return AuthResult{}, infraErr("persist session", err)
	}
	if err := s.sessions.PutRefreshHash(ctx, sessionID, refreshHash, s.cfg.Security.RefreshTTL); err != nil {
		return AuthResult{}, infraErr("persist refresh hash", err)
	}
	if err := s.sessions.AddUserSession(ctx, user.ID, sessionID); err != nil {
		return AuthResult{}, infraErr("register user session", err)
	}

	accessToken, err := security.GenerateAccessToken(
		s.cfg.Security.JWTAccessSecret,
		user.ID,
		sessionID,
		s.cfg.Security.AccessTTL,
	)
	if err != nil {
		return AuthResult{}, infraErr("sign access token", err)
	}

	user.PasswordHash = nil
	return AuthResult{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresInSeconds: int64(s.cfg.Security.AccessTTL.Seconds()),
		SessionID:        sessionID,
		User:             user,
	}, nil
}

// SessionContext is the resolved identity handed to authorization.
type SessionContext struct {
	SessionID string
	UserID    string
}

// ValidateAccessToken checks signature and expiry, resolves the backing
// session and extends its sliding window.
func (s *AuthService) ValidateAccessToken(ctx context.Context, token string) (SessionContext, error) {
	claims, err := security.ParseAccessToken(token, s.cfg.Security.JWTAccessSecret)
	if err != nil {
		return SessionContext{}, ErrInvalidToken
	}

	session, err := s.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return SessionContext{}, ErrSessionExpired
		}
		return SessionContext{}, infraErr("session lookup", err)
	}
	if session.UserID != claims.UserID {
		return SessionContext{}, ErrInvalidToken
	}

	if err := s.sessions.TouchSession(ctx, session.ID, s.cfg.Security.SessionTTL); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return SessionContext{}, ErrSessionExpired
		}
		return SessionContext{}, infraErr("touch session", err)
	}

	return SessionContext{SessionID: session.ID, UserID: session.UserID}, nil
}

// Refresh rotates the refresh token for a session. The stored hash swap is
// atomic; a stale token loses the race, is treated as theft evidence, and
// costs the whole session its life.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	sessionID, secret, err := security.SplitRefreshToken(refreshToken)
	if err != nil {
		return AuthResult{}, ErrInvalidToken
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return AuthResult{}, ErrSessionExpired
		}
		return AuthResult{}, infraErr("session lookup", err)
	}

	newRefreshToken, newHash, err := security.NewRefreshToken(sessionID)
	if err != nil {
		return AuthResult{}, infraErr("refresh token", err)
	}

	presented := security.HashRefreshToken(secret)
	outcome, err := s.sessions.RotateRefreshHash(ctx, sessionID, presented, newHash, s.cfg.Security.RefreshTTL)
	if err != nil {
		return AuthResult{}, infraErr("rotate refresh hash", err)
	}

	switch outcome {
	case repository.RotateMismatch:
		// The token was already rotated once: someone is replaying it.
		s.auditor.Record(audit.Event{Actor: session.UserID, Action: audit.ActionRefreshReuse})
		s.log.Warn().Str("user_id", session.UserID).Msg("refresh token reuse detected, revoking session")
		if err := s.RevokeSession(ctx, sessionID); err != nil {
			return AuthResult{}, err
		}
		return AuthResult{}, ErrRefreshTokenReuse
	case repository.RotateMissing:
		return AuthResult{}, ErrSessionExpired
	}

	if err := s.sessions.TouchSession(ctx, sessionID, s.cfg.Security.SessionTTL); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return AuthResult{}, infraErr("touch session", err)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrSessionExpired
		}
		return AuthResult{}, infraErr("user lookup", err)
	}
	if user.Status != models.UserStatusActive {
		return AuthResult{}, ErrUserDisabled
	}

	accessToken, err := security.GenerateAccessToken(
		s.cfg.Security.JWTAccessSecret,
		user.ID,
		sessionID,
		s.cfg.Security.AccessTTL,
	)
	if err != nil {
		return AuthResult{}, infraErr("sign access token", err)
	}

	s.auditor.Record(audit.Event{Actor: user.ID, Action: audit.ActionRefresh})
	user.PasswordHash = nil
	return AuthResult{
		AccessToken:      accessToken,
		RefreshToken:     newRefreshToken,
		ExpiresInSeconds: int64(s.cfg.Security.AccessTTL.Seconds()),
		SessionID:        sessionID,
		User:             user,
	}, nil
}

// RevokeSession tears down one session. Revoking a session that is already
// gone is not an error.
func (s *AuthService) RevokeSession(ctx context.Context, sessionID string) error {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return infraErr("session lookup", err)
	}

	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return infraErr("delete session", err)
	}
	if err := s.sessions.DeleteRefreshHash(ctx, sessionID); err != nil {
		return infraErr("delete refresh hash", err)
	}
	if session.UserID != "" {
		if err := s.sessions.RemoveUserSession(ctx, session.UserID, sessionID); err != nil {
			return infraErr("remove user session", err)
		}
		s.auditor.Record(audit.Event{Actor: session.UserID, Action: audit.ActionLogout})
	}
	return nil
}

// RevokeAllSessions signs the user out everywhere.
func (s *AuthService) RevokeAllSessions(ctx context.Context, userID string) error {
	sessionIDs, err := s.sessions.UserSessions(ctx, userID)
	if err != nil {
		return infraErr("list user sessions", err)
	}

	for _, sessionID := range sessionIDs {
		if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
			return infraErr("delete session", err)
		}
		if err := s.sessions.DeleteRefreshHash(ctx, sessionID); err != nil {
			return infraErr("delete refresh hash", err)
		}
		if err := s.sessions.RemoveUserSession(ctx, userID, sessionID); err != nil {
			return infraErr("remove user session", err)
		}
	}

	s.auditor.Record(audit.Event{Actor: userID, Action: audit.ActionRevokeAll})
	return nil
}

// ListSessions returns the live sessions for a user, skipping ids whose
// records already expired out of the store.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	sessionIDs, err := s.sessions.UserSessions(ctx, userID)
	if err != nil {
		return nil, infraErr("list user sessions", err)
	}

	sessions := make([]models.Session, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		session, err := s.sessions.GetSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				continue
			}
			return nil, infraErr("session lookup", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// ChangePassword re-hashes the credential and revokes every session,
// including the one making the call.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidCredential
		}
		return infraErr("user lookup", err)
	}

	ok, err := security.VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil {
		return infraErr("verify password", err)
	}
	if !ok {
		return ErrInvalidCredential
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return infraErr("hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return infraErr("update password", err)
	}

	s.auditor.Record(audit.Event{Actor: userID, Action: audit.ActionPasswordChange})
	return s.RevokeAllSessions(ctx, userID)
}

// ClearLockout resets the failed-attempt counter for an identifier.
// Operator-facing; authentication clears its own counter on success.
func (s *AuthService) ClearLockout(ctx context.Context, identifier string) error {
	identifier = strings.TrimSpace(strings.ToLower(identifier))
	if identifier == "" {
		return nil
	}
	if err := s.sessions.ClearLockout(ctx, identifier); err != nil {
		return infraErr("clear lockout", err)
	}
	s.auditor.Record(audit.Event{Actor: identifier, Action: audit.ActionLockoutCleared})
	return nil
}
