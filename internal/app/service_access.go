package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lexshelf/api/internal/auth"
	"lexshelf/api/internal/authpw"
	"lexshelf/api/internal/events"
	"lexshelf/api/internal/library"
	"lexshelf/api/internal/rbac"
	"lexshelf/api/internal/session"
	"lexshelf/api/internal/util"
)

const (
	credentialSet   = "set"
	credentialReset = "reset"
)

type Session struct {
	Token     string
	Role      rbac.Role
	JTI       string
	ExpiresAt time.Time
}

// LoginResult is returned by Login. PasswordCreated is true when the call
// set the first password instead of verifying one.
type LoginResult struct {
	Session         Session
	PasswordCreated bool
}

// HasPassword reports whether an admin password has been set.
func (s *Service) HasPassword() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lib.Document().Credential != nil
}

// Login verifies password against the stored credential and opens an admin
// session. With no credential stored the password becomes the new one.
func (s *Service) Login(ctx context.Context, password string) (LoginResult, error) {
	created := false
	s.mu.Lock()
	doc := s.lib.Document()
	if doc.Credential == nil {
		cred, err := authpw.NewCredential(password)
		if err != nil {
			s.mu.Unlock()
			return LoginResult{}, err
		}
		doc.Credential = &cred
		if err := s.flushLocked(ctx, "set_password"); err != nil {
			s.mu.Unlock()
			return LoginResult{}, err
		}
		created = true
	} else if !authpw.Verify(doc.Credential, password) {
		s.mu.Unlock()
		s.logger.Info("admin login rejected")
		return LoginResult{}, fmt.Errorf("%w: wrong password", library.ErrUnauthorized)
	}
	s.mu.Unlock()

	if created {
		s.bus.Publish(events.Event{Type: events.CredentialChanged, Data: credentialSet})
	}
	sess, err := s.issueSession(ctx)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Session: sess, PasswordCreated: created}, nil
}

func (s *Service) issueSession(ctx context.Context) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.sessionTTL())
	jti := util.NewID("s")

	token, err := auth.IssueToken([]byte(s.cfg.SessionSecret), auth.Claims{
		Role: string(rbac.RoleAdmin),
		JTI:  jti,
		Iat:  now.Unix(),
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	if err := s.sessions.Save(ctx, auth.HashToken(jti), session.Session{
		Role:      string(rbac.RoleAdmin),
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}); err != nil {
		return Session{}, storageError("save session", err)
	}

	return Session{
		Token:     token,
		Role:      rbac.RoleAdmin,
		JTI:       jti,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) sessionTTL() time.Duration {
	if s.cfg.SessionTTL <= 0 {
		return 12 * time.Hour
	}
	return s.cfg.SessionTTL
}

// SessionFromToken resolves a bearer token to a live session. Tokens whose
// session was revoked, reset or expired are rejected as invalid.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.SessionSecret), token)
	if err != nil {
		return Session{}, err
	}
	stored, err := s.sessions.Lookup(ctx, auth.HashToken(claims.JTI))
	if errors.Is(err, session.ErrSessionNotFound) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, storageError("lookup session", err)
	}
	return Session{
		Token:     token,
		Role:      rbac.Normalize(stored.Role),
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, sess Session) error {
	if sess.JTI == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, auth.HashToken(sess.JTI)); err != nil {
		return storageError("revoke session", err)
	}
	return nil
}

func (s *Service) Can(role rbac.Role, action rbac.Action) bool {
	return rbac.Can(role, action)
}

// SetPassword replaces the admin credential. Open sessions stay valid.
func (s *Service) SetPassword(ctx context.Context, password string) error {
	cred, err := authpw.NewCredential(password)
	if err != nil {
		return err
	}
	return s.mutate(ctx, "set_password", func(lib *library.Library) (events.Event, error) {
		lib.Document().Credential = &cred
		return events.Event{Type: events.CredentialChanged, Data: credentialSet}, nil
	})
}

// ResetPassword clears the credential and signs out every admin session.
// The next login sets a new password.
func (s *Service) ResetPassword(ctx context.Context, confirm bool) error {
	if !confirm {
		return fmt.Errorf("%w: password reset", library.ErrConfirmationRequired)
	}
	// The credential is gone from memory even when the flush fails, so the
	// sessions go with it either way.
	flushErr := s.mutate(ctx, "reset_password", func(lib *library.Library) (events.Event, error) {
		lib.Document().Credential = nil
		return events.Event{Type: events.CredentialChanged, Data: credentialReset}, nil
	})
	revoked, err := s.sessions.RevokeAll(ctx)
	if err != nil {
		return storageError("revoke sessions", err)
	}
	s.logger.Info("admin password reset", zap.Int("revoked_sessions", revoked))
	return flushErr
}
