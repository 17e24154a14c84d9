// Package session owns the authenticated identity: it establishes sessions
// against the backend, persists them to the secure store before signaling
// success, and exposes them read-only to the rest of the client. There is no
// auto-login on cold start; the user always authenticates interactively.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zippy-pay/zippy_mobile/internal/api"
	"github.com/zippy-pay/zippy_mobile/internal/securestore"
)

const userName = "user"

// ErrNotAuthenticated indicates no session is currently established.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// Service manages the session lifecycle.
type Service struct {
	api    *api.Client
	store  securestore.Store
	device Authenticator
	logger *slog.Logger

	mu      sync.RWMutex
	current *Session
	subs    []func(Event)
}

// NewService builds a session service. The device authenticator may be nil
// when the host platform has no biometric hardware.
func NewService(client *api.Client, store securestore.Store, device Authenticator, logger *slog.Logger) *Service {
	return &Service{api: client, store: store, device: device, logger: logger}
}

// Subscribe registers a callback for session lifecycle events. Dependent
// caches use this to wire their logout invalidation explicitly.
func (s *Service) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Current returns a copy of the active session, if any.
func (s *Service) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Authenticated reports whether a session is established.
func (s *Service) Authenticated() bool {
	_, ok := s.Current()
	return ok
}

type authResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login authenticates with email and password. The token and user are
// persisted before the session is published to subscribers.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	var resp authResponse
	err := s.api.Post(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp, "Login failed")
	if err != nil {
		return Session{}, err
	}
	return s.adopt(resp.Token, resp.User)
}

// LoginWithToken establishes a session from a token the caller already holds,
// e.g. straight after registration.
func (s *Service) LoginWithToken(_ context.Context, token string, user User) (Session, error) {
	return s.adopt(token, user)
}

// Resume re-establishes the session a previous process persisted, without a
// network call. Never invoked implicitly at startup: the host decides when
// re-entry without interactive login is acceptable (the CLI does between
// one-shot commands; the mobile app never does).
func (s *Service) Resume(_ context.Context) (Session, error) {
	token, err := s.store.Get(api.TokenName)
	if err != nil {
		if errors.Is(err, securestore.ErrNotFound) {
			return Session{}, ErrNotAuthenticated
		}
		return Session{}, err
	}
	raw, err := s.store.Get(userName)
	if err != nil {
		if errors.Is(err, securestore.ErrNotFound) {
			return Session{}, ErrNotAuthenticated
		}
		return Session{}, err
	}
	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return Session{}, fmt.Errorf("decode persisted user: %w", err)
	}
	return s.adopt(token, user)
}

// RegisterInput captures the data needed to create an account.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// Register creates an account and establishes the returned session.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Session, error) {
	var resp authResponse
	if err := s.api.Post(ctx, "/auth/register", input, &resp, "Registration failed"); err != nil {
		return Session{}, err
	}
	return s.adopt(resp.Token, resp.User)
}

// VerifyEmail submits a one-time code. On success the local user is marked
// verified and re-persisted.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (Session, error) {
	if err := s.api.Post(ctx, "/auth/verify-email", map[string]string{
		"email": email,
		"code":  code,
	}, nil, "Email verification failed"); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Session{}, ErrNotAuthenticated
	}
	updated := *s.current
	updated.User.IsVerified = true
	if err := s.persistLocked(updated); err != nil {
		return Session{}, err
	}
	s.current = &updated
	return updated, nil
}

// SendVerification asks the backend to email a fresh verification code.
func (s *Service) SendVerification(ctx context.Context, email string) error {
	return s.api.Post(ctx, "/auth/send-verification", map[string]string{"email": email}, nil,
		"Failed to send verification code")
}

// CurrentUser fetches the profile from the backend. A 401 here does not
// strip the stored token (see api.UserProbePath).
func (s *Service) CurrentUser(ctx context.Context) (User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := s.api.Get(ctx, api.UserProbePath, &resp, "Failed to get user"); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

// ProfileInput captures editable profile fields.
type ProfileInput struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// UpdateProfile changes profile fields and re-persists the local user copy.
func (s *Service) UpdateProfile(ctx context.Context, input ProfileInput) (Session, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := s.api.Put(ctx, "/user/profile", input, &resp, "Profile update failed"); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Session{}, ErrNotAuthenticated
	}
	updated := *s.current
	updated.User = resp.User
	if err := s.persistLocked(updated); err != nil {
		return Session{}, err
	}
	s.current = &updated
	return updated, nil
}

// ChangePassword rotates the account password.
func (s *Service) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	return s.api.Put(ctx, "/user/password", map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	}, nil, "Password change failed")
}

// ForgotPassword requests a reset email.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	return s.api.Post(ctx, "/auth/forgot-password", map[string]string{"email": email}, nil,
		"Failed to send reset email")
}

// ResetPassword completes a reset with the emailed token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.api.Post(ctx, "/auth/reset-password", map[string]string{
		"token":       token,
		"newPassword": newPassword,
	}, nil, "Failed to reset password")
}

// Logout clears the persisted token and user and notifies subscribers so
// dependent caches reset themselves.
func (s *Service) Logout() error {
	s.mu.Lock()
	if err := s.store.Delete(api.TokenName); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("clear token: %w", err)
	}
	if err := s.store.Delete(userName); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("clear user: %w", err)
	}
	s.current = nil
	subs := append([]func(Event){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(EventLogout)
	}
	return nil
}

func (s *Service) adopt(token string, user User) (Session, error) {
	if token == "" {
		return Session{}, fmt.Errorf("session: backend returned no token")
	}
	sess := Session{Token: token, User: user}

	s.mu.Lock()
	if err := s.persistLocked(sess); err != nil {
		s.mu.Unlock()
		return Session{}, err
	}
	s.current = &sess
	subs := append([]func(Event){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(EventLogin)
	}
	return sess, nil
}

// persistLocked writes the session to the secure store. Called with s.mu held.
// Persisting before publishing means a crash right after a successful call
// cannot lose the session.
func (s *Service) persistLocked(sess Session) error {
	if err := s.store.Put(api.TokenName, sess.Token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	encoded, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.store.Put(userName, string(encoded)); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	return nil
}
