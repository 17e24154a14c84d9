package session

import (
	"context"
	"errors"

	"github.com/zippy-pay/zippy_mobile/internal/securestore"
)

const (
	biometricEnabledName  = "biometric_enabled"
	biometricEmailName    = "biometric_email"
	biometricPasswordName = "biometric_password"
)

var (
	// ErrBiometricNotEnrolled indicates biometric login was never enabled or
	// no credentials are sealed.
	ErrBiometricNotEnrolled = errors.New("session: biometric login not enabled")
	// ErrBiometricDenied indicates the device prompt was rejected or cancelled.
	ErrBiometricDenied = errors.New("session: biometric authentication denied")
)

// Authenticator is the device biometric prompt. Implementations return false
// when the user cancels or fails the prompt.
type Authenticator interface {
	Authenticate(ctx context.Context, prompt string) (bool, error)
}

// StaticAuthenticator answers every prompt with a fixed verdict. Used by the
// CLI and by tests.
type StaticAuthenticator struct {
	Allow bool
}

// Authenticate returns the configured verdict.
func (a StaticAuthenticator) Authenticate(context.Context, string) (bool, error) {
	return a.Allow, nil
}

// BiometricEnabled reports whether credentials are sealed for biometric login.
func (s *Service) BiometricEnabled() bool {
	enabled, err := s.store.Get(biometricEnabledName)
	return err == nil && enabled == "true"
}

// EnableBiometric seals the given credentials behind a device prompt.
func (s *Service) EnableBiometric(ctx context.Context, email, password string) error {
	if s.device == nil {
		return ErrBiometricNotEnrolled
	}
	ok, err := s.device.Authenticate(ctx, "Authenticate to enable biometric login")
	if err != nil {
		return err
	}
	if !ok {
		return ErrBiometricDenied
	}
	if err := s.store.Put(biometricEmailName, email); err != nil {
		return err
	}
	if err := s.store.Put(biometricPasswordName, password); err != nil {
		return err
	}
	return s.store.Put(biometricEnabledName, "true")
}

// DisableBiometric removes the sealed credentials.
func (s *Service) DisableBiometric() error {
	for _, name := range []string{biometricEmailName, biometricPasswordName, biometricEnabledName} {
		if err := s.store.Delete(name); err != nil {
			return err
		}
	}
	return nil
}

// LoginWithBiometric unseals the stored credentials behind a device prompt
// and re-runs the normal login.
func (s *Service) LoginWithBiometric(ctx context.Context) (Session, error) {
	if s.device == nil || !s.BiometricEnabled() {
		return Session{}, ErrBiometricNotEnrolled
	}

	ok, err := s.device.Authenticate(ctx, "Login with biometric")
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, ErrBiometricDenied
	}

	email, err := s.store.Get(biometricEmailName)
	if err != nil {
		if errors.Is(err, securestore.ErrNotFound) {
			return Session{}, ErrBiometricNotEnrolled
		}
		return Session{}, err
	}
	password, err := s.store.Get(biometricPasswordName)
	if err != nil {
		if errors.Is(err, securestore.ErrNotFound) {
			return Session{}, ErrBiometricNotEnrolled
		}
		return Session{}, err
	}

	return s.Login(ctx, email, password)
}
