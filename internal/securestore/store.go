// Package securestore provides opaque named storage for small secret strings:
// the session token, the cached user profile and sealed biometric credentials.
package securestore

import "errors"

// ErrNotFound indicates no value is stored under the requested name.
var ErrNotFound = errors.New("securestore: value not found")

// Store persists named string values. Implementations must make Put durable
// before returning so a crash immediately after a successful call cannot
// lose the value.
type Store interface {
	Put(name, value string) error
	Get(name string) (string, error)
	Delete(name string) error
}
