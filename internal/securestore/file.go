package securestore

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const saltSize = 16

// ErrBadSecret indicates the store file exists but could not be opened with
// the provided secret.
var ErrBadSecret = errors.New("securestore: cannot decrypt store")

// FileStore keeps the whole value map in a single file sealed with
// XChaCha20-Poly1305. The key is derived from a caller-provided secret via
// Argon2id, salted per file.
type FileStore struct {
	mu     sync.Mutex
	path   string
	salt   []byte
	aead   cipher.AEAD
	values map[string]string
}

// NewFileStore opens or creates an encrypted store at path.
func NewFileStore(path string, secret []byte) (*FileStore, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("securestore: secret is required")
	}

	s := &FileStore{path: path, values: make(map[string]string)}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.salt = make([]byte, saltSize)
		if _, err := rand.Read(s.salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		s.aead = deriveAEAD(secret, s.salt)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read store: %w", err)
	}

	if len(raw) < saltSize+chacha20poly1305.NonceSizeX {
		return nil, ErrBadSecret
	}
	s.salt = raw[:saltSize]
	s.aead = deriveAEAD(secret, s.salt)

	nonce := raw[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	plaintext, err := s.aead.Open(nil, nonce, raw[saltSize+chacha20poly1305.NonceSizeX:], nil)
	if err != nil {
		return nil, ErrBadSecret
	}
	if err := json.Unmarshal(plaintext, &s.values); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	return s, nil
}

// Put stores the value and flushes the sealed file before returning.
func (s *FileStore) Put(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, existed := s.values[name]
	s.values[name] = value
	if err := s.persist(); err != nil {
		if existed {
			s.values[name] = previous
		} else {
			delete(s.values, name)
		}
		return err
	}
	return nil
}

// Get returns the value stored under name.
func (s *FileStore) Get(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[name]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Delete removes the value stored under name and flushes the sealed file.
func (s *FileStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, existed := s.values[name]
	if !existed {
		return nil
	}
	delete(s.values, name)
	if err := s.persist(); err != nil {
		s.values[name] = previous
		return err
	}
	return nil
}

func (s *FileStore) persist() error {
	plaintext, err := json.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	sealed := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+s.aead.Overhead())
	sealed = append(sealed, s.salt...)
	sealed = append(sealed, nonce...)
	sealed = s.aead.Seal(sealed, nonce, plaintext, nil)

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func deriveAEAD(secret, salt []byte) cipher.AEAD {
	key := argon2.IDKey(secret, salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		// NewX only fails on a bad key size, which the derivation fixes.
		panic(err)
	}
	return aead
}
