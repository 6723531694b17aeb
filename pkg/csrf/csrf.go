package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"
)

const (
	// HeaderName is the fixed request header carrying the token.
	HeaderName = "X-CSRF-Token"

	// CookieName matches the token's storage key so cache and cookie describe
	// the same value.
	CookieName = "csrf_token"

	// tokenBytes is the entropy of a generated token before encoding.
	tokenBytes = 32
)

// ErrTokenNotAvailable is returned when a caller requires a token before one
// has been issued. Callers must not fall back to sending an unprotected
// request.
var ErrTokenNotAvailable = fmt.Errorf("csrf token not available")

// Store is the persistent key-value collaborator backing the token cache.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// Manager owns the client side of the double-submit protocol: the token lives
// in the local store and in a Secure SameSite=Strict cookie, and validation
// requires agreement of both with the submitted header value.
type Manager struct {
	mu       sync.RWMutex
	store    Store
	issuance singleflight.Group
	generate func() (string, error)
}

type ManagerOpts struct {
	// Generate overrides token generation, used by tests for determinism.
	Generate func() (string, error)
}

func NewManager(store Store, opts *ManagerOpts) *Manager {
	generate := generateToken
	if opts != nil && opts.Generate != nil {
		generate = opts.Generate
	}
	return &Manager{store: store, generate: generate}
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Initialize returns the active token, issuing one if the cache is empty.
// Idempotent and safe to call on every session start; concurrent calls are
// collapsed into a single issuance.
func (m *Manager) Initialize() (string, error) {
	if token := m.Token(); token != "" {
		return token, nil
	}

	value, err, _ := m.issuance.Do("issue", func() (interface{}, error) {
		// Re-check under the flight: another caller may have issued already.
		if token := m.Token(); token != "" {
			return token, nil
		}
		return m.issue()
	})
	if err != nil {
		return "", err
	}
	token, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("unexpected csrf issuance result type")
	}
	return token, nil
}

// Regenerate forces a fresh token through the issuance path. Used after
// privilege escalation or suspected compromise.
func (m *Manager) Regenerate() (string, error) {
	return m.issue()
}

func (m *Manager) issue() (string, error) {
	token, err := m.generate()
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.store.Set(CookieName, token)
	m.mu.Unlock()
	return token, nil
}

// Token returns the cached token or "" when none has been issued.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	token, ok := m.store.Get(CookieName)
	if !ok {
		return ""
	}
	return token
}

// Clear drops the cached token, implicitly invalidating the session's CSRF
// state.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store.Delete(CookieName)
}

// AddHeaders copies the active token onto a caller-supplied header map. No-op
// when no token exists yet.
func (m *Manager) AddHeaders(headers map[string]string) {
	if headers == nil {
		return
	}
	if token := m.Token(); token != "" {
		headers[HeaderName] = token
	}
}

// RequireToken returns the active token or fails fast when none exists.
func (m *Manager) RequireToken() (string, error) {
	token := m.Token()
	if token == "" {
		return "", ErrTokenNotAvailable
	}
	return token, nil
}

// Validate implements the double-submit check. The header token must match
// the cached token byte for byte; when a cookie value is supplied (non-empty)
// all three values must agree. A missing cached token always fails.
func (m *Manager) Validate(headerToken, cookieToken string) bool {
	cached := m.Token()
	if cached == "" || headerToken == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(cached), []byte(headerToken)) != 1 {
		return false
	}
	if cookieToken != "" && subtle.ConstantTimeCompare([]byte(cached), []byte(cookieToken)) != 1 {
		return false
	}
	return true
}

// Cookie builds the companion cookie for the active token. The attributes are
// part of the protocol: a cross-site attacker cannot read a Secure
// SameSite=Strict cookie, so it cannot forge a matching header.
func (m *Manager) Cookie() (*http.Cookie, error) {
	token, err := m.RequireToken()
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}, nil
}
