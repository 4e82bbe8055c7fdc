// Package auth checks the DJ admin credentials and issues session tokens.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	infrajwt "github.com/jonesrussell/setlist/infrastructure/jwt"
)

// RoleAdmin is the role claim carried by admin tokens.
const RoleAdmin = "admin"

// DefaultTokenTTL is used when no TTL is configured.
const DefaultTokenTTL = 12 * time.Hour

// ErrInvalidCredentials is returned for a wrong username or password.
var ErrInvalidCredentials = errors.New("Invalid admin credentials") //nolint:staticcheck // shown verbatim to the admin UI

// Config holds the single admin account.
type Config struct {
	Username string
	Password string
	Secret   string
	TokenTTL time.Duration
}

// Manager authenticates the admin and signs tokens.
type Manager struct {
	username []byte
	password []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a Manager.
func NewManager(cfg Config) *Manager {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Manager{
		username: []byte(cfg.Username),
		password: []byte(cfg.Password),
		secret:   []byte(cfg.Secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Login verifies the credentials and returns a signed token with its expiry.
func (m *Manager) Login(username, password string) (string, time.Time, error) {
	if !m.Verify(username, password) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return m.Issue(username)
}

// Verify compares the credentials in constant time. An unconfigured
// account never matches.
func (m *Manager) Verify(username, password string) bool {
	if len(m.username) == 0 || len(m.password) == 0 {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), m.username) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), m.password) == 1
	return userOK && passOK
}

// Issue signs an admin token for username.
func (m *Manager) Issue(username string) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)

	claims := &infrajwt.Claims{
		Sub:  username,
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}
