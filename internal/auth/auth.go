// Package auth authenticates the single shop operator and issues the
// session tokens operator RPCs carry.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	OperatorSubject = "operator"
	issuer          = "barberbook"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
	return err == nil
}

type Authenticator struct {
	passwordHash string
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

// New builds an Authenticator. An empty passwordHash disables operator
// login; every attempt then fails with ErrInvalidCredentials.
func New(passwordHash, secret string, ttl time.Duration) (*Authenticator, error) {
	passwordHash = strings.TrimSpace(passwordHash)
	if passwordHash != "" && secret == "" {
		return nil, errors.New("token secret is required when an operator password is set")
	}
	if passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, errors.New("operator password hash is not a bcrypt hash")
		}
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Authenticator{
		passwordHash: passwordHash,
		secret:       []byte(secret),
		ttl:          ttl,
		now:          time.Now,
	}, nil
}

func (a *Authenticator) Enabled() bool {
	return a.passwordHash != ""
}

// Login exchanges the operator password for a signed session token.
func (a *Authenticator) Login(password string) (string, time.Time, error) {
	if !a.Enabled() || !CheckPassword(a.passwordHash, password) {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   OperatorSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify checks a session token and returns its subject.
func (a *Authenticator) Verify(token string) (string, error) {
	if !a.Enabled() || token == "" {
		return "", ErrInvalidToken
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.Issuer != issuer || claims.Subject != OperatorSubject || claims.ExpiresAt == nil {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
