package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrSessionCookieInvalid = errors.New("session cookie is invalid")

const sessionIssuer = "story-wizard"

// sessionClaims - клеймы cookie сессии. Subject - идентификатор сессии.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// SessionCookies подписывает и проверяет cookie с идентификатором сессии (HS256).
type SessionCookies struct {
	Name   string
	Secret []byte
	TTL    time.Duration
	Secure bool

	now func() time.Time
}

func NewSessionCookies(name, secret string, ttl time.Duration, secure bool) *SessionCookies {
	return &SessionCookies{
		Name:   name,
		Secret: []byte(secret),
		TTL:    ttl,
		Secure: secure,
		now:    time.Now,
	}
}

// Issue возвращает подписанное значение cookie для сессии.
func (s *SessionCookies) Issue(sessionID string) (string, error) {
	now := s.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return signed, nil
}

// Parse проверяет подпись и срок действия и возвращает идентификатор сессии.
func (s *SessionCookies) Parse(value string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.Secret, nil
	},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionCookieInvalid, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrSessionCookieInvalid
	}
	return claims.Subject, nil
}
