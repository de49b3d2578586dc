package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCookies_IssueAndParse(t *testing.T) {
	c := NewSessionCookies("wizard_session", "secret", time.Hour, false)

	value, err := c.Issue("session-1")
	require.NoError(t, err)

	id, err := c.Parse(value)
	require.NoError(t, err)
	assert.Equal(t, "session-1", id)
}

func TestSessionCookies_RejectsForeignSignature(t *testing.T) {
	issuer := NewSessionCookies("wizard_session", "secret", time.Hour, false)
	other := NewSessionCookies("wizard_session", "other-secret", time.Hour, false)

	value, err := issuer.Issue("session-1")
	require.NoError(t, err)

	_, err = other.Parse(value)
	assert.ErrorIs(t, err, ErrSessionCookieInvalid)

	_, err = issuer.Parse("garbage")
	assert.ErrorIs(t, err, ErrSessionCookieInvalid)
}

func TestSessionCookies_RejectsExpired(t *testing.T) {
	c := NewSessionCookies("wizard_session", "secret", time.Minute, false)
	issuedAt := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return issuedAt }

	value, err := c.Issue("session-1")
	require.NoError(t, err)

	c.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = c.Parse(value)
	assert.ErrorIs(t, err, ErrSessionCookieInvalid)
}
