package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTokenAuth_RoundTrip(t *testing.T) {
	a := NewTokenAuth("test-secret", "")
	memberID := uuid.New()

	token, err := a.IssueToken(memberID, true, time.Hour)
	assert.NoError(t, err)

	gotID, admin, err := a.parse(token)
	assert.NoError(t, err)
	assert.Equal(t, memberID, gotID)
	assert.True(t, admin)
}

func TestTokenAuth_WrongSecret(t *testing.T) {
	issuer := NewTokenAuth("secret-a", "")
	verifier := NewTokenAuth("secret-b", "")

	token, err := issuer.IssueToken(uuid.New(), false, time.Hour)
	assert.NoError(t, err)

	_, _, err = verifier.parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenAuth_Expired(t *testing.T) {
	a := NewTokenAuth("test-secret", "")

	token, err := a.IssueToken(uuid.New(), false, -time.Minute)
	assert.NoError(t, err)

	_, _, err = a.parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenAuth_Garbage(t *testing.T) {
	a := NewTokenAuth("test-secret", "")

	_, _, err := a.parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
