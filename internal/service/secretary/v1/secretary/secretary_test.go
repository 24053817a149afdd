package secretary

import (
	"testing"

	"github.com/avreline/panelcore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	s, err := NewSecretaryService(&config.SecretConfig{SecretKey: "test-secret"})
	require.NoError(t, err)
	token, err := s.NewToken("ops")
	require.NoError(t, err)
	actor, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", actor)
}

func TestValidateTokenWrongKey(t *testing.T) {
	issuer, err := NewSecretaryService(&config.SecretConfig{SecretKey: "key-one"})
	require.NoError(t, err)
	verifier, err := NewSecretaryService(&config.SecretConfig{SecretKey: "key-two"})
	require.NoError(t, err)
	token, err := issuer.NewToken("ops")
	require.NoError(t, err)
	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenGarbage(t *testing.T) {
	s, err := NewSecretaryService(&config.SecretConfig{SecretKey: "test-secret"})
	require.NoError(t, err)
	_, err = s.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestNewSecretaryServiceEmptyKey(t *testing.T) {
	_, err := NewSecretaryService(&config.SecretConfig{})
	assert.Error(t, err)
}
