package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-gateway/src/helpers"
	"market-gateway/src/models"
)

func TestKnownTokenResolvesPrincipal(t *testing.T) {
	a := NewStaticAuthenticator(models.MAuthConfig{
		Enabled: true,
		Tokens: []models.MTokenConfig{
			{Token: "tok-alpha", Principal: "alice"},
			{Token: "tok-beta", Principal: "bob"},
		},
	})

	principal, err := a.Authenticate("tok-beta")
	require.NoError(t, err)
	assert.Equal(t, "bob", principal)
}

func TestUnknownTokenRejected(t *testing.T) {
	a := NewStaticAuthenticator(models.MAuthConfig{
		Enabled: true,
		Tokens:  []models.MTokenConfig{{Token: "tok-alpha", Principal: "alice"}},
	})

	_, err := a.Authenticate("wrong")
	require.Error(t, err)
	assert.True(t, helpers.IsKind(err, helpers.KindAuthFailed))
	assert.Equal(t, "AU_001", helpers.CodeOf(err))
}

func TestEmptyCredentialRejected(t *testing.T) {
	a := NewStaticAuthenticator(models.MAuthConfig{
		Enabled: true,
		Tokens:  []models.MTokenConfig{{Token: "tok-alpha", Principal: "alice"}},
	})

	_, err := a.Authenticate("")
	assert.Error(t, err)
}

func TestDisabledAuthMapsToAnonymous(t *testing.T) {
	a := NewStaticAuthenticator(models.MAuthConfig{Enabled: false})

	principal, err := a.Authenticate("anything")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", principal)
}
