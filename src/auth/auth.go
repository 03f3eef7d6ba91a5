package auth

import (
	"sync"

	"market-gateway/src/helpers"
	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------
// StaticAuthenticator maps bearer tokens to principals from configuration.
// Opaque boolean-plus-identity check; token cryptography is someone
// else's problem. Disabled mode maps every credential to "anonymous".
// -----------------------------------------------------------------------------

type StaticAuthenticator struct {
	enabled bool
	tokens  map[string]string // token -> principal
	mu      sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewStaticAuthenticator(cfg models.MAuthConfig) *StaticAuthenticator {
	tokens := make(map[string]string, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		tokens[t.Token] = t.Principal
	}

	return &StaticAuthenticator{
		enabled: cfg.Enabled,
		tokens:  tokens,
	}
}

// -----------------------------------------------------------------------------

// Authenticate resolves a credential to a principal.
func (a *StaticAuthenticator) Authenticate(credential string) (string, error) {
	if !a.enabled {
		return "anonymous", nil
	}

	a.mu.RLock()
	principal, ok := a.tokens[credential]
	a.mu.RUnlock()

	if !ok {
		return "", helpers.NewError(helpers.KindAuthFailed, "invalid credentials")
	}
	return principal, nil
}
