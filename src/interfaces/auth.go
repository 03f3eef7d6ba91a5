package interfaces

// -----------------------------------------------------------------------------
// IAuthenticator resolves a credential to a principal identity.
// Opaque boolean-plus-identity check; no token cryptography here.
// -----------------------------------------------------------------------------

type IAuthenticator interface {

	// Authenticate returns the principal for the credential, or an
	// auth_failed error when the credential is not recognized.
	Authenticate(credential string) (string, error)
}
