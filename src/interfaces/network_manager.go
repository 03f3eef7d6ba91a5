package interfaces

import "context"

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for HTTP requests with retry/proxy logic.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs a GET request to the specified URL with query parameters.
	// The context deadline bounds the whole operation including retries.
	Get(ctx context.Context, url string, params map[string]string) ([]byte, error)

	// -----------------------------------------------------------------------------

	// Post sends a JSON body to the specified URL with extra headers.
	Post(ctx context.Context, url string, headers map[string]string, body []byte) ([]byte, error)
}
