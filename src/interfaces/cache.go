package interfaces

import "time"

// -----------------------------------------------------------------------------
// ICache is a TTL key-value store. Expired entries read as absent.
// -----------------------------------------------------------------------------

type ICache interface {

	// Get returns the live value for key, or (nil, false) when missing
	// or expired. Reading never blocks on eviction.
	Get(key string) (interface{}, bool)

	// -----------------------------------------------------------------------------

	// Put stores value under key, overwriting unconditionally.
	Put(key string, value interface{}, ttl time.Duration)
}
