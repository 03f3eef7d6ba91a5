package server

import (
	"sync"

	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------
// SubscriptionRegistry tracks which connections want which keys pushed.
// Lookups by key happen on every inbound update, so both directions are
// indexed. The registry only holds non-owning client handles; connection
// lifecycle belongs to the gateway.
// -----------------------------------------------------------------------------

type SubscriptionRegistry struct {
	mu       sync.RWMutex
	byKey    map[models.MSubscriptionKey]map[*Client]struct{}
	byClient map[*Client]map[models.MSubscriptionKey]struct{}
}

// -----------------------------------------------------------------------------

func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{
		byKey:    make(map[models.MSubscriptionKey]map[*Client]struct{}),
		byClient: make(map[*Client]map[models.MSubscriptionKey]struct{}),
	}
}

// -----------------------------------------------------------------------------

// Subscribe registers client under key. Idempotent: a duplicate subscribe
// returns false and changes nothing.
func (r *SubscriptionRegistry) Subscribe(client *Client, key models.MSubscriptionKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byClient[client][key]; ok {
		return false
	}

	if r.byKey[key] == nil {
		r.byKey[key] = make(map[*Client]struct{})
	}
	r.byKey[key][client] = struct{}{}

	if r.byClient[client] == nil {
		r.byClient[client] = make(map[models.MSubscriptionKey]struct{})
	}
	r.byClient[client][key] = struct{}{}

	return true
}

// -----------------------------------------------------------------------------

// Unsubscribe removes one subscription. Returns false when it did not exist.
func (r *SubscriptionRegistry) Unsubscribe(client *Client, key models.MSubscriptionKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byClient[client][key]; !ok {
		return false
	}

	delete(r.byClient[client], key)
	if len(r.byClient[client]) == 0 {
		delete(r.byClient, client)
	}

	delete(r.byKey[key], client)
	if len(r.byKey[key]) == 0 {
		delete(r.byKey, key)
	}

	return true
}

// -----------------------------------------------------------------------------

// SubscribersOf snapshots the connections subscribed to key.
func (r *SubscriptionRegistry) SubscribersOf(key models.MSubscriptionKey) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byKey[key]
	if len(set) == 0 {
		return nil
	}

	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// -----------------------------------------------------------------------------

// DropConnection removes every subscription held by client, so no later
// publish targets it. Returns how many subscriptions were removed.
func (r *SubscriptionRegistry) DropConnection(client *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := r.byClient[client]
	for key := range keys {
		delete(r.byKey[key], client)
		if len(r.byKey[key]) == 0 {
			delete(r.byKey, key)
		}
	}

	removed := len(keys)
	delete(r.byClient, client)
	return removed
}

// -----------------------------------------------------------------------------

// CountFor returns the number of active subscriptions for client.
func (r *SubscriptionRegistry) CountFor(client *Client) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byClient[client])
}

// -----------------------------------------------------------------------------

// KeyCount returns the number of keys with at least one subscriber.
func (r *SubscriptionRegistry) KeyCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}
