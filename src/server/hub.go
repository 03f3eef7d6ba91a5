package server

import (
	"context"
	"sync/atomic"

	"market-gateway/src/logger"
	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------
// Hub is the broadcast engine. One loop serializes register, unregister
// and publish, so the client set and the per-key timestamp gate need no
// locking. Delivery itself never blocks: a slow consumer only costs its
// own buffer (drop-oldest), never the loop.
// -----------------------------------------------------------------------------

type Hub struct {
	Registry *SubscriptionRegistry
	Logger   *logger.Logger

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	publish    chan *models.MMarketUpdate

	// Monotonic gate: last delivered timestamp per key. Updates that
	// regress are discarded so every subscriber sees non-decreasing
	// timestamps per (symbol, timeframe).
	lastTimestamps map[models.MSubscriptionKey]int64

	published   atomic.Int64
	discarded   atomic.Int64
	delivered   atomic.Int64
	clientCount atomic.Int64
}

// -----------------------------------------------------------------------------

func NewHub(registry *SubscriptionRegistry, log *logger.Logger) *Hub {
	return &Hub{
		Registry:       registry,
		Logger:         log,
		clients:        make(map[*Client]struct{}),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		publish:        make(chan *models.MMarketUpdate, 1024),
		lastTimestamps: make(map[models.MSubscriptionKey]int64),
	}
}

// -----------------------------------------------------------------------------

// Run drives the hub loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.teardown(client)
			}
			h.clientCount.Store(0)
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.clientCount.Store(int64(len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.clientCount.Store(int64(len(h.clients)))
				h.teardown(client)
			}

		case update := <-h.publish:
			h.deliver(update)
		}
	}
}

// -----------------------------------------------------------------------------

// deliver fans one update out to the subscribers of its key.
func (h *Hub) deliver(update *models.MMarketUpdate) {
	key := models.UpdateKey(update)

	if last, ok := h.lastTimestamps[key]; ok && update.Timestamp < last {
		h.discarded.Add(1)
		h.Logger.Debug("Discarded regressing update for %s %s (%d < %d)",
			update.Symbol, update.Timeframe, update.Timestamp, last)
		return
	}
	h.lastTimestamps[key] = update.Timestamp
	h.published.Add(1)

	subscribers := h.Registry.SubscribersOf(key)
	if len(subscribers) == 0 {
		return
	}

	msg := &models.MServerMessage{
		Type:      models.MsgMarketUpdate,
		Status:    models.StatusSuccess,
		Timestamp: update.ReceivedAt,
		Data:      update,
	}

	for _, client := range subscribers {
		if client.State() != StateActive {
			continue
		}
		if client.enqueue(msg) {
			h.delivered.Add(1)
		}
	}
}

// -----------------------------------------------------------------------------

// teardown finalizes one connection: registry entries removed, outbound
// channel released, state Closed.
func (h *Hub) teardown(client *Client) {
	removed := h.Registry.DropConnection(client)
	client.closeSend()
	client.setState(StateClosed)

	if removed > 0 {
		h.Logger.Debug("Dropped %d subscriptions for client %s", removed, client.ID)
	}
}

// -----------------------------------------------------------------------------
// Entry points for other components. All funnel into the loop.
// -----------------------------------------------------------------------------

// Register hands a new connection to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister asks the hub to tear a connection down.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Publish enqueues an update for fan-out. Non-blocking: when the hub's
// own queue is saturated the update is dropped and counted, the publisher
// is never suspended.
func (h *Hub) Publish(update *models.MMarketUpdate) bool {
	select {
	case h.publish <- update:
		return true
	default:
		h.discarded.Add(1)
		return false
	}
}

// -----------------------------------------------------------------------------
// Metrics
// -----------------------------------------------------------------------------

type HubMetrics struct {
	Clients   int   `json:"clients"`
	Keys      int   `json:"keys"`
	Published int64 `json:"published"`
	Delivered int64 `json:"delivered"`
	Discarded int64 `json:"discarded"`
}

// Metrics snapshots counters. Safe from any goroutine; the client count
// is a loop-maintained atomic, the map itself is never read here.
func (h *Hub) Metrics() HubMetrics {
	return HubMetrics{
		Clients:   int(h.clientCount.Load()),
		Keys:      h.Registry.KeyCount(),
		Published: h.published.Load(),
		Delivered: h.delivered.Load(),
		Discarded: h.discarded.Load(),
	}
}
