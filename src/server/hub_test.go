package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-gateway/src/logger"
	"market-gateway/src/models"
)

func newTestHub() *Hub {
	return NewHub(NewSubscriptionRegistry(), logger.NewLogger(nil, "hub-test"))
}

func update(symbol, timeframe string, ts int64) *models.MMarketUpdate {
	return &models.MMarketUpdate{
		Symbol:     symbol,
		Timeframe:  timeframe,
		Source:     "test",
		Timestamp:  ts,
		Price:      1.0,
		ReceivedAt: ts,
	}
}

func drain(c *Client) []*models.MServerMessage {
	var out []*models.MServerMessage
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

// -----------------------------------------------------------------------------

func TestDeliverInOrder(t *testing.T) {
	h := newTestHub()
	c := testClient("c1", 8)
	h.Registry.Subscribe(c, testKey("EURUSD", "1m"))

	h.deliver(update("EURUSD", "1m", 100))
	h.deliver(update("EURUSD", "1m", 105))

	msgs := drain(c)
	require.Len(t, msgs, 2)
	assert.EqualValues(t, 100, msgs[0].Data.(*models.MMarketUpdate).Timestamp)
	assert.EqualValues(t, 105, msgs[1].Data.(*models.MMarketUpdate).Timestamp)
}

func TestRegressingTimestampDiscarded(t *testing.T) {
	h := newTestHub()
	c := testClient("c1", 8)
	h.Registry.Subscribe(c, testKey("EURUSD", "1m"))

	h.deliver(update("EURUSD", "1m", 200))
	h.deliver(update("EURUSD", "1m", 150))

	msgs := drain(c)
	require.Len(t, msgs, 1)
	assert.EqualValues(t, 200, msgs[0].Data.(*models.MMarketUpdate).Timestamp)
	assert.EqualValues(t, 1, h.Metrics().Discarded)
}

func TestEqualTimestampPasses(t *testing.T) {
	h := newTestHub()
	c := testClient("c1", 8)
	h.Registry.Subscribe(c, testKey("EURUSD", "1m"))

	h.deliver(update("EURUSD", "1m", 200))
	h.deliver(update("EURUSD", "1m", 200))

	assert.Len(t, drain(c), 2)
}

func TestGateIsPerKey(t *testing.T) {
	h := newTestHub()
	c := testClient("c1", 8)
	h.Registry.Subscribe(c, testKey("EURUSD", "1m"))
	h.Registry.Subscribe(c, testKey("AAPL", "1m"))

	// AAPL's older clock does not regress against EURUSD's gate.
	h.deliver(update("EURUSD", "1m", 500))
	h.deliver(update("AAPL", "1m", 100))

	assert.Len(t, drain(c), 2)
}

func TestSlowConsumerLosesOldestOnly(t *testing.T) {
	h := newTestHub()
	c := testClient("c1", 2)
	h.Registry.Subscribe(c, testKey("EURUSD", "1m"))

	for ts := int64(1); ts <= 5; ts++ {
		h.deliver(update("EURUSD", "1m", ts))
	}

	msgs := drain(c)
	require.Len(t, msgs, 2)
	assert.EqualValues(t, 4, msgs[0].Data.(*models.MMarketUpdate).Timestamp)
	assert.EqualValues(t, 5, msgs[1].Data.(*models.MMarketUpdate).Timestamp)
	assert.EqualValues(t, 3, c.Dropped.Load())
}

func TestNonActiveClientSkipped(t *testing.T) {
	h := newTestHub()
	c := testClient("c1", 8)
	c.setState(StateDraining)
	h.Registry.Subscribe(c, testKey("EURUSD", "1m"))

	h.deliver(update("EURUSD", "1m", 100))

	assert.Empty(t, drain(c))
}

// -----------------------------------------------------------------------------

func TestUnregisterTearsDownSubscriptions(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := testClient("c1", 8)
	h.Register(c)
	h.Registry.Subscribe(c, testKey("EURUSD", "1m"))

	h.Unregister(c)

	require.Eventually(t, func() bool {
		return c.State() == StateClosed
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, h.Registry.CountFor(c))

	// The outbound channel is closed; a publish after teardown goes nowhere.
	h.Publish(update("EURUSD", "1m", 100))
	_, open := <-c.send
	assert.False(t, open)
}

func TestMetricsTracksClientCount(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	assert.Equal(t, 0, h.Metrics().Clients)

	c1 := testClient("c1", 8)
	c2 := testClient("c2", 8)
	h.Register(c1)
	h.Register(c2)

	require.Eventually(t, func() bool {
		return h.Metrics().Clients == 2
	}, time.Second, 5*time.Millisecond)

	h.Unregister(c1)

	require.Eventually(t, func() bool {
		return h.Metrics().Clients == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPublishNeverBlocksWhenSaturated(t *testing.T) {
	h := newTestHub()
	// No Run loop consuming: fill the hub queue to the brim.
	for i := 0; i < 2000; i++ {
		h.Publish(update("EURUSD", "1m", int64(i)))
	}

	done := make(chan bool, 1)
	go func() {
		done <- h.Publish(update("EURUSD", "1m", 9999))
	}()

	select {
	case accepted := <-done:
		assert.False(t, accepted)
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a saturated hub queue")
	}
}
