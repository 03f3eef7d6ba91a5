package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"market-gateway/src/models"
)

const readTimeout = 10 * time.Second

// -----------------------------------------------------------------------------
// Websocket client helpers
// -----------------------------------------------------------------------------

type wsClient struct {
	conn *websocket.Conn
}

func dial(url string) (*wsClient, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return &wsClient{conn: conn}, nil
}

func (c *wsClient) close() {
	c.conn.Close()
}

func (c *wsClient) send(msg models.MClientMessage) error {
	return c.conn.WriteJSON(msg)
}

// read returns the next server message, skipping heartbeats.
func (c *wsClient) read() (*models.MServerMessage, error) {
	for {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		var msg models.MServerMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return nil, err
		}
		if msg.Type == models.MsgHeartbeat {
			continue
		}
		return &msg, nil
	}
}

// readType reads until a message of the wanted type arrives.
func (c *wsClient) readType(wanted string) (*models.MServerMessage, error) {
	deadline := time.Now().Add(readTimeout)
	for time.Now().Before(deadline) {
		msg, err := c.read()
		if err != nil {
			return nil, err
		}
		if msg.Type == wanted {
			return msg, nil
		}
	}
	return nil, fmt.Errorf("no %s message within %s", wanted, readTimeout)
}

// -----------------------------------------------------------------------------

func updateTimestamp(msg *models.MServerMessage) int64 {
	raw, _ := json.Marshal(msg.Data)
	var update models.MMarketUpdate
	json.Unmarshal(raw, &update)
	return update.Timestamp
}

func fail(name string, format string, args ...interface{}) scenarioResult {
	return scenarioResult{Name: name, Passed: false, Detail: fmt.Sprintf(format, args...)}
}

func pass(name string, format string, args ...interface{}) scenarioResult {
	return scenarioResult{Name: name, Passed: true, Detail: fmt.Sprintf(format, args...)}
}

// -----------------------------------------------------------------------------
// Scenarios
// -----------------------------------------------------------------------------

// A connection with a bad token gets an auth error and is closed.
func scenarioRejectBadToken(s *stack) scenarioResult {
	const name = "auth: bad token rejected"

	url := fmt.Sprintf("ws://127.0.0.1:%d/ws?token=wrong", harnessPort)
	client, err := dial(url)
	if err != nil {
		// Rejected before the first frame is also acceptable
		return pass(name, "handshake rejected")
	}
	defer client.close()

	msg, err := client.read()
	if err != nil {
		return pass(name, "connection closed without service")
	}
	if msg.Type == models.MsgError && msg.Error != nil && msg.Error.Code == "AU_001" {
		return pass(name, "error %s received", msg.Error.Code)
	}
	return fail(name, "expected AU_001 error, got %s", msg.Type)
}

// -----------------------------------------------------------------------------

// Subscribe, then verify updates stream in non-decreasing timestamp order.
func scenarioSubscribeOrdered(s *stack) scenarioResult {
	const name = "subscribe: ordered delivery"

	client, err := dial(s.wsURL())
	if err != nil {
		return fail(name, "dial: %v", err)
	}
	defer client.close()

	if err := client.send(models.MClientMessage{
		Type: models.MsgSubscribe, Topic: "market", Symbol: "EURUSD", Timeframe: "1m",
	}); err != nil {
		return fail(name, "send: %v", err)
	}

	if _, err := client.readType(models.MsgAck); err != nil {
		return fail(name, "no ack: %v", err)
	}

	var last int64 = -1
	received := 0
	for received < 3 {
		msg, err := client.readType(models.MsgMarketUpdate)
		if err != nil {
			return fail(name, "after %d updates: %v", received, err)
		}
		ts := updateTimestamp(msg)
		if ts < last {
			return fail(name, "timestamp regressed: %d after %d", ts, last)
		}
		last = ts
		received++
	}

	return pass(name, "%d updates in order", received)
}

// -----------------------------------------------------------------------------

// Technical + pattern have primed history: a complete insight comes back.
func scenarioAnalyzeTechnical(s *stack) scenarioResult {
	const name = "analyze: technical+pattern complete"

	client, err := dial(s.wsURL())
	if err != nil {
		return fail(name, "dial: %v", err)
	}
	defer client.close()

	if err := client.send(models.MClientMessage{
		Type: models.MsgAnalyze, RequestID: "req-tech", Symbol: "EURUSD", Timeframe: "1m",
		Kinds: []string{models.KindTechnical, models.KindPattern}, TimeoutMs: 8000,
	}); err != nil {
		return fail(name, "send: %v", err)
	}

	msg, err := client.readType(models.MsgInsight)
	if err != nil {
		return fail(name, "no insight: %v", err)
	}
	if msg.Status != models.StatusSuccess {
		return fail(name, "expected success, got %s", msg.Status)
	}
	return pass(name, "insight received (request_id %s)", msg.RequestID)
}

// -----------------------------------------------------------------------------

// Sentiment has no news buffered: the insight must still arrive, flagged
// partial, instead of an error.
func scenarioAnalyzePartial(s *stack) scenarioResult {
	const name = "analyze: missing sentiment yields partial"

	client, err := dial(s.wsURL())
	if err != nil {
		return fail(name, "dial: %v", err)
	}
	defer client.close()

	if err := client.send(models.MClientMessage{
		Type: models.MsgAnalyze, RequestID: "req-partial", Symbol: "EURUSD", Timeframe: "1m",
		Kinds: []string{models.KindTechnical, models.KindSentiment}, TimeoutMs: 8000,
	}); err != nil {
		return fail(name, "send: %v", err)
	}

	msg, err := client.readType(models.MsgInsight)
	if err != nil {
		return fail(name, "no insight: %v", err)
	}
	if msg.Status != models.StatusPartial {
		return fail(name, "expected partial, got %s", msg.Status)
	}
	return pass(name, "partial insight received")
}

// -----------------------------------------------------------------------------

// After injecting news over the admin API, sentiment succeeds.
func scenarioAnalyzeWithNews(s *stack) scenarioResult {
	const name = "analyze: sentiment after news injection"

	body, _ := json.Marshal(models.MNewsItem{
		Symbol:   "AAPL",
		Headline: "AAPL beats expectations, shares surge on strong growth",
		Source:   "smoke",
	})
	resp, err := http.Post(s.baseURL()+"/api/news", "application/json", bytes.NewReader(body))
	if err != nil || resp.StatusCode != http.StatusOK {
		return fail(name, "news injection failed: %v", err)
	}
	resp.Body.Close()

	client, err := dial(s.wsURL())
	if err != nil {
		return fail(name, "dial: %v", err)
	}
	defer client.close()

	if err := client.send(models.MClientMessage{
		Type: models.MsgAnalyze, RequestID: "req-news", Symbol: "AAPL", Timeframe: "1m",
		Kinds: []string{models.KindTechnical, models.KindSentiment}, TimeoutMs: 8000,
	}); err != nil {
		return fail(name, "send: %v", err)
	}

	msg, err := client.readType(models.MsgInsight)
	if err != nil {
		return fail(name, "no insight: %v", err)
	}
	if msg.Status != models.StatusSuccess {
		return fail(name, "expected success, got %s", msg.Status)
	}
	return pass(name, "sentiment-backed insight received")
}

// -----------------------------------------------------------------------------

// After unsubscribing, no further market updates arrive for the key.
func scenarioUnsubscribe(s *stack) scenarioResult {
	const name = "unsubscribe: delivery stops"

	client, err := dial(s.wsURL())
	if err != nil {
		return fail(name, "dial: %v", err)
	}
	defer client.close()

	client.send(models.MClientMessage{
		Type: models.MsgSubscribe, Topic: "market", Symbol: "EURUSD", Timeframe: "1m",
	})
	if _, err := client.readType(models.MsgMarketUpdate); err != nil {
		return fail(name, "no update while subscribed: %v", err)
	}

	client.send(models.MClientMessage{
		Type: models.MsgUnsubscribe, Topic: "market", Symbol: "EURUSD", Timeframe: "1m",
	})
	if _, err := client.readType(models.MsgAck); err != nil {
		return fail(name, "no unsubscribe ack: %v", err)
	}

	// Drain anything enqueued before the unsubscribe took effect, then
	// expect silence.
	silentSince := time.Now()
	for time.Since(silentSince) < 3*time.Second {
		c := client.conn
		c.SetReadDeadline(time.Now().Add(3 * time.Second))
		var msg models.MServerMessage
		if err := c.ReadJSON(&msg); err != nil {
			return pass(name, "no updates after unsubscribe")
		}
		if msg.Type == models.MsgMarketUpdate {
			silentSince = time.Now()
		}
	}
	return pass(name, "stream went quiet after unsubscribe")
}
