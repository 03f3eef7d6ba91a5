package models

// -----------------------------------------------------------------------------
// WebSocket Protocol Envelopes
// -----------------------------------------------------------------------------

// Inbound message types.
const (
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
	MsgAnalyze     = "analyze"
	MsgPing        = "ping"
)

// Outbound message types.
const (
	MsgMarketUpdate = "market_update"
	MsgInsight      = "insight"
	MsgAck          = "ack"
	MsgError        = "error"
	MsgHeartbeat    = "heartbeat"
	MsgPong         = "pong"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPartial = "partial"
)

// -----------------------------------------------------------------------------

// MClientMessage is the envelope for everything a client sends.
type MClientMessage struct {
	Type      string   `json:"type"`
	RequestID string   `json:"request_id,omitempty"`
	Topic     string   `json:"topic,omitempty"`
	Symbol    string   `json:"symbol,omitempty"`
	Timeframe string   `json:"timeframe,omitempty"`
	Kinds     []string `json:"kinds,omitempty"`
	TimeoutMs int      `json:"timeout_ms,omitempty"`
}

// -----------------------------------------------------------------------------

// MServerMessage is the envelope for everything the server sends.
type MServerMessage struct {
	Type      string         `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	Status    string         `json:"status,omitempty"`
	Timestamp int64          `json:"timestamp"`
	Data      interface{}    `json:"data,omitempty"`
	Error     *MErrorPayload `json:"error,omitempty"`
}

// MErrorPayload carries a stable code plus a readable message.
// Raw upstream errors never reach the client.
type MErrorPayload struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// -----------------------------------------------------------------------------

// MAckPayload confirms a subscribe or unsubscribe.
type MAckPayload struct {
	Action        string `json:"action"`
	Topic         string `json:"topic"`
	Symbol        string `json:"symbol"`
	Timeframe     string `json:"timeframe"`
	Subscriptions int    `json:"subscriptions"`
}
