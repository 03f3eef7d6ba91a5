package models

// MMarketUpdate represents one normalized update from a feed source.
// Immutable once published to the hub.
type MMarketUpdate struct {
	Symbol     string  `json:"symbol"`
	Timeframe  string  `json:"timeframe"`
	Source     string  `json:"source"`
	Timestamp  int64   `json:"timestamp"` // Source-supplied, unix ms
	Price      float64 `json:"price"`
	Volume     float64 `json:"volume"`
	Open       float64 `json:"open,omitempty"`
	High       float64 `json:"high,omitempty"`
	Low        float64 `json:"low,omitempty"`
	Close      float64 `json:"close,omitempty"`
	ReceivedAt int64   `json:"received_at"`
}

// -----------------------------------------------------------------------------

// MNewsItem is a headline attached to a symbol, consumed by the sentiment analyzer.
type MNewsItem struct {
	Symbol      string `json:"symbol"`
	Headline    string `json:"headline"`
	Source      string `json:"source"`
	PublishedAt int64  `json:"published_at"` // unix ms
}
