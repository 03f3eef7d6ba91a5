package models

// TopicMarket is the only built-in topic; the key leaves room for more.
const TopicMarket = "market"

// MSubscriptionKey identifies one subscription. Comparable, used directly
// as a map key by the registry and the broadcast gate.
type MSubscriptionKey struct {
	Topic     string `json:"topic"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

// UpdateKey builds the subscription key an update is delivered under.
func UpdateKey(u *MMarketUpdate) MSubscriptionKey {
	return MSubscriptionKey{Topic: TopicMarket, Symbol: u.Symbol, Timeframe: u.Timeframe}
}
