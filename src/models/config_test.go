package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSourceConfigBindsFromJSON(t *testing.T) {
	payload := `{
		"name": "alpaca",
		"type": "http",
		"url": "https://feed.example.com/bars",
		"symbols": ["AAPL", "MSFT"],
		"timeframes": ["1m", "5m"],
		"interval_seconds": 9,
		"market_hours": true,
		"api_key": "secret"
	}`

	var src MSourceConfig
	require.NoError(t, json.Unmarshal([]byte(payload), &src))

	assert.Equal(t, "alpaca", src.Name)
	assert.Equal(t, "http", src.Type)
	assert.Equal(t, 9, src.IntervalSeconds)
	assert.True(t, src.MarketHours)
	assert.Equal(t, "secret", src.APIKey)
}

func TestSourceConfigBindsFromYAML(t *testing.T) {
	payload := `
name: sim-fx
type: sim
symbols: [EURUSD]
timeframes: [1m]
interval_seconds: 2
market_hours: false
`

	var src MSourceConfig
	require.NoError(t, yaml.Unmarshal([]byte(payload), &src))

	assert.Equal(t, "sim-fx", src.Name)
	assert.Equal(t, 2, src.IntervalSeconds)
	assert.False(t, src.MarketHours)
}
