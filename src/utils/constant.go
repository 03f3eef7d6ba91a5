package utils

import (
	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------

// Capacity bounds for one (symbol, timeframe) history buffer. The lower
// bound keeps enough points for the analyzers even on daily timeframes;
// the upper bound keeps a week of 1m data from eating the whole budget.
const (
	DefaultRetentionDays = 7
	minBufferPoints      = 100
	maxBufferPoints      = 10000
)

// -----------------------------------------------------------------------------

// CalculateMaxDataPoints derives a buffer capacity from the retention
// window and the timeframe granularity.
func CalculateMaxDataPoints(days int, timeframe string) int {
	if days <= 0 {
		days = DefaultRetentionDays
	}

	secs, err := models.TimeframeToSeconds(timeframe)
	if err != nil {
		secs = 60
	}

	points := int(int64(days) * 86400 / secs)
	if points < minBufferPoints {
		points = minBufferPoints
	}
	if points > maxBufferPoints {
		points = maxBufferPoints
	}
	return points
}
