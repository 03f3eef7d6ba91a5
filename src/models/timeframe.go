package models

import "fmt"

// -----------------------------------------------------------------------------
// Timeframes
// -----------------------------------------------------------------------------

// timeframeSeconds maps every supported timeframe to its length.
var timeframeSeconds = map[string]int64{
	"1m":  60,
	"5m":  300,
	"15m": 900,
	"30m": 1800,
	"1h":  3600,
	"4h":  14400,
	"1d":  86400,
	"1w":  604800,
}

// ValidTimeframes in ascending order, for config validation and /api/config.
var ValidTimeframes = []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d", "1w"}

// -----------------------------------------------------------------------------

// TimeframeToSeconds converts "5m" style timeframes to seconds.
func TimeframeToSeconds(tf string) (int64, error) {
	secs, ok := timeframeSeconds[tf]
	if !ok {
		return 0, fmt.Errorf("unsupported timeframe: %q", tf)
	}
	return secs, nil
}

// IsValidTimeframe reports whether tf is one of the supported timeframes.
func IsValidTimeframe(tf string) bool {
	_, ok := timeframeSeconds[tf]
	return ok
}
