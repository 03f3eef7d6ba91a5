package analysis

import (
	"context"
	"fmt"
	"time"

	"market-gateway/src/analysis/core"
	"market-gateway/src/helpers"
	"market-gateway/src/models"
	"market-gateway/src/utils"
)

// -----------------------------------------------------------------------------
// PatternAnalyzer classifies recent price action as trending, ranging or
// breaking out, from rolling mean +/- 2 sigma bands and swing direction.
// -----------------------------------------------------------------------------

type PatternAnalyzer struct {
	History *utils.HistoryStore
}

func NewPatternAnalyzer(history *utils.HistoryStore) *PatternAnalyzer {
	return &PatternAnalyzer{History: history}
}

// -----------------------------------------------------------------------------

func (a *PatternAnalyzer) Kind() string {
	return models.KindPattern
}

// -----------------------------------------------------------------------------

func (a *PatternAnalyzer) Analyze(ctx context.Context, symbol, timeframe string) (*models.MAnalyzerResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	updates := a.History.Latest(symbol, timeframe, analysisWindow)
	if len(updates) < minDataPoints {
		return nil, helpers.NewError(helpers.KindNoData, "insufficient data for %s %s: %d points", symbol, timeframe, len(updates))
	}

	prices := make([]float64, len(updates))
	for i, u := range updates {
		prices[i] = u.Price
	}

	mean, std := core.CalculateMeanStd(prices)
	last := prices[len(prices)-1]
	upper := mean + 2*std
	lower := mean - 2*std

	// Swing direction: compare the halves of the window
	mid := len(prices) / 2
	firstMean, _ := core.CalculateMeanStd(prices[:mid])
	secondMean, _ := core.CalculateMeanStd(prices[mid:])
	swing := core.CalculateChangePercent(secondMean, firstMean)

	pattern := "range"
	signal := "neutral"
	switch {
	case last > upper:
		pattern = "breakout_up"
		signal = "bullish"
	case last < lower:
		pattern = "breakout_down"
		signal = "bearish"
	case swing > 0.001:
		pattern = "trend_up"
		signal = "bullish"
	case swing < -0.001:
		pattern = "trend_down"
		signal = "bearish"
	}

	return &models.MAnalyzerResult{
		Kind:      a.Kind(),
		Symbol:    symbol,
		Timeframe: timeframe,
		Signal:    signal,
		Summary: fmt.Sprintf("%s %s: %s (last %.5f, band %.5f..%.5f, swing %.2f%%)",
			symbol, timeframe, pattern, last, lower, upper, swing*100),
		Metrics: map[string]float64{
			"last":        last,
			"mean":        mean,
			"band_upper":  upper,
			"band_lower":  lower,
			"swing":       swing,
			"data_points": float64(len(updates)),
		},
		GeneratedAt: time.Now().UnixMilli(),
	}, nil
}
