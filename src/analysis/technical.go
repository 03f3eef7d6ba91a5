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

// Window of recent updates each analyzer reasons over. Enough for stable
// statistics without dragging in stale regimes.
const analysisWindow = 50

// minDataPoints below which no statistical claim is worth making.
const minDataPoints = 5

// -----------------------------------------------------------------------------
// TechnicalAnalyzer summarises recent price action: mean/std, z-score of
// the last price, momentum over the window, OHLCV rollup and price-volume
// correlation. Deliberately no indicator zoo.
// -----------------------------------------------------------------------------

type TechnicalAnalyzer struct {
	History *utils.HistoryStore
}

func NewTechnicalAnalyzer(history *utils.HistoryStore) *TechnicalAnalyzer {
	return &TechnicalAnalyzer{History: history}
}

// -----------------------------------------------------------------------------

func (a *TechnicalAnalyzer) Kind() string {
	return models.KindTechnical
}

// -----------------------------------------------------------------------------

func (a *TechnicalAnalyzer) Analyze(ctx context.Context, symbol, timeframe string) (*models.MAnalyzerResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	updates := a.History.Latest(symbol, timeframe, analysisWindow)
	if len(updates) < minDataPoints {
		return nil, helpers.NewError(helpers.KindNoData, "insufficient data for %s %s: %d points", symbol, timeframe, len(updates))
	}

	prices := make([]float64, len(updates))
	volumes := make([]float64, len(updates))
	for i, u := range updates {
		prices[i] = u.Price
		volumes[i] = u.Volume
	}

	mean, std := core.CalculateMeanStd(prices)
	last := prices[len(prices)-1]
	zScore := core.CalculateZScore(last, mean, std)
	momentum := core.CalculateChangePercent(last, prices[0])
	ohlcv := core.ComputeOHLCV(prices, volumes)
	pvCorr := core.CalculateCorrelation(prices, volumes)

	signal := "neutral"
	switch {
	case momentum > 0.002 && zScore > 0.5:
		signal = "bullish"
	case momentum < -0.002 && zScore < -0.5:
		signal = "bearish"
	}

	volatility := 0.0
	if mean != 0 {
		volatility = std / mean * 100
	}

	return &models.MAnalyzerResult{
		Kind:      a.Kind(),
		Symbol:    symbol,
		Timeframe: timeframe,
		Signal:    signal,
		Summary: fmt.Sprintf("%s %s: last %.5f, mean %.5f, z-score %.2f, momentum %.2f%% over %d points",
			symbol, timeframe, last, mean, zScore, momentum*100, len(updates)),
		Metrics: map[string]float64{
			"last":        last,
			"mean":        mean,
			"std":         std,
			"z_score":     zScore,
			"momentum":    momentum,
			"open":        ohlcv["open"],
			"high":        ohlcv["high"],
			"low":         ohlcv["low"],
			"close":       ohlcv["close"],
			"volume":      ohlcv["volume"],
			"avg_price":   ohlcv["avg_price"],
			"pv_corr":     pvCorr,
			"data_points": float64(len(updates)),
			"volatility":  volatility,
		},
		GeneratedAt: time.Now().UnixMilli(),
	}, nil
}
