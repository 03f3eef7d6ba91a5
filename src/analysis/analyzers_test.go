package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-gateway/src/helpers"
	"market-gateway/src/logger"
	"market-gateway/src/models"
	"market-gateway/src/utils"
)

func historyWithPrices(symbol, timeframe string, prices []float64) *utils.HistoryStore {
	hs := utils.NewHistoryStore(256, 7, logger.NewLogger(nil, "analysis-test"))
	base := int64(1_700_000_000_000)
	for i, p := range prices {
		hs.Add(models.MMarketUpdate{
			Symbol:    symbol,
			Timeframe: timeframe,
			Source:    "test",
			Timestamp: base + int64(i)*60_000,
			Price:     p,
			Volume:    100 + float64(i),
		})
	}
	return hs
}

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func flat(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100
	}
	return out
}

// -----------------------------------------------------------------------------
// Technical
// -----------------------------------------------------------------------------

func TestTechnicalInsufficientData(t *testing.T) {
	a := NewTechnicalAnalyzer(historyWithPrices("EURUSD", "1m", rising(3)))

	_, err := a.Analyze(context.Background(), "EURUSD", "1m")
	assert.True(t, helpers.IsKind(err, helpers.KindNoData))
	assert.Equal(t, "MD_001", helpers.CodeOf(err))
}

func TestTechnicalBullishOnRisingPrices(t *testing.T) {
	a := NewTechnicalAnalyzer(historyWithPrices("EURUSD", "1m", rising(30)))

	res, err := a.Analyze(context.Background(), "EURUSD", "1m")
	require.NoError(t, err)

	assert.Equal(t, models.KindTechnical, res.Kind)
	assert.Equal(t, "bullish", res.Signal)
	assert.Greater(t, res.Metrics["momentum"], 0.0)
	assert.EqualValues(t, 30, res.Metrics["data_points"])
}

func TestTechnicalNeutralOnFlatPrices(t *testing.T) {
	a := NewTechnicalAnalyzer(historyWithPrices("EURUSD", "1m", flat(30)))

	res, err := a.Analyze(context.Background(), "EURUSD", "1m")
	require.NoError(t, err)

	assert.Equal(t, "neutral", res.Signal)
	assert.Zero(t, res.Metrics["momentum"])
}

func TestTechnicalHonorsCancelledContext(t *testing.T) {
	a := NewTechnicalAnalyzer(historyWithPrices("EURUSD", "1m", rising(30)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, "EURUSD", "1m")
	assert.ErrorIs(t, err, context.Canceled)
}

// -----------------------------------------------------------------------------
// Pattern
// -----------------------------------------------------------------------------

func TestPatternTrendUp(t *testing.T) {
	a := NewPatternAnalyzer(historyWithPrices("EURUSD", "1m", rising(40)))

	res, err := a.Analyze(context.Background(), "EURUSD", "1m")
	require.NoError(t, err)

	assert.Equal(t, models.KindPattern, res.Kind)
	assert.Equal(t, "bullish", res.Signal)
	assert.Greater(t, res.Metrics["swing"], 0.0)
}

func TestPatternRangeOnFlatPrices(t *testing.T) {
	a := NewPatternAnalyzer(historyWithPrices("EURUSD", "1m", flat(40)))

	res, err := a.Analyze(context.Background(), "EURUSD", "1m")
	require.NoError(t, err)

	assert.Equal(t, "neutral", res.Signal)
	assert.Contains(t, res.Summary, "range")
}

func TestPatternBreakoutUp(t *testing.T) {
	// Tight range, then a violent last print above the upper band.
	prices := flat(39)
	prices = append(prices, 150)
	a := NewPatternAnalyzer(historyWithPrices("EURUSD", "1m", prices))

	res, err := a.Analyze(context.Background(), "EURUSD", "1m")
	require.NoError(t, err)

	assert.Equal(t, "bullish", res.Signal)
	assert.Contains(t, res.Summary, "breakout_up")
}

// -----------------------------------------------------------------------------
// Sentiment
// -----------------------------------------------------------------------------

func TestSentimentErrorsWithoutNews(t *testing.T) {
	a := NewSentimentAnalyzer(utils.NewNewsBuffer(100))

	_, err := a.Analyze(context.Background(), "AAPL", "1m")
	assert.True(t, helpers.IsKind(err, helpers.KindNoData))
}

func TestSentimentBullishHeadlines(t *testing.T) {
	news := utils.NewNewsBuffer(100)
	news.Add(models.MNewsItem{Symbol: "AAPL", Headline: "AAPL beats expectations, shares surge"})
	news.Add(models.MNewsItem{Symbol: "AAPL", Headline: "Analysts upgrade AAPL on strong growth"})
	a := NewSentimentAnalyzer(news)

	res, err := a.Analyze(context.Background(), "AAPL", "1m")
	require.NoError(t, err)

	assert.Equal(t, models.KindSentiment, res.Kind)
	assert.Equal(t, "bullish", res.Signal)
	assert.Greater(t, res.Metrics["score"], 0.2)
}

func TestSentimentBearishHeadlines(t *testing.T) {
	news := utils.NewNewsBuffer(100)
	news.Add(models.MNewsItem{Symbol: "AAPL", Headline: "AAPL misses estimates, shares plunge"})
	news.Add(models.MNewsItem{Symbol: "AAPL", Headline: "AAPL downgraded after weak quarter"})
	a := NewSentimentAnalyzer(news)

	res, err := a.Analyze(context.Background(), "AAPL", "1m")
	require.NoError(t, err)

	assert.Equal(t, "bearish", res.Signal)
}

func TestSentimentIgnoresOtherSymbols(t *testing.T) {
	news := utils.NewNewsBuffer(100)
	news.Add(models.MNewsItem{Symbol: "MSFT", Headline: "MSFT rallies"})
	a := NewSentimentAnalyzer(news)

	_, err := a.Analyze(context.Background(), "AAPL", "1m")
	assert.Error(t, err)
}
