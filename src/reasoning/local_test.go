package reasoning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-gateway/src/helpers"
	"market-gateway/src/models"
)

func bundleWith(results map[string]string) *models.MContextBundle {
	b := &models.MContextBundle{
		Symbol:    "EURUSD",
		Timeframe: "1m",
		Results:   make(map[string]models.MAnalyzerResult, len(results)),
		Errors:    make(map[string]string),
		Complete:  true,
	}
	for kind, signal := range results {
		b.Results[kind] = models.MAnalyzerResult{
			Kind: kind, Symbol: "EURUSD", Timeframe: "1m",
			Signal: signal, Summary: kind + " summary",
		}
	}
	return b
}

func localRequest(kinds ...string) *models.MAnalysisRequest {
	return &models.MAnalysisRequest{RequestID: "req-1", Symbol: "EURUSD", Timeframe: "1m", Kinds: kinds}
}

// -----------------------------------------------------------------------------

func TestDisabledBackendRefuses(t *testing.T) {
	r := NewLocalReasoner(false)

	_, err := r.Infer(context.Background(), localRequest(models.KindTechnical),
		bundleWith(map[string]string{models.KindTechnical: "bullish"}))

	require.Error(t, err)
	assert.True(t, helpers.IsKind(err, helpers.KindUpstreamUnavailable))
}

func TestEmptyBundleIsNoContext(t *testing.T) {
	r := NewLocalReasoner(true)

	_, err := r.Infer(context.Background(), localRequest(models.KindTechnical),
		bundleWith(nil))

	require.Error(t, err)
	assert.True(t, helpers.IsKind(err, helpers.KindNoContext))
}

func TestMajorityVoteWins(t *testing.T) {
	r := NewLocalReasoner(true)

	insight, err := r.Infer(context.Background(),
		localRequest(models.KindTechnical, models.KindPattern, models.KindSentiment),
		bundleWith(map[string]string{
			models.KindTechnical: "bullish",
			models.KindPattern:   "bullish",
			models.KindSentiment: "bearish",
		}))

	require.NoError(t, err)
	assert.Contains(t, insight.Recommendations[0], "long exposure")
	assert.Equal(t, "local", insight.Backend)
	assert.False(t, insight.Partial)
	assert.Len(t, insight.Insights, 3)
	assert.ElementsMatch(t, insight.DataSources,
		[]string{models.KindTechnical, models.KindPattern, models.KindSentiment})
}

func TestFullAgreementFullCoverage(t *testing.T) {
	r := NewLocalReasoner(true)

	insight, err := r.Infer(context.Background(),
		localRequest(models.KindTechnical, models.KindPattern),
		bundleWith(map[string]string{
			models.KindTechnical: "bullish",
			models.KindPattern:   "bullish",
		}))

	require.NoError(t, err)
	assert.InDelta(t, 1.0, insight.Confidence, 1e-9)
}

func TestPartialCoverageLowersConfidence(t *testing.T) {
	r := NewLocalReasoner(true)

	// Three kinds requested, one delivered.
	bundle := bundleWith(map[string]string{models.KindTechnical: "bullish"})
	bundle.Complete = false
	bundle.Errors[models.KindPattern] = "insufficient data"
	bundle.Errors[models.KindSentiment] = "no news"

	insight, err := r.Infer(context.Background(),
		localRequest(models.KindTechnical, models.KindPattern, models.KindSentiment), bundle)

	require.NoError(t, err)
	assert.True(t, insight.Partial)
	assert.InDelta(t, 1.0/3.0, insight.Confidence, 1e-9)
}

func TestRiskWordingFromVolatility(t *testing.T) {
	r := NewLocalReasoner(true)

	bundle := bundleWith(map[string]string{models.KindTechnical: "neutral"})
	res := bundle.Results[models.KindTechnical]
	res.Metrics = map[string]float64{"volatility": 3.5}
	bundle.Results[models.KindTechnical] = res

	insight, err := r.Infer(context.Background(), localRequest(models.KindTechnical), bundle)

	require.NoError(t, err)
	assert.Contains(t, insight.RiskAssessment, "elevated")
}

func TestExpiredContextRejected(t *testing.T) {
	r := NewLocalReasoner(true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Infer(ctx, localRequest(models.KindTechnical),
		bundleWith(map[string]string{models.KindTechnical: "bullish"}))
	assert.ErrorIs(t, err, context.Canceled)
}
