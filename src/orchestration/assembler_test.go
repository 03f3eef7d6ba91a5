package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-gateway/src/cache"
	"market-gateway/src/interfaces"
	"market-gateway/src/logger"
	"market-gateway/src/models"
	"market-gateway/src/ratelimit"
)

// fakeAnalyzer is a scriptable analyzer slot.
type fakeAnalyzer struct {
	kind  string
	calls int
	run   func(ctx context.Context) (*models.MAnalyzerResult, error)
}

func (f *fakeAnalyzer) Kind() string { return f.kind }

func (f *fakeAnalyzer) Analyze(ctx context.Context, symbol, timeframe string) (*models.MAnalyzerResult, error) {
	f.calls++
	if f.run != nil {
		return f.run(ctx)
	}
	return &models.MAnalyzerResult{
		Kind: f.kind, Symbol: symbol, Timeframe: timeframe,
		Signal: "neutral", GeneratedAt: time.Now().UnixMilli(),
	}, nil
}

// -----------------------------------------------------------------------------

func newTestAssembler(analyzers ...interfaces.IAnalyzer) (*ContextAssembler, *cache.Cache) {
	log := logger.NewLogger(nil, "assembler-test")
	store := cache.NewCache(log)
	fetcher := ratelimit.NewFetcher(models.MRateLimitConfig{
		Burst: 100, RefillPerSec: 100, FailureThreshold: 50, CooldownSeconds: 1,
	}, log)
	ttls := models.MCacheTTLConfig{MarketData: 5, Technical: 60, Pattern: 300, Sentiment: 900, Insight: 300}
	return NewContextAssembler(store, fetcher, analyzers, ttls, log), store
}

func request(kinds ...string) *models.MAnalysisRequest {
	return &models.MAnalysisRequest{
		RequestID: "req-1", Symbol: "EURUSD", Timeframe: "1m",
		Kinds: kinds, TimeoutMs: 5000,
	}
}

// -----------------------------------------------------------------------------

func TestBundleCompleteWhenAllKindsSucceed(t *testing.T) {
	ca, _ := newTestAssembler(
		&fakeAnalyzer{kind: models.KindTechnical},
		&fakeAnalyzer{kind: models.KindPattern},
	)

	bundle := ca.Assemble(context.Background(), request(models.KindTechnical, models.KindPattern))

	assert.True(t, bundle.Complete)
	assert.Len(t, bundle.Results, 2)
	assert.Empty(t, bundle.Errors)
}

func TestOneFailureYieldsPartialBundle(t *testing.T) {
	ca, _ := newTestAssembler(
		&fakeAnalyzer{kind: models.KindTechnical},
		&fakeAnalyzer{kind: models.KindSentiment, run: func(context.Context) (*models.MAnalyzerResult, error) {
			return nil, errors.New("no news available")
		}},
	)

	bundle := ca.Assemble(context.Background(), request(models.KindTechnical, models.KindSentiment))

	assert.False(t, bundle.Complete)
	require.Len(t, bundle.Results, 1)
	assert.Contains(t, bundle.Results, models.KindTechnical)
	assert.Contains(t, bundle.Errors, models.KindSentiment)
}

func TestSlowKindTimesOutWithoutAbortingOthers(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ca, _ := newTestAssembler(
		&fakeAnalyzer{kind: models.KindTechnical},
		&fakeAnalyzer{kind: models.KindPattern, run: func(context.Context) (*models.MAnalyzerResult, error) {
			<-release
			return nil, errors.New("released late")
		}},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	bundle := ca.Assemble(ctx, request(models.KindTechnical, models.KindPattern))

	assert.False(t, bundle.Complete)
	assert.Contains(t, bundle.Results, models.KindTechnical)
	assert.Contains(t, bundle.Errors, models.KindPattern)
	assert.True(t, bundle.HasResults())
}

func TestStragglerCannotMutateReturnedBundle(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})

	ca, _ := newTestAssembler(
		&fakeAnalyzer{kind: models.KindTechnical},
		&fakeAnalyzer{kind: models.KindPattern, run: func(context.Context) (*models.MAnalyzerResult, error) {
			<-release
			defer close(finished)
			return &models.MAnalyzerResult{Kind: models.KindPattern, Signal: "bullish"}, nil
		}},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	bundle := ca.Assemble(ctx, request(models.KindTechnical, models.KindPattern))

	require.False(t, bundle.Complete)
	require.Contains(t, bundle.Errors, models.KindPattern)

	// Let the abandoned analyzer finish, then look at the bundle again:
	// the slot it was running stays errored, never flips to a result.
	close(release)
	<-finished

	assert.NotContains(t, bundle.Results, models.KindPattern)
	assert.Contains(t, bundle.Errors, models.KindPattern)
	assert.False(t, bundle.Complete)
}

func TestCacheWriteBackAndWarmRead(t *testing.T) {
	tech := &fakeAnalyzer{kind: models.KindTechnical}
	ca, _ := newTestAssembler(tech)

	first := ca.Assemble(context.Background(), request(models.KindTechnical))
	require.True(t, first.Complete)
	assert.False(t, first.Results[models.KindTechnical].FromCache)

	// Second request is served from cache without touching the analyzer.
	second := ca.Assemble(context.Background(), request(models.KindTechnical))
	require.True(t, second.Complete)
	assert.True(t, second.Results[models.KindTechnical].FromCache)
	assert.Equal(t, 1, tech.calls)
}

func TestUnknownKindErrorsItsSlot(t *testing.T) {
	ca, _ := newTestAssembler(&fakeAnalyzer{kind: models.KindTechnical})

	bundle := ca.Assemble(context.Background(), request(models.KindTechnical, models.KindPattern))

	assert.False(t, bundle.Complete)
	assert.Contains(t, bundle.Results, models.KindTechnical)
	assert.Contains(t, bundle.Errors, models.KindPattern)
}

func TestAIInsightKindNotSentToAnalyzers(t *testing.T) {
	tech := &fakeAnalyzer{kind: models.KindTechnical}
	ca, _ := newTestAssembler(tech)

	bundle := ca.Assemble(context.Background(), request(models.KindTechnical, models.KindAIInsight))

	assert.True(t, bundle.Complete)
	assert.Len(t, bundle.Results, 1)
	assert.Equal(t, 1, tech.calls)
}
