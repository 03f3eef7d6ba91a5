package orchestration

import (
	"context"
	"sync"
	"time"

	"market-gateway/src/cache"
	"market-gateway/src/helpers"
	"market-gateway/src/interfaces"
	"market-gateway/src/logger"
	"market-gateway/src/models"
	"market-gateway/src/ratelimit"
)

// -----------------------------------------------------------------------------
// ContextAssembler queries every requested analyzer kind concurrently,
// cache-first, through the rate-limited fetcher. One kind failing or
// timing out never aborts the others; its slot is recorded as errored and
// the bundle loses its completeness flag.
// -----------------------------------------------------------------------------

type ContextAssembler struct {
	Cache     interfaces.ICache
	Fetcher   *ratelimit.Fetcher
	Analyzers map[string]interfaces.IAnalyzer
	TTLs      models.MCacheTTLConfig
	Logger    *logger.Logger
}

// -----------------------------------------------------------------------------

func NewContextAssembler(c interfaces.ICache, fetcher *ratelimit.Fetcher, analyzers []interfaces.IAnalyzer, ttls models.MCacheTTLConfig, log *logger.Logger) *ContextAssembler {
	byKind := make(map[string]interfaces.IAnalyzer, len(analyzers))
	for _, a := range analyzers {
		byKind[a.Kind()] = a
	}

	return &ContextAssembler{
		Cache:     c,
		Fetcher:   fetcher,
		Analyzers: byKind,
		TTLs:      ttls,
		Logger:    log,
	}
}

// -----------------------------------------------------------------------------

// Assemble builds the context bundle for one request. It returns when
// every kind has completed or the request deadline elapsed, whichever is
// first; kinds still pending at the deadline are recorded as timed out.
func (ca *ContextAssembler) Assemble(ctx context.Context, req *models.MAnalysisRequest) *models.MContextBundle {
	started := time.Now()

	kinds := analyzerKinds(req.Kinds)

	// The goroutines write into these scratch maps, never into the
	// returned bundle. A kind that outlives the deadline keeps writing
	// here after the snapshot is taken, where nobody is reading anymore.
	results := make(map[string]models.MAnalyzerResult, len(kinds))
	errs := make(map[string]string)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, kind := range kinds {
		wg.Add(1)
		go func(kind string) {
			defer wg.Done()

			result, err := ca.runKind(ctx, kind, req.Symbol, req.Timeframe)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[kind] = err.Error()
				return
			}
			results[kind] = *result
		}(kind)
	}

	// Wait for all kinds or the deadline, whichever comes first. The
	// goroutines themselves observe ctx and finish shortly after expiry.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	// Snapshot under the lock. From here the bundle has a single owner
	// and stragglers cannot touch it.
	mu.Lock()
	bundle := &models.MContextBundle{
		Symbol:    req.Symbol,
		Timeframe: req.Timeframe,
		Results:   make(map[string]models.MAnalyzerResult, len(results)),
		Errors:    make(map[string]string, len(errs)),
	}
	for kind, result := range results {
		bundle.Results[kind] = result
	}
	for kind, msg := range errs {
		bundle.Errors[kind] = msg
	}
	mu.Unlock()

	// Record anything still pending at the deadline as timed out
	for _, kind := range kinds {
		if _, ok := bundle.Results[kind]; ok {
			continue
		}
		if _, ok := bundle.Errors[kind]; ok {
			continue
		}
		bundle.Errors[kind] = "deadline elapsed before analyzer responded"
	}

	bundle.Complete = len(bundle.Errors) == 0 && len(bundle.Results) == len(kinds)
	bundle.ElapsedMs = time.Since(started).Milliseconds()

	return bundle
}

// -----------------------------------------------------------------------------

// runKind resolves one analyzer kind: cache first, then the backend
// through the fetcher, then write-back with the kind's TTL.
func (ca *ContextAssembler) runKind(ctx context.Context, kind, symbol, timeframe string) (*models.MAnalyzerResult, error) {
	key := cache.Key(kind, symbol, timeframe)

	if cached, ok := ca.Cache.Get(key); ok {
		if result, ok := cached.(*models.MAnalyzerResult); ok {
			warm := *result
			warm.FromCache = true
			return &warm, nil
		}
	}

	analyzer, ok := ca.Analyzers[kind]
	if !ok {
		return nil, helpers.NewError(helpers.KindValidation, "no analyzer backend for kind %q", kind)
	}

	res, err := ca.Fetcher.Do(ctx, "analyzer:"+kind, func(callCtx context.Context) (interface{}, error) {
		return analyzer.Analyze(callCtx, symbol, timeframe)
	})
	if err != nil {
		ca.Logger.Debug("Analyzer %s failed for %s %s: %v", kind, symbol, timeframe, err)
		return nil, err
	}

	result := res.(*models.MAnalyzerResult)
	ca.Cache.Put(key, result, ca.ttlFor(kind))
	return result, nil
}

// -----------------------------------------------------------------------------

func (ca *ContextAssembler) ttlFor(kind string) time.Duration {
	secs := 60
	switch kind {
	case models.KindTechnical:
		secs = ca.TTLs.Technical
	case models.KindPattern:
		secs = ca.TTLs.Pattern
	case models.KindSentiment:
		secs = ca.TTLs.Sentiment
	}
	return time.Duration(secs) * time.Second
}

// -----------------------------------------------------------------------------

// analyzerKinds filters the requested kinds down to the ones served by an
// analyzer slot. ai-insight is the reasoning layer, which always runs.
func analyzerKinds(requested []string) []string {
	out := make([]string, 0, len(requested))
	for _, kind := range requested {
		if kind == models.KindAIInsight {
			continue
		}
		out = append(out, kind)
	}
	return out
}
