package interfaces

import (
	"context"

	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------
// IAnalyzer is one analysis backend (technical, pattern, sentiment).
// -----------------------------------------------------------------------------

type IAnalyzer interface {

	// Kind returns the analysis kind this backend serves
	Kind() string

	// -----------------------------------------------------------------------------

	// Analyze produces this kind's result for one symbol and timeframe.
	// The context carries the request deadline; implementations must not
	// outlive it.
	Analyze(ctx context.Context, symbol, timeframe string) (*models.MAnalyzerResult, error)
}

// -----------------------------------------------------------------------------
// IReasoner turns a context bundle into an insight (local or cloud backed).
// -----------------------------------------------------------------------------

type IReasoner interface {

	// Name identifies the backend ("local", "cloud") on produced insights
	Name() string

	// -----------------------------------------------------------------------------

	// Infer reasons over the bundle within the context deadline.
	Infer(ctx context.Context, req *models.MAnalysisRequest, bundle *models.MContextBundle) (*models.MInsight, error)
}
