package orchestration

import (
	"context"
	"time"

	"market-gateway/src/helpers"
	"market-gateway/src/interfaces"
	"market-gateway/src/logger"
	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------
// Router drives one analysis request end to end: assemble the context
// bundle, then reason over it local-first with a short sub-deadline and
// fall back to the cloud backend with whatever budget remains. A partial
// bundle is still reasoned over and the insight flagged partial.
// -----------------------------------------------------------------------------

type Router struct {
	Assembler *ContextAssembler
	Local     interfaces.IReasoner
	Cloud     interfaces.IReasoner
	Config    models.MAnalysisConfig
	Logger    *logger.Logger

	// Store, when set, receives every produced insight for audit.
	Store interfaces.IDatabase
}

// -----------------------------------------------------------------------------

func NewRouter(assembler *ContextAssembler, local, cloud interfaces.IReasoner, cfg models.MAnalysisConfig, log *logger.Logger) *Router {
	return &Router{
		Assembler: assembler,
		Local:     local,
		Cloud:     cloud,
		Config:    cfg,
		Logger:    log,
	}
}

// -----------------------------------------------------------------------------

// Handle runs one request under ctx, which must carry the request
// deadline. Cancelling ctx cancels every pending analyzer and reasoning
// call for this request and no other.
func (r *Router) Handle(ctx context.Context, req *models.MAnalysisRequest) (*models.MInsight, error) {
	// A bare ai-insight request still needs context to reason about
	if len(analyzerKinds(req.Kinds)) == 0 {
		req.Kinds = append(req.Kinds, models.AnalyzerKinds...)
	}

	bundle := r.Assembler.Assemble(ctx, req)

	if !bundle.HasResults() {
		return nil, helpers.NewError(helpers.KindNoContext,
			"no analyzer produced usable data for %s %s", req.Symbol, req.Timeframe)
	}
	if !bundle.Complete {
		r.Logger.Info("Request %s: reasoning over partial bundle (%d/%d slots)",
			req.RequestID, len(bundle.Results), len(bundle.Results)+len(bundle.Errors))
	}

	// Local first, bounded by its own sub-deadline inside the request budget
	localCtx, cancel := context.WithTimeout(ctx, time.Duration(r.Config.LocalTimeoutMs)*time.Millisecond)
	insight, localErr := r.Local.Infer(localCtx, req, bundle)
	cancel()

	if localErr == nil {
		r.audit(insight)
		return insight, nil
	}
	if ctx.Err() != nil {
		return nil, helpers.WrapError(helpers.KindDeadlineExceeded, ctx.Err(),
			"request %s exceeded its deadline during local reasoning", req.RequestID)
	}

	r.Logger.Info("Request %s: local reasoning failed (%v), falling back to cloud", req.RequestID, localErr)

	// Cloud fallback gets the remaining budget
	insight, cloudErr := r.Cloud.Infer(ctx, req, bundle)
	if cloudErr == nil {
		r.audit(insight)
		return insight, nil
	}
	if ctx.Err() != nil {
		return nil, helpers.WrapError(helpers.KindDeadlineExceeded, cloudErr,
			"request %s exceeded its deadline before any backend responded", req.RequestID)
	}

	return nil, helpers.WrapError(helpers.KindUpstreamUnavailable, cloudErr,
		"both reasoning backends failed for request %s", req.RequestID)
}

// -----------------------------------------------------------------------------

// audit persists the insight off the request path.
func (r *Router) audit(insight *models.MInsight) {
	if r.Store == nil {
		return
	}
	go func() {
		if err := r.Store.SaveInsight(insight); err != nil {
			r.Logger.Warning("Failed to persist insight %s: %v", insight.RequestID, err)
		}
	}()
}
