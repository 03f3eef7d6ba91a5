package reasoning

import (
	"context"
	"fmt"
	"sort"
	"time"

	"market-gateway/src/helpers"
	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------
// LocalReasoner produces a deterministic rule-based insight from the
// bundle: the analyzer signals vote, confidence comes from slot coverage
// and agreement, risk wording from the technical volatility metric.
// -----------------------------------------------------------------------------

type LocalReasoner struct {
	Enabled bool
}

func NewLocalReasoner(enabled bool) *LocalReasoner {
	return &LocalReasoner{Enabled: enabled}
}

// -----------------------------------------------------------------------------

func (r *LocalReasoner) Name() string {
	return "local"
}

// -----------------------------------------------------------------------------

func (r *LocalReasoner) Infer(ctx context.Context, req *models.MAnalysisRequest, bundle *models.MContextBundle) (*models.MInsight, error) {
	if !r.Enabled {
		return nil, helpers.NewError(helpers.KindUpstreamUnavailable, "local reasoning backend is disabled")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !bundle.HasResults() {
		return nil, helpers.NewError(helpers.KindNoContext, "no analyzer produced usable data for %s", req.Symbol)
	}

	// Majority vote across analyzer signals
	votes := map[string]int{}
	kinds := bundle.Kinds()
	sort.Strings(kinds)

	insights := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		res := bundle.Results[kind]
		votes[res.Signal]++
		insights = append(insights, fmt.Sprintf("[%s] %s", kind, res.Summary))
	}

	verdict := "neutral"
	best := 0
	for _, signal := range []string{"bullish", "bearish", "neutral"} {
		if votes[signal] > best {
			verdict = signal
			best = votes[signal]
		}
	}

	// Confidence: how much of the requested context arrived, times how
	// strongly the arrived slots agree.
	requested := 0
	for _, kind := range req.Kinds {
		if kind != models.KindAIInsight {
			requested++
		}
	}
	if requested == 0 {
		requested = len(kinds)
	}
	coverage := float64(len(kinds)) / float64(requested)
	agreement := float64(best) / float64(len(kinds))
	confidence := coverage * agreement

	recommendations := recommendationsFor(verdict)

	risk := "moderate"
	if tech, ok := bundle.Results[models.KindTechnical]; ok {
		switch vol := tech.Metrics["volatility"]; {
		case vol > 2.0:
			risk = fmt.Sprintf("elevated: volatility %.2f%% of price over the window", vol)
		case vol < 0.5:
			risk = fmt.Sprintf("low: volatility %.2f%% of price over the window", vol)
		default:
			risk = fmt.Sprintf("moderate: volatility %.2f%% of price over the window", vol)
		}
	}

	return &models.MInsight{
		RequestID:       req.RequestID,
		Symbol:          req.Symbol,
		Timeframe:       req.Timeframe,
		Insights:        insights,
		Recommendations: recommendations,
		RiskAssessment:  risk,
		Confidence:      confidence,
		DataSources:     kinds,
		Partial:         !bundle.Complete,
		Backend:         r.Name(),
		GeneratedAt:     time.Now().UnixMilli(),
	}, nil
}

// -----------------------------------------------------------------------------

func recommendationsFor(verdict string) []string {
	switch verdict {
	case "bullish":
		return []string{
			"Momentum and context lean positive; consider long exposure with a defined stop.",
			"Re-evaluate if the next updates break below the rolling mean.",
		}
	case "bearish":
		return []string{
			"Context leans negative; avoid new long exposure.",
			"Watch for a close back above the rolling mean before reconsidering.",
		}
	default:
		return []string{
			"No directional edge in the current context; stay flat.",
		}
	}
}
