package reasoning

import (
	"context"
	"encoding/json"
	"time"

	"market-gateway/src/helpers"
	"market-gateway/src/interfaces"
	"market-gateway/src/logger"
	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------
// CloudReasoner posts the bundle to a configured HTTP inference endpoint
// through the network manager. The caller's context carries whatever
// budget remains after the local attempt.
// -----------------------------------------------------------------------------

type CloudReasoner struct {
	Config  models.MReasoningConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

func NewCloudReasoner(cfg models.MReasoningConfig, network interfaces.INetworkManager, log *logger.Logger) *CloudReasoner {
	return &CloudReasoner{
		Config:  cfg,
		Network: network,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

func (r *CloudReasoner) Name() string {
	return "cloud"
}

// -----------------------------------------------------------------------------

// inferencePayload is the request body the endpoint receives.
type inferencePayload struct {
	RequestID string                 `json:"request_id"`
	Symbol    string                 `json:"symbol"`
	Timeframe string                 `json:"timeframe"`
	Kinds     []string               `json:"kinds"`
	Bundle    *models.MContextBundle `json:"bundle"`
}

// inferenceResponse is the shape the endpoint answers with.
type inferenceResponse struct {
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
	RiskAssessment  string   `json:"risk_assessment"`
	Confidence      float64  `json:"confidence"`
}

// -----------------------------------------------------------------------------

func (r *CloudReasoner) Infer(ctx context.Context, req *models.MAnalysisRequest, bundle *models.MContextBundle) (*models.MInsight, error) {
	if r.Config.CloudURL == "" {
		return nil, helpers.NewError(helpers.KindUpstreamUnavailable, "no cloud inference endpoint configured")
	}
	if !bundle.HasResults() {
		return nil, helpers.NewError(helpers.KindNoContext, "no analyzer produced usable data for %s", req.Symbol)
	}

	// The endpoint call is capped at its own timeout inside whatever
	// request budget remains.
	if r.Config.CloudTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(r.Config.CloudTimeoutMs)*time.Millisecond)
		defer cancel()
	}

	body, err := json.Marshal(inferencePayload{
		RequestID: req.RequestID,
		Symbol:    req.Symbol,
		Timeframe: req.Timeframe,
		Kinds:     req.Kinds,
		Bundle:    bundle,
	})
	if err != nil {
		return nil, err
	}

	headers := map[string]string{}
	if r.Config.CloudAPIKey != "" {
		headers["Authorization"] = "Bearer " + r.Config.CloudAPIKey
	}

	raw, err := r.Network.Post(ctx, r.Config.CloudURL, headers, body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, helpers.WrapError(helpers.KindTimeout, err, "cloud inference timed out for %s", req.Symbol)
		}
		return nil, helpers.WrapError(helpers.KindUpstreamUnavailable, err, "cloud inference failed for %s", req.Symbol)
	}

	var resp inferenceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, helpers.WrapError(helpers.KindUpstreamUnavailable, err, "cloud inference returned an unreadable response")
	}

	return &models.MInsight{
		RequestID:       req.RequestID,
		Symbol:          req.Symbol,
		Timeframe:       req.Timeframe,
		Insights:        resp.Insights,
		Recommendations: resp.Recommendations,
		RiskAssessment:  resp.RiskAssessment,
		Confidence:      resp.Confidence,
		DataSources:     bundle.Kinds(),
		Partial:         !bundle.Complete,
		Backend:         r.Name(),
		GeneratedAt:     time.Now().UnixMilli(),
	}, nil
}
