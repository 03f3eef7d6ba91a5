package reasoning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-gateway/src/logger"
	"market-gateway/src/models"
)

// fakeNetwork records the context each call ran under and answers with
// a canned inference response.
type fakeNetwork struct {
	deadline time.Time
	hadLimit bool
	headers  map[string]string
}

func (f *fakeNetwork) Get(ctx context.Context, url string, params map[string]string) ([]byte, error) {
	return nil, nil
}

func (f *fakeNetwork) Post(ctx context.Context, url string, headers map[string]string, body []byte) ([]byte, error) {
	f.deadline, f.hadLimit = ctx.Deadline()
	f.headers = headers
	return []byte(`{"insights":["ok"],"recommendations":[],"risk_assessment":"low","confidence":0.9}`), nil
}

// -----------------------------------------------------------------------------

func cloudBundle() *models.MContextBundle {
	return &models.MContextBundle{
		Symbol: "EURUSD", Timeframe: "1m", Complete: true,
		Results: map[string]models.MAnalyzerResult{
			models.KindTechnical: {Kind: models.KindTechnical, Signal: "bullish"},
		},
		Errors: map[string]string{},
	}
}

func cloudRequest() *models.MAnalysisRequest {
	return &models.MAnalysisRequest{
		RequestID: "req-1", Symbol: "EURUSD", Timeframe: "1m",
		Kinds: []string{models.KindTechnical},
	}
}

// -----------------------------------------------------------------------------

func TestCloudCallBoundedByConfiguredTimeout(t *testing.T) {
	net := &fakeNetwork{}
	r := NewCloudReasoner(models.MReasoningConfig{
		CloudURL: "https://inference.example.com", CloudTimeoutMs: 1000,
	}, net, logger.NewLogger(nil, "cloud-test"))

	// The request budget is far larger than the cloud ceiling.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	insight, err := r.Infer(ctx, cloudRequest(), cloudBundle())
	require.NoError(t, err)
	assert.Equal(t, "cloud", insight.Backend)

	require.True(t, net.hadLimit)
	assert.WithinDuration(t, time.Now().Add(time.Second), net.deadline, 500*time.Millisecond)
}

func TestCloudKeepsSmallerCallerBudget(t *testing.T) {
	net := &fakeNetwork{}
	r := NewCloudReasoner(models.MReasoningConfig{
		CloudURL: "https://inference.example.com", CloudTimeoutMs: 60_000,
	}, net, logger.NewLogger(nil, "cloud-test"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := r.Infer(ctx, cloudRequest(), cloudBundle())
	require.NoError(t, err)

	// context.WithTimeout never extends the parent deadline.
	require.True(t, net.hadLimit)
	assert.WithinDuration(t, time.Now().Add(time.Second), net.deadline, 500*time.Millisecond)
}

func TestCloudSendsBearerHeader(t *testing.T) {
	net := &fakeNetwork{}
	r := NewCloudReasoner(models.MReasoningConfig{
		CloudURL: "https://inference.example.com", CloudAPIKey: "k-123",
	}, net, logger.NewLogger(nil, "cloud-test"))

	_, err := r.Infer(context.Background(), cloudRequest(), cloudBundle())
	require.NoError(t, err)
	assert.Equal(t, "Bearer k-123", net.headers["Authorization"])
}
