package models

// -----------------------------------------------------------------------------
// Analysis Request / Bundle / Insight
// -----------------------------------------------------------------------------

// Analyzer kinds accepted in an analyze request.
const (
	KindTechnical = "technical"
	KindPattern   = "pattern"
	KindSentiment = "sentiment"
	KindAIInsight = "ai-insight"
)

// AnalyzerKinds lists the kinds backed by a dedicated analyzer.
// KindAIInsight is served by the reasoning layer, not an analyzer slot.
var AnalyzerKinds = []string{KindTechnical, KindPattern, KindSentiment}

// -----------------------------------------------------------------------------

// MAnalysisRequest is created per incoming analyze message and dropped
// after the response (or timeout) is delivered.
type MAnalysisRequest struct {
	RequestID string   `json:"request_id"`
	Principal string   `json:"principal"`
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	Kinds     []string `json:"kinds"`
	TimeoutMs int      `json:"timeout_ms"`
}

// -----------------------------------------------------------------------------

// MAnalyzerResult is one analyzer kind's successful output.
type MAnalyzerResult struct {
	Kind        string             `json:"kind"`
	Symbol      string             `json:"symbol"`
	Timeframe   string             `json:"timeframe"`
	Signal      string             `json:"signal"` // "bullish", "bearish", "neutral"
	Summary     string             `json:"summary"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	GeneratedAt int64              `json:"generated_at"`
	FromCache   bool               `json:"from_cache"`
}

// -----------------------------------------------------------------------------

// MContextBundle maps analyzer kinds to their result or error for one request.
// Complete is true only if every requested kind succeeded before the deadline.
type MContextBundle struct {
	Symbol    string                     `json:"symbol"`
	Timeframe string                     `json:"timeframe"`
	Results   map[string]MAnalyzerResult `json:"results"`
	Errors    map[string]string          `json:"errors,omitempty"`
	Complete  bool                       `json:"complete"`
	ElapsedMs int64                      `json:"elapsed_ms"`
}

// HasResults reports whether at least one analyzer slot succeeded.
func (b *MContextBundle) HasResults() bool {
	return len(b.Results) > 0
}

// Kinds returns the kinds with a successful slot, for the insight's data sources.
func (b *MContextBundle) Kinds() []string {
	kinds := make([]string, 0, len(b.Results))
	for k := range b.Results {
		kinds = append(kinds, k)
	}
	return kinds
}

// -----------------------------------------------------------------------------

// MInsight is the structured answer to an analyze request.
type MInsight struct {
	RequestID       string   `json:"request_id"`
	Symbol          string   `json:"symbol"`
	Timeframe       string   `json:"timeframe"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
	RiskAssessment  string   `json:"risk_assessment"`
	Confidence      float64  `json:"confidence"`
	DataSources     []string `json:"data_sources"`
	Partial         bool     `json:"partial"`
	Backend         string   `json:"backend"` // "local" or "cloud"
	GeneratedAt     int64    `json:"generated_at"`
}
