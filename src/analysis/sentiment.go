package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"market-gateway/src/helpers"
	"market-gateway/src/models"
	"market-gateway/src/utils"
)

// Headlines considered per request.
const sentimentWindow = 20

// Keyword tables for headline scoring. Crude on purpose: real NLP lives
// behind the cloud reasoning backend, not here.
var (
	positiveWords = []string{
		"beat", "beats", "surge", "surges", "rally", "rallies", "gain", "gains",
		"record", "upgrade", "upgraded", "bullish", "strong", "growth", "profit",
		"soar", "soars", "jump", "jumps", "outperform", "buyback", "dividend",
	}
	negativeWords = []string{
		"miss", "misses", "plunge", "plunges", "fall", "falls", "drop", "drops",
		"cut", "cuts", "downgrade", "downgraded", "bearish", "weak", "loss",
		"lawsuit", "probe", "recall", "fraud", "layoff", "layoffs", "bankruptcy",
	}
)

// -----------------------------------------------------------------------------
// SentimentAnalyzer scores recent headlines for a symbol. It errors when
// no news is buffered, which the assembler records as an errored slot.
// -----------------------------------------------------------------------------

type SentimentAnalyzer struct {
	News *utils.NewsBuffer
}

func NewSentimentAnalyzer(news *utils.NewsBuffer) *SentimentAnalyzer {
	return &SentimentAnalyzer{News: news}
}

// -----------------------------------------------------------------------------

func (a *SentimentAnalyzer) Kind() string {
	return models.KindSentiment
}

// -----------------------------------------------------------------------------

func (a *SentimentAnalyzer) Analyze(ctx context.Context, symbol, timeframe string) (*models.MAnalyzerResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items := a.News.Recent(symbol, sentimentWindow)
	if len(items) == 0 {
		return nil, helpers.NewError(helpers.KindNoData, "no news available for %s", symbol)
	}

	positive, negative := 0, 0
	for _, item := range items {
		headline := strings.ToLower(item.Headline)
		for _, w := range positiveWords {
			if strings.Contains(headline, w) {
				positive++
			}
		}
		for _, w := range negativeWords {
			if strings.Contains(headline, w) {
				negative++
			}
		}
	}

	// Score in [-1, 1]
	score := 0.0
	if positive+negative > 0 {
		score = float64(positive-negative) / float64(positive+negative)
	}

	signal := "neutral"
	switch {
	case score > 0.2:
		signal = "bullish"
	case score < -0.2:
		signal = "bearish"
	}

	return &models.MAnalyzerResult{
		Kind:      a.Kind(),
		Symbol:    symbol,
		Timeframe: timeframe,
		Signal:    signal,
		Summary: fmt.Sprintf("%s: sentiment %.2f over %d headlines (%d positive, %d negative hits)",
			symbol, score, len(items), positive, negative),
		Metrics: map[string]float64{
			"score":         score,
			"headlines":     float64(len(items)),
			"positive_hits": float64(positive),
			"negative_hits": float64(negative),
		},
		GeneratedAt: time.Now().UnixMilli(),
	}, nil
}
