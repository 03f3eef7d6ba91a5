package datasource

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-gateway/src/models"
	"market-gateway/src/utils"
)

func simConfig() models.MSourceConfig {
	return models.MSourceConfig{
		Name:            "sim-test",
		Type:            "sim",
		Symbols:         []string{"EURUSD", "AAPL"},
		Timeframes:      []string{"1m", "5m"},
		IntervalSeconds: 1,
	}
}

// -----------------------------------------------------------------------------

func TestFetchInitialDataCoversEveryStream(t *testing.T) {
	s := NewSimSource(simConfig())

	data, err := s.FetchInitialData()
	require.NoError(t, err)
	require.Len(t, data, 4)

	backlog := data[utils.StreamKey("EURUSD", "1m")]
	require.Len(t, backlog, simBacklogPoints)

	// Oldest first, strictly increasing timestamps, one timeframe apart.
	for i := 1; i < len(backlog); i++ {
		assert.Equal(t, backlog[i-1].Timestamp+60_000, backlog[i].Timestamp)
	}
	assert.Equal(t, "EURUSD", backlog[0].Symbol)
	assert.Equal(t, "1m", backlog[0].Timeframe)
	assert.Equal(t, "sim-test", backlog[0].Source)
	assert.Positive(t, backlog[0].Price)
}

func TestBacklogIsReproduciblePerName(t *testing.T) {
	a, _ := NewSimSource(simConfig()).FetchInitialData()
	b, _ := NewSimSource(simConfig()).FetchInitialData()

	keyed := utils.StreamKey("AAPL", "5m")
	require.Len(t, b[keyed], len(a[keyed]))
	for i := range a[keyed] {
		assert.Equal(t, a[keyed][i].Price, b[keyed][i].Price)
	}
}

func TestStartEmitsAndStops(t *testing.T) {
	cfg := simConfig()
	cfg.Symbols = []string{"EURUSD"}
	cfg.Timeframes = []string{"1m"}
	s := NewSimSource(cfg)

	out := make(chan *models.MMarketUpdate, 64)
	var wg sync.WaitGroup
	wg.Add(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx, out, &wg))

	select {
	case u := <-out:
		assert.Equal(t, "EURUSD", u.Symbol)
		assert.Equal(t, "1m", u.Timeframe)
	case <-time.After(3 * time.Second):
		t.Fatal("no update emitted")
	}

	require.NoError(t, s.Stop())
	wg.Wait()
	assert.False(t, s.running.Load())
}

func TestUpdateSymbolsTakesEffect(t *testing.T) {
	s := NewSimSource(simConfig())

	require.NoError(t, s.UpdateSymbols([]string{"GBPUSD"}))
	assert.Equal(t, []string{"GBPUSD"}, s.Symbols())

	data, err := s.FetchInitialData()
	require.NoError(t, err)
	assert.Contains(t, data, utils.StreamKey("GBPUSD", "1m"))
	assert.NotContains(t, data, utils.StreamKey("EURUSD", "1m"))
}
