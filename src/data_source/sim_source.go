package datasource

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"market-gateway/src/logger"
	"market-gateway/src/models"
	"market-gateway/src/utils"
)

// Backlog generated per stream by FetchInitialData.
const simBacklogPoints = 100

// -----------------------------------------------------------------------------
// SimSource generates a seeded random walk per symbol x timeframe. Used
// for local runs and the smoke harness; needs no upstream at all.
// -----------------------------------------------------------------------------

type SimSource struct {
	SourceConfig models.MSourceConfig
	Logger       *logger.Logger

	symbols atomic.Value // []string

	mu         sync.Mutex
	rng        *rand.Rand
	lastPrices map[string]float64

	running    atomic.Bool
	cancelFunc context.CancelFunc
}

// -----------------------------------------------------------------------------

func NewSimSource(srcCfg models.MSourceConfig) *SimSource {
	// Seed from the source name so runs are reproducible per config
	h := fnv.New64a()
	h.Write([]byte(srcCfg.Name))

	s := &SimSource{
		SourceConfig: srcCfg,
		Logger:       logger.NewLogger(nil, "SimSource-"+srcCfg.Name),
		rng:          rand.New(rand.NewSource(int64(h.Sum64()))),
		lastPrices:   make(map[string]float64),
	}
	s.symbols.Store(srcCfg.Symbols)
	return s
}

// -----------------------------------------------------------------------------

func (s *SimSource) Name() string {
	return s.SourceConfig.Name
}

// IsRealTime returns true; the sim emits on its own clock, nothing polls.
func (s *SimSource) IsRealTime() bool {
	return true
}

func (s *SimSource) Symbols() []string {
	return s.symbols.Load().([]string)
}

func (s *SimSource) UpdateSymbols(symbols []string) error {
	s.symbols.Store(symbols)
	return nil
}

// -----------------------------------------------------------------------------

// FetchInitialData synthesizes a backlog per stream so the history
// buffers have something to analyze from the first request on.
func (s *SimSource) FetchInitialData() (map[string][]models.MMarketUpdate, error) {
	results := make(map[string][]models.MMarketUpdate)
	now := time.Now().UnixMilli()

	for _, symbol := range s.Symbols() {
		for _, timeframe := range s.SourceConfig.Timeframes {
			secs, err := models.TimeframeToSeconds(timeframe)
			if err != nil {
				continue
			}

			updates := make([]models.MMarketUpdate, 0, simBacklogPoints)
			for i := simBacklogPoints; i > 0; i-- {
				ts := now - int64(i)*secs*1000
				updates = append(updates, s.next(symbol, timeframe, ts))
			}
			results[utils.StreamKey(symbol, timeframe)] = updates
		}
	}

	return results, nil
}

// -----------------------------------------------------------------------------

// Start emits one update per symbol x timeframe every interval.
func (s *SimSource) Start(ctx context.Context, out chan<- *models.MMarketUpdate, wg *sync.WaitGroup) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel
	s.running.Store(true)

	interval := time.Duration(s.SourceConfig.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}

	go func() {
		defer wg.Done()
		defer s.running.Store(false)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				s.Logger.Info("SimSource %s stopped", s.Name())
				return
			case <-ticker.C:
				now := time.Now().UnixMilli()
				for _, symbol := range s.Symbols() {
					for _, timeframe := range s.SourceConfig.Timeframes {
						update := s.next(symbol, timeframe, now)
						select {
						case out <- &update:
						case <-runCtx.Done():
							return
						}
					}
				}
			}
		}
	}()

	return nil
}

// -----------------------------------------------------------------------------

func (s *SimSource) Stop() error {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	return nil
}

// -----------------------------------------------------------------------------

// next advances the walk for one stream and builds the update.
func (s *SimSource) next(symbol, timeframe string, ts int64) models.MMarketUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := utils.StreamKey(symbol, timeframe)
	price, ok := s.lastPrices[key]
	if !ok {
		// Starting level derived from the symbol so streams differ
		h := fnv.New32a()
		h.Write([]byte(symbol))
		price = 50 + float64(h.Sum32()%100000)/1000
	}

	// Random walk with ~0.1% step
	step := (s.rng.Float64() - 0.5) * 0.002 * price
	open := price
	price += step

	high := open
	low := open
	if price > high {
		high = price
	}
	if price < low {
		low = price
	}

	s.lastPrices[key] = price

	return models.MMarketUpdate{
		Symbol:     symbol,
		Timeframe:  timeframe,
		Source:     s.Name(),
		Timestamp:  ts,
		Price:      price,
		Volume:     float64(s.rng.Intn(10000) + 100),
		Open:       open,
		High:       high,
		Low:        low,
		Close:      price,
		ReceivedAt: time.Now().UnixMilli(),
	}
}
