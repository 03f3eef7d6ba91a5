package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"market-gateway/src/interfaces"
	"market-gateway/src/logger"
	"market-gateway/src/models"
	"market-gateway/src/ratelimit"
	"market-gateway/src/utils"
)

// -----------------------------------------------------------------------------
// HTTPSource polls a JSON endpoint speaking this gateway's normalized
// update schema. Every poll is admitted by the rate-limited fetcher and
// travels through the network manager (retries, proxy rotation). Polling
// is gated on trading hours when the source is configured for it.
// -----------------------------------------------------------------------------

type HTTPSource struct {
	Config       *models.MConfig
	SourceConfig models.MSourceConfig
	Network      interfaces.INetworkManager
	Fetcher      *ratelimit.Fetcher
	Logger       *logger.Logger
	Scheduler    *utils.MarketScheduler

	symbols atomic.Value // []string

	lastTimestamps   map[string]int64
	lastTimestampsMu sync.RWMutex

	running    atomic.Bool
	cancelFunc context.CancelFunc
}

// -----------------------------------------------------------------------------

func NewHTTPSource(cfg *models.MConfig, srcCfg models.MSourceConfig, network interfaces.INetworkManager, fetcher *ratelimit.Fetcher) *HTTPSource {
	s := &HTTPSource{
		Config:         cfg,
		SourceConfig:   srcCfg,
		Network:        network,
		Fetcher:        fetcher,
		Logger:         logger.NewLogger(nil, "HTTPSource-"+srcCfg.Name),
		Scheduler:      utils.NewMarketScheduler(srcCfg.Symbols, logger.NewLogger(nil, "MarketScheduler-"+srcCfg.Name)),
		lastTimestamps: make(map[string]int64),
	}
	s.symbols.Store(srcCfg.Symbols)
	return s
}

// -----------------------------------------------------------------------------

func (s *HTTPSource) Name() string {
	return s.SourceConfig.Name
}

// IsRealTime returns false; the source follows the polling interval model.
func (s *HTTPSource) IsRealTime() bool {
	return false
}

func (s *HTTPSource) Symbols() []string {
	return s.symbols.Load().([]string)
}

func (s *HTTPSource) UpdateSymbols(symbols []string) error {
	s.symbols.Store(symbols)
	s.Scheduler.UpdateSymbols(symbols)
	return nil
}

// -----------------------------------------------------------------------------

// FetchInitialData pulls the endpoint's backlog for every stream.
func (s *HTTPSource) FetchInitialData() (map[string][]models.MMarketUpdate, error) {
	results := make(map[string][]models.MMarketUpdate)

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(s.Config.Network.RequestTimeout)*time.Second*2)
	defer cancel()

	for _, symbol := range s.Symbols() {
		for _, timeframe := range s.SourceConfig.Timeframes {
			updates, err := s.poll(ctx, symbol, timeframe)
			if err != nil {
				s.Logger.Warning("Initial fetch failed for %s %s: %v", symbol, timeframe, err)
				continue
			}
			if len(updates) > 0 {
				s.markSeen(symbol, timeframe, updates[len(updates)-1].Timestamp)
				results[utils.StreamKey(symbol, timeframe)] = updates
			}
		}
	}

	return results, nil
}

// -----------------------------------------------------------------------------

// Start polls every interval and pushes only updates newer than the last
// seen timestamp per stream.
func (s *HTTPSource) Start(ctx context.Context, out chan<- *models.MMarketUpdate, wg *sync.WaitGroup) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel
	s.running.Store(true)

	interval := time.Duration(s.SourceConfig.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}

	go func() {
		defer wg.Done()
		defer s.running.Store(false)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				s.Logger.Info("HTTPSource %s stopped", s.Name())
				return
			case <-ticker.C:
				s.pollAll(runCtx, out)
			}
		}
	}()

	return nil
}

// -----------------------------------------------------------------------------

func (s *HTTPSource) Stop() error {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *HTTPSource) pollAll(ctx context.Context, out chan<- *models.MMarketUpdate) {
	for _, symbol := range s.Symbols() {
		// Closed markets are not polled
		if s.SourceConfig.MarketHours && !s.Scheduler.IsSymbolOpen(symbol) {
			continue
		}

		for _, timeframe := range s.SourceConfig.Timeframes {
			pollCtx, cancel := context.WithTimeout(ctx,
				time.Duration(s.Config.Network.RequestTimeout)*time.Second)
			updates, err := s.poll(pollCtx, symbol, timeframe)
			cancel()

			if err != nil {
				s.Logger.Info("Poll failed for %s %s: %v", symbol, timeframe, err)
				continue
			}

			last := s.lastSeen(symbol, timeframe)
			for i := range updates {
				if updates[i].Timestamp <= last {
					continue
				}
				last = updates[i].Timestamp

				update := updates[i]
				select {
				case out <- &update:
				case <-ctx.Done():
					return
				}
			}
			s.markSeen(symbol, timeframe, last)
		}
	}
}

// -----------------------------------------------------------------------------

// poll fetches one stream through the admission-controlled fetcher.
func (s *HTTPSource) poll(ctx context.Context, symbol, timeframe string) ([]models.MMarketUpdate, error) {
	res, err := s.Fetcher.Do(ctx, s.Name(), func(callCtx context.Context) (interface{}, error) {
		params := map[string]string{
			"symbol":    symbol,
			"timeframe": timeframe,
		}
		if s.SourceConfig.APIKey != "" {
			params["api_key"] = s.SourceConfig.APIKey
		}
		return s.Network.Get(callCtx, s.SourceConfig.URL, params)
	})
	if err != nil {
		return nil, err
	}

	var updates []models.MMarketUpdate
	if err := json.Unmarshal(res.([]byte), &updates); err != nil {
		return nil, fmt.Errorf("unreadable response from %s: %w", s.Name(), err)
	}

	now := time.Now().UnixMilli()
	for i := range updates {
		updates[i].Source = s.Name()
		updates[i].Symbol = symbol
		updates[i].Timeframe = timeframe
		updates[i].ReceivedAt = now
	}

	return updates, nil
}

// -----------------------------------------------------------------------------

func (s *HTTPSource) lastSeen(symbol, timeframe string) int64 {
	s.lastTimestampsMu.RLock()
	defer s.lastTimestampsMu.RUnlock()
	return s.lastTimestamps[utils.StreamKey(symbol, timeframe)]
}

func (s *HTTPSource) markSeen(symbol, timeframe string, ts int64) {
	s.lastTimestampsMu.Lock()
	defer s.lastTimestampsMu.Unlock()
	if ts > s.lastTimestamps[utils.StreamKey(symbol, timeframe)] {
		s.lastTimestamps[utils.StreamKey(symbol, timeframe)] = ts
	}
}
