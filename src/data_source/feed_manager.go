package datasource

import (
	"context"
	"fmt"
	"sync"

	"market-gateway/src/interfaces"
	"market-gateway/src/logger"
	"market-gateway/src/models"
	"market-gateway/src/ratelimit"
)

// -----------------------------------------------------------------------------
// FeedManager owns the set of feed sources: fan-in onto one shared update
// channel, add/remove/start/stop by name, merged initial fetch for the
// warm start.
// -----------------------------------------------------------------------------

type FeedManager struct {
	Sources map[string]interfaces.IFeedSource
	Logger  *logger.Logger

	config  *models.MConfig
	network interfaces.INetworkManager
	fetcher *ratelimit.Fetcher

	mu         sync.RWMutex
	outputChan chan<- *models.MMarketUpdate // Send-only, owned by the parent
	ctx        context.Context              // Lifecycle context (derived)
	cancelFunc context.CancelFunc
	wg         *sync.WaitGroup // Shared WaitGroup (ptr)
}

// -----------------------------------------------------------------------------

func NewFeedManager(cfg *models.MConfig, network interfaces.INetworkManager, fetcher *ratelimit.Fetcher, log *logger.Logger) (*FeedManager, error) {
	m := &FeedManager{
		Sources: make(map[string]interfaces.IFeedSource),
		Logger:  log,
		config:  cfg,
		network: network,
		fetcher: fetcher,
	}

	for _, srcCfg := range cfg.Feeds.Sources {
		source, err := m.buildSource(srcCfg)
		if err != nil {
			return nil, err
		}
		m.Sources[source.Name()] = source
	}

	return m, nil
}

// -----------------------------------------------------------------------------

// buildSource constructs one source from its config entry.
func (m *FeedManager) buildSource(srcCfg models.MSourceConfig) (interfaces.IFeedSource, error) {
	switch srcCfg.Type {
	case "sim":
		return NewSimSource(srcCfg), nil
	case "http":
		return NewHTTPSource(m.config, srcCfg, m.network, m.fetcher), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", srcCfg.Type)
	}
}

// -----------------------------------------------------------------------------

// AddFromConfig builds a source from a config entry and adds it. The new
// source starts immediately when the manager is already running.
func (m *FeedManager) AddFromConfig(srcCfg models.MSourceConfig) error {
	source, err := m.buildSource(srcCfg)
	if err != nil {
		return err
	}
	return m.AddSource(source)
}

// -----------------------------------------------------------------------------

// AddSource adds a new source and starts it if the manager is running
func (m *FeedManager) AddSource(source interfaces.IFeedSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := source.Name()
	if _, exists := m.Sources[name]; exists {
		return fmt.Errorf("source %s already exists", name)
	}

	m.Sources[name] = source
	m.Logger.Info("Added source: %s", name)

	// If the manager is already running, start the new source immediately
	if m.outputChan != nil && m.ctx != nil {
		m.wg.Add(1)
		if err := source.Start(m.ctx, m.outputChan, m.wg); err != nil {
			m.wg.Done()
			return fmt.Errorf("failed to start source %s: %v", name, err)
		}
		m.Logger.Info("Started source: %s", name)
	}

	return nil
}

// -----------------------------------------------------------------------------

// RemoveSource stops and removes a source
func (m *FeedManager) RemoveSource(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, exists := m.Sources[name]
	if !exists {
		return fmt.Errorf("source %s not found", name)
	}

	if err := source.Stop(); err != nil {
		m.Logger.Error("Error stopping source %s: %v", name, err)
	}

	delete(m.Sources, name)
	m.Logger.Info("Removed source: %s", name)
	return nil
}

// -----------------------------------------------------------------------------

// GetSource retrieves a source by name
func (m *FeedManager) GetSource(name string) (interfaces.IFeedSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	source, exists := m.Sources[name]
	if !exists {
		return nil, fmt.Errorf("source %s not found", name)
	}
	return source, nil
}

// -----------------------------------------------------------------------------

// GetAllSources returns a snapshot list of all sources
func (m *FeedManager) GetAllSources() []interfaces.IFeedSource {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]interfaces.IFeedSource, 0, len(m.Sources))
	for _, s := range m.Sources {
		list = append(list, s)
	}
	return list
}

// -----------------------------------------------------------------------------

// SourceStatus is the control plane's view of one source.
type SourceStatus struct {
	Name     string   `json:"name"`
	RealTime bool     `json:"real_time"`
	Symbols  []string `json:"symbols"`
	Running  bool     `json:"running"`
}

// Statuses reports every source for the admin API.
func (m *FeedManager) Statuses() []SourceStatus {
	m.mu.RLock()
	running := m.ctx != nil
	sources := make([]interfaces.IFeedSource, 0, len(m.Sources))
	for _, s := range m.Sources {
		sources = append(sources, s)
	}
	m.mu.RUnlock()

	out := make([]SourceStatus, 0, len(sources))
	for _, s := range sources {
		out = append(out, SourceStatus{
			Name:     s.Name(),
			RealTime: s.IsRealTime(),
			Symbols:  s.Symbols(),
			Running:  running,
		})
	}
	return out
}

// -----------------------------------------------------------------------------

// Start starts all sources
func (m *FeedManager) Start(parentCtx context.Context, outputChan chan<- *models.MMarketUpdate, wg *sync.WaitGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		return fmt.Errorf("FeedManager is already running")
	}

	// Derive a context so the manager can stop independently of the parent
	ctx, cancel := context.WithCancel(parentCtx)
	m.ctx = ctx
	m.cancelFunc = cancel

	m.outputChan = outputChan
	m.wg = wg

	for _, src := range m.Sources {
		m.wg.Add(1)
		if err := src.Start(m.ctx, m.outputChan, m.wg); err != nil {
			m.Logger.Error("Failed to start source %s: %v", src.Name(), err)
			m.wg.Done()
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop stops all sources gracefully by cancelling the internal context
func (m *FeedManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return nil // Already stopped
	}

	m.Logger.Info("Stopping FeedManager...")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	m.cancelFunc = nil
	m.ctx = nil

	m.Logger.Info("FeedManager stopped.")
	return nil
}

// -----------------------------------------------------------------------------

// StartSource starts a specific source by name
func (m *FeedManager) StartSource(name string) error {
	m.mu.RLock()
	source, exists := m.Sources[name]
	ctx := m.ctx
	outChan := m.outputChan
	wg := m.wg
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("source %s not found", name)
	}
	if outChan == nil || ctx == nil {
		return fmt.Errorf("FeedManager is not running")
	}

	wg.Add(1)
	if err := source.Start(ctx, outChan, wg); err != nil {
		wg.Done()
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// StopSource stops a specific source by name
func (m *FeedManager) StopSource(name string) error {
	m.mu.RLock()
	source, exists := m.Sources[name]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("source %s not found", name)
	}

	return source.Stop()
}

// -----------------------------------------------------------------------------

// FetchInitialData fans out to all sources and merges the results.
// Failing sources are skipped; the warm start works with what it gets.
func (m *FeedManager) FetchInitialData() (map[string][]models.MMarketUpdate, error) {
	results := make(map[string][]models.MMarketUpdate)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, src := range m.GetAllSources() {
		wg.Add(1)
		go func(s interfaces.IFeedSource) {
			defer wg.Done()
			data, err := s.FetchInitialData()
			if err != nil {
				m.Logger.Error("Source %s failed initial fetch: %v", s.Name(), err)
				return // Continue with other sources
			}
			mu.Lock()
			for k, v := range data {
				results[k] = append(results[k], v...)
			}
			mu.Unlock()
		}(src)
	}
	wg.Wait()
	return results, nil
}
