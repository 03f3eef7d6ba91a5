package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"market-gateway/src/analysis"
	"market-gateway/src/auth"
	"market-gateway/src/cache"
	"market-gateway/src/config"
	datasource "market-gateway/src/data_source"
	"market-gateway/src/interfaces"
	"market-gateway/src/logger"
	"market-gateway/src/models"
	"market-gateway/src/network"
	"market-gateway/src/orchestration"
	"market-gateway/src/ratelimit"
	"market-gateway/src/reasoning"
	"market-gateway/src/server"
	"market-gateway/src/storage"
	"market-gateway/src/utils"
)

const (
	harnessPort  = 18765
	harnessToken = "smoke-test-token"
)

// -----------------------------------------------------------------------------

type stack struct {
	cfg    *config.Config
	logger *logger.Logger
	cancel context.CancelFunc
	feeds  *datasource.FeedManager
	wg     *sync.WaitGroup
	db     interfaces.IDatabase
}

func (s *stack) baseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", harnessPort)
}

func (s *stack) wsURL() string {
	return fmt.Sprintf("ws://127.0.0.1:%d/ws?token=%s", harnessPort, harnessToken)
}

func (s *stack) shutdown() {
	s.feeds.Stop()
	s.cancel()
	s.wg.Wait()
	s.db.Close()
}

// -----------------------------------------------------------------------------

// harnessConfig builds a self-contained config: sim feed only, sqlite in
// a temp dir, auth enabled with one token, local reasoning on.
func harnessConfig() *config.Config {
	dir, _ := os.MkdirTemp("", "gateway-smoke-*")

	cfg := &models.MConfig{
		Name:     "gateway-smoke",
		Host:     "127.0.0.1",
		Port:     harnessPort,
		LogLevel: "INFO",
		Auth: models.MAuthConfig{
			Enabled: true,
			Tokens:  []models.MTokenConfig{{Token: harnessToken, Principal: "smoke"}},
		},
		Gateway: models.MGatewayConfig{
			ClientBuffer:        64,
			HeartbeatSeconds:    30,
			MaxRequestTimeoutMs: 15000,
		},
		RateLimit: models.MRateLimitConfig{
			Burst:            50,
			RefillPerSec:     25,
			FailureThreshold: 5,
			CooldownSeconds:  10,
		},
		Cache: models.MCacheConfig{
			SweepSeconds: 30,
			TTLSeconds: models.MCacheTTLConfig{
				MarketData: 5, Technical: 2, Pattern: 2, Sentiment: 2, Insight: 60,
			},
		},
		Analysis: models.MAnalysisConfig{
			DefaultTimeoutMs: 8000,
			LocalTimeoutMs:   2000,
		},
		Reasoning: models.MReasoningConfig{LocalEnabled: true},
		Storage: models.MStorageConfig{
			DBType:        "sqlite",
			DBPath:        filepath.Join(dir, "smoke.db"),
			RetentionDays: 1,
		},
		Network: models.MNetworkConfig{
			RequestTimeout:     5,
			MaxRetries:         1,
			ConcurrentRequests: 4,
		},
		Feeds: models.MFeedsConfig{
			Sources: []models.MSourceConfig{{
				Name:            "sim",
				Type:            "sim",
				Symbols:         []string{"EURUSD", "AAPL"},
				Timeframes:      []string{"1m"},
				IntervalSeconds: 1,
			}},
		},
	}

	return &config.Config{MConfig: cfg}
}

// -----------------------------------------------------------------------------

// bootStack wires the full gateway the way cmd/main does, minus the
// batching loop frills the scenarios do not need.
func bootStack() (*stack, error) {
	cfg := harnessConfig()
	log := logger.NewLogger(cfg.MConfig, cfg.Name)

	db, err := storage.NewSQLiteDB(cfg.MConfig, log)
	if err != nil {
		return nil, err
	}
	if err := db.Initialize(); err != nil {
		return nil, err
	}

	var networkManager interfaces.INetworkManager = network.NewAsyncNetworkManager(cfg.MConfig, log)
	authenticator := auth.NewStaticAuthenticator(cfg.Auth)
	cacheStore := cache.NewCache(log)
	fetcher := ratelimit.NewFetcher(cfg.RateLimit, log)
	history := utils.NewHistoryStore(512, cfg.Storage.RetentionDays, log)
	news := utils.NewNewsBuffer(100)

	analyzers := []interfaces.IAnalyzer{
		analysis.NewTechnicalAnalyzer(history),
		analysis.NewPatternAnalyzer(history),
		analysis.NewSentimentAnalyzer(news),
	}
	assembler := orchestration.NewContextAssembler(cacheStore, fetcher, analyzers, cfg.Cache.TTLSeconds, log)
	local := reasoning.NewLocalReasoner(true)
	cloud := reasoning.NewCloudReasoner(cfg.Reasoning, networkManager, log)
	router := orchestration.NewRouter(assembler, local, cloud, cfg.Analysis, log)
	router.Store = db

	registry := server.NewSubscriptionRegistry()
	hub := server.NewHub(registry, log)

	feeds, err := datasource.NewFeedManager(cfg.MConfig, networkManager, fetcher, log)
	if err != nil {
		return nil, err
	}

	srv := server.NewGatewayServer(cfg, "", log, server.Deps{
		Auth:     authenticator,
		Router:   router,
		Cache:    cacheStore,
		Hub:      hub,
		Registry: registry,
		Feeds:    feeds,
		Fetcher:  fetcher,
		News:     news,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	// Prime the history so technical/pattern answer from the first call
	initial, err := feeds.FetchInitialData()
	if err != nil {
		cancel()
		return nil, err
	}
	for _, updates := range initial {
		for _, u := range updates {
			history.Add(u)
		}
	}

	wg := &sync.WaitGroup{}
	updatesChan := make(chan *models.MMarketUpdate, 1024)
	if err := feeds.Start(ctx, updatesChan, wg); err != nil {
		cancel()
		return nil, err
	}

	// Feed loop: history -> cache -> fan-out
	go func() {
		ttl := time.Duration(cfg.Cache.TTLSeconds.MarketData) * time.Second
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updatesChan:
				if !ok {
					return
				}
				history.Add(*update)
				cacheStore.Put(cache.Key(models.TopicMarket, update.Symbol, update.Timeframe), update, ttl)
				hub.Publish(update)
			}
		}
	}()

	go func() {
		if err := srv.Start(); err != nil {
			log.Error("Gateway server stopped: %v", err)
		}
	}()

	return &stack{
		cfg:    cfg,
		logger: log,
		cancel: cancel,
		feeds:  feeds,
		wg:     wg,
		db:     db,
	}, nil
}
