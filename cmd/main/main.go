package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"market-gateway/src/analysis"
	"market-gateway/src/auth"
	"market-gateway/src/cache"
	"market-gateway/src/config"
	datasource "market-gateway/src/data_source"
	"market-gateway/src/helpers"
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
	newsPerSymbol   = 100
	batchFlushSize  = 500
	batchFlushEvery = 5 * time.Second
	warmStartPoints = 200
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file (+ .env / GATEWAY_* overlays)
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.NewLogger(cfg.MConfig, cfg.Name)

	// 1. Storage
	var db interfaces.IDatabase
	switch cfg.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(cfg.MConfig, appLogger)
	default:
		db, err = storage.NewSQLiteDB(cfg.MConfig, appLogger)
	}
	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to initialize db schema: %v", err)
	}
	defer db.Close()

	// 2. Shared services, constructed once and passed by reference
	var networkManager interfaces.INetworkManager = network.NewAsyncNetworkManager(cfg.MConfig, appLogger)
	authenticator := auth.NewStaticAuthenticator(cfg.Auth)
	cacheStore := cache.NewCache(appLogger)
	fetcher := ratelimit.NewFetcher(cfg.RateLimit, appLogger)
	memoryBudgetMB := helpers.HistoryMemoryBudgetMB()
	appLogger.Info("History buffers budgeted at %dMB", memoryBudgetMB)
	history := utils.NewHistoryStore(memoryBudgetMB, cfg.Storage.RetentionDays, appLogger)
	news := utils.NewNewsBuffer(newsPerSymbol)

	// 3. Analysis pipeline
	analyzers := []interfaces.IAnalyzer{
		analysis.NewTechnicalAnalyzer(history),
		analysis.NewPatternAnalyzer(history),
		analysis.NewSentimentAnalyzer(news),
	}
	assembler := orchestration.NewContextAssembler(cacheStore, fetcher, analyzers, cfg.Cache.TTLSeconds, appLogger)

	local := reasoning.NewLocalReasoner(cfg.Reasoning.LocalEnabled)
	cloud := reasoning.NewCloudReasoner(cfg.Reasoning, networkManager, appLogger)

	router := orchestration.NewRouter(assembler, local, cloud, cfg.Analysis, appLogger)
	router.Store = db

	// 4. Fan-out plumbing
	registry := server.NewSubscriptionRegistry()
	hub := server.NewHub(registry, appLogger)

	feeds, err := datasource.NewFeedManager(cfg.MConfig, networkManager, fetcher, appLogger)
	if err != nil {
		appLogger.Critical("Failed to build feed sources: %v", err)
	}

	srv := server.NewGatewayServer(cfg, *configPath, appLogger, server.Deps{
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
	defer cancel()

	cacheStore.StartSweeper(ctx, time.Duration(cfg.Cache.SweepSeconds)*time.Second)
	go hub.Run(ctx)

	// 5. Warm start: recent history from storage, then the sources' backlog
	warmStartFromStorage(cfg.MConfig, db, history, appLogger)

	initial, err := helpers.RetryWithBackoff("initial feed fetch", 3, 2*time.Second, func() (interface{}, error) {
		return feeds.FetchInitialData()
	})
	if err != nil {
		appLogger.Warning("Initial fetch failed, continuing with stored history: %v", err)
	} else {
		primed := 0
		var backlog []models.MMarketUpdate
		for _, updates := range initial.(map[string][]models.MMarketUpdate) {
			for _, u := range updates {
				history.Add(u)
				backlog = append(backlog, u)
			}
			if n := len(updates); n > 0 {
				last := updates[n-1]
				cacheStore.Put(cache.Key(models.TopicMarket, last.Symbol, last.Timeframe),
					&last, time.Duration(cfg.Cache.TTLSeconds.MarketData)*time.Second)
				primed += n
			}
		}
		if err := db.SaveUpdatesBulk(backlog); err != nil {
			appLogger.Warning("Failed to persist initial backlog: %v", err)
		}
		appLogger.Info("Warm start primed %d points across %d streams", primed, history.StreamCount())
	}

	// 6. HTTP + WS server
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Gateway server failed: %v", err)
		}
	}()

	// 7. Feed loop
	wrapWg := &sync.WaitGroup{}
	updatesChan := make(chan *models.MMarketUpdate, 1024)

	if err := feeds.Start(ctx, updatesChan, wrapWg); err != nil {
		appLogger.Critical("Failed to start feed sources: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	appLogger.Info("Gateway running: %d feed sources, auth %v", len(feeds.GetAllSources()), cfg.Auth.Enabled)

	marketTTL := time.Duration(cfg.Cache.TTLSeconds.MarketData) * time.Second
	batch := make([]models.MMarketUpdate, 0, batchFlushSize)
	flushTicker := time.NewTicker(batchFlushEvery)
	retentionTicker := time.NewTicker(24 * time.Hour)
	defer flushTicker.Stop()
	defer retentionTicker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := db.SaveUpdatesBulk(batch); err != nil {
			appLogger.Error("Failed to persist update batch: %v", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case update, ok := <-updatesChan:
			if !ok {
				appLogger.Info("Feed channel closed.")
				flush()
				return
			}

			// history -> cache -> storage batch -> fan-out
			history.Add(*update)
			cacheStore.Put(cache.Key(models.TopicMarket, update.Symbol, update.Timeframe), update, marketTTL)

			batch = append(batch, *update)
			if len(batch) >= batchFlushSize {
				flush()
			}

			hub.Publish(update)

		case <-flushTicker.C:
			flush()

		case <-retentionTicker.C:
			if err := db.CleanupOldData(); err != nil {
				appLogger.Error("Retention cleanup failed: %v", err)
			}

		case <-quit:
			appLogger.Info("Shutting down...")
			feeds.Stop()
			cancel()
			wrapWg.Wait()
			flush()
			return
		}
	}
}

// -----------------------------------------------------------------------------

// warmStartFromStorage primes the history buffers with the newest stored
// updates for every configured stream.
func warmStartFromStorage(cfg *models.MConfig, db interfaces.IDatabase, history *utils.HistoryStore, log *logger.Logger) {
	loaded := 0
	for _, src := range cfg.Feeds.Sources {
		for _, symbol := range src.Symbols {
			for _, timeframe := range src.Timeframes {
				updates, err := db.RecentUpdates(symbol, timeframe, warmStartPoints)
				if err != nil {
					log.Warning("Failed to load stored history for %s %s: %v", symbol, timeframe, err)
					continue
				}
				for _, u := range updates {
					history.Add(u)
				}
				loaded += len(updates)
			}
		}
	}
	if loaded > 0 {
		log.Info("Loaded %d stored updates into history", loaded)
	}
}
