package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"market-gateway/src/cache"
	"market-gateway/src/config"
	datasource "market-gateway/src/data_source"
	"market-gateway/src/helpers"
	"market-gateway/src/interfaces"
	"market-gateway/src/logger"
	"market-gateway/src/models"
	"market-gateway/src/orchestration"
	"market-gateway/src/ratelimit"
	"market-gateway/src/utils"
)

// -----------------------------------------------------------------------------
// GatewayServer is the single entry point: it authenticates connections,
// accepts subscribe/unsubscribe/analyze messages over the websocket and
// owns every connection's lifecycle. REST routes carry the admin surface.
// -----------------------------------------------------------------------------

type GatewayServer struct {
	Config     *models.MConfig
	ConfigPath string
	Logger     *logger.Logger
	engine     *gin.Engine

	Auth     interfaces.IAuthenticator
	Router   *orchestration.Router
	Cache    *cache.Cache
	Hub      *Hub
	Registry *SubscriptionRegistry
	Feeds    *datasource.FeedManager
	Fetcher  *ratelimit.Fetcher
	News     *utils.NewsBuffer

	fullConfig *config.Config
	startedAt  time.Time
}

// Deps collects the shared services the gateway hands work to. Everything
// is constructed once in main and passed by reference.
type Deps struct {
	Auth     interfaces.IAuthenticator
	Router   *orchestration.Router
	Cache    *cache.Cache
	Hub      *Hub
	Registry *SubscriptionRegistry
	Feeds    *datasource.FeedManager
	Fetcher  *ratelimit.Fetcher
	News     *utils.NewsBuffer
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewGatewayServer(cfg *config.Config, configPath string, log *logger.Logger, deps Deps) *GatewayServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &GatewayServer{
		Config:     cfg.MConfig,
		ConfigPath: configPath,
		Logger:     log,
		engine:     gin.Default(),
		Auth:       deps.Auth,
		Router:     deps.Router,
		Cache:      deps.Cache,
		Hub:        deps.Hub,
		Registry:   deps.Registry,
		Feeds:      deps.Feeds,
		Fetcher:    deps.Fetcher,
		News:       deps.News,
		fullConfig: cfg,
		startedAt:  time.Now(),
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *GatewayServer) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/metrics", s.getMetrics)
	s.engine.GET("/api/config", s.getConfig)

	// Control plane
	s.engine.GET("/api/sources", s.listSources)
	s.engine.POST("/api/sources", s.addSource)
	s.engine.DELETE("/api/sources/:name", s.removeSource)
	s.engine.PUT("/api/sources/:name/symbols", s.updateSourceSymbols)
	s.engine.POST("/api/sources/:name/start", s.startSource)
	s.engine.POST("/api/sources/:name/stop", s.stopSource)
	s.engine.POST("/api/news", s.injectNews)
	s.engine.GET("/api/ratelimit", s.getRateLimit)
	s.engine.GET("/api/cache", s.getCache)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *GatewayServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting gateway on %s", addr)
	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------
// WebSocket Handshake
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s, conn, uuid.NewString(), s.Config.Gateway.ClientBuffer)

	// Connecting: resolve the credential before any work is accepted.
	// Auth failure short-circuits straight to Closed.
	principal, err := s.Auth.Authenticate(credentialFrom(c))
	if err != nil {
		s.Logger.Info("Auth failed for %s: %v", c.ClientIP(), err)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteJSON(errorMessage("", err))
		conn.Close()
		client.setState(StateClosed)
		return
	}

	client.Principal = principal
	client.setState(StateActive)
	s.Hub.Register(client)

	s.Logger.Info("Client %s connected as %s", client.ID, principal)

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------

// credentialFrom pulls the token from the query string or a Bearer header.
func credentialFrom(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	return strings.TrimPrefix(header, "Bearer ")
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// handleClientMessage dispatches one inbound frame. Returns false when the
// connection must terminate (unparseable frame, protocol violation).
func (s *GatewayServer) handleClientMessage(client *Client, raw []byte) bool {
	var msg models.MClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.Logger.Info("Unparseable frame from %s, closing: %v", client.ID, err)
		client.enqueue(errorMessage("", helpers.NewError(helpers.KindValidation, "unparseable message")))
		return false
	}

	if client.State() != StateActive {
		client.enqueue(errorMessage(msg.RequestID,
			helpers.NewError(helpers.KindDisconnected, "connection is %s, no longer accepting requests", client.State())))
		return false
	}

	if msg.RequestID == "" {
		msg.RequestID = uuid.NewString()
	}

	switch msg.Type {
	case models.MsgSubscribe:
		s.handleSubscribe(client, &msg)
	case models.MsgUnsubscribe:
		s.handleUnsubscribe(client, &msg)
	case models.MsgAnalyze:
		s.handleAnalyze(client, &msg)
	case models.MsgPing:
		client.enqueue(&models.MServerMessage{
			Type:      models.MsgPong,
			RequestID: msg.RequestID,
			Timestamp: time.Now().UnixMilli(),
		})
	default:
		client.enqueue(errorMessage(msg.RequestID,
			helpers.NewError(helpers.KindValidation, "unknown message type %q", msg.Type)))
	}

	return true
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) handleSubscribe(client *Client, msg *models.MClientMessage) {
	key, err := subscriptionKey(msg)
	if err != nil {
		client.enqueue(errorMessage(msg.RequestID, err))
		return
	}

	s.Registry.Subscribe(client, key)
	client.enqueue(ackMessage(msg.RequestID, "subscribe", key, s.Registry.CountFor(client)))

	// Warm start: replay the freshest cached update for the key
	if cached, ok := s.Cache.Get(cache.Key(key.Topic, key.Symbol, key.Timeframe)); ok {
		if update, ok := cached.(*models.MMarketUpdate); ok {
			client.enqueue(&models.MServerMessage{
				Type:      models.MsgMarketUpdate,
				Status:    models.StatusSuccess,
				Timestamp: update.ReceivedAt,
				Data:      update,
			})
		}
	}
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) handleUnsubscribe(client *Client, msg *models.MClientMessage) {
	key, err := subscriptionKey(msg)
	if err != nil {
		client.enqueue(errorMessage(msg.RequestID, err))
		return
	}

	s.Registry.Unsubscribe(client, key)
	client.enqueue(ackMessage(msg.RequestID, "unsubscribe", key, s.Registry.CountFor(client)))
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) handleAnalyze(client *Client, msg *models.MClientMessage) {
	req, err := s.analysisRequest(client, msg)
	if err != nil {
		client.enqueue(errorMessage(msg.RequestID, err))
		return
	}

	// One goroutine per in-flight request; the connection drains only
	// after these finish.
	client.inflight.Add(1)
	go func() {
		defer client.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()

		insight, err := s.Router.Handle(ctx, req)
		if err != nil {
			s.Logger.Info("Analysis %s failed: %v", req.RequestID, err)
			client.enqueue(errorMessage(req.RequestID, err))
			return
		}

		status := models.StatusSuccess
		if insight.Partial {
			status = models.StatusPartial
		}
		client.enqueue(&models.MServerMessage{
			Type:      models.MsgInsight,
			RequestID: req.RequestID,
			Status:    status,
			Timestamp: time.Now().UnixMilli(),
			Data:      insight,
		})
	}()
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

func subscriptionKey(msg *models.MClientMessage) (models.MSubscriptionKey, error) {
	topic := msg.Topic
	if topic == "" {
		topic = models.TopicMarket
	}
	if topic != models.TopicMarket {
		return models.MSubscriptionKey{}, helpers.NewError(helpers.KindValidation, "unknown topic %q", topic)
	}
	if msg.Symbol == "" {
		return models.MSubscriptionKey{}, helpers.NewError(helpers.KindValidation, "symbol is required")
	}
	if !models.IsValidTimeframe(msg.Timeframe) {
		return models.MSubscriptionKey{}, helpers.NewError(helpers.KindBadTimeframe, "invalid timeframe %q", msg.Timeframe)
	}

	return models.MSubscriptionKey{Topic: topic, Symbol: msg.Symbol, Timeframe: msg.Timeframe}, nil
}

// -----------------------------------------------------------------------------

// analysisRequest validates an analyze message and applies the deadline cap.
func (s *GatewayServer) analysisRequest(client *Client, msg *models.MClientMessage) (*models.MAnalysisRequest, error) {
	if msg.Symbol == "" {
		return nil, helpers.NewError(helpers.KindValidation, "symbol is required")
	}

	timeframe := msg.Timeframe
	if timeframe == "" {
		timeframe = "1m"
	}
	if !models.IsValidTimeframe(timeframe) {
		return nil, helpers.NewError(helpers.KindBadTimeframe, "invalid timeframe %q", timeframe)
	}

	if len(msg.Kinds) == 0 {
		return nil, helpers.NewError(helpers.KindValidation, "at least one analysis kind is required")
	}
	for _, kind := range msg.Kinds {
		switch kind {
		case models.KindTechnical, models.KindPattern, models.KindSentiment, models.KindAIInsight:
		default:
			return nil, helpers.NewError(helpers.KindValidation, "unknown analysis kind %q", kind)
		}
	}

	timeoutMs := msg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = s.Config.Analysis.DefaultTimeoutMs
	}
	if timeoutMs > s.Config.Gateway.MaxRequestTimeoutMs {
		timeoutMs = s.Config.Gateway.MaxRequestTimeoutMs
	}

	return &models.MAnalysisRequest{
		RequestID: msg.RequestID,
		Principal: client.Principal,
		Symbol:    msg.Symbol,
		Timeframe: timeframe,
		Kinds:     msg.Kinds,
		TimeoutMs: timeoutMs,
	}, nil
}

// -----------------------------------------------------------------------------
// Outbound message helpers
// -----------------------------------------------------------------------------

func errorMessage(requestID string, err error) *models.MServerMessage {
	kind := helpers.KindOf(err)
	message := "internal error"
	var ge *helpers.GatewayError
	if errors.As(err, &ge) {
		message = ge.Message
	}

	return &models.MServerMessage{
		Type:      models.MsgError,
		RequestID: requestID,
		Status:    models.StatusError,
		Timestamp: time.Now().UnixMilli(),
		Error: &models.MErrorPayload{
			Code:    helpers.CodeOf(err),
			Kind:    string(kind),
			Message: message,
		},
	}
}

// -----------------------------------------------------------------------------

func ackMessage(requestID, action string, key models.MSubscriptionKey, count int) *models.MServerMessage {
	return &models.MServerMessage{
		Type:      models.MsgAck,
		RequestID: requestID,
		Status:    models.StatusSuccess,
		Timestamp: time.Now().UnixMilli(),
		Data: &models.MAckPayload{
			Action:        action,
			Topic:         key.Topic,
			Symbol:        key.Symbol,
			Timeframe:     key.Timeframe,
			Subscriptions: count,
		},
	}
}
