package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------
// Control plane: REST admin surface for feed sources, news injection and
// shared-state introspection. Served on the same engine as /ws.
// -----------------------------------------------------------------------------

func (s *GatewayServer) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"name":           s.Config.Name,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"connections":    s.Hub.Metrics().Clients,
	})
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"hub":        s.Hub.Metrics(),
		"cache":      s.Cache.Snapshot(),
		"rate_limit": s.Fetcher.Snapshot(),
	})
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) getConfig(c *gin.Context) {
	sources := make([]gin.H, 0, len(s.Config.Feeds.Sources))
	for _, src := range s.Config.Feeds.Sources {
		sources = append(sources, gin.H{
			"name":       src.Name,
			"type":       src.Type,
			"symbols":    src.Symbols,
			"timeframes": src.Timeframes,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"timeframes": models.ValidTimeframes,
		"kinds":      append(append([]string{}, models.AnalyzerKinds...), models.KindAIInsight),
		"sources":    sources,
	})
}

// -----------------------------------------------------------------------------
// Feed sources
// -----------------------------------------------------------------------------

func (s *GatewayServer) listSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": s.Feeds.Statuses()})
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) addSource(c *gin.Context) {
	var req models.MSourceConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source payload: " + err.Error()})
		return
	}

	if err := s.Feeds.AddFromConfig(req); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	s.Config.Feeds.Sources = append(s.Config.Feeds.Sources, req)
	s.persistConfig()

	c.JSON(http.StatusOK, gin.H{"status": "added", "name": req.Name})
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) removeSource(c *gin.Context) {
	name := c.Param("name")

	if err := s.Feeds.RemoveSource(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	kept := s.Config.Feeds.Sources[:0]
	for _, src := range s.Config.Feeds.Sources {
		if src.Name != name {
			kept = append(kept, src)
		}
	}
	s.Config.Feeds.Sources = kept
	s.persistConfig()

	c.JSON(http.StatusOK, gin.H{"status": "removed", "name": name})
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) updateSourceSymbols(c *gin.Context) {
	name := c.Param("name")

	var req struct {
		Symbols []string `json:"symbols"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols list is required"})
		return
	}

	source, err := s.Feeds.GetSource(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err := source.UpdateSymbols(req.Symbols); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	for i := range s.Config.Feeds.Sources {
		if s.Config.Feeds.Sources[i].Name == name {
			s.Config.Feeds.Sources[i].Symbols = req.Symbols
		}
	}
	s.persistConfig()

	c.JSON(http.StatusOK, gin.H{"status": "updated", "name": name, "symbols": req.Symbols})
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) startSource(c *gin.Context) {
	name := c.Param("name")
	if err := s.Feeds.StartSource(name); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started", "name": name})
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) stopSource(c *gin.Context) {
	name := c.Param("name")
	if err := s.Feeds.StopSource(name); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped", "name": name})
}

// -----------------------------------------------------------------------------
// News injection
// -----------------------------------------------------------------------------

func (s *GatewayServer) injectNews(c *gin.Context) {
	var item models.MNewsItem
	if err := c.ShouldBindJSON(&item); err != nil || item.Symbol == "" || item.Headline == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol and headline are required"})
		return
	}

	if item.PublishedAt == 0 {
		item.PublishedAt = time.Now().UnixMilli()
	}
	s.News.Add(item)

	c.JSON(http.StatusOK, gin.H{
		"status":   "accepted",
		"symbol":   item.Symbol,
		"buffered": s.News.Count(item.Symbol),
	})
}

// -----------------------------------------------------------------------------
// Shared state introspection
// -----------------------------------------------------------------------------

func (s *GatewayServer) getRateLimit(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": s.Fetcher.Snapshot()})
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) getCache(c *gin.Context) {
	c.JSON(http.StatusOK, s.Cache.Snapshot())
}

// -----------------------------------------------------------------------------

// persistConfig writes control-plane edits back to the YAML file.
func (s *GatewayServer) persistConfig() {
	if s.ConfigPath == "" {
		return
	}
	if err := s.fullConfig.Save(s.ConfigPath); err != nil {
		s.Logger.Error("Failed to persist config: %v", err)
	}
}
