// Package server exposes the HTTP surface: task triggers, produce query
// endpoints, and metrics.
package server

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harborlight/townfeed/internal/config"
	"github.com/harborlight/townfeed/internal/feed"
	"github.com/harborlight/townfeed/internal/ingest"
	"github.com/harborlight/townfeed/internal/metrics"
	"github.com/harborlight/townfeed/internal/produce"
	"github.com/harborlight/townfeed/internal/runlog"
	"github.com/harborlight/townfeed/internal/support/exception"
	"github.com/harborlight/townfeed/internal/support/logger"
)

// Router builds the gin engine and owns the task serialization lock.
type Router struct {
	cfg      *config.Config
	scrape   *ingest.ScrapeJob
	backfill *produce.BackfillCoordinator
	feeds    *feed.Service
	runs     *runlog.Repository
	recorder *metrics.Recorder

	// taskMu serializes scrape and backfill triggers so two rebuilds of
	// the same partition never overlap.
	taskMu sync.Mutex
}

// NewRouter creates a Router.
func NewRouter(
	cfg *config.Config,
	scrape *ingest.ScrapeJob,
	backfill *produce.BackfillCoordinator,
	feeds *feed.Service,
	runs *runlog.Repository,
	recorder *metrics.Recorder,
) *Router {
	return &Router{
		cfg:      cfg,
		scrape:   scrape,
		backfill: backfill,
		feeds:    feeds,
		runs:     runs,
		recorder: recorder,
	}
}

// Engine assembles the gin engine with all routes registered.
func (r *Router) Engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		r.recorder.GetRegistry(),
		promhttp.HandlerOpts{},
	)))

	tasks := engine.Group("/tasks", r.requireTaskSecret)
	tasks.POST("/scrape", r.handleScrape)
	tasks.POST("/backfill", r.handleBackfill)

	api := engine.Group("/api")
	api.GET("/produce/months", r.handleMonths)
	api.GET("/produce", r.handleProduce)
	api.GET("/feed/produce", r.handleProduceFeed)
	api.GET("/runs", r.handleRuns)

	return engine
}

// requireTaskSecret guards the trigger endpoints with the shared secret,
// accepted as a header or a query parameter for scheduler compatibility.
func (r *Router) requireTaskSecret(c *gin.Context) {
	secret := r.cfg.Townfeed.Server.TaskSecret
	if secret == "" {
		logger.Errorf("Task trigger rejected: no task secret configured.")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "task triggers disabled"})
		return
	}

	provided := c.GetHeader("X-Task-Secret")
	if provided == "" {
		provided = c.Query("secret")
	}
	if provided != secret {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid task secret"})
		return
	}
	c.Next()
}

func (r *Router) handleScrape(c *gin.Context) {
	r.taskMu.Lock()
	defer r.taskMu.Unlock()

	result, err := r.scrape.Run(c.Request.Context())
	if err != nil {
		logger.Errorf("Scrape trigger failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": exception.ExtractErrorMessage(err)})
		return
	}

	r.feeds.Invalidate()
	c.JSON(http.StatusOK, gin.H{
		"month":     result.Month,
		"url":       result.URL,
		"itemCount": result.ItemCount,
		"daysCount": result.DaysCount,
	})
}

func (r *Router) handleBackfill(c *gin.Context) {
	r.taskMu.Lock()
	defer r.taskMu.Unlock()

	results, err := r.backfill.RebuildAll(c.Request.Context())
	if err != nil && len(results) == 0 {
		logger.Errorf("Backfill trigger failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": exception.ExtractErrorMessage(err)})
		return
	}

	r.feeds.Invalidate()
	response := gin.H{"results": results}
	if err != nil {
		// Partial failure: report the rebuilt months alongside the errors.
		response["errors"] = exception.ExtractErrorMessage(err)
	}
	c.JSON(http.StatusOK, response)
}

func (r *Router) handleMonths(c *gin.Context) {
	months, err := r.feeds.Months(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": exception.ExtractErrorMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"months": months})
}

func (r *Router) handleProduce(c *gin.Context) {
	rows, err := r.feeds.CurrentRows(c.Request.Context())
	if errors.Is(err, produce.ErrNoData) {
		// No partitions at all is distinct from an empty row set.
		c.JSON(http.StatusOK, gin.H{"state": "no_data", "rows": []produce.AnalyticsRow{}})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": exception.ExtractErrorMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": "ok", "rows": rows})
}

func (r *Router) handleProduceFeed(c *gin.Context) {
	events, err := r.feeds.ProduceEvents(c.Request.Context())
	if errors.Is(err, produce.ErrNoData) {
		c.JSON(http.StatusOK, gin.H{"state": "no_data", "events": []produce.ProduceEvent{}})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": exception.ExtractErrorMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": "ok", "events": events})
}

func (r *Router) handleRuns(c *gin.Context) {
	runs, err := r.runs.Recent(c.Request.Context(), 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": exception.ExtractErrorMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
