package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/scmreader/apps/server/internal/readers/store"
	"github.com/tilsley/scmreader/pkg/reading"
)

// OverviewSource supplies fetch log aggregates.
type OverviewSource interface {
	Overview(ctx context.Context) (*store.FetchOverview, error)
}

// Handler translates HTTP requests into calls on a reading.URLReader.
type Handler struct {
	reader  reading.URLReader
	readers []reading.URLReader
	fetches OverviewSource
	log     *slog.Logger
}

// Options wires the handler's collaborators. Fetches may be nil when no
// fetch log is configured.
type Options struct {
	Reader reading.URLReader
	// Readers are the per-host readers behind Reader, listed by /readers.
	Readers []reading.URLReader
	Fetches OverviewSource
	Log     *slog.Logger
}

// RegisterRoutes mounts the scmreader API onto the given Gin engine.
func RegisterRoutes(r *gin.Engine, opts Options) {
	h := &Handler{reader: opts.Reader, readers: opts.Readers, fetches: opts.Fetches, log: opts.Log}

	r.GET("/health", h.Health)

	r.GET("/read", h.Read)
	r.GET("/tree", h.Tree)
	r.GET("/search", h.Search)

	r.GET("/readers", h.Readers)
	r.GET("/fetches/overview", h.FetchOverview)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readers lists the registered readers in dispatch order.
func (h *Handler) Readers(c *gin.Context) {
	labels := make([]string, 0, len(h.readers))
	for _, r := range h.readers {
		labels = append(labels, r.String())
	}
	c.JSON(http.StatusOK, gin.H{"readers": labels})
}

// FetchOverview returns fetch log aggregates.
func (h *Handler) FetchOverview(c *gin.Context) {
	if h.fetches == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "fetch log is not configured"})
		return
	}
	overview, err := h.fetches.Overview(c.Request.Context())
	if err != nil {
		h.log.Error("fetch overview failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch overview"})
		return
	}
	c.JSON(http.StatusOK, overview)
}
