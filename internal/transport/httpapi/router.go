package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"BookmarkScanner/internal/domain"
	"BookmarkScanner/internal/identifier"
	"BookmarkScanner/internal/messaging"
	"BookmarkScanner/internal/ports"
	"BookmarkScanner/internal/sanitize"
	"BookmarkScanner/internal/surface"
)

const (
	maxSurfaceBytes     = 8 << 20
	defaultHistoryLimit = 20
	requestIDHeader     = "X-Request-Id"
)

// Deps wires the router to the application.
type Deps struct {
	Dispatcher *messaging.Dispatcher
	Repository ports.ResultRepository
	LastJob    func() domain.BatchJob
	Metrics    http.Handler
	Logger     *slog.Logger
}

type handler struct {
	deps Deps
}

// NewRouter builds the gin engine serving the messaging API.
func NewRouter(deps Deps) *gin.Engine {
	h := &handler{deps: deps}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(deps.Logger))

	r.GET("/health", h.health)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	v1 := r.Group("/api/v1")
	v1.POST("/messages", h.message)
	v1.PUT("/surface", h.putSurface)
	v1.PATCH("/surface", h.appendSurface)
	v1.DELETE("/surface", h.deleteSurface)
	v1.GET("/stats", h.stats)

	return r
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) message(c *gin.Context) {
	var req messaging.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, messaging.Response{Error: sanitize.Error(err)})
		return
	}

	if req.Name() == messaging.ActionBatchAnalyze && wantsStream(c.Request) {
		h.streamBatch(c, req)
		return
	}

	resp := h.deps.Dispatcher.Handle(c.Request.Context(), req, nil)
	c.JSON(http.StatusOK, resp)
}

// streamBatch relays batch events as Server-Sent Events. The dispatcher
// calls emit on this goroutine, so writes are never concurrent.
func (h *handler) streamBatch(c *gin.Context, req messaging.Request) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	emit := func(ev domain.BatchEvent) {
		c.SSEvent(string(ev.Type), ev)
		c.Writer.Flush()
	}
	resp := h.deps.Dispatcher.Handle(c.Request.Context(), req, emit)
	if !resp.Success {
		c.SSEvent("error", resp)
		c.Writer.Flush()
	}
}

func wantsStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// putSurface replaces the active surface with the request body.
func (h *handler) putSurface(c *gin.Context) {
	markup, base, ok := h.readSurface(c)
	if !ok {
		return
	}

	active := h.deps.Dispatcher.Surfaces()
	if current, err := active.Current(); err == nil {
		if live, isLive := current.(*surface.Live); isLive {
			live.SetBase(base)
			live.Render(markup)
			c.Status(http.StatusNoContent)
			return
		}
	}

	live := surface.NewLive(base, nil)
	live.Render(markup)
	active.Set(live)
	c.Status(http.StatusNoContent)
}

// appendSurface adds newly loaded content to the active surface.
func (h *handler) appendSurface(c *gin.Context) {
	markup, _, ok := h.readSurface(c)
	if !ok {
		return
	}
	current, err := h.deps.Dispatcher.Surfaces().Current()
	if err != nil {
		c.JSON(http.StatusNotFound, messaging.Response{Error: sanitize.Error(err)})
		return
	}
	live, isLive := current.(*surface.Live)
	if !isLive {
		c.JSON(http.StatusConflict, messaging.Response{Error: "active surface is read-only"})
		return
	}
	live.Append(markup)
	c.Status(http.StatusNoContent)
}

func (h *handler) deleteSurface(c *gin.Context) {
	h.deps.Dispatcher.Surfaces().Clear()
	c.Status(http.StatusNoContent)
}

func (h *handler) readSurface(c *gin.Context) (string, *url.URL, bool) {
	base := identifier.DefaultBase
	if raw := c.Query("base"); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" {
			c.JSON(http.StatusBadRequest, messaging.Response{Error: "invalid base url"})
			return "", nil, false
		}
		base = parsed
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSurfaceBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, messaging.Response{Error: sanitize.Error(err)})
		return "", nil, false
	}
	if len(body) > maxSurfaceBytes {
		c.JSON(http.StatusRequestEntityTooLarge, messaging.Response{Error: "surface too large"})
		return "", nil, false
	}
	return string(body), base, true
}

type statsResponse struct {
	Usage   domain.Usage            `json:"usage"`
	History []domain.AnalysisRecord `json:"history"`
	Batch   *batchSummary           `json:"last_batch,omitempty"`
}

type batchSummary struct {
	ID         string            `json:"id"`
	State      domain.BatchState `json:"state"`
	Completed  int               `json:"completed"`
	Total      int               `json:"total"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

func (h *handler) stats(c *gin.Context) {
	if h.deps.Repository == nil {
		c.JSON(http.StatusServiceUnavailable, messaging.Response{Error: "result store not configured"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, messaging.Response{Error: "invalid limit"})
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	usage, err := h.deps.Repository.Usage(ctx)
	if err == nil {
		var history []domain.AnalysisRecord
		history, err = h.deps.Repository.History(ctx, limit)
		if err == nil {
			if history == nil {
				history = []domain.AnalysisRecord{}
			}
			c.JSON(http.StatusOK, statsResponse{Usage: usage, History: history, Batch: h.lastBatch()})
			return
		}
	}
	h.logError(c, "stats query failed", err)
	c.JSON(http.StatusInternalServerError, messaging.Response{Error: "stats unavailable"})
}

func (h *handler) lastBatch() *batchSummary {
	if h.deps.LastJob == nil {
		return nil
	}
	job := h.deps.LastJob()
	if job.ID == "" {
		return nil
	}
	summary := &batchSummary{
		ID:        job.ID,
		State:     job.State,
		Completed: job.Completed,
		Total:     len(job.URLs),
		StartedAt: job.StartedAt,
	}
	if !job.FinishedAt.IsZero() {
		finished := job.FinishedAt
		summary.FinishedAt = &finished
	}
	return summary
}

func (h *handler) logError(c *gin.Context, msg string, err error) {
	if h.deps.Logger != nil {
		h.deps.Logger.Error(msg, "request_id", c.GetString(requestIDKey), "error", err)
	}
}
