package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fetcharr/internal/domain"
	"fetcharr/internal/jobs"
	"fetcharr/internal/repository"
	"fetcharr/internal/semaphore"
	"fetcharr/internal/service"
)

// Handler wires HTTP routes to domain services. Torrent requests are only
// persisted here; the job runtime picks them up on its next queue scan, or
// immediately when a scan job is submitted through /api/jobs.
type Handler struct {
	torrents service.TorrentService
	runtime  *jobs.Runtime
	slots    semaphore.Store
	queues   []string
}

func NewHandler(torrents service.TorrentService, runtime *jobs.Runtime, slots semaphore.Store, queues []string) *Handler {
	return &Handler{
		torrents: torrents,
		runtime:  runtime,
		slots:    slots,
		queues:   queues,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/torrents", h.createTorrent)
		api.GET("/torrents", h.listTorrents)
		api.GET("/torrents/:name", h.getTorrent)
		api.POST("/torrents/:name/processed", h.markProcessed)
		api.POST("/jobs", h.submitJob)
		api.GET("/jobs", h.listJobs)
		api.DELETE("/jobs/:id", h.cancelJob)
		api.GET("/queues", h.queueSlots)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusAccepted, gin.H{"ok": "ok"})
		})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type createTorrentRequest struct {
	Name       string                   `json:"name" binding:"required"`
	Attributes domain.TorrentAttributes `json:"attributes"`
}

func (h *Handler) createTorrent(c *gin.Context) {
	var req createTorrentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := h.torrents.CreateTorrent(c.Request.Context(), req.Name, req.Attributes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, torrentToResponse(*t))
}

func (h *Handler) listTorrents(c *gin.Context) {
	var (
		torrents []domain.Torrent
		err      error
	)
	if raw := c.Query("status"); raw != "" {
		status, convErr := strconv.Atoi(raw)
		if convErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
		torrents, err = h.torrents.ListByStatuses(c.Request.Context(), domain.Status(status))
	} else {
		torrents, err = h.torrents.ListTorrents(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]TorrentResponse, len(torrents))
	for i := range torrents {
		resp[i] = torrentToResponse(torrents[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getTorrent(c *gin.Context) {
	t, err := h.torrents.GetTorrent(c.Request.Context(), c.Param("name"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, torrentToResponse(*t))
}

func (h *Handler) markProcessed(c *gin.Context) {
	err := h.torrents.MarkProcessed(c.Request.Context(), c.Param("name"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"processed": c.Param("name")})
}

type submitJobRequest struct {
	Queue       string   `json:"queue" binding:"required"`
	Command     string   `json:"command" binding:"required"`
	Args        []string `json:"args"`
	Concurrency int      `json:"concurrency"`
}

func (h *Handler) submitJob(c *gin.Context) {
	var req submitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.runtime.Submit(jobs.Spec{
		Queue:       req.Queue,
		Command:     req.Command,
		Args:        req.Args,
		Concurrency: req.Concurrency,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (h *Handler) listJobs(c *gin.Context) {
	states := []jobs.State{jobs.StateScheduled, jobs.StateReady, jobs.StateRunning}
	if raw := c.Query("state"); raw != "" {
		state, ok := parseJobState(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state filter"})
			return
		}
		states = []jobs.State{state}
	}

	var resp []JobResponse
	for _, state := range states {
		for _, job := range h.runtime.List(state, c.Query("command")) {
			resp = append(resp, jobToResponse(job))
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) cancelJob(c *gin.Context) {
	if !h.runtime.Cancel(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found or already running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": c.Param("id")})
}

func (h *Handler) queueSlots(c *gin.Context) {
	resp := make([]QueueResponse, 0, len(h.queues))
	for _, queue := range h.queues {
		count, err := h.slots.Count(c.Request.Context(), queue)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp = append(resp, QueueResponse{Queue: queue, Active: count})
	}
	c.JSON(http.StatusOK, resp)
}

type TorrentResponse struct {
	Name       string                   `json:"name"`
	Status     string                   `json:"status"`
	TorrentID  string                   `json:"torrent_id,omitempty"`
	Attributes domain.TorrentAttributes `json:"attributes"`
	CreatedAt  string                   `json:"created_at"`
	UpdatedAt  string                   `json:"updated_at"`
}

type JobResponse struct {
	ID         string    `json:"id"`
	Queue      string    `json:"queue"`
	Command    string    `json:"command"`
	Args       []string  `json:"args,omitempty"`
	State      string    `json:"state"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	RunAt      time.Time `json:"run_at,omitempty"`
}

type QueueResponse struct {
	Queue  string `json:"queue"`
	Active int    `json:"active"`
}

func torrentToResponse(t domain.Torrent) TorrentResponse {
	return TorrentResponse{
		Name:       t.Name,
		Status:     t.Status.String(),
		TorrentID:  t.TorrentID,
		Attributes: t.Attributes,
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  t.UpdatedAt.Format(time.RFC3339),
	}
}

func jobToResponse(job jobs.Job) JobResponse {
	return JobResponse{
		ID:         job.ID,
		Queue:      job.Queue,
		Command:    job.Command,
		Args:       job.Args,
		State:      job.State.String(),
		EnqueuedAt: job.EnqueuedAt,
		RunAt:      job.RunAt,
	}
}

func parseJobState(raw string) (jobs.State, bool) {
	switch raw {
	case "scheduled":
		return jobs.StateScheduled, true
	case "ready":
		return jobs.StateReady, true
	case "running":
		return jobs.StateRunning, true
	default:
		return 0, false
	}
}
