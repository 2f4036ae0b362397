// Package api implements broadcastd's REST surface: public streamer
// listings and status, plus bearer-guarded admin CRUD. Grounded on
// routes.py and admin.py in the reference ecosystem's dashboard service.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"broadcastd/internal/hub"
	"broadcastd/internal/persistence"
)

// Hub abstracts the subset of *hub.Hub the API surface needs.
type Hub interface {
	Streamers() []*hub.LiveStreamer
	StreamerSnapshot(streamerID string) (hub.LiveStreamer, bool)
	Status() hub.StatusSummary
	PipelineStatuses() map[string]hub.PipelineStatus
	SetCrown(streamerID string, crowned bool)
}

// Store abstracts the persistence operations the admin routes drive.
type Store interface {
	ListStreamers(ctx context.Context, approvedOnly bool) ([]persistence.Streamer, error)
	ApproveStreamer(ctx context.Context, id string) error
	SetCrown(ctx context.Context, id string, crowned bool) error
	DeleteStreamer(ctx context.Context, id string) error
	RotateCredential(ctx context.Context, id string) (string, error)
	CreateStreamer(ctx context.Context, name, email, avatarURL, color string, socials []string) (persistence.Streamer, string, error)
}

// Handlers wires the hub and store into gin route handlers.
type Handlers struct {
	hub    Hub
	store  Store
	logger *logrus.Logger
}

// New constructs a Handlers instance.
func New(h Hub, store Store, logger *logrus.Logger) *Handlers {
	return &Handlers{hub: h, store: store, logger: logger}
}

// Register attaches every public and admin route to r. adminAuth gates the
// admin group.
func (h *Handlers) Register(r *gin.Engine, adminAuth gin.HandlerFunc) {
	public := r.Group("/api")
	public.GET("/streamers", h.listStreamers)
	public.GET("/streamers/:id", h.getStreamer)
	public.GET("/health", h.streamerHealth)
	public.GET("/status", h.status)
	public.POST("/streamers/register", h.registerStreamer)

	r.GET("/status/pipelines", h.pipelineStatuses)

	admin := r.Group("/admin/streamers", adminAuth)
	admin.GET("", h.adminListStreamers)
	admin.POST("/:id/approve", h.adminApprove)
	admin.POST("/:id/crown", h.adminToggleCrown)
	admin.POST("/:id/rotate-credentials", h.adminRotateCredentials)
	admin.DELETE("/:id", h.adminDelete)
}

func (h *Handlers) listStreamers(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.Streamers())
}

func (h *Handlers) getStreamer(c *gin.Context) {
	s, ok := h.hub.StreamerSnapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "streamer not found"})
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handlers) streamerHealth(c *gin.Context) {
	out := make(map[string]gin.H, len(h.hub.Streamers()))
	for _, s := range h.hub.Streamers() {
		out[s.ID] = gin.H{"name": s.Name, "health": s.Health}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) status(c *gin.Context) {
	summary := h.hub.Status()
	c.JSON(http.StatusOK, gin.H{
		"streamers_online":  summary.StreamersOnline,
		"dashboard_clients": summary.DashboardClients,
		"field_agents":      summary.FieldAgents,
	})
}

func (h *Handlers) pipelineStatuses(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.PipelineStatuses())
}

type registerRequest struct {
	Name      string   `json:"name" binding:"required"`
	Email     string   `json:"email" binding:"required,email"`
	AvatarURL string   `json:"avatar_url"`
	Color     string   `json:"color"`
	Socials   []string `json:"socials"`
}

// registerStreamer is a self-service registration endpoint supplementing
// the admin-driven onboarding the original system assumed: it creates a
// pending (or auto-approved, per DB_AUTO_APPROVE) streamer row and returns
// its API key exactly once.
func (h *Handlers) registerStreamer(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	streamer, apiKey, err := h.store.CreateStreamer(c.Request.Context(), req.Name, req.Email, req.AvatarURL, req.Color, req.Socials)
	if err != nil {
		h.logger.WithError(err).Error("register streamer failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       streamer.ID,
		"name":     streamer.Name,
		"approved": streamer.Approved,
		"api_key":  apiKey,
	})
}

func (h *Handlers) adminListStreamers(c *gin.Context) {
	streamers, err := h.store.ListStreamers(c.Request.Context(), false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	out := make([]gin.H, 0, len(streamers))
	for _, s := range streamers {
		_, isLive := h.hub.StreamerSnapshot(s.ID)
		out = append(out, gin.H{
			"id":         s.ID,
			"name":       s.Name,
			"email":      s.Email,
			"is_crown":   s.IsCrown,
			"approved":   s.Approved,
			"is_live":    isLive,
			"created_at": s.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) adminApprove(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.ApproveStreamer(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "streamer not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "streamer approved", "id": id})
}

func (h *Handlers) adminToggleCrown(c *gin.Context) {
	id := c.Param("id")
	snapshot, isLive := h.hub.StreamerSnapshot(id)
	newCrown := !isLive || !snapshot.IsCrown

	if err := h.store.SetCrown(c.Request.Context(), id, newCrown); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "streamer not found"})
		return
	}
	h.hub.SetCrown(id, newCrown)
	c.JSON(http.StatusOK, gin.H{"is_crown": newCrown})
}

func (h *Handlers) adminRotateCredentials(c *gin.Context) {
	id := c.Param("id")
	apiKey, err := h.store.RotateCredential(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "streamer not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "api_key": apiKey})
}

func (h *Handlers) adminDelete(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteStreamer(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "streamer not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "streamer removed", "id": id})
}
