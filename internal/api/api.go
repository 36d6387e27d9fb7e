package api

import (
	"errors"
	"net/http"
	"time"

	"ticket-trader/internal/engine"
	"ticket-trader/internal/models"
	"ticket-trader/internal/services/platforms"

	"github.com/gin-gonic/gin"
)

// APIHandler exposes the purchase engine over HTTP. It is a thin adapter:
// all semantics live in the engine.
type APIHandler struct {
	eng *engine.Engine
}

// SetupRoutes mounts the engine API on the router group. The websocket
// hub is mounted separately by main, outside the versioned group.
func SetupRoutes(r *gin.RouterGroup, eng *engine.Engine) *APIHandler {
	handler := &APIHandler{eng: eng}

	decisions := r.Group("/decisions")
	{
		decisions.POST("/evaluate", handler.EvaluateDecision)
	}

	quotes := r.Group("/quotes")
	{
		quotes.POST("/compare", handler.CompareQuotes)
	}

	intents := r.Group("/intents")
	{
		intents.POST("", handler.Enqueue)
		intents.GET("/:id", handler.GetIntent)
		intents.GET("/:id/attempts", handler.GetAttempts)
		intents.DELETE("/:id", handler.Cancel)
	}

	queue := r.Group("/queue")
	{
		queue.POST("/process", handler.ProcessNext)
		queue.GET("/status", handler.QueueStatus)
	}

	r.GET("/calibration", handler.Calibration)

	return handler
}

type evaluateRequest struct {
	Listing models.ListingSnapshot `json:"listing" binding:"required"`
	UserID  string                 `json:"user_id" binding:"required"`
}

func (h *APIHandler) EvaluateDecision(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	decision, err := h.eng.EvaluateDecision(c.Request.Context(), req.Listing, req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, decision)
}

type compareRequest struct {
	Criteria  platforms.EventCriteria `json:"criteria" binding:"required"`
	Platforms []string                `json:"platforms"`
}

func (h *APIHandler) CompareQuotes(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.eng.CompareQuotes(c.Request.Context(), req.Criteria, req.Platforms)
	c.JSON(http.StatusOK, result)
}

func (h *APIHandler) Enqueue(c *gin.Context) {
	var req engine.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	intent, err := h.eng.Enqueue(c.Request.Context(), req)
	if err != nil {
		var dup *engine.DuplicateIntentError
		var invalid *engine.ValidationError
		switch {
		case errors.As(err, &dup):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "existing_intent_id": dup.ExistingIntentID})
		case errors.As(err, &invalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, engine.ErrEngineDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, intent)
}

func (h *APIHandler) GetIntent(c *gin.Context) {
	intent, err := h.eng.GetIntent(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, intent)
}

func (h *APIHandler) GetAttempts(c *gin.Context) {
	attempts, err := h.eng.Attempts(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

func (h *APIHandler) Cancel(c *gin.Context) {
	err := h.eng.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		var ponr *engine.PastPointOfNoReturnError
		switch {
		case errors.Is(err, engine.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.As(err, &ponr):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "past_point_of_no_return": true})
		default:
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.StatusCancelled, "cancelled_at": time.Now()})
}

// ProcessNext lets an external scheduler drive the queue over HTTP.
func (h *APIHandler) ProcessNext(c *gin.Context) {
	admitted, err := h.eng.ProcessNext(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"admitted": admitted, "in_flight": h.eng.InFlight()})
}

func (h *APIHandler) QueueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"in_flight": h.eng.InFlight()})
}

func (h *APIHandler) Calibration(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"platforms": h.eng.CalibrationSnapshot()})
}
