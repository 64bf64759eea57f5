// Package api exposes the HTTP collaborator surface around the realtime
// core: health/status probes, a debug room lookup, user registration, and
// feedback collection.
package api

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thehypotheticalgame/quiz-backend/internal/feedback"
	"github.com/thehypotheticalgame/quiz-backend/internal/gateway"
	"github.com/thehypotheticalgame/quiz-backend/internal/room"
)

type Server struct {
	manager  *room.Manager
	feedback *feedback.Store
	log      *zap.Logger
	env      string
	started  time.Time
}

func NewServer(manager *room.Manager, fb *feedback.Store, env string, log *zap.Logger) *Server {
	return &Server{
		manager:  manager,
		feedback: fb,
		log:      log,
		env:      env,
		started:  time.Now(),
	}
}

// Routes mounts every endpoint, including the websocket upgrade, on the
// given engine.
func (s *Server) Routes(r *gin.Engine, gw *gateway.Gateway) {
	r.GET("/ws", func(c *gin.Context) {
		gw.HandleWS(c.Writer, c.Request)
	})

	r.GET("/health", s.handleStatus)
	r.GET("/api/status", s.handleStatus)
	r.GET("/api/rooms/:code", s.handleRoomLookup)
	r.POST("/api/user/register", s.handleRegister)
	r.POST("/api/feedback", s.handleFeedback)
	r.GET("/admin/feedback", s.handleFeedbackList)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "OK",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"uptime":      time.Since(s.started).Seconds(),
		"redis":       s.manager.Available(c.Request.Context()),
		"environment": s.env,
	})
}

// handleRoomLookup returns the raw stored room; debug aid, not a client API.
func (s *Server) handleRoomLookup(c *gin.Context) {
	r, err := s.manager.GetRoom(c.Request.Context(), c.Param("code"))
	if errors.Is(err, room.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	} else if err != nil {
		s.log.Error("room lookup failed", zap.String("code", c.Param("code")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up room"})
		return
	}
	c.JSON(http.StatusOK, r)
}

type registerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	userID := req.Email
	if userID == "" {
		userID = fmt.Sprintf("user_%d_%s", time.Now().UnixMilli(), randID())
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"id":          userID,
			"name":        req.Name,
			"email":       req.Email,
			"plan":        "free",
			"gamesPlayed": 0,
			"createdAt":   time.Now().UTC().Format(time.RFC3339),
		},
		"message": "User registered successfully",
	})
}

type feedbackRequest struct {
	UserID    string         `json:"userId"`
	UserEmail string         `json:"userEmail"`
	UserName  string         `json:"userName"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context"`
}

func (s *Server) handleFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" || req.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message and type are required"})
		return
	}

	fb := feedback.New(req.UserID, req.UserEmail, req.UserName, req.Type, req.Message, req.Context)
	if err := s.feedback.Save(c.Request.Context(), fb); err != nil {
		s.log.Error("failed to store feedback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store feedback"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"feedbackId": fb.ID,
		"message":    "Thank you for your feedback! We appreciate your input.",
	})
}

func (s *Server) handleFeedbackList(c *gin.Context) {
	list, err := s.feedback.All(c.Request.Context())
	if err != nil {
		s.log.Error("failed to read feedback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve feedback"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":    len(list),
		"feedback": list,
	})
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randID() string {
	b := make([]byte, 9)
	for i := range b {
		b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(b)
}
