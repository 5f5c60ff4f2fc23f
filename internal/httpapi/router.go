// Package httpapi exposes the chat, advanced and code services over a
// JSON HTTP surface grouped into namespaces, protected by bearer tokens.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"chatforge/internal/chat"
	"chatforge/internal/code"
	"chatforge/internal/storage"
	"chatforge/internal/tools"
)

type Config struct {
	Store       *storage.Store
	Chat        *chat.Service
	Tools       *tools.Service
	Code        *code.Service
	Auth        *Auth
	Logger      zerolog.Logger
	HealthPath  string
	MetricsPath string
	BlobDir     string
}

type Server struct {
	store  *storage.Store
	chat   *chat.Service
	tools  *tools.Service
	code   *code.Service
	auth   *Auth
	logger zerolog.Logger
}

// NewRouter builds the gin engine with all routes mounted.
func NewRouter(cfg Config) *gin.Engine {
	s := &Server{
		store:  cfg.Store,
		chat:   cfg.Chat,
		tools:  cfg.Tools,
		code:   cfg.Code,
		auth:   cfg.Auth,
		logger: cfg.Logger,
	}

	r := gin.New()
	r.Use(gin.Recovery())

	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = "/healthz"
	}
	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	r.GET(healthPath, s.handleHealth)
	r.GET(metricsPath, gin.WrapH(promhttp.Handler()))
	if cfg.BlobDir != "" {
		r.Static("/blobs", cfg.BlobDir)
	}

	r.POST("/api/auth/login", s.handleLogin)

	api := r.Group("/api", s.auth.Middleware())

	ch := api.Group("/chat")
	ch.GET("/models", s.handleGetModels)
	ch.GET("/conversations", s.handleListConversations)
	ch.POST("/conversations", s.handleCreateConversation)
	ch.GET("/conversations/search", s.handleSearchConversations)
	ch.GET("/conversations/:id", s.handleGetConversation)
	ch.PATCH("/conversations/:id", s.handleUpdateConversation)
	ch.DELETE("/conversations/:id", s.handleDeleteConversation)
	ch.POST("/conversations/:id/messages", s.handleSendMessage)
	ch.POST("/search", s.handleWebSearch)

	adv := api.Group("/advanced")
	adv.POST("/files", s.handleUploadFile)
	adv.GET("/files", s.handleGetUserFiles)
	adv.POST("/images", s.handleGenerateImage)
	adv.POST("/transcriptions", s.handleTranscribeAudio)
	adv.POST("/audio", s.handleUploadAndTranscribe)

	cd := api.Group("/code")
	cd.POST("/generate", s.handleGenerateCode)
	cd.POST("/analyze", s.handleAnalyzeCode)
	cd.POST("/explain", s.handleExplainCode)
	cd.POST("/projects", s.handleCreateProject)
	cd.GET("/projects", s.handleListProjects)
	cd.GET("/projects/:id", s.handleGetProject)
	cd.PATCH("/projects/:id", s.handleUpdateProject)
	cd.DELETE("/projects/:id", s.handleDeleteProject)
	cd.POST("/projects/:id/files", s.handleCreateCodeFile)
	cd.GET("/projects/:id/files", s.handleListCodeFiles)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.DB().PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
