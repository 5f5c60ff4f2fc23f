package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatforge/internal/tools"
)

func (s *Server) handleUploadFile(c *gin.Context) {
	type request struct {
		Filename       string `json:"filename" binding:"required"`
		Content        string `json:"content" binding:"required"`
		MimeType       string `json:"mimeType" binding:"required"`
		ConversationID *int64 `json:"conversationId"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.tools.UploadFile(c.Request.Context(), currentUserID(c), tools.UploadInput{
		Filename:       req.Filename,
		Content:        req.Content,
		MimeType:       req.MimeType,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleGetUserFiles(c *gin.Context) {
	files, err := s.tools.GetUserFiles(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": toFileListJSON(files)})
}

func (s *Server) handleGenerateImage(c *gin.Context) {
	type request struct {
		Prompt         string `json:"prompt" binding:"required"`
		ConversationID *int64 `json:"conversationId"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	img, err := s.tools.GenerateImage(c.Request.Context(), currentUserID(c), req.Prompt, req.ConversationID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": img.URL})
}

func (s *Server) handleTranscribeAudio(c *gin.Context) {
	type request struct {
		AudioURL string `json:"audioUrl" binding:"required"`
		Language string `json:"language"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tr, err := s.tools.TranscribeAudio(c.Request.Context(), req.AudioURL, req.Language)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": tr.Text, "language": tr.Language})
}

func (s *Server) handleUploadAndTranscribe(c *gin.Context) {
	type request struct {
		Filename       string `json:"filename" binding:"required"`
		Content        string `json:"content" binding:"required"`
		MimeType       string `json:"mimeType" binding:"required"`
		Language       string `json:"language"`
		ConversationID *int64 `json:"conversationId"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.tools.UploadAndTranscribe(c.Request.Context(), currentUserID(c), tools.TranscribeUploadInput{
		Filename:       req.Filename,
		Content:        req.Content,
		MimeType:       req.MimeType,
		Language:       req.Language,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
