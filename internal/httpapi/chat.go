package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chatforge/internal/chat"
	"chatforge/internal/storage"
)

func (s *Server) handleLogin(c *gin.Context) {
	type request struct {
		OpenID      string  `json:"openId" binding:"required"`
		Name        *string `json:"name"`
		Email       *string `json:"email"`
		LoginMethod *string `json:"loginMethod"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.store.UpsertUser(c.Request.Context(), req.OpenID, req.Name, req.Email, req.LoginMethod)
	if err != nil {
		s.renderError(c, err)
		return
	}
	token, err := s.auth.IssueToken(user, time.Now())
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": toUserJSON(user)})
}

func (s *Server) handleGetModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": chat.Models()})
}

func (s *Server) handleListConversations(c *gin.Context) {
	conversations, err := s.chat.ListConversations(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": toConversationListJSON(conversations)})
}

func (s *Server) handleCreateConversation(c *gin.Context) {
	type request struct {
		Title string `json:"title"`
		Model string `json:"model"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := s.chat.CreateConversation(c.Request.Context(), currentUserID(c), req.Title, req.Model)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConversationJSON(conv))
}

func (s *Server) handleGetConversation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	detail, err := s.chat.GetConversation(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation": toConversationJSON(detail.Conversation),
		"messages":     toMessageListJSON(detail.Messages),
	})
}

func (s *Server) handleUpdateConversation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	type request struct {
		Title      *string `json:"title"`
		Model      *string `json:"model"`
		IsFavorite *bool   `json:"isFavorite"`
		Tags       *string `json:"tags"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upd := storage.ConversationUpdate{
		Title: req.Title,
		Model: req.Model,
		Tags:  req.Tags,
	}
	if req.IsFavorite != nil {
		fav := 0
		if *req.IsFavorite {
			fav = 1
		}
		upd.IsFavorite = &fav
	}

	if err := s.chat.UpdateConversation(c.Request.Context(), currentUserID(c), id, upd); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleDeleteConversation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.chat.DeleteConversation(c.Request.Context(), currentUserID(c), id); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleSearchConversations(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	conversations, err := s.chat.SearchConversations(c.Request.Context(), currentUserID(c), query)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": toConversationListJSON(conversations)})
}

func (s *Server) handleSendMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	type request struct {
		Message          string `json:"message" binding:"required"`
		IncludeWebSearch bool   `json:"includeWebSearch"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.chat.SendMessage(c.Request.Context(), currentUserID(c), id, req.Message, req.IncludeWebSearch)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messageId":     res.MessageID,
		"content":       res.Content,
		"searchResults": res.SearchResults,
	})
}

func (s *Server) handleWebSearch(c *gin.Context) {
	type request struct {
		Query string `json:"query" binding:"required"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": s.chat.WebSearch(c.Request.Context(), req.Query)})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
