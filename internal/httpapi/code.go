package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatforge/internal/storage"
)

func (s *Server) handleGenerateCode(c *gin.Context) {
	type request struct {
		Description string `json:"description" binding:"required"`
		Language    string `json:"language"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.code.Generate(c.Request.Context(), req.Description, req.Language)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleAnalyzeCode(c *gin.Context) {
	type request struct {
		Code     string `json:"code" binding:"required"`
		Language string `json:"language" binding:"required"`
		Issues   string `json:"issues"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	analysis, err := s.code.Analyze(c.Request.Context(), req.Code, req.Language, req.Issues)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

func (s *Server) handleExplainCode(c *gin.Context) {
	type request struct {
		Code     string `json:"code" binding:"required"`
		Language string `json:"language" binding:"required"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	explanation, err := s.code.Explain(c.Request.Context(), req.Code, req.Language)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"explanation": explanation})
}

func (s *Server) handleCreateProject(c *gin.Context) {
	type request struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		Language    string `json:"language"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := s.code.CreateProject(c.Request.Context(), currentUserID(c), req.Name, req.Description, req.Language)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProjectJSON(project))
}

func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.code.ListProjects(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.renderError(c, err)
		return
	}
	out := make([]projectJSON, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectJSON(p))
	}
	c.JSON(http.StatusOK, gin.H{"projects": out})
}

func (s *Server) handleGetProject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	detail, err := s.code.GetProject(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project": toProjectJSON(detail.Project),
		"files":   toCodeFileListJSON(detail.Files),
	})
}

func (s *Server) handleUpdateProject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	type request struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Language    *string `json:"language"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upd := storage.CodeProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
		Language:    req.Language,
	}
	if err := s.code.UpdateProject(c.Request.Context(), currentUserID(c), id, upd); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.code.DeleteProject(c.Request.Context(), currentUserID(c), id); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleCreateCodeFile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	type request struct {
		Filename string `json:"filename" binding:"required"`
		Content  string `json:"content"`
		Language string `json:"language" binding:"required"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, err := s.code.CreateFile(c.Request.Context(), currentUserID(c), id, req.Filename, req.Content, req.Language)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": file.ID, "filename": file.Filename})
}

func (s *Server) handleListCodeFiles(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	files, err := s.code.ListFiles(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": toCodeFileListJSON(files)})
}
