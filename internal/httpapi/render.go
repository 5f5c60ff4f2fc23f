package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chatforge/internal/chat"
	"chatforge/internal/code"
	"chatforge/internal/storage"
	"chatforge/internal/tools"
)

// renderError maps service errors onto HTTP statuses. Ownership misses look
// identical to missing rows so existence never leaks across users.
func (s *Server) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, tools.ErrInvalidPayload),
		errors.Is(err, code.ErrEmptyInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, tools.ErrAudioTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrGenerateFailed),
		errors.Is(err, tools.ErrImageFailed),
		errors.Is(err, tools.ErrTranscribeFailed),
		errors.Is(err, code.ErrGenerateCode),
		errors.Is(err, code.ErrAnalyzeCode),
		errors.Is(err, code.ErrExplainCode):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

type userJSON struct {
	ID           int64     `json:"id"`
	OpenID       string    `json:"openId"`
	Name         *string   `json:"name"`
	Email        *string   `json:"email"`
	Role         string    `json:"role"`
	LastSignedIn time.Time `json:"lastSignedIn"`
}

func toUserJSON(u storage.User) userJSON {
	return userJSON{
		ID:           u.ID,
		OpenID:       u.OpenID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		LastSignedIn: u.LastSignedIn,
	}
}

type conversationJSON struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	Title      string    `json:"title"`
	Model      string    `json:"model"`
	IsFavorite bool      `json:"isFavorite"`
	Tags       *string   `json:"tags"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toConversationJSON(c storage.Conversation) conversationJSON {
	return conversationJSON{
		ID:         c.ID,
		UserID:     c.UserID,
		Title:      c.Title,
		Model:      c.Model,
		IsFavorite: c.IsFavorite != 0,
		Tags:       c.Tags,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func toConversationListJSON(cs []storage.Conversation) []conversationJSON {
	out := make([]conversationJSON, 0, len(cs))
	for _, c := range cs {
		out = append(out, toConversationJSON(c))
	}
	return out
}

type messageJSON struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Metadata       *string   `json:"metadata"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toMessageListJSON(ms []storage.Message) []messageJSON {
	out := make([]messageJSON, 0, len(ms))
	for _, m := range ms {
		out = append(out, messageJSON{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			Role:           m.Role,
			Content:        m.Content,
			Metadata:       m.Metadata,
			CreatedAt:      m.CreatedAt,
		})
	}
	return out
}

type fileJSON struct {
	ID             int64     `json:"id"`
	ConversationID *int64    `json:"conversationId"`
	Filename       string    `json:"filename"`
	URL            string    `json:"url"`
	MimeType       *string   `json:"mimeType"`
	Size           *int64    `json:"size"`
	ExtractedText  *string   `json:"extractedText"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toFileListJSON(fs []storage.File) []fileJSON {
	out := make([]fileJSON, 0, len(fs))
	for _, f := range fs {
		out = append(out, fileJSON{
			ID:             f.ID,
			ConversationID: f.ConversationID,
			Filename:       f.Filename,
			URL:            f.URL,
			MimeType:       f.MimeType,
			Size:           f.Size,
			ExtractedText:  f.ExtractedText,
			CreatedAt:      f.CreatedAt,
		})
	}
	return out
}

type projectJSON struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Language    string    `json:"language"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toProjectJSON(p storage.CodeProject) projectJSON {
	return projectJSON{
		ID:          p.ID,
		UserID:      p.UserID,
		Name:        p.Name,
		Description: p.Description,
		Language:    p.Language,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type codeFileJSON struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"projectId"`
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toCodeFileListJSON(fs []storage.CodeFile) []codeFileJSON {
	out := make([]codeFileJSON, 0, len(fs))
	for _, f := range fs {
		out = append(out, codeFileJSON{
			ID:        f.ID,
			ProjectID: f.ProjectID,
			Filename:  f.Filename,
			Content:   f.Content,
			Language:  f.Language,
			CreatedAt: f.CreatedAt,
			UpdatedAt: f.UpdatedAt,
		})
	}
	return out
}
