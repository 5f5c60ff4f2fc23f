// Package chat orchestrates the conversation flow: message persistence,
// optional web-search augmentation of model context, model invocation and
// first-exchange title derivation.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatforge/internal/limit"
	"chatforge/internal/metrics"
	"chatforge/internal/providers"
	"chatforge/internal/search"
	"chatforge/internal/storage"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrRateLimited    = errors.New("hourly message limit reached")
	ErrGenerateFailed = errors.New("failed to generate response")
)

const (
	titlePrompt = "Generate a short, concise title (max 6 words) for this conversation. Only return the title, nothing else."

	chatTemperature  = 0.7
	titleTemperature = 0.3
	maxTitleWords    = 6
)

// WebSearcher is the combined two-provider search adapter.
type WebSearcher interface {
	Search(ctx context.Context, query string) []search.Result
}

type Config struct {
	Store        *storage.Store
	Provider     providers.ChatProvider
	Searcher     WebSearcher
	Limiter      *limit.RateLimiter
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
	DefaultModel string
}

type Service struct {
	store        *storage.Store
	provider     providers.ChatProvider
	searcher     WebSearcher
	limiter      *limit.RateLimiter
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	defaultModel string
}

func NewService(cfg Config) *Service {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = availableModels[0].ID
	}
	return &Service{
		store:        cfg.Store,
		provider:     cfg.Provider,
		searcher:     cfg.Searcher,
		limiter:      cfg.Limiter,
		metrics:      m,
		logger:       cfg.Logger,
		defaultModel: cfg.DefaultModel,
	}
}

type SendResult struct {
	MessageID     int64
	Content       string
	SearchResults []search.Result
}

// SendMessage persists the user turn, invokes the model over the full
// history (optionally augmented with web search results as a synthetic,
// non-persisted system message) and persists the assistant reply.
//
// A model failure after the user message was written leaves that message in
// place; there is no rollback.
func (s *Service) SendMessage(ctx context.Context, userID, conversationID int64, message string, includeWebSearch bool) (SendResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return SendResult{}, ErrEmptyMessage
	}

	allowed, _, resetAt, err := s.limiter.Allow(ctx, userID, time.Now())
	if err != nil {
		// Redis being down should not block chatting.
		s.logger.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
	} else if !allowed {
		s.metrics.RateLimitRejected.Inc()
		return SendResult{}, fmt.Errorf("%w (resets %s)", ErrRateLimited, resetAt.UTC().Format(time.RFC3339))
	}

	conv, err := s.store.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return SendResult{}, err
	}

	if _, err := s.store.CreateMessage(ctx, conv.ID, storage.RoleUser, message, nil); err != nil {
		return SendResult{}, err
	}

	history, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return SendResult{}, err
	}

	llmMessages := make([]providers.ChatMessage, 0, len(history)+1)
	for _, m := range history {
		llmMessages = append(llmMessages, providers.ChatMessage{Role: m.Role, Content: m.Content})
	}

	var searchResults []search.Result
	if includeWebSearch && s.searcher != nil {
		s.metrics.SearchRequests.Inc()
		searchResults = s.searcher.Search(ctx, message)
		if len(searchResults) > 0 {
			lines := make([]string, 0, len(searchResults))
			for _, r := range searchResults {
				lines = append(lines, fmt.Sprintf("%s: %s (%s)", r.Title, r.Snippet, r.URL))
			}
			llmMessages = append(llmMessages, providers.ChatMessage{
				Role:    storage.RoleSystem,
				Content: "Web search results:\n" + strings.Join(lines, "\n\n"),
			})
		}
	}

	started := time.Now()
	resp, err := s.provider.Chat(ctx, providers.ChatRequest{
		Model:       conv.Model,
		Messages:    llmMessages,
		MaxTokens:   modelMaxTokens(conv.Model),
		Temperature: chatTemperature,
	})
	s.metrics.ProviderLatency.Observe(time.Since(started).Seconds())
	if err != nil {
		s.metrics.ChatFailures.Inc()
		s.logger.Error().Err(err).Int64("conversation_id", conv.ID).Msg("chat completion failed")
		return SendResult{}, ErrGenerateFailed
	}

	metadata, err := json.Marshal(map[string]any{
		"model": conv.Model,
		"usage": resp.Usage,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("marshal message metadata: %w", err)
	}
	metadataStr := string(metadata)

	assistant, err := s.store.CreateMessage(ctx, conv.ID, storage.RoleAssistant, resp.Text, &metadataStr)
	if err != nil {
		return SendResult{}, err
	}

	// The title trigger is the title still being the default, not a history
	// length check, so concurrent sends cannot double-fire it.
	if conv.Title == storage.DefaultConversationTitle {
		title := s.deriveTitle(ctx, message)
		if err := s.store.UpdateConversation(ctx, conv.ID, userID, storage.ConversationUpdate{Title: &title}); err != nil {
			s.logger.Warn().Err(err).Int64("conversation_id", conv.ID).Msg("failed to update conversation title")
		} else {
			s.metrics.TitlesGenerated.Inc()
		}
	} else if err := s.store.TouchConversation(ctx, conv.ID, userID); err != nil {
		s.logger.Warn().Err(err).Int64("conversation_id", conv.ID).Msg("failed to touch conversation")
	}

	s.metrics.MessagesSent.Inc()
	return SendResult{
		MessageID:     assistant.ID,
		Content:       resp.Text,
		SearchResults: searchResults,
	}, nil
}

// deriveTitle asks the model for a short title for the first exchange. The
// reply is trimmed, stripped of wrapping quotes and clamped to six words;
// any failure falls back to the default title.
func (s *Service) deriveTitle(ctx context.Context, firstMessage string) string {
	resp, err := s.provider.Chat(ctx, providers.ChatRequest{
		Model: s.defaultModel,
		Messages: []providers.ChatMessage{
			{Role: storage.RoleSystem, Content: titlePrompt},
			{Role: storage.RoleUser, Content: firstMessage},
		},
		Temperature: titleTemperature,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("title generation failed")
		return storage.DefaultConversationTitle
	}

	title := strings.TrimSpace(resp.Text)
	title = strings.Trim(title, `"'`)
	title = strings.TrimSpace(title)
	if title == "" {
		return storage.DefaultConversationTitle
	}
	if words := strings.Fields(title); len(words) > maxTitleWords {
		title = strings.Join(words[:maxTitleWords], " ")
	}
	return title
}

func (s *Service) CreateConversation(ctx context.Context, userID int64, title, model string) (storage.Conversation, error) {
	if model == "" {
		model = s.defaultModel
	}
	return s.store.CreateConversation(ctx, userID, title, model)
}

type ConversationDetail struct {
	Conversation storage.Conversation
	Messages     []storage.Message
}

func (s *Service) GetConversation(ctx context.Context, userID, id int64) (ConversationDetail, error) {
	conv, err := s.store.GetConversation(ctx, id, userID)
	if err != nil {
		return ConversationDetail{}, err
	}
	messages, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return ConversationDetail{}, err
	}
	return ConversationDetail{Conversation: conv, Messages: messages}, nil
}

func (s *Service) ListConversations(ctx context.Context, userID int64) ([]storage.Conversation, error) {
	return s.store.ListConversations(ctx, userID, 50)
}

func (s *Service) UpdateConversation(ctx context.Context, userID, id int64, upd storage.ConversationUpdate) error {
	return s.store.UpdateConversation(ctx, id, userID, upd)
}

func (s *Service) DeleteConversation(ctx context.Context, userID, id int64) error {
	return s.store.DeleteConversation(ctx, id, userID)
}

func (s *Service) SearchConversations(ctx context.Context, userID int64, query string) ([]storage.Conversation, error) {
	return s.store.SearchConversations(ctx, userID, query)
}

// WebSearch runs the combined search on its own, without a model call.
func (s *Service) WebSearch(ctx context.Context, query string) []search.Result {
	if s.searcher == nil {
		return []search.Result{}
	}
	s.metrics.SearchRequests.Inc()
	return s.searcher.Search(ctx, query)
}
