package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"chatforge/internal/blob"
	"chatforge/internal/chat"
	"chatforge/internal/code"
	"chatforge/internal/providers"
	"chatforge/internal/storage"
	"chatforge/internal/tools"
)

type scriptedProvider struct {
	responses []providers.ChatResponse
}

func (f *scriptedProvider) Chat(context.Context, providers.ChatRequest) (providers.ChatResponse, error) {
	if len(f.responses) == 0 {
		return providers.ChatResponse{}, fmt.Errorf("no scripted response")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

type staticImages struct{}

func (staticImages) Generate(context.Context, providers.ImageRequest) (providers.GeneratedImage, error) {
	return providers.GeneratedImage{URL: "https://img.example.com/out.png"}, nil
}

type staticTranscriber struct{}

func (staticTranscriber) Transcribe(context.Context, providers.TranscribeRequest) (providers.Transcription, error) {
	return providers.Transcription{Text: "transcript", Language: "en"}, nil
}

type testEnv struct {
	router   *gin.Engine
	store    *storage.Store
	provider *scriptedProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "test.db"), true, "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	bs, err := blob.NewStore(t.TempDir(), "http://localhost:8080/blobs")
	if err != nil {
		t.Fatalf("new blob store: %v", err)
	}

	provider := &scriptedProvider{}
	logger := zerolog.Nop()

	chatSvc := chat.NewService(chat.Config{Store: store, Provider: provider, Logger: logger})
	toolsSvc := tools.NewService(tools.Config{
		Store:       store,
		Blob:        bs,
		Images:      staticImages{},
		Transcriber: staticTranscriber{},
		Logger:      logger,
	})
	codeSvc := code.NewService(code.Config{Store: store, Provider: provider, Model: "gpt-4.1-nano", Logger: logger})

	router := NewRouter(Config{
		Store:  store,
		Chat:   chatSvc,
		Tools:  toolsSvc,
		Code:   codeSvc,
		Auth:   NewAuth("test-secret", time.Hour),
		Logger: logger,
	})
	return &testEnv{router: router, store: store, provider: provider}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, openID string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"openId": openID})
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if out.Token == "" {
		t.Fatalf("empty token in %s", rec.Body.String())
	}
	return out.Token
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/api/chat/models", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/chat/models", "not-a-jwt", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}

	token := env.login(t, "user-a")
	rec := env.do(t, http.MethodGet, "/api/chat/models", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Models []chat.ModelInfo `json:"models"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode models: %v", err)
	}
	if len(out.Models) == 0 {
		t.Fatalf("expected non-empty model catalog")
	}
	for _, m := range out.Models {
		if m.ID == "" || m.Name == "" || m.Description == "" || m.MaxTokens <= 0 {
			t.Fatalf("incomplete model entry %+v", m)
		}
	}
}

func TestConversationRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "user-a")

	rec := env.do(t, http.MethodPost, "/api/chat/conversations", token, gin.H{"title": "", "model": ""})
	if rec.Code != http.StatusOK {
		t.Fatalf("create conversation returned %d: %s", rec.Code, rec.Body.String())
	}
	var conv struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}
	if conv.ID <= 0 || conv.Title != storage.DefaultConversationTitle {
		t.Fatalf("unexpected conversation %+v", conv)
	}

	env.provider.responses = []providers.ChatResponse{
		{Text: "hello back"},
		{Text: "Quick Hello"},
	}
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/chat/conversations/%d/messages", conv.ID), token, gin.H{"message": "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("send message returned %d: %s", rec.Code, rec.Body.String())
	}
	var sent struct {
		MessageID int64  `json:"messageId"`
		Content   string `json:"content"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &sent); err != nil {
		t.Fatalf("decode send response: %v", err)
	}
	if sent.Content != "hello back" || sent.MessageID <= 0 {
		t.Fatalf("unexpected send response %+v", sent)
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/chat/conversations/%d", conv.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get conversation returned %d: %s", rec.Code, rec.Body.String())
	}
	var detail struct {
		Conversation struct {
			Title string `json:"title"`
		} `json:"conversation"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if len(detail.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(detail.Messages))
	}
	if detail.Messages[0].Role != "user" || detail.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected roles %+v", detail.Messages)
	}
	if detail.Conversation.Title != "Quick Hello" {
		t.Fatalf("expected derived title, got %q", detail.Conversation.Title)
	}

	// Another user cannot see or touch it.
	otherToken := env.login(t, "user-b")
	if rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/chat/conversations/%d", conv.ID), otherToken, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign conversation, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, fmt.Sprintf("/api/chat/conversations/%d", conv.ID), otherToken, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign delete, got %d", rec.Code)
	}

	// Owner delete removes it.
	if rec := env.do(t, http.MethodDelete, fmt.Sprintf("/api/chat/conversations/%d", conv.ID), token, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete returned %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/chat/conversations/%d", conv.ID), token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestSendMessageValidationStatus(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "user-a")

	rec := env.do(t, http.MethodPost, "/api/chat/conversations/1/messages", token, gin.H{"message": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty message, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/chat/conversations/9999/messages", token, gin.H{"message": "hi"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown conversation, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/chat/conversations/abc/messages", token, gin.H{"message": "hi"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", rec.Code)
	}
}

func TestGenerateFailureStatus(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "user-a")

	rec := env.do(t, http.MethodPost, "/api/chat/conversations", token, gin.H{})
	var conv struct {
		ID int64 `json:"id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &conv)

	// No scripted responses: the provider fails.
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/chat/conversations/%d/messages", conv.ID), token, gin.H{"message": "hi"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on provider failure, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUploadFileEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "user-a")

	rec := env.do(t, http.MethodPost, "/api/advanced/files", token, gin.H{
		"filename": "note.txt",
		"content":  base64.StdEncoding.EncodeToString([]byte("hi")),
		"mimeType": "text/plain",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upload returned %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		ID            int64   `json:"id"`
		URL           string  `json:"url"`
		ExtractedText *string `json:"extractedText"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if out.ID <= 0 || out.ExtractedText == nil || *out.ExtractedText != "hi" {
		t.Fatalf("unexpected upload response %+v", out)
	}

	rec = env.do(t, http.MethodGet, "/api/advanced/files", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get files returned %d", rec.Code)
	}
	var files struct {
		Files []fileJSON `json:"files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &files); err != nil {
		t.Fatalf("decode files: %v", err)
	}
	if len(files.Files) != 1 || files.Files[0].Filename != "note.txt" {
		t.Fatalf("unexpected files %+v", files.Files)
	}
}

func TestGenerateImageEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "user-a")

	rec := env.do(t, http.MethodPost, "/api/advanced/images", token, gin.H{"prompt": "a fox"})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate image returned %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode image response: %v", err)
	}
	if out.URL != "https://img.example.com/out.png" {
		t.Fatalf("unexpected url %q", out.URL)
	}
}

func TestUploadAndTranscribeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "user-a")

	rec := env.do(t, http.MethodPost, "/api/advanced/audio", token, gin.H{
		"filename": "memo.webm",
		"content":  base64.StdEncoding.EncodeToString([]byte("audio")),
		"mimeType": "audio/webm",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upload audio returned %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Text != "transcript" {
		t.Fatalf("unexpected text %q", out.Text)
	}
}

func TestCodeEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "user-a")

	env.provider.responses = []providers.ChatResponse{{Text: "func main() {}"}}
	rec := env.do(t, http.MethodPost, "/api/code/generate", token, gin.H{"description": "hello world", "language": "go"})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate returned %d: %s", rec.Code, rec.Body.String())
	}
	var gen struct {
		Code     string `json:"code"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &gen); err != nil {
		t.Fatalf("decode generate: %v", err)
	}
	if gen.Code != "func main() {}" || gen.Language != "go" {
		t.Fatalf("unexpected generate response %+v", gen)
	}

	rec = env.do(t, http.MethodPost, "/api/code/projects", token, gin.H{"name": "demo", "language": "go"})
	if rec.Code != http.StatusOK {
		t.Fatalf("create project returned %d: %s", rec.Code, rec.Body.String())
	}
	var project struct {
		ID int64 `json:"id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &project)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/code/projects/%d/files", project.ID), token, gin.H{
		"filename": "main.go",
		"content":  "package main",
		"language": "go",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create file returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/code/projects/%d", project.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get project returned %d", rec.Code)
	}
	var detail struct {
		Files []codeFileJSON `json:"files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode project detail: %v", err)
	}
	if len(detail.Files) != 1 || detail.Files[0].Filename != "main.go" {
		t.Fatalf("unexpected files %+v", detail.Files)
	}

	// Foreign projects are invisible.
	otherToken := env.login(t, "user-b")
	if rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/code/projects/%d", project.ID), otherToken, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign project, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz returned %d: %s", rec.Code, rec.Body.String())
	}
}
