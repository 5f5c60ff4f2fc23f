package code

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"chatforge/internal/providers"
	"chatforge/internal/storage"
)

type fakeProvider struct {
	text    string
	err     error
	lastReq providers.ChatRequest
}

func (f *fakeProvider) Chat(_ context.Context, req providers.ChatRequest) (providers.ChatResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return providers.ChatResponse{}, f.err
	}
	return providers.ChatResponse{Text: f.text}, nil
}

func newTestService(t *testing.T) (*Service, *storage.Store, *fakeProvider) {
	t.Helper()
	store, err := storage.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "test.db"), true, "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	provider := &fakeProvider{text: "model output"}
	svc := NewService(Config{
		Store:    store,
		Provider: provider,
		Model:    "gpt-4.1-nano",
		Logger:   zerolog.Nop(),
	})
	return svc, store, provider
}

func newTestUser(t *testing.T, store *storage.Store, openID string) storage.User {
	t.Helper()
	user, err := store.UpsertUser(context.Background(), openID, nil, nil, nil)
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	return user
}

func TestGenerateDefaultsLanguage(t *testing.T) {
	svc, _, provider := newTestService(t)

	res, err := svc.Generate(context.Background(), "a fizzbuzz function", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Code != "model output" || res.Language != "javascript" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Timestamp.IsZero() {
		t.Fatalf("expected timestamp to be set")
	}

	system := provider.lastReq.Messages[0]
	if system.Role != storage.RoleSystem || !strings.Contains(system.Content, "Write code in javascript") {
		t.Fatalf("unexpected system prompt %+v", system)
	}
	if provider.lastReq.Messages[1].Content != "a fizzbuzz function" {
		t.Fatalf("unexpected user message %q", provider.lastReq.Messages[1].Content)
	}
}

func TestGenerateRejectsEmptyDescription(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Generate(context.Background(), "  ", "go"); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestGenerateProviderFailure(t *testing.T) {
	svc, _, provider := newTestService(t)
	provider.err = fmt.Errorf("boom")
	if _, err := svc.Generate(context.Background(), "x", "go"); !errors.Is(err, ErrGenerateCode) {
		t.Fatalf("expected ErrGenerateCode, got %v", err)
	}
}

func TestAnalyzeIncludesIssuesHint(t *testing.T) {
	svc, _, provider := newTestService(t)

	out, err := svc.Analyze(context.Background(), "print(x)", "python", "undefined variable")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if out != "model output" {
		t.Fatalf("unexpected analysis %q", out)
	}

	system := provider.lastReq.Messages[0].Content
	if !strings.Contains(system, "expert code reviewer") || !strings.Contains(system, "## Issues Found") {
		t.Fatalf("unexpected system prompt %q", system)
	}
	user := provider.lastReq.Messages[1].Content
	if !strings.Contains(user, "```python\nprint(x)\n```") {
		t.Fatalf("expected fenced code block, got %q", user)
	}
	if !strings.Contains(user, "Specific issues to check: undefined variable") {
		t.Fatalf("expected issues hint, got %q", user)
	}
}

func TestAnalyzeWithoutIssuesHint(t *testing.T) {
	svc, _, provider := newTestService(t)
	if _, err := svc.Analyze(context.Background(), "x = 1", "python", ""); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if strings.Contains(provider.lastReq.Messages[1].Content, "Specific issues") {
		t.Fatalf("unexpected issues hint in %q", provider.lastReq.Messages[1].Content)
	}
}

func TestExplain(t *testing.T) {
	svc, _, provider := newTestService(t)

	out, err := svc.Explain(context.Background(), "SELECT 1", "sql")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if out != "model output" {
		t.Fatalf("unexpected explanation %q", out)
	}
	user := provider.lastReq.Messages[1].Content
	if !strings.HasPrefix(user, "Explain this sql code:") || !strings.Contains(user, "```sql\nSELECT 1\n```") {
		t.Fatalf("unexpected user message %q", user)
	}
}

func TestProjectLifecycle(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	user := newTestUser(t, store, "open-1")

	project, err := svc.CreateProject(ctx, user.ID, "api", "backend service", "go")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	file, err := svc.CreateFile(ctx, user.ID, project.ID, "main.go", "package main", "go")
	if err != nil {
		t.Fatalf("create file: %v", err)
	}

	detail, err := svc.GetProject(ctx, user.ID, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if detail.Project.Name != "api" || len(detail.Files) != 1 || detail.Files[0].ID != file.ID {
		t.Fatalf("unexpected detail %+v", detail)
	}

	name := "api-v2"
	if err := svc.UpdateProject(ctx, user.ID, project.ID, storage.CodeProjectUpdate{Name: &name}); err != nil {
		t.Fatalf("update project: %v", err)
	}
	detail, _ = svc.GetProject(ctx, user.ID, project.ID)
	if detail.Project.Name != "api-v2" {
		t.Fatalf("expected renamed project, got %q", detail.Project.Name)
	}

	if err := svc.DeleteProject(ctx, user.ID, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if _, err := svc.GetProject(ctx, user.ID, project.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestProjectOwnership(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	owner := newTestUser(t, store, "open-1")
	intruder := newTestUser(t, store, "open-2")

	project, err := svc.CreateProject(ctx, owner.ID, "secret", "", "go")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	if _, err := svc.GetProject(ctx, intruder.ID, project.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for get, got %v", err)
	}
	if _, err := svc.CreateFile(ctx, intruder.ID, project.ID, "x.go", "", "go"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for create file, got %v", err)
	}
	if _, err := svc.ListFiles(ctx, intruder.ID, project.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for list files, got %v", err)
	}
	if err := svc.DeleteProject(ctx, intruder.ID, project.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for delete, got %v", err)
	}

	// Still there for the owner.
	if _, err := svc.GetProject(ctx, owner.ID, project.ID); err != nil {
		t.Fatalf("owner get after intruder attempts: %v", err)
	}
}
