// Package code implements the model-backed code operations (generate,
// analyze, explain) and the project/file persistence around them.
package code

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatforge/internal/metrics"
	"chatforge/internal/providers"
	"chatforge/internal/storage"
)

var (
	ErrEmptyInput   = errors.New("input is empty")
	ErrGenerateCode = errors.New("failed to generate code")
	ErrAnalyzeCode  = errors.New("failed to analyze code")
	ErrExplainCode  = errors.New("failed to explain code")
)

const defaultLanguage = "javascript"

const generateSystemPrompt = `You are an expert code generator. Generate clean, well-documented, and production-ready code based on the user's description.

Guidelines:
- Write code in %s
- Include comments explaining complex logic
- Follow best practices and conventions for the language
- Make the code modular and reusable
- Include error handling where appropriate
- If generating HTML/CSS/JS, create a complete working example`

const analyzeSystemPrompt = `You are an expert code reviewer and debugger. Analyze the provided %s code and:
1. Identify any bugs or issues
2. Suggest improvements for performance, readability, and maintainability
3. Point out security vulnerabilities if any
4. Provide corrected code if needed

Format your response as:
## Issues Found
- Issue 1
- Issue 2

## Improvements
- Improvement 1
- Improvement 2

## Corrected Code
` + "```%s\ncorrected code here\n```"

const explainSystemPrompt = "You are an expert programmer. Explain the provided code in clear, simple terms. Break it down into sections and explain what each part does."

type Config struct {
	Store    *storage.Store
	Provider providers.ChatProvider
	Model    string
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

type Service struct {
	store    *storage.Store
	provider providers.ChatProvider
	model    string
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewService(cfg Config) *Service {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	return &Service{
		store:    cfg.Store,
		provider: cfg.Provider,
		model:    cfg.Model,
		metrics:  m,
		logger:   cfg.Logger,
	}
}

type GenerateResult struct {
	Code      string    `json:"code"`
	Language  string    `json:"language"`
	Timestamp time.Time `json:"timestamp"`
}

// Generate produces code for a free-form description. The model reply is
// returned raw, without structural validation.
func (s *Service) Generate(ctx context.Context, description, language string) (GenerateResult, error) {
	if strings.TrimSpace(description) == "" {
		return GenerateResult{}, fmt.Errorf("%w: description", ErrEmptyInput)
	}
	if language == "" {
		language = defaultLanguage
	}

	text, err := s.invoke(ctx,
		fmt.Sprintf(generateSystemPrompt, language),
		description,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("language", language).Msg("code generation failed")
		return GenerateResult{}, ErrGenerateCode
	}

	s.metrics.CodeOperations.Inc()
	return GenerateResult{Code: text, Language: language, Timestamp: time.Now().UTC()}, nil
}

// Analyze reviews the code and returns the model's findings. An optional
// issues hint narrows what the reviewer should look for.
func (s *Service) Analyze(ctx context.Context, code, language, issues string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("%w: code", ErrEmptyInput)
	}

	userMessage := fmt.Sprintf("Code:\n```%s\n%s\n```", language, code)
	if issues != "" {
		userMessage += "\n\nSpecific issues to check: " + issues
	}

	text, err := s.invoke(ctx,
		fmt.Sprintf(analyzeSystemPrompt, language, language),
		userMessage,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("language", language).Msg("code analysis failed")
		return "", ErrAnalyzeCode
	}

	s.metrics.CodeOperations.Inc()
	return text, nil
}

// Explain returns a plain-language walkthrough of the code.
func (s *Service) Explain(ctx context.Context, code, language string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("%w: code", ErrEmptyInput)
	}

	text, err := s.invoke(ctx,
		explainSystemPrompt,
		fmt.Sprintf("Explain this %s code:\n```%s\n%s\n```", language, language, code),
	)
	if err != nil {
		s.logger.Error().Err(err).Str("language", language).Msg("code explanation failed")
		return "", ErrExplainCode
	}

	s.metrics.CodeOperations.Inc()
	return text, nil
}

func (s *Service) invoke(ctx context.Context, system, user string) (string, error) {
	resp, err := s.provider.Chat(ctx, providers.ChatRequest{
		Model: s.model,
		Messages: []providers.ChatMessage{
			{Role: storage.RoleSystem, Content: system},
			{Role: storage.RoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (s *Service) CreateProject(ctx context.Context, userID int64, name, description, language string) (storage.CodeProject, error) {
	if strings.TrimSpace(name) == "" {
		return storage.CodeProject{}, fmt.Errorf("%w: project name", ErrEmptyInput)
	}
	return s.store.CreateCodeProject(ctx, userID, name, description, language)
}

func (s *Service) ListProjects(ctx context.Context, userID int64) ([]storage.CodeProject, error) {
	return s.store.ListCodeProjects(ctx, userID)
}

type ProjectDetail struct {
	Project storage.CodeProject
	Files   []storage.CodeFile
}

func (s *Service) GetProject(ctx context.Context, userID, projectID int64) (ProjectDetail, error) {
	project, err := s.store.GetCodeProject(ctx, projectID, userID)
	if err != nil {
		return ProjectDetail{}, err
	}
	files, err := s.store.ListCodeFiles(ctx, projectID)
	if err != nil {
		return ProjectDetail{}, err
	}
	return ProjectDetail{Project: project, Files: files}, nil
}

func (s *Service) UpdateProject(ctx context.Context, userID, projectID int64, upd storage.CodeProjectUpdate) error {
	return s.store.UpdateCodeProject(ctx, projectID, userID, upd)
}

func (s *Service) DeleteProject(ctx context.Context, userID, projectID int64) error {
	return s.store.DeleteCodeProject(ctx, projectID, userID)
}

// CreateFile adds a file to a project the caller owns.
func (s *Service) CreateFile(ctx context.Context, userID, projectID int64, filename, content, language string) (storage.CodeFile, error) {
	if strings.TrimSpace(filename) == "" {
		return storage.CodeFile{}, fmt.Errorf("%w: filename", ErrEmptyInput)
	}
	if _, err := s.store.GetCodeProject(ctx, projectID, userID); err != nil {
		return storage.CodeFile{}, err
	}
	return s.store.CreateCodeFile(ctx, projectID, filename, content, language)
}

func (s *Service) ListFiles(ctx context.Context, userID, projectID int64) ([]storage.CodeFile, error) {
	if _, err := s.store.GetCodeProject(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.store.ListCodeFiles(ctx, projectID)
}
