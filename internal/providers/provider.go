package providers

import "context"

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	Text  string
	Usage Usage
}

// ChatProvider is a hosted language model invoked synchronously per request.
type ChatProvider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

type TranscribeRequest struct {
	Filename string
	Audio    []byte
	MimeType string
	Language string
}

type Transcription struct {
	Text     string
	Language string
}

type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest) (Transcription, error)
}

type ImageRequest struct {
	Prompt string
	Size   string
}

type GeneratedImage struct {
	URL string
}

type ImageGenerator interface {
	Generate(ctx context.Context, req ImageRequest) (GeneratedImage, error)
}
