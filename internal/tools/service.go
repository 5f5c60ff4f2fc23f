// Package tools implements the file, image and audio operations: upload with
// text extraction, prompt-to-image generation and whisper-style transcription.
package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chatforge/internal/blob"
	"chatforge/internal/metrics"
	"chatforge/internal/providers"
	"chatforge/internal/storage"
)

var (
	ErrInvalidPayload   = errors.New("invalid file payload")
	ErrAudioTooLarge    = errors.New("audio file too large (max 16MB)")
	ErrImageFailed      = errors.New("failed to generate image")
	ErrTranscribeFailed = errors.New("failed to transcribe audio")
)

const maxAudioBytes = 16 << 20

type Config struct {
	Store       *storage.Store
	Blob        *blob.Store
	Images      providers.ImageGenerator
	Transcriber providers.Transcriber
	HTTPClient  *http.Client
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

type Service struct {
	store       *storage.Store
	blob        *blob.Store
	images      providers.ImageGenerator
	transcriber providers.Transcriber
	httpClient  *http.Client
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

func NewService(cfg Config) *Service {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Service{
		store:       cfg.Store,
		blob:        cfg.Blob,
		images:      cfg.Images,
		transcriber: cfg.Transcriber,
		httpClient:  hc,
		metrics:     m,
		logger:      cfg.Logger,
	}
}

type UploadInput struct {
	Filename       string
	Content        string // base64
	MimeType       string
	ConversationID *int64
}

type UploadResult struct {
	ID            int64   `json:"id"`
	URL           string  `json:"url"`
	ExtractedText *string `json:"extractedText"`
}

// UploadFile decodes the payload, stores the raw bytes under a randomized
// user-scoped key, derives searchable text for the mime types that carry it
// and records the file metadata row.
func (s *Service) UploadFile(ctx context.Context, userID int64, in UploadInput) (UploadResult, error) {
	if in.Filename == "" {
		return UploadResult{}, fmt.Errorf("%w: filename is empty", ErrInvalidPayload)
	}
	data, err := base64.StdEncoding.DecodeString(in.Content)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	fileKey := fmt.Sprintf("%d/files/%s-%s", userID, uuid.NewString(), in.Filename)
	publicURL, err := s.blob.Put(fileKey, data)
	if err != nil {
		return UploadResult{}, fmt.Errorf("store upload: %w", err)
	}

	extracted := extractText(data, in.MimeType)
	size := int64(len(data))

	id, err := s.store.CreateFile(ctx, storage.File{
		UserID:         userID,
		ConversationID: in.ConversationID,
		Filename:       in.Filename,
		FileKey:        fileKey,
		URL:            publicURL,
		MimeType:       &in.MimeType,
		Size:           &size,
		ExtractedText:  extracted,
	})
	if err != nil {
		return UploadResult{}, err
	}

	s.metrics.FilesUploaded.Inc()
	return UploadResult{ID: id, URL: publicURL, ExtractedText: extracted}, nil
}

// extractText derives searchable text for the mime types that carry it.
// Plain text and markdown pass through, JSON is re-pretty-printed and falls
// back to the raw bytes when it does not parse. Everything else yields nil.
func extractText(data []byte, mimeType string) *string {
	switch mimeType {
	case "text/plain", "text/markdown":
		s := string(data)
		return &s
	case "application/json":
		var v any
		if err := json.Unmarshal(data, &v); err == nil {
			if pretty, err := json.MarshalIndent(v, "", "  "); err == nil {
				s := string(pretty)
				return &s
			}
		}
		s := string(data)
		return &s
	}
	return nil
}

func (s *Service) GetUserFiles(ctx context.Context, userID int64) ([]storage.File, error) {
	return s.store.ListFilesByUser(ctx, userID)
}

// GenerateImage renders the prompt through the image provider and records the
// result in the caller's files. The provider hosts the image; the file row
// points at the provider URL with size zero.
func (s *Service) GenerateImage(ctx context.Context, userID int64, prompt string, conversationID *int64) (providers.GeneratedImage, error) {
	if prompt == "" {
		return providers.GeneratedImage{}, fmt.Errorf("%w: prompt is empty", ErrInvalidPayload)
	}

	img, err := s.images.Generate(ctx, providers.ImageRequest{Prompt: prompt})
	if err != nil {
		s.logger.Error().Err(err).Msg("image generation failed")
		return providers.GeneratedImage{}, ErrImageFailed
	}

	if img.URL != "" {
		mimeType := "image/png"
		size := int64(0)
		extracted := "Generated from prompt: " + prompt
		_, err := s.store.CreateFile(ctx, storage.File{
			UserID:         userID,
			ConversationID: conversationID,
			Filename:       fmt.Sprintf("generated-%d.png", time.Now().UnixMilli()),
			FileKey:        fmt.Sprintf("%d/generated/%s.png", userID, uuid.NewString()),
			URL:            img.URL,
			MimeType:       &mimeType,
			Size:           &size,
			ExtractedText:  &extracted,
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("recording generated image failed")
			return providers.GeneratedImage{}, ErrImageFailed
		}
	}

	s.metrics.ImagesGenerated.Inc()
	return img, nil
}

// TranscribeAudio fetches the audio behind the URL and runs it through the
// transcription provider.
func (s *Service) TranscribeAudio(ctx context.Context, audioURL, language string) (providers.Transcription, error) {
	data, err := s.fetchAudio(ctx, audioURL)
	if err != nil {
		s.logger.Error().Err(err).Str("url", audioURL).Msg("fetching audio failed")
		return providers.Transcription{}, ErrTranscribeFailed
	}

	tr, err := s.transcriber.Transcribe(ctx, providers.TranscribeRequest{
		Filename: filenameFromURL(audioURL),
		Audio:    data,
		Language: language,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("transcription failed")
		return providers.Transcription{}, ErrTranscribeFailed
	}

	s.metrics.AudioTranscribed.Inc()
	return tr, nil
}

type TranscribeUploadInput struct {
	Filename       string
	Content        string // base64
	MimeType       string
	Language       string
	ConversationID *int64
}

type TranscribeUploadResult struct {
	URL      string `json:"url"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

// UploadAndTranscribe stores the audio and transcribes it in one call. The
// size limit is enforced before anything is written.
func (s *Service) UploadAndTranscribe(ctx context.Context, userID int64, in TranscribeUploadInput) (TranscribeUploadResult, error) {
	if in.Filename == "" {
		return TranscribeUploadResult{}, fmt.Errorf("%w: filename is empty", ErrInvalidPayload)
	}
	data, err := base64.StdEncoding.DecodeString(in.Content)
	if err != nil {
		return TranscribeUploadResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(data) > maxAudioBytes {
		return TranscribeUploadResult{}, ErrAudioTooLarge
	}

	fileKey := fmt.Sprintf("%d/audio/%s-%s", userID, uuid.NewString(), in.Filename)
	publicURL, err := s.blob.Put(fileKey, data)
	if err != nil {
		return TranscribeUploadResult{}, fmt.Errorf("store audio: %w", err)
	}

	tr, err := s.transcriber.Transcribe(ctx, providers.TranscribeRequest{
		Filename: in.Filename,
		Audio:    data,
		MimeType: in.MimeType,
		Language: in.Language,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("transcription failed")
		return TranscribeUploadResult{}, ErrTranscribeFailed
	}

	size := int64(len(data))
	if _, err := s.store.CreateFile(ctx, storage.File{
		UserID:         userID,
		ConversationID: in.ConversationID,
		Filename:       in.Filename,
		FileKey:        fileKey,
		URL:            publicURL,
		MimeType:       &in.MimeType,
		Size:           &size,
		ExtractedText:  &tr.Text,
	}); err != nil {
		return TranscribeUploadResult{}, err
	}

	s.metrics.AudioTranscribed.Inc()
	return TranscribeUploadResult{URL: publicURL, Text: tr.Text, Language: tr.Language}, nil
}

func (s *Service) fetchAudio(ctx context.Context, audioURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build audio request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch audio: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read audio body: %w", err)
	}
	if len(data) > maxAudioBytes {
		return nil, ErrAudioTooLarge
	}
	return data, nil
}

func filenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "audio"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "audio"
	}
	return name
}
