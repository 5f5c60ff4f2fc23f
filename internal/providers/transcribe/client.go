// Package transcribe wraps a whisper-style speech-to-text endpoint.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatforge/internal/providers"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	return &Client{cfg: cfg}
}

var _ providers.Transcriber = (*Client)(nil)

func (c *Client) Transcribe(ctx context.Context, req providers.TranscribeRequest) (providers.Transcription, error) {
	if len(req.Audio) == 0 {
		return providers.Transcription{}, fmt.Errorf("audio payload is empty")
	}
	endpointURL, err := c.buildEndpointURL()
	if err != nil {
		return providers.Transcription{}, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	filename := req.Filename
	if filename == "" {
		filename = "audio"
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return providers.Transcription{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return providers.Transcription{}, fmt.Errorf("write audio part: %w", err)
	}
	if err := mw.WriteField("model", c.cfg.Model); err != nil {
		return providers.Transcription{}, fmt.Errorf("write model field: %w", err)
	}
	if req.Language != "" {
		if err := mw.WriteField("language", req.Language); err != nil {
			return providers.Transcription{}, fmt.Errorf("write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return providers.Transcription{}, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, &body)
	if err != nil {
		return providers.Transcription{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	if strings.TrimSpace(c.cfg.APIKey) != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return providers.Transcription{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return providers.Transcription{}, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providers.Transcription{}, fmt.Errorf("provider status %d", resp.StatusCode)
	}

	var parsed struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return providers.Transcription{}, fmt.Errorf("decode transcription response: %w", err)
	}
	if strings.TrimSpace(parsed.Text) == "" {
		return providers.Transcription{}, fmt.Errorf("empty transcription text")
	}
	lang := parsed.Language
	if lang == "" {
		lang = req.Language
	}
	return providers.Transcription{Text: parsed.Text, Language: lang}, nil
}

func (c *Client) buildEndpointURL() (string, error) {
	base := strings.TrimSpace(c.cfg.BaseURL)
	if base == "" {
		return "", fmt.Errorf("base url is empty")
	}
	if strings.HasSuffix(base, "/audio/transcriptions") {
		return base, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/audio/transcriptions"
	return u.String(), nil
}
