// Package imagegen wraps an OpenAI-style image generation endpoint.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
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
	return &Client{cfg: cfg}
}

var _ providers.ImageGenerator = (*Client)(nil)

func (c *Client) Generate(ctx context.Context, req providers.ImageRequest) (providers.GeneratedImage, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return providers.GeneratedImage{}, fmt.Errorf("prompt is empty")
	}
	endpointURL, err := c.buildEndpointURL()
	if err != nil {
		return providers.GeneratedImage{}, err
	}

	payload := map[string]any{
		"prompt": req.Prompt,
		"n":      1,
	}
	if c.cfg.Model != "" {
		payload["model"] = c.cfg.Model
	}
	if req.Size != "" {
		payload["size"] = req.Size
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return providers.GeneratedImage{}, fmt.Errorf("marshal image payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return providers.GeneratedImage{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.cfg.APIKey) != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return providers.GeneratedImage{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return providers.GeneratedImage{}, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providers.GeneratedImage{}, fmt.Errorf("provider status %d", resp.StatusCode)
	}

	var parsed struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return providers.GeneratedImage{}, fmt.Errorf("decode image response: %w", err)
	}
	if len(parsed.Data) == 0 || strings.TrimSpace(parsed.Data[0].URL) == "" {
		return providers.GeneratedImage{}, fmt.Errorf("missing image url in response")
	}
	return providers.GeneratedImage{URL: parsed.Data[0].URL}, nil
}

func (c *Client) buildEndpointURL() (string, error) {
	base := strings.TrimSpace(c.cfg.BaseURL)
	if base == "" {
		return "", fmt.Errorf("base url is empty")
	}
	if strings.HasSuffix(base, "/images/generations") {
		return base, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/images/generations"
	return u.String(), nil
}
