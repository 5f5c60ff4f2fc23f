// Package search combines two free web search providers: the DuckDuckGo
// instant answer API and Wikipedia full-text search. Neither needs an API key.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	SourceDuckDuckGo = "duckduckgo"
	SourceWikipedia  = "wikipedia"

	maxDuckDuckGoResults = 5
	maxWikipediaResults  = 3
)

type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Source  string `json:"source"`
}

type Config struct {
	DuckDuckGoURL   string
	WikipediaURL    string
	ProviderTimeout time.Duration
	HTTPClient      *http.Client
	Logger          zerolog.Logger
}

type Searcher struct {
	cfg Config
}

func New(cfg Config) *Searcher {
	if cfg.DuckDuckGoURL == "" {
		cfg.DuckDuckGoURL = "https://api.duckduckgo.com/"
	}
	if cfg.WikipediaURL == "" {
		cfg.WikipediaURL = "https://en.wikipedia.org/w/api.php"
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Searcher{cfg: cfg}
}

// Search fans out to both providers concurrently and joins before returning.
// A provider failure counts as zero results from that provider, never as an
// error: the combined call always succeeds. DuckDuckGo results come first.
func (s *Searcher) Search(ctx context.Context, query string) []Result {
	ddgCh := make(chan []Result, 1)
	wikiCh := make(chan []Result, 1)

	go func() {
		ddgCh <- s.searchDuckDuckGo(ctx, query)
	}()
	go func() {
		wikiCh <- s.searchWikipedia(ctx, query)
	}()

	results := append([]Result{}, <-ddgCh...)
	return append(results, <-wikiCh...)
}

func (s *Searcher) searchDuckDuckGo(ctx context.Context, query string) []Result {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	body, err := s.fetch(ctx, s.cfg.DuckDuckGoURL, params)
	if err != nil {
		s.cfg.Logger.Warn().Err(err).Str("provider", SourceDuckDuckGo).Msg("search provider failed")
		return nil
	}

	var parsed struct {
		Heading       string `json:"Heading"`
		Abstract      string `json:"Abstract"`
		AbstractText  string `json:"AbstractText"`
		AbstractURL   string `json:"AbstractURL"`
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		s.cfg.Logger.Warn().Err(err).Str("provider", SourceDuckDuckGo).Msg("decode search response failed")
		return nil
	}

	results := make([]Result, 0, maxDuckDuckGoResults)
	if parsed.Abstract != "" && parsed.AbstractText != "" {
		title := parsed.Heading
		if title == "" {
			title = query
		}
		results = append(results, Result{
			Title:   title,
			Snippet: parsed.AbstractText,
			URL:     parsed.AbstractURL,
			Source:  SourceDuckDuckGo,
		})
	}
	for _, topic := range parsed.RelatedTopics {
		if len(results) >= maxDuckDuckGoResults {
			break
		}
		if topic.Text == "" || topic.FirstURL == "" {
			continue
		}
		title := topic.Text
		if idx := strings.Index(title, " - "); idx > 0 {
			title = title[:idx]
		}
		results = append(results, Result{
			Title:   title,
			Snippet: topic.Text,
			URL:     topic.FirstURL,
			Source:  SourceDuckDuckGo,
		})
	}
	return results
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

func (s *Searcher) searchWikipedia(ctx context.Context, query string) []Result {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("format", "json")
	params.Set("srlimit", fmt.Sprintf("%d", maxWikipediaResults))
	params.Set("srprop", "snippet")

	body, err := s.fetch(ctx, s.cfg.WikipediaURL, params)
	if err != nil {
		s.cfg.Logger.Warn().Err(err).Str("provider", SourceWikipedia).Msg("search provider failed")
		return nil
	}

	var parsed struct {
		Query struct {
			Search []struct {
				Title   string `json:"title"`
				Snippet string `json:"snippet"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		s.cfg.Logger.Warn().Err(err).Str("provider", SourceWikipedia).Msg("decode search response failed")
		return nil
	}

	results := make([]Result, 0, maxWikipediaResults)
	for _, item := range parsed.Query.Search {
		if len(results) >= maxWikipediaResults {
			break
		}
		results = append(results, Result{
			Title:   item.Title,
			Snippet: htmlTagRe.ReplaceAllString(item.Snippet, ""),
			URL:     "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(item.Title, " ", "_")),
			Source:  SourceWikipedia,
		})
	}
	return results
}

func (s *Searcher) fetch(ctx context.Context, baseURL string, params url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("provider status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}
