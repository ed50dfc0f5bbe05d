package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/scanner"
)

const newsAPIEndpoint = "https://newsapi.org/v2/top-headlines"

// ErrMissingAPIKey is returned when a newsapi site has no apiKey option.
var ErrMissingAPIKey = errors.New("newsapi: api key is not configured")

// NewsAPIScanner pulls top headlines from newsapi.org.
// Categories, when configured, map to the API's category parameter.
type NewsAPIScanner struct {
	client   *http.Client
	endpoint string
}

// NewNewsAPIScanner wires an HTTP client; endpoint defaults to the public API.
func NewNewsAPIScanner(client *http.Client, endpoint string) *NewsAPIScanner {
	if endpoint == "" {
		endpoint = newsAPIEndpoint
	}
	return &NewsAPIScanner{client: defaultHTTPClient(client), endpoint: endpoint}
}

// Name identifies the strategy inside the registry.
func (n *NewsAPIScanner) Name() string {
	return "newsapi"
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Scan queries top headlines for the configured country.
func (n *NewsAPIScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	apiKey := req.Option("apiKey", "")
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	categories := req.Categories
	if len(categories) == 0 {
		categories = []scanner.Category{{}}
	}

	return scanCategories(ctx, categories, func(ctx context.Context, cat scanner.Category) ([]domain.Article, error) {
		query := url.Values{}
		query.Set("country", req.Option("country", "us"))
		query.Set("pageSize", req.Option("pageSize", "100"))
		if cat.Name != "" {
			query.Set("category", cat.Name)
		}
		return n.fetch(ctx, n.endpoint+"?"+query.Encode(), apiKey, sourceName(req.SiteName, cat.Name))
	})
}

func (n *NewsAPIScanner) fetch(ctx context.Context, rawURL, apiKey, source string) ([]domain.Article, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("X-Api-Key", apiKey)
	httpReq.Header.Set("User-Agent", defaultUserAgent)

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request headlines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("newsapi returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode headlines: %w", err)
	}
	if decoded.Status != "ok" {
		return nil, fmt.Errorf("newsapi %s: %s", decoded.Code, decoded.Message)
	}

	articles := make([]domain.Article, 0, len(decoded.Articles))
	for _, a := range decoded.Articles {
		if a.URL == "" {
			continue
		}
		published, _ := time.Parse(time.RFC3339, a.PublishedAt)
		articles = append(articles, newArticle(a.Title, a.URL, source, published))
	}
	return articles, nil
}
