package parser

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/scanner"
)

// RSSScanner reads RSS/Atom feeds listed as site categories.
type RSSScanner struct {
	parser *gofeed.Parser
}

// NewRSSScanner wires an HTTP client into the feed parser.
func NewRSSScanner(client *http.Client) *RSSScanner {
	p := gofeed.NewParser()
	p.Client = defaultHTTPClient(client)
	p.UserAgent = defaultUserAgent
	return &RSSScanner{parser: p}
}

// Name identifies the strategy inside the registry.
func (s *RSSScanner) Name() string {
	return "rss"
}

// Scan fetches every feed concurrently and returns items that carry a link.
func (s *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no feeds provided for site %s", req.SiteName)
	}

	return scanCategories(ctx, req.Categories, func(ctx context.Context, cat scanner.Category) ([]domain.Article, error) {
		feed, err := s.parser.ParseURLWithContext(cat.URL, ctx)
		if err != nil {
			return nil, fmt.Errorf("parse feed %s: %w", cat.URL, err)
		}

		articles := make([]domain.Article, 0, len(feed.Items))
		for _, item := range feed.Items {
			if item == nil || item.Link == "" {
				continue
			}
			articles = append(articles, newArticle(item.Title, item.Link, sourceName(req.SiteName, cat.Name), itemTime(item)))
		}
		return articles, nil
	})
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}
