package parser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/scanner"
)

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) MarketAdvisor/1.0"

	// categoryConcurrency bounds parallel fetches within one site.
	categoryConcurrency = 4
)

type categoryFetch func(ctx context.Context, cat scanner.Category) ([]domain.Article, error)

// scanCategories fetches every category with bounded concurrency. A failed
// category is reported in the joined error; articles from the others are kept
// in category order.
func scanCategories(ctx context.Context, categories []scanner.Category, fetch categoryFetch) ([]domain.Article, error) {
	results := make([][]domain.Article, len(categories))
	errs := make([]error, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(categoryConcurrency)
	for i, cat := range categories {
		g.Go(func() error {
			articles, err := fetch(gctx, cat)
			if err != nil {
				errs[i] = fmt.Errorf("category %s: %w", cat.Name, err)
				return nil
			}
			results[i] = articles
			return nil
		})
	}
	_ = g.Wait()

	var out []domain.Article
	for _, articles := range results {
		out = append(out, articles...)
	}
	return out, errors.Join(errs...)
}

func defaultHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: 20 * time.Second}
}

// articleID derives a stable identifier from the article link.
func articleID(link string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(link)).String()
}

func newArticle(title, link, source string, publishedAt time.Time) domain.Article {
	link = strings.TrimSpace(link)
	return domain.Article{
		ID:          articleID(link),
		Title:       strings.TrimSpace(title),
		Link:        link,
		Source:      source,
		PublishedAt: publishedAt.UTC(),
	}
}

func sourceName(siteName, category string) string {
	if category == "" {
		return siteName
	}
	return fmt.Sprintf("%s/%s", siteName, category)
}
