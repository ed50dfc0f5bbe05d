package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/scanner"
)

// Selector defaults for listing pages; each is overridable through site options.
const (
	defaultItemSelector  = "article"
	defaultTitleSelector = "h2, h3"
	defaultLinkSelector  = "a[href]"
	defaultDateSelector  = "time"
	defaultDateAttr      = "datetime"
)

// HTMLScanner extracts article links from listing pages using CSS selectors.
type HTMLScanner struct {
	client *http.Client
}

// NewHTMLScanner wires an HTTP client.
func NewHTMLScanner(client *http.Client) *HTMLScanner {
	return &HTMLScanner{client: defaultHTTPClient(client)}
}

// Name identifies the strategy inside the registry.
func (h *HTMLScanner) Name() string {
	return "html"
}

type selectors struct {
	item, title, link, date, dateAttr, dateLayout string
}

func selectorsFrom(req scanner.Request) selectors {
	return selectors{
		item:       req.Option("item", defaultItemSelector),
		title:      req.Option("title", defaultTitleSelector),
		link:       req.Option("link", defaultLinkSelector),
		date:       req.Option("date", defaultDateSelector),
		dateAttr:   req.Option("dateAttr", defaultDateAttr),
		dateLayout: req.Option("dateLayout", time.RFC3339),
	}
}

// Scan walks each listing page and returns the entries found on it.
func (h *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no categories provided for site %s", req.SiteName)
	}
	sel := selectorsFrom(req)

	return scanCategories(ctx, req.Categories, func(ctx context.Context, cat scanner.Category) ([]domain.Article, error) {
		base, err := url.Parse(cat.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid category url %s: %w", cat.URL, err)
		}
		doc, err := h.fetchDocument(ctx, cat.URL)
		if err != nil {
			return nil, err
		}
		return extractEntries(doc, base, sel, sourceName(req.SiteName, cat.Name)), nil
	})
}

func (h *HTMLScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func extractEntries(doc *goquery.Document, base *url.URL, sel selectors, source string) []domain.Article {
	var (
		collected []domain.Article
		seen      = map[string]struct{}{}
	)

	doc.Find(sel.item).Each(func(_ int, item *goquery.Selection) {
		article, ok := parseEntry(item, base, sel, source)
		if !ok {
			return
		}
		if _, dup := seen[article.Link]; dup {
			return
		}
		seen[article.Link] = struct{}{}
		collected = append(collected, article)
	})

	return collected
}

func parseEntry(item *goquery.Selection, base *url.URL, sel selectors, source string) (domain.Article, bool) {
	href, exists := item.Find(sel.link).First().Attr("href")
	if !exists || strings.TrimSpace(href) == "" {
		return domain.Article{}, false
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return domain.Article{}, false
	}
	link := base.ResolveReference(ref).String()

	title := strings.TrimSpace(item.Find(sel.title).First().Text())
	if title == "" {
		title = strings.TrimSpace(item.Find(sel.link).First().Text())
	}

	var publishedAt time.Time
	dateNode := item.Find(sel.date).First()
	dateText, ok := dateNode.Attr(sel.dateAttr)
	if !ok {
		dateText = dateNode.Text()
	}
	if parsed, err := time.Parse(sel.dateLayout, strings.TrimSpace(dateText)); err == nil {
		publishedAt = parsed
	}

	return newArticle(title, link, source, publishedAt), true
}
