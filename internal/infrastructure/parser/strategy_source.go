package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"MarketAdvisor/internal/config"
	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/ports"
	"MarketAdvisor/internal/scanner"
)

// SiteSource implements ports.NewsSource for one configured site via its scanner strategy.
type SiteSource struct {
	site     config.SiteConfig
	strategy scanner.Scanner
	logger   *slog.Logger
}

var _ ports.NewsSource = (*SiteSource)(nil)

// NewSources resolves the scanner of every configured site.
func NewSources(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) ([]ports.NewsSource, error) {
	if reg == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	sources := make([]ports.NewsSource, 0, len(sites))
	for _, site := range sites {
		strategy, err := reg.Resolve(site.Scanner)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", site.Name, err)
		}
		sources = append(sources, &SiteSource{site: site, strategy: strategy, logger: log})
	}
	return sources, nil
}

// Name returns the configured site name.
func (s *SiteSource) Name() string {
	return s.site.Name
}

// Fetch executes the site's scanner. Articles are returned even when some categories failed.
func (s *SiteSource) Fetch(ctx context.Context, day time.Time) ([]domain.Article, error) {
	s.debug("process site", "site", s.site.Name, "scanner", s.site.Scanner, "categories", len(s.site.Categories), "day", day.Format("2006-01-02"))

	req := scanner.Request{
		Day:        day,
		SiteName:   s.site.Name,
		Options:    s.site.Options,
		Categories: toScannerCategories(s.site.Categories),
	}

	results, err := s.strategy.Scan(ctx, req)
	for i := range results {
		if results[i].Source == "" {
			results[i].Source = s.site.Name
		}
	}
	s.debug("site produced articles", "site", s.site.Name, "count", len(results))
	if err != nil {
		return results, fmt.Errorf("scan site %s: %w", s.site.Name, err)
	}
	return results, nil
}

func toScannerCategories(cfg []config.CategoryConfig) []scanner.Category {
	categories := make([]scanner.Category, 0, len(cfg))
	for _, cat := range cfg {
		categories = append(categories, scanner.Category{
			Name: cat.Name,
			URL:  cat.URL,
		})
	}
	return categories
}

func (s *SiteSource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
