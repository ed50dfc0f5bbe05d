// Package browser captures chart and article screenshots through remote Chrome DevTools endpoints.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"MarketAdvisor/internal/ports"
)

const (
	defaultViewportWidth  = 1750
	defaultViewportHeight = 1080
	defaultScrollStep     = 460
	defaultSettleDelay    = 4 * time.Second
	defaultCaptureTimeout = 3 * time.Minute
	defaultMaxSegments    = 40
	scrollPause           = time.Second
	chartInteractionPause = time.Second
)

// dismissOverlays clicks the chart fullscreen toggle and rejects the cookie
// banner when present. Missing elements are ignored.
const dismissOverlays = `(() => {
  const fullscreen = document.querySelector('.chart-fullscreen-icon');
  if (fullscreen) fullscreen.click();
  const reject = document.getElementById('onetrust-reject-all-handler');
  if (reject) reject.click();
  return true;
})()`

// Options tunes capture geometry and pacing.
type Options struct {
	ChartURL       string
	ViewportWidth  int
	ViewportHeight int
	ScrollStep     int
	MaxSegments    int
	SettleDelay    time.Duration
	CaptureTimeout time.Duration
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = defaultViewportWidth
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = defaultViewportHeight
	}
	if o.ScrollStep <= 0 {
		o.ScrollStep = defaultScrollStep
	}
	if o.MaxSegments <= 0 {
		o.MaxSegments = defaultMaxSegments
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.CaptureTimeout <= 0 {
		o.CaptureTimeout = defaultCaptureTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Chrome implements ports.Browser with chromedp remote allocators.
type Chrome struct {
	opts Options
}

var _ ports.Browser = (*Chrome)(nil)

// NewChrome builds a browser driver; zero option values fall back to defaults.
func NewChrome(opts Options) *Chrome {
	return &Chrome{opts: opts.withDefaults()}
}

// CaptureChart opens the market chart on endpoint and saves one screenshot to outputPath.
func (c *Chrome) CaptureChart(ctx context.Context, endpoint, outputPath string) (string, error) {
	if c.opts.ChartURL == "" {
		return "", errors.New("chart url is not configured")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("create chart dir: %w", err)
	}

	bctx, cancel := c.session(ctx, endpoint)
	defer cancel()

	var shot []byte
	err := chromedp.Run(bctx,
		chromedp.EmulateViewport(int64(c.opts.ViewportWidth), int64(c.opts.ViewportHeight)),
		chromedp.Navigate(c.opts.ChartURL),
		chromedp.Sleep(c.opts.SettleDelay),
		chromedp.Evaluate(dismissOverlays, nil),
		chromedp.Sleep(chartInteractionPause),
		chromedp.CaptureScreenshot(&shot),
	)
	if err != nil {
		return "", fmt.Errorf("capture chart via %s: %w", endpoint, err)
	}

	if err := os.WriteFile(outputPath, shot, 0o644); err != nil {
		return "", fmt.Errorf("write chart screenshot: %w", err)
	}
	c.opts.Logger.Debug("chart captured", "endpoint", endpoint, "path", outputPath)
	return outputPath, nil
}

// CaptureArticle scrolls through url in fixed steps and saves one PNG per viewport
// segment as <outputDir>/<uuid>_<n>.png. Partial captures are removed on failure.
func (c *Chrome) CaptureArticle(ctx context.Context, url, endpoint, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}

	bctx, cancel := c.session(ctx, endpoint)
	defer cancel()

	var height int64
	err := chromedp.Run(bctx,
		chromedp.EmulateViewport(int64(c.opts.ViewportWidth), int64(c.opts.ViewportHeight)),
		chromedp.Navigate(url),
		chromedp.Sleep(c.opts.SettleDelay),
		chromedp.Evaluate(`document.body.scrollHeight`, &height),
	)
	if err != nil {
		return nil, fmt.Errorf("open %s via %s: %w", url, endpoint, err)
	}

	prefix := uuid.NewString()
	var images []string
	for i, offset := range scrollOffsets(height, c.opts.ScrollStep, c.opts.MaxSegments) {
		var shot []byte
		err := chromedp.Run(bctx,
			chromedp.Evaluate(fmt.Sprintf("window.scrollTo(0, %d)", offset), nil),
			chromedp.Sleep(scrollPause),
			chromedp.CaptureScreenshot(&shot),
		)
		if err == nil {
			path := segmentPath(outputDir, prefix, i+1)
			if err = os.WriteFile(path, shot, 0o644); err == nil {
				images = append(images, path)
				continue
			}
		}
		removeAll(images)
		return nil, fmt.Errorf("capture %s segment %d: %w", url, i+1, err)
	}

	c.opts.Logger.Debug("article captured", "url", url, "endpoint", endpoint, "segments", len(images))
	return images, nil
}

func (c *Chrome) session(ctx context.Context, endpoint string) (context.Context, context.CancelFunc) {
	tctx, cancelTimeout := context.WithTimeout(ctx, c.opts.CaptureTimeout)
	actx, cancelAlloc := chromedp.NewRemoteAllocator(tctx, endpoint)
	bctx, cancelBrowser := chromedp.NewContext(actx)
	return bctx, func() {
		cancelBrowser()
		cancelAlloc()
		cancelTimeout()
	}
}

// scrollOffsets lists the vertical offsets to screenshot. A page always yields
// at least one segment; at most maxSegments are returned.
func scrollOffsets(totalHeight int64, step, maxSegments int) []int64 {
	if step <= 0 {
		step = defaultScrollStep
	}
	if totalHeight <= 0 {
		return []int64{0}
	}
	var offsets []int64
	for off := int64(0); off < totalHeight && len(offsets) < maxSegments; off += int64(step) {
		offsets = append(offsets, off)
	}
	return offsets
}

func segmentPath(dir, prefix string, part int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%d.png", prefix, part))
}

func removeAll(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
