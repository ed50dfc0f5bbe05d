package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrollOffsets(t *testing.T) {
	tests := []struct {
		name   string
		height int64
		step   int
		max    int
		want   []int64
	}{
		{name: "exact multiple", height: 920, step: 460, max: 10, want: []int64{0, 460}},
		{name: "remainder gets a segment", height: 1000, step: 460, max: 10, want: []int64{0, 460, 920}},
		{name: "empty page", height: 0, step: 460, max: 10, want: []int64{0}},
		{name: "capped", height: 10000, step: 460, max: 3, want: []int64{0, 460, 920}},
		{name: "invalid step uses default", height: 500, step: 0, max: 10, want: []int64{0, 460}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scrollOffsets(tt.height, tt.step, tt.max))
		})
	}
}

func TestSegmentPath(t *testing.T) {
	assert.Equal(t, filepath.Join("imgs", "abc_3.png"), segmentPath("imgs", "abc", 3))
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, 1750, opts.ViewportWidth)
	assert.Equal(t, 1080, opts.ViewportHeight)
	assert.Equal(t, 460, opts.ScrollStep)
	assert.NotNil(t, opts.Logger)
}

func TestCaptureChartRequiresURL(t *testing.T) {
	_, err := NewChrome(Options{}).CaptureChart(context.Background(), "ws://127.0.0.1:1", filepath.Join(t.TempDir(), "chart.png"))
	require.Error(t, err)
}

func TestCaptureArticleUnreachableEndpoint(t *testing.T) {
	dir := t.TempDir()
	c := NewChrome(Options{CaptureTimeout: 2 * time.Second, SettleDelay: 0})

	images, err := c.CaptureArticle(context.Background(), "https://example.com", "ws://127.0.0.1:1/devtools/browser/none", dir)
	require.Error(t, err)
	assert.Empty(t, images)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}
