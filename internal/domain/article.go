package domain

import "time"

// Article is a news candidate fetched from a configured source.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// SnapshotEntry holds the visual evidence captured for one accepted link.
// An empty Images list means the capture failed for that URL.
type SnapshotEntry struct {
	Position int      `json:"position"`
	URL      string   `json:"url"`
	Endpoint string   `json:"endpoint"`
	Images   []string `json:"images"`
	Error    string   `json:"error,omitempty"`
}

// HasEvidence reports whether at least one image was captured.
func (e SnapshotEntry) HasEvidence() bool {
	return len(e.Images) > 0
}

// Summary is the reasoning service's digest of one snapshot entry.
type Summary struct {
	URL         string    `json:"url"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
}

// MarketAnalysis is the single commentary produced from all summaries.
// Empty Text is the explicit "no analysis" value.
type MarketAnalysis struct {
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at,omitempty"`
}

// Empty reports whether the analysis carries no commentary.
func (a MarketAnalysis) Empty() bool {
	return a.Text == ""
}
