package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier sends recommendations to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	symbol   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID, symbol string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		symbol:   symbol,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Configured reports whether both token and chat are set.
func (n *Notifier) Configured() bool {
	return n != nil && n.botToken != "" && n.chatID != ""
}

// PublishRecommendation posts a Markdown message describing rec.
func (n *Notifier) PublishRecommendation(ctx context.Context, rec domain.Recommendation) error {
	if !n.Configured() || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimSuffix(n.apiBase, "/"), n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", FormatRecommendation(n.symbol, rec))
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	return nil
}

// FormatRecommendation renders rec as a Markdown message.
func FormatRecommendation(symbol string, rec domain.Recommendation) string {
	if symbol == "" {
		symbol = "BTC"
	}
	if rec.Empty() {
		return fmt.Sprintf("*%s recommendation*\nNo recommendation could be produced for this run.", symbol)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%s recommendation* (%s UTC)\n", symbol, rec.GeneratedAt.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Buy zone: `%s`\n", formatZone(rec.BuyZone))
	fmt.Fprintf(&b, "Sell zone: `%s`\n", formatZone(rec.SellZone))
	fmt.Fprintf(&b, "Stop loss: `%s`", formatZone(rec.StopLoss))
	return b.String()
}

func formatZone(z domain.Zone) string {
	return fmt.Sprintf("%.2f - %.2f", float64(z.Min), float64(z.Max))
}
