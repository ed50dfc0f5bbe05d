package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MarketAdvisor/internal/domain"
)

func sample() domain.Recommendation {
	return domain.Recommendation{
		Kind:        domain.KindFinal,
		BuyZone:     domain.Zone{Min: 60000, Max: 61000},
		SellZone:    domain.Zone{Min: 65000, Max: 66000},
		StopLoss:    domain.Zone{Min: 58000, Max: 58500},
		GeneratedAt: time.Date(2026, 10, 19, 0, 31, 0, 0, time.UTC),
	}
}

func TestPublishRecommendation(t *testing.T) {
	t.Parallel()

	var gotPath, gotText, gotChat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier("token", "42", "BTC")
	n.apiBase = srv.URL
	n.client = srv.Client()

	if err := n.PublishRecommendation(context.Background(), sample()); err != nil {
		t.Fatalf("publish returned error: %v", err)
	}
	if gotPath != "/bottoken/sendMessage" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotChat != "42" {
		t.Fatalf("unexpected chat id: %s", gotChat)
	}
	if !strings.Contains(gotText, "Buy zone: `60000.00 - 61000.00`") {
		t.Fatalf("unexpected text: %s", gotText)
	}
}

func TestPublishRecommendationErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewNotifier("token", "42", "BTC")
	n.apiBase = srv.URL
	if err := n.PublishRecommendation(context.Background(), sample()); err == nil {
		t.Fatalf("expected error for bad request")
	}
}

func TestPublishRecommendationMisconfigured(t *testing.T) {
	t.Parallel()

	n := NewNotifier("", "", "")
	if n.Configured() {
		t.Fatalf("notifier without token must not be configured")
	}
	if err := n.PublishRecommendation(context.Background(), sample()); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}

func TestFormatEmptyRecommendation(t *testing.T) {
	t.Parallel()

	text := FormatRecommendation("", domain.Recommendation{})
	if !strings.Contains(text, "BTC") || !strings.Contains(text, "No recommendation") {
		t.Fatalf("unexpected text: %s", text)
	}
}
