package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RecommendationKind separates ensemble opinions from the reconciled advice.
type RecommendationKind string

const (
	KindOpinion RecommendationKind = "opinion"
	KindFinal   RecommendationKind = "final"
)

// Zone is a closed price range.
type Zone struct {
	Min Price `json:"min"`
	Max Price `json:"max"`
}

// Valid reports whether both bounds are set and ordered.
func (z Zone) Valid() bool {
	return z.Min > 0 && z.Max > 0 && z.Min <= z.Max
}

// Price accepts JSON numbers as well as numeric strings such as "62,000" or "$61500".
type Price float64

// UnmarshalJSON implements json.Unmarshaler.
func (p *Price) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*p = Price(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("price: %w", err)
	}

	cleaned := strings.NewReplacer(",", "", "$", "", " ", "").Replace(strings.TrimSpace(s))
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return fmt.Errorf("price %q: %w", s, err)
	}
	*p = Price(v)
	return nil
}

// Recommendation is structured trading advice.
type Recommendation struct {
	RunID       string             `json:"run_id,omitempty"`
	Kind        RecommendationKind `json:"kind"`
	Member      int                `json:"member"`
	BuyZone     Zone               `json:"buy_zone"`
	SellZone    Zone               `json:"sell_zone"`
	StopLoss    Zone               `json:"stop_loss"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// Empty reports whether the recommendation is the explicit "no advice" value.
func (r Recommendation) Empty() bool {
	return r.GeneratedAt.IsZero()
}

// Validate checks that every zone is a usable range.
func (r Recommendation) Validate() error {
	switch {
	case !r.BuyZone.Valid():
		return fmt.Errorf("invalid buy zone %v-%v", r.BuyZone.Min, r.BuyZone.Max)
	case !r.SellZone.Valid():
		return fmt.Errorf("invalid sell zone %v-%v", r.SellZone.Min, r.SellZone.Max)
	case !r.StopLoss.Valid():
		return fmt.Errorf("invalid stop loss zone %v-%v", r.StopLoss.Min, r.StopLoss.Max)
	}
	return nil
}

// Diagnostic is the out-of-band record of a call that exhausted its attempts.
type Diagnostic struct {
	Stage      string    `json:"stage"`
	Reason     string    `json:"reason"`
	Attempts   int       `json:"attempts"`
	Status     int       `json:"status"`
	Error      string    `json:"error,omitempty"`
	Body       string    `json:"body"`
	CapturedAt time.Time `json:"captured_at"`
}
