package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"MarketAdvisor/internal/ports"
)

// Throttled spaces calls to a ReasoningService shared by every worker.
type Throttled struct {
	next    ports.ReasoningService
	limiter *rate.Limiter
}

var _ ports.ReasoningService = (*Throttled)(nil)

// NewThrottled allows requestsPerMinute calls with a burst of one per worker.
// A non-positive rate disables throttling.
func NewThrottled(next ports.ReasoningService, requestsPerMinute, burst int) ports.ReasoningService {
	if requestsPerMinute <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	limit := rate.Every(time.Minute / time.Duration(requestsPerMinute))
	return &Throttled{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Invoke waits for a token, then delegates. A canceled wait is a transport error.
func (t *Throttled) Invoke(ctx context.Context, prompt ports.Prompt) (ports.Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return ports.Response{}, fmt.Errorf("rate limit wait: %w", err)
	}
	return t.next.Invoke(ctx, prompt)
}
