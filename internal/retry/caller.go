// Package retry wraps reasoning-service calls with bounded, fixed-interval retries.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"MarketAdvisor/internal/ports"
)

const (
	DefaultMaxAttempts  = 3
	DefaultBackoffDelay = 500 * time.Millisecond
)

// ErrEmptyBody is returned by parsers that received no content.
var ErrEmptyBody = errors.New("empty response body")

// Policy bounds a Caller. The backoff is fixed, not exponential.
type Policy struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	BackoffDelay time.Duration `yaml:"backoffDelay"`
}

// DefaultPolicy returns three attempts spaced by 500ms.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BackoffDelay: DefaultBackoffDelay}
}

// SingleAttempt returns a policy that never retries.
func SingleAttempt() Policy {
	return Policy{MaxAttempts: 1}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BackoffDelay < 0 {
		p.BackoffDelay = 0
	}
	return p
}

// Reason classifies a failed attempt.
type Reason string

const (
	ReasonTransport Reason = "transport"
	ReasonParse     Reason = "parse"
	ReasonCanceled  Reason = "canceled"
)

// Failure is the terminal error of a call whose attempts were exhausted.
type Failure struct {
	Reason   Reason
	Status   int
	Attempts int
	// LastBody is the raw body of the last response, for diagnostic capture.
	LastBody string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure after %d attempt(s) (status %d): %v", f.Reason, f.Attempts, f.Status, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Outcome is the result of one Call: a parsed value or a terminal Failure.
type Outcome[T any] struct {
	Value       T
	Attempts    int
	GeneratedAt time.Time
	Failure     *Failure
}

// OK reports success.
func (o Outcome[T]) OK() bool {
	return o.Failure == nil
}

// ParseFunc decodes a successful response body into the expected shape.
type ParseFunc[T any] func(body string) (T, error)

// Option customizes a Caller.
type Option func(*options)

type options struct {
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	onTry func(attempt int, err error)
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSleep overrides how the backoff delay is waited.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = sleep }
}

// WithAttemptHook is called after every attempt; err is nil on success.
func WithAttemptHook(hook func(attempt int, err error)) Option {
	return func(o *options) { o.onTry = hook }
}

// Caller invokes a ReasoningService under a Policy and parses the result.
type Caller[T any] struct {
	service ports.ReasoningService
	policy  Policy
	parse   ParseFunc[T]
	opts    options
}

// NewCaller builds a Caller; an invalid policy is clamped to a single attempt.
func NewCaller[T any](service ports.ReasoningService, policy Policy, parse ParseFunc[T], opts ...Option) *Caller[T] {
	o := options{now: time.Now, sleep: sleepContext}
	for _, opt := range opts {
		opt(&o)
	}
	return &Caller[T]{service: service, policy: policy.normalized(), parse: parse, opts: o}
}

// Call attempts the prompt until it parses or MaxAttempts is reached. Transport
// errors, non-2xx statuses and unparsable bodies all consume one attempt.
func (c *Caller[T]) Call(ctx context.Context, prompt ports.Prompt) Outcome[T] {
	var last *Failure

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		value, failure := c.attempt(ctx, prompt)
		if c.opts.onTry != nil {
			var err error
			if failure != nil {
				err = failure
			}
			c.opts.onTry(attempt, err)
		}

		if failure == nil {
			return Outcome[T]{Value: value, Attempts: attempt, GeneratedAt: c.opts.now()}
		}

		failure.Attempts = attempt
		last = failure

		if attempt == c.policy.MaxAttempts {
			break
		}
		if err := c.opts.sleep(ctx, c.policy.BackoffDelay); err != nil {
			last.Reason = ReasonCanceled
			last.Err = err
			break
		}
	}

	return Outcome[T]{Attempts: last.Attempts, Failure: last}
}

func (c *Caller[T]) attempt(ctx context.Context, prompt ports.Prompt) (T, *Failure) {
	var zero T

	resp, err := c.service.Invoke(ctx, prompt)
	if err != nil {
		reason := ReasonTransport
		if ctx.Err() != nil {
			reason = ReasonCanceled
		}
		return zero, &Failure{Reason: reason, Status: resp.Status, LastBody: rawBody(resp), Err: err}
	}
	if !resp.Success() {
		return zero, &Failure{
			Reason:   ReasonTransport,
			Status:   resp.Status,
			LastBody: rawBody(resp),
			Err:      fmt.Errorf("unexpected status %d", resp.Status),
		}
	}

	value, err := c.parse(resp.Body)
	if err != nil {
		return zero, &Failure{Reason: ReasonParse, Status: resp.Status, LastBody: rawBody(resp), Err: err}
	}
	return value, nil
}

func rawBody(resp ports.Response) string {
	if resp.Body != "" {
		return resp.Body
	}
	return resp.Raw
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Text accepts any non-blank body.
func Text(body string) (string, error) {
	text := strings.TrimSpace(body)
	if text == "" {
		return "", ErrEmptyBody
	}
	return text, nil
}
