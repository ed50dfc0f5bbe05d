package retry

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketAdvisor/internal/ports"
)

type scriptedService struct {
	calls     atomic.Int32
	responses []func() (ports.Response, error)
}

func (s *scriptedService) Invoke(context.Context, ports.Prompt) (ports.Response, error) {
	n := int(s.calls.Add(1)) - 1
	if n >= len(s.responses) {
		n = len(s.responses) - 1
	}
	return s.responses[n]()
}

func ok(body string) func() (ports.Response, error) {
	return func() (ports.Response, error) { return ports.Response{Status: http.StatusOK, Body: body}, nil }
}

func status(code int, body string) func() (ports.Response, error) {
	return func() (ports.Response, error) { return ports.Response{Status: code, Body: body}, nil }
}

func transport() func() (ports.Response, error) {
	return func() (ports.Response, error) { return ports.Response{}, errors.New("connection refused") }
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestCallSucceedsOnLastAttempt(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 10, 19, 0, 30, 0, 0, time.UTC)
	svc := &scriptedService{responses: []func() (ports.Response, error){
		transport(),
		status(http.StatusServiceUnavailable, "overloaded"),
		ok("fine"),
	}}

	var hooked []int
	caller := NewCaller(svc, DefaultPolicy(), Text,
		WithSleep(noSleep),
		WithClock(func() time.Time { return fixed }),
		WithAttemptHook(func(attempt int, _ error) { hooked = append(hooked, attempt) }),
	)

	out := caller.Call(context.Background(), ports.Prompt{Text: "hi"})
	require.True(t, out.OK())
	assert.Equal(t, "fine", out.Value)
	assert.Equal(t, DefaultMaxAttempts, out.Attempts)
	assert.Equal(t, fixed, out.GeneratedAt)
	assert.EqualValues(t, DefaultMaxAttempts, svc.calls.Load())
	assert.Equal(t, []int{1, 2, 3}, hooked)
}

func TestCallExhaustsAttempts(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{responses: []func() (ports.Response, error){status(http.StatusInternalServerError, "upstream down")}}

	var slept []time.Duration
	caller := NewCaller(svc, Policy{MaxAttempts: 4, BackoffDelay: 500 * time.Millisecond}, Text,
		WithSleep(func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}),
	)

	out := caller.Call(context.Background(), ports.Prompt{})
	require.False(t, out.OK())
	assert.Equal(t, 4, out.Attempts)
	assert.EqualValues(t, 4, svc.calls.Load())
	assert.Equal(t, ReasonTransport, out.Failure.Reason)
	assert.Equal(t, http.StatusInternalServerError, out.Failure.Status)
	assert.Equal(t, "upstream down", out.Failure.LastBody)
	assert.True(t, out.GeneratedAt.IsZero())
	// Backoff sits between attempts only.
	assert.Len(t, slept, 3)
	for _, d := range slept {
		assert.Equal(t, 500*time.Millisecond, d)
	}
}

func TestMalformedBodyConsumesAttempt(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{responses: []func() (ports.Response, error){
		ok("not json at all"),
		ok("```json\n[\"https://a.example/1\"]\n```"),
	}}

	caller := NewCaller(svc, DefaultPolicy(), JSON[[]string], WithSleep(noSleep))
	out := caller.Call(context.Background(), ports.Prompt{})
	require.True(t, out.OK())
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, []string{"https://a.example/1"}, out.Value)
}

func TestParseFailureIsTyped(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{responses: []func() (ports.Response, error){ok("{broken")}}
	caller := NewCaller(svc, Policy{MaxAttempts: 2}, JSON[map[string]any], WithSleep(noSleep))

	out := caller.Call(context.Background(), ports.Prompt{})
	require.False(t, out.OK())
	assert.Equal(t, ReasonParse, out.Failure.Reason)
	assert.Equal(t, "{broken", out.Failure.LastBody)

	var failure *Failure
	require.ErrorAs(t, error(out.Failure), &failure)
}

func TestRawEnvelopeKeptWhenBodyMissing(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{responses: []func() (ports.Response, error){
		func() (ports.Response, error) {
			return ports.Response{Status: http.StatusOK, Raw: `{"candidates":[]}`}, nil
		},
	}}
	out := NewCaller(svc, SingleAttempt(), Text).Call(context.Background(), ports.Prompt{})
	require.False(t, out.OK())
	assert.Equal(t, 1, out.Attempts)
	assert.ErrorIs(t, out.Failure, ErrEmptyBody)
	assert.Equal(t, `{"candidates":[]}`, out.Failure.LastBody)
}

func TestCanceledContextStopsBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	svc := &scriptedService{responses: []func() (ports.Response, error){
		func() (ports.Response, error) {
			cancel()
			return ports.Response{Status: http.StatusBadGateway}, nil
		},
	}}

	out := NewCaller(svc, Policy{MaxAttempts: 5, BackoffDelay: time.Hour}, Text).Call(ctx, ports.Prompt{})
	require.False(t, out.OK())
	assert.Equal(t, ReasonCanceled, out.Failure.Reason)
	assert.Equal(t, 1, out.Attempts)
	assert.EqualValues(t, 1, svc.calls.Load())
}

func TestInvalidPolicyClampsToOneAttempt(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{responses: []func() (ports.Response, error){transport()}}
	out := NewCaller(svc, Policy{MaxAttempts: 0}, Text).Call(context.Background(), ports.Prompt{})
	assert.Equal(t, 1, out.Attempts)
	assert.EqualValues(t, 1, svc.calls.Load())
}

func TestStripFence(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"[1,2]":                     "[1,2]",
		"```json\n[1,2]\n```":       "[1,2]",
		"```\n{\"a\":1}\n```":       `{"a":1}`,
		"  ```json[1]```  ":         "[1]",
		"```JSON\n{\"b\":2}\n```\n": `{"b":2}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, StripFence(in), "input %q", in)
	}
}
