package usecase

import (
	"context"
	"regexp"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/ports"
	"MarketAdvisor/internal/retry"
)

const outcomeSuccess = "success"

// invoke runs one retried reasoning call for stage. Exhaustion is logged,
// counted and captured as a diagnostic; the caller decides what an empty
// value means.
func invoke[T any](ctx context.Context, e *env, in StageInput, stage string, policy retry.Policy, prompt ports.Prompt, parse retry.ParseFunc[T]) retry.Outcome[T] {
	caller := retry.NewCaller(e.deps.Reasoning, policy, parse,
		retry.WithClock(e.now),
		retry.WithAttemptHook(func(attempt int, err error) {
			e.deps.Metrics.Attempt(stage)
			if err != nil {
				in.Log.Debug("reasoning attempt failed", "attempt", attempt, "error", err)
			}
		}),
	)

	out := caller.Call(ctx, prompt)
	if out.OK() {
		e.deps.Metrics.Outcome(stage, outcomeSuccess)
		return out
	}

	e.deps.Metrics.Outcome(stage, string(out.Failure.Reason))
	in.Log.Warn("reasoning call exhausted",
		"reason", out.Failure.Reason,
		"attempts", out.Failure.Attempts,
		"status", out.Failure.Status,
		"error", out.Failure.Err,
	)

	if e.deps.Diagnostics != nil {
		diag := domain.Diagnostic{
			Stage:      stage,
			Reason:     string(out.Failure.Reason),
			Attempts:   out.Failure.Attempts,
			Status:     out.Failure.Status,
			Body:       out.Failure.LastBody,
			CapturedAt: e.now(),
		}
		if out.Failure.Err != nil {
			diag.Error = out.Failure.Err.Error()
		}
		if err := e.deps.Diagnostics.Capture(ctx, diag); err != nil {
			in.Log.Warn("diagnostic capture failed", "error", err)
		}
	}
	return out
}

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// parseLinks decodes a JSON array of links.
func parseLinks(body string) ([]string, error) {
	return retry.JSON[[]string](trailingComma.ReplaceAllString(retry.StripFence(body), "$1"))
}

// parseRecommendation decodes the buy/sell/stop-loss structure and rejects unusable zones.
func parseRecommendation(body string) (domain.Recommendation, error) {
	rec, err := retry.JSON[domain.Recommendation](trailingComma.ReplaceAllString(retry.StripFence(body), "$1"))
	if err != nil {
		return domain.Recommendation{}, err
	}
	if err := rec.Validate(); err != nil {
		return domain.Recommendation{}, err
	}
	return rec, nil
}
