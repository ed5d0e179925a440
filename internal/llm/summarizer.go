package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"news-digest/internal/chunker"
	"news-digest/internal/logger"
	"news-digest/internal/retry"
)

// Unavailable is returned in place of a summary when generation failed.
// It is ordinary data: callers compare against it instead of handling an error.
const Unavailable = "Error: LLM call failed"

const (
	DefaultMaxChars = 32768
	DefaultMarker   = "Title:"
)

// IsUnavailable reports whether s is the failure sentinel.
func IsUnavailable(s string) bool {
	return s == Unavailable
}

// Escape percent-encodes every byte outside [A-Za-z0-9_.~-], spaces included.
func Escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// SummaryClient turns a prompt into generated text. Oversized prompts are split into
// per-document sections and reduced pairwise; failed calls follow a retry Policy.
type SummaryClient struct {
	backend  Backend
	maxChars int
	marker   string
	limiter  *rate.Limiter
	policy   retry.Policy
	sleep    retry.SleepFunc
	log      *slog.Logger
}

// ClientOption configures a SummaryClient.
type ClientOption func(*SummaryClient)

// WithMaxChars sets the prompt ceiling in characters.
func WithMaxChars(n int) ClientOption {
	return func(c *SummaryClient) {
		c.maxChars = n
	}
}

// WithMarker sets the delimiter that precedes each document section.
func WithMarker(marker string) ClientOption {
	return func(c *SummaryClient) {
		c.marker = marker
	}
}

// WithCallDelay spaces backend calls at least d apart. Zero disables spacing.
// The delay is a minimum gap between calls, not a sleep before each one: a retry
// issued after a cooldown or error delay longer than d goes out immediately.
func WithCallDelay(d time.Duration) ClientOption {
	return func(c *SummaryClient) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithPolicy sets the retry policy.
func WithPolicy(p retry.Policy) ClientOption {
	return func(c *SummaryClient) {
		c.policy = p
	}
}

// WithSleep replaces the cooldown sleeper (tests).
func WithSleep(fn retry.SleepFunc) ClientOption {
	return func(c *SummaryClient) {
		c.sleep = fn
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *SummaryClient) {
		c.log = log
	}
}

func NewSummaryClient(backend Backend, opts ...ClientOption) *SummaryClient {
	c := &SummaryClient{
		backend:  backend,
		maxChars: DefaultMaxChars,
		marker:   DefaultMarker,
		limiter:  rate.NewLimiter(rate.Every(5*time.Second), 1),
		policy:   retry.DefaultPolicy(),
		sleep:    retry.Sleep,
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send returns the generated text for prompt, or Unavailable.
//
// A prompt over the ceiling is split at the section marker: the text before the first
// marker is a preamble repeated in front of every sub-request, the sections are halved,
// each half is summarized through Send, and the two results are merged by one more call.
// Every recursive call carries strictly fewer sections. A prompt that cannot be split
// any further is truncated to the ceiling.
func (c *SummaryClient) Send(ctx context.Context, prompt string) string {
	size := chunker.Length(prompt)
	if size <= c.maxChars {
		return c.call(ctx, prompt)
	}

	preamble, sections := chunker.SplitSections(prompt, c.marker)
	if len(sections) < 2 {
		c.log.Warn("oversized prompt has no sections to split; truncating", "chars", size, "max_chars", c.maxChars)
		return c.call(ctx, chunker.Truncate(prompt, c.maxChars))
	}

	c.log.Info("splitting oversized prompt", "chars", size, "sections", len(sections))
	first, second := chunker.Bisect(sections)

	firstSummary := c.Send(ctx, chunker.Join(preamble, first))
	if IsUnavailable(firstSummary) {
		return Unavailable
	}
	secondSummary := c.Send(ctx, chunker.Join(preamble, second))
	if IsUnavailable(secondSummary) {
		return Unavailable
	}

	merged := preamble + firstSummary + "\n" + secondSummary
	// The merged prompt is not split again: it holds summaries, not sections.
	if chunker.Length(merged) > c.maxChars {
		c.log.Warn("merged prompt exceeds ceiling; truncating", "chars", chunker.Length(merged))
		merged = chunker.Truncate(merged, c.maxChars)
	}
	return c.call(ctx, merged)
}

// call sends one prompt, retrying per policy.
func (c *SummaryClient) call(ctx context.Context, prompt string) string {
	escaped := Escape(prompt)
	var (
		cooled   time.Duration
		failures int
	)
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			c.log.Warn("llm call abandoned while waiting for rate limiter", "err", err)
			return Unavailable
		}

		text, err := c.backend.Complete(ctx, escaped)
		switch {
		case err == nil:
			if text == "" {
				c.log.Warn("llm returned empty text")
				return Unavailable
			}
			return text

		case errors.Is(err, ErrNoContent):
			c.log.Warn("llm response had no content")
			return Unavailable

		case errors.Is(err, ErrRateLimited):
			if !c.policy.AllowRateLimitWait(cooled) {
				c.log.Error("rate limit wait budget exhausted", "waited", cooled.String())
				return Unavailable
			}
			c.log.Warn("rate limited; cooling down", "cooldown", c.policy.RateLimitCooldown.String())
			if err := c.sleep(ctx, c.policy.RateLimitCooldown); err != nil {
				return Unavailable
			}
			cooled += c.policy.RateLimitCooldown

		case ctx.Err() != nil:
			c.log.Warn("llm call cancelled", "err", ctx.Err())
			return Unavailable

		default:
			if failures >= c.policy.ErrorRetries {
				c.log.Error("llm call failed", "err", err, "attempts", failures+1)
				return Unavailable
			}
			failures++
			c.log.Warn("llm call failed; retrying", "err", err, "delay", c.policy.ErrorDelay.String())
			if err := c.sleep(ctx, c.policy.ErrorDelay); err != nil {
				return Unavailable
			}
		}
	}
}
