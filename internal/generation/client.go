package generation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fpang/claw-cam/internal/dataurl"
	"github.com/fpang/claw-cam/internal/metrics"
	"github.com/fpang/claw-cam/internal/retry"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultMaxConcurrent is the global ceiling on in-flight generations.
const DefaultMaxConcurrent = 2

// errAttemptTimeout is the cause attached to an attempt's deadline so it can
// be told apart from caller cancellation.
var errAttemptTimeout = errors.New("generation attempt deadline exceeded")

// Options tunes a Client. Zero values take the defaults.
type Options struct {
	// Timeout bounds each provider attempt (default DefaultTimeout).
	Timeout time.Duration
	// MaxConcurrent caps simultaneous generations (default DefaultMaxConcurrent).
	MaxConcurrent int64
	// Retry is the per-key retry policy (default retry.DefaultPolicy).
	Retry retry.Policy
	// RequestsPerMinute paces provider attempts; 0 disables pacing.
	RequestsPerMinute int
}

// Client generates images through a registered set of providers.
type Client struct {
	providers map[string]Provider
	keys      *KeyPool
	sem       *semaphore.Weighted
	limiter   *rate.Limiter
	timeout   time.Duration
	policy    retry.Policy
}

// NewClient creates a Client that draws keys from keys and dispatches to
// providers by name.
func NewClient(keys *KeyPool, opts Options, providers ...Provider) *Client {
	if keys == nil {
		keys = NewKeyPool(nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = retry.DefaultPolicy
	}

	c := &Client{
		providers: make(map[string]Provider, len(providers)),
		keys:      keys,
		sem:       semaphore.NewWeighted(opts.MaxConcurrent),
		timeout:   opts.Timeout,
		policy:    opts.Retry,
	}
	if opts.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	for _, p := range providers {
		c.providers[p.Name()] = p
	}
	return c
}

// Keys returns the pool the client rotates through.
func (c *Client) Keys() *KeyPool {
	return c.keys
}

// Providers returns the registered provider names, sorted.
func (c *Client) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckConfig reports a ConfigError if req cannot be attempted at all: an
// unknown provider, a provider-specific configuration gap, or an empty key
// pool for a provider that needs keys. It makes no network calls.
func (c *Client) CheckConfig(req Request) error {
	p, ok := c.providers[req.Provider]
	if !ok {
		return configErrorf("unknown provider %q", req.Provider)
	}
	if err := p.Check(req); err != nil {
		return err
	}
	if p.RequiresKey() && c.keys.Len() == 0 {
		return configErrorf("no API key configured for provider %q", req.Provider)
	}
	return nil
}

// Generate runs req to completion and returns the generated image as a
// data URL. Keys are tried starting at the pool cursor; each key gets the
// retry policy's attempts for provider errors and invalid responses, a
// rate-limited key is skipped at once. Timeouts and cancellation end the call
// without further attempts. Calls beyond the concurrency ceiling queue in
// arrival order.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if err := c.CheckConfig(req); err != nil {
		return "", err
	}
	if req.Model == "" {
		req.Model = DefaultModel
	}
	p := c.providers[req.Provider]

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", newError(KindCancelled, "cancelled while queued", context.Cause(ctx))
	}
	defer c.sem.Release(1)

	keys := []poolKey{{index: -1}}
	if p.RequiresKey() {
		keys = c.keys.rotation()
		if len(keys) == 0 {
			return "", configErrorf("no API key configured for provider %q", req.Provider)
		}
	}

	var lastErr error
	allRateLimited := true
	for _, k := range keys {
		out, err := c.tryKey(ctx, p, k, req)
		if err == nil {
			if k.index >= 0 {
				c.keys.markSuccess(k)
			}
			return out, nil
		}

		switch KindOf(err) {
		case KindCancelled, KindTimeout, KindConfig:
			return "", err
		case KindRateLimited:
			log.Warn().Str("provider", p.Name()).Int("keyIndex", k.index).Msg("Key rate limited, rotating to next key")
		default:
			allRateLimited = false
			log.Warn().Err(err).Str("provider", p.Name()).Int("keyIndex", k.index).Msg("Key exhausted its retries, rotating to next key")
		}
		lastErr = err
	}

	if !p.RequiresKey() {
		return "", lastErr
	}
	kind := KindOf(lastErr)
	if allRateLimited {
		kind = KindRateLimited
	}
	return "", &Error{
		Kind:    kind,
		Message: fmt.Sprintf("all %d API keys failed", len(keys)),
		Err:     fmt.Errorf("%w: %w", ErrPoolExhausted, lastErr),
	}
}

// tryKey runs the retry policy against one key.
func (c *Client) tryKey(ctx context.Context, p Provider, k poolKey, req Request) (string, error) {
	var out string
	policy := c.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Debug().Err(err).Int("attempt", attempt).Dur("backoff", delay).Int("keyIndex", k.index).Msg("Retrying generation")
	}

	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		result, err := c.attempt(ctx, p, k, req, attempt)
		if err != nil {
			switch KindOf(err) {
			case KindRateLimited, KindTimeout, KindCancelled, KindConfig:
				return retry.Stop(err)
			}
			return err
		}
		out = result
		return nil
	})
	if err != nil && KindOf(err) == KindUnknown {
		// retry.Do returns the context's cause when cancelled between attempts.
		err = newError(KindCancelled, "generation cancelled", err)
	}
	return out, err
}

// attempt is one provider round trip bounded by the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, p Provider, k poolKey, req Request, attempt int) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", newError(KindCancelled, "cancelled while pacing", err)
		}
	}

	actx, cancel := context.WithTimeoutCause(ctx, c.timeout, errAttemptTimeout)
	defer cancel()

	start := time.Now()
	raw, err := p.Generate(actx, k.key, req)
	elapsed := time.Since(start)

	var out string
	switch {
	case err == nil:
		normalized, ok := dataurl.Normalize(raw)
		if ok && dataurl.IsValidOutput(normalized) {
			out = normalized
		} else {
			err = &Error{Kind: KindInvalidResponse, Message: "provider response is not a usable image"}
		}
	case ctx.Err() != nil:
		err = newError(KindCancelled, "generation cancelled", context.Cause(ctx))
	case errors.Is(context.Cause(actx), errAttemptTimeout):
		err = newError(KindTimeout, fmt.Sprintf("generation timed out after %s", c.timeout), err)
	default:
		err = Classify(err)
	}

	outcome := "success"
	if err != nil {
		outcome = KindOf(err).String()
	}
	metrics.New(metrics.Namespace).
		Dimension("Provider", p.Name()).
		Dimension("Outcome", outcome).
		Duration("GenerationLatency", elapsed).
		Count("GenerationAttempts").
		Property("model", req.Model).
		Property("keyIndex", k.index).
		Property("attempt", attempt).
		Flush()

	evt := log.Debug()
	if err != nil {
		evt = log.Warn().Err(err)
	}
	evt.Str("provider", p.Name()).
		Str("model", req.Model).
		Int("keyIndex", k.index).
		Int("attempt", attempt).
		Str("outcome", outcome).
		Dur("duration", elapsed).
		Msg("Generation attempt finished")

	return out, err
}
