// Package estimate asks a generative text model for keyword volume, difficulty
// and intent, and falls back to a random estimate when the answer is unusable.
package estimate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/john-revops11/keyword-gemini-insight/internal/models"
)

// ErrBackendUnavailable is returned when the model is not configured or every
// attempt to reach it failed.
var ErrBackendUnavailable = errors.New("ai backend unavailable")

// Source records where an Estimate came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
	SourceCache    Source = "cache"
)

// Estimate is the model's view of a keyword.
type Estimate struct {
	Volume     int64         `json:"volume"`
	Difficulty int           `json:"difficulty"`
	Intent     models.Intent `json:"intent"`
	Source     Source        `json:"-"`
}

// Completer sends a prompt to a text model and returns the raw completion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Cache stores model estimates between calls. The fiber storage drivers
// satisfy it.
type Cache interface {
	Get(key string) ([]byte, error)
	Set(key string, val []byte, exp time.Duration) error
}

const promptTemplate = `Analyze this keyword for SEO purposes. Return only a JSON object with these properties:
- volume (estimated monthly searches, an integer between 0 and 10000)
- difficulty (an integer between 0 and 100)
- intent (one of: "informational", "transactional", "navigational")

Keyword: %q
`

// Prompt renders the estimation prompt for keyword.
func Prompt(keyword string) string {
	return fmt.Sprintf(promptTemplate, keyword)
}

// Client produces estimates with admission limiting, bounded retry and an
// optional cache.
type Client struct {
	completer  Completer
	limiter    *rate.Limiter
	backoff    gax.Backoff
	maxRetries int
	cache      Cache
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLimiter sets the admission limiter applied before every model call.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithRetry sets how many times a transient failure is retried and the pause
// between attempts.
func WithRetry(maxRetries int, bo gax.Backoff) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.backoff = bo
	}
}

// WithCache stores model estimates in cache for ttl.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// DefaultBackoff is the pause schedule between retried model calls.
func DefaultBackoff() gax.Backoff {
	return gax.Backoff{
		Initial:    250 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2,
	}
}

// NewClient creates a Client. A nil completer means the backend is not
// configured and every Estimate call fails with ErrBackendUnavailable.
func NewClient(completer Completer, opts ...Option) *Client {
	c := &Client{
		completer:  completer,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		maxRetries: 2,
		backoff:    DefaultBackoff(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Estimate returns the model's estimate for keyword. Unparseable completions
// yield a Fallback estimate rather than an error. Only a missing backend or a
// failed call is reported, as ErrBackendUnavailable.
func (c *Client) Estimate(ctx context.Context, keyword string) (Estimate, error) {
	if c.completer == nil {
		return Estimate{}, fmt.Errorf("%w: API key not configured", ErrBackendUnavailable)
	}

	key := cacheKey(keyword)
	if est, ok := c.cached(key); ok {
		return est, nil
	}

	text, err := c.complete(ctx, Prompt(keyword))
	if err != nil {
		return Estimate{}, err
	}

	est, err := ParseEstimate(text)
	if err != nil {
		c.logger.Warn("unusable completion, using fallback estimate",
			zap.String("keyword", keyword), zap.Error(err))
		return Fallback(nil), nil
	}

	c.store(key, est)
	return est, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	bo := c.backoff
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		text, err := c.completer.Complete(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt >= c.maxRetries || !isTransient(err) {
			return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}

		pause := bo.Pause()
		c.logger.Debug("retrying model call",
			zap.Int("attempt", attempt+1), zap.Duration("pause", pause), zap.Error(err))
		if err := gax.Sleep(ctx, pause); err != nil {
			return "", err
		}
	}
}

func (c *Client) cached(key string) (Estimate, bool) {
	if c.cache == nil {
		return Estimate{}, false
	}
	b, err := c.cache.Get(key)
	if err != nil || len(b) == 0 {
		return Estimate{}, false
	}
	var est Estimate
	if err := json.Unmarshal(b, &est); err != nil {
		return Estimate{}, false
	}
	est.Source = SourceCache
	return est, true
}

func (c *Client) store(key string, est Estimate) {
	if c.cache == nil {
		return
	}
	b, err := json.Marshal(est)
	if err != nil {
		return
	}
	if err := c.cache.Set(key, b, c.cacheTTL); err != nil {
		c.logger.Warn("failed to cache estimate", zap.String("key", key), zap.Error(err))
	}
}

func cacheKey(keyword string) string {
	return "estimate:" + strings.ToLower(keyword)
}

// isTransient reports whether a failed call is worth retrying: rate limiting,
// server errors and network failures.
func isTransient(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
