package enrich

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/john-revops11/keyword-gemini-insight/internal/estimate"
	"github.com/john-revops11/keyword-gemini-insight/internal/metrics"
	"github.com/john-revops11/keyword-gemini-insight/internal/models"
	"github.com/john-revops11/keyword-gemini-insight/internal/searchvolume"
	"github.com/john-revops11/keyword-gemini-insight/internal/validation"
)

// DefaultMaxConcurrency bounds how many keywords of a batch are analyzed at once.
const DefaultMaxConcurrency = 5

var (
	// ErrInvalidKeyword is returned for keywords that fail validation.
	ErrInvalidKeyword = errors.New("invalid keyword")
	// ErrRepeatedTokenExchange is returned when a lookup answers a fresh token
	// with yet another token exchange.
	ErrRepeatedTokenExchange = errors.New("search volume lookup issued tokens twice")
)

// VolumeFetcher looks up measured search volume.
type VolumeFetcher interface {
	FetchVolume(ctx context.Context, req searchvolume.Request) (searchvolume.Outcome, error)
}

// Estimator produces model estimates.
type Estimator interface {
	Estimate(ctx context.Context, keyword string) (estimate.Estimate, error)
}

// TokenStore holds the shared Search Console access token.
type TokenStore interface {
	Get() (string, bool)
	Set(token string)
	ClearIf(stale string) bool
}

// Status is the terminal state of one keyword's analysis.
type Status string

const (
	StatusOK                    Status = "ok"
	StatusAuthorizationRequired Status = "authorization_required"
	StatusFailed                Status = "failed"
)

// ItemResult is the outcome for one keyword.
type ItemResult struct {
	Keyword string                 `json:"keyword" yaml:"keyword"`
	Status  Status                 `json:"status" yaml:"status"`
	Result  *models.AnalysisResult `json:"result,omitempty" yaml:"result,omitempty"`
	AuthURL string                 `json:"authUrl,omitempty" yaml:"authUrl,omitempty"`
	Error   string                 `json:"error,omitempty" yaml:"error,omitempty"`

	// State is the OAuth state embedded in AuthURL.
	State string `json:"-" yaml:"-"`
	Err   error  `json:"-" yaml:"-"`
}

// BatchResult holds per-keyword outcomes in input order.
type BatchResult struct {
	Items   []ItemResult        `json:"results" yaml:"results"`
	Summary models.BatchSummary `json:"summary" yaml:"summary"`
	// Authorization is set when any keyword needs the user to authorize
	// Search Console access. It is the first such request in input order.
	Authorization *searchvolume.AuthorizationRequired `json:"-" yaml:"-"`
}

// Results returns the successful analysis results in input order.
func (b *BatchResult) Results() []models.AnalysisResult {
	out := make([]models.AnalysisResult, 0, len(b.Items))
	for _, it := range b.Items {
		if it.Result != nil {
			out = append(out, *it.Result)
		}
	}
	return out
}

// Orchestrator runs the per-keyword enrichment pipeline.
type Orchestrator struct {
	volumes        VolumeFetcher
	estimates      Estimator
	tokens         TokenStore
	maxConcurrency int
	logger         *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxConcurrency bounds batch fan-out. Values below one are ignored.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator.
func New(volumes VolumeFetcher, estimates Estimator, tokens TokenStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		volumes:        volumes,
		estimates:      estimates,
		tokens:         tokens,
		maxConcurrency: DefaultMaxConcurrency,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Authorize exchanges an authorization code and stores the access token.
func (o *Orchestrator) Authorize(ctx context.Context, code string) (searchvolume.TokensIssued, error) {
	out, err := o.volumes.FetchVolume(ctx, searchvolume.Request{Code: code})
	if err != nil {
		return searchvolume.TokensIssued{}, err
	}
	tokens, ok := out.(searchvolume.TokensIssued)
	if !ok {
		return searchvolume.TokensIssued{}, fmt.Errorf("unexpected outcome %T for code exchange", out)
	}
	o.tokens.Set(tokens.AccessToken)
	o.logger.Info("search console authorized")
	return tokens, nil
}

// Analyze enriches one keyword. A returned error means the keyword failed;
// an authorization request is a successful ItemResult with that status.
func (o *Orchestrator) Analyze(ctx context.Context, keyword string) (ItemResult, error) {
	return o.analyze(ctx, keyword, "")
}

// AnalyzeWithCode exchanges code for a token before the lookup, then retries
// the lookup once with the new token.
func (o *Orchestrator) AnalyzeWithCode(ctx context.Context, keyword, code string) (ItemResult, error) {
	return o.analyze(ctx, keyword, code)
}

func (o *Orchestrator) analyze(ctx context.Context, keyword, code string) (ItemResult, error) {
	keyword = validation.NormalizeKeyword(keyword)
	item := ItemResult{Keyword: keyword}
	if ok, msg := validation.ValidateKeyword(keyword); !ok {
		return item, fmt.Errorf("%w: %s", ErrInvalidKeyword, msg)
	}

	volume, auth, err := o.searchVolume(ctx, keyword, code)
	if err != nil {
		return item, err
	}
	if auth != nil {
		item.Status = StatusAuthorizationRequired
		item.AuthURL = auth.URL
		item.State = auth.State
		return item, nil
	}

	est, err := o.estimates.Estimate(ctx, keyword)
	if err != nil {
		if errors.Is(err, estimate.ErrBackendUnavailable) {
			metrics.RecordEstimate("unavailable")
		}
		return item, fmt.Errorf("estimate %q: %w", keyword, err)
	}
	metrics.RecordEstimate(string(est.Source))

	res := Merge(keyword, volume, est)
	item.Status = StatusOK
	item.Result = &res
	return item, nil
}

// searchVolume runs the lookup as a bounded loop: a token exchange is
// followed by exactly one retry with the new token.
func (o *Orchestrator) searchVolume(ctx context.Context, keyword, code string) (searchvolume.Volume, *searchvolume.AuthorizationRequired, error) {
	exchanged := false
	for {
		req := searchvolume.Request{Keyword: keyword, Code: code}
		if code == "" {
			req.Token, _ = o.tokens.Get()
		}
		code = ""

		out, err := o.volumes.FetchVolume(ctx, req)
		if err != nil {
			return searchvolume.Volume{}, nil, err
		}
		metrics.RecordVolumeLookup(searchvolume.Label(out))

		switch v := out.(type) {
		case searchvolume.Volume:
			return v, nil, nil
		case searchvolume.AuthorizationRequired:
			if req.Token != "" && o.tokens.ClearIf(req.Token) {
				o.logger.Info("search console token rejected, cleared")
			}
			return searchvolume.Volume{}, &v, nil
		case searchvolume.TokensIssued:
			if exchanged {
				return searchvolume.Volume{}, nil, ErrRepeatedTokenExchange
			}
			exchanged = true
			o.tokens.Set(v.AccessToken)
		default:
			return searchvolume.Volume{}, nil, fmt.Errorf("unexpected search volume outcome %T", out)
		}
	}
}

// AnalyzeBatch analyzes keywords concurrently, at most maxConcurrency at a
// time. One keyword failing does not affect the others; results are reported
// per keyword in input order. When no token is stored the first keyword is
// looked up alone, and if it needs authorization the rest are not attempted.
func (o *Orchestrator) AnalyzeBatch(ctx context.Context, keywords []string) *BatchResult {
	items := make([]ItemResult, len(keywords))
	run := func(i int) {
		it, err := o.Analyze(ctx, keywords[i])
		if err != nil {
			it.Status = StatusFailed
			it.Err = err
			it.Error = err.Error()
			o.logger.Warn("keyword analysis failed", zap.String("keyword", it.Keyword), zap.Error(err))
		}
		items[i] = it
	}

	start := 0
	if _, ok := o.tokens.Get(); !ok && len(keywords) > 0 && ctx.Err() == nil {
		run(0)
		start = 1
		if items[0].Status == StatusAuthorizationRequired {
			for i := 1; i < len(keywords); i++ {
				items[i] = ItemResult{
					Keyword: validation.NormalizeKeyword(keywords[i]),
					Status:  StatusAuthorizationRequired,
					AuthURL: items[0].AuthURL,
					State:   items[0].State,
				}
			}
			return o.finish(items)
		}
	}

	var g errgroup.Group
	g.SetLimit(o.maxConcurrency)
	for i := start; i < len(keywords); i++ {
		if err := ctx.Err(); err != nil {
			items[i] = ItemResult{
				Keyword: validation.NormalizeKeyword(keywords[i]),
				Status:  StatusFailed,
				Err:     err,
				Error:   err.Error(),
			}
			continue
		}
		g.Go(func() error {
			run(i)
			return nil
		})
	}
	g.Wait()

	return o.finish(items)
}

func (o *Orchestrator) finish(items []ItemResult) *BatchResult {
	b := &BatchResult{Items: items}
	b.Summary = models.Summarize(len(items), b.Results())

	// Summarize counts everything unsuccessful as failed; keywords waiting
	// on authorization are not failures.
	b.Summary.Failed = 0
	for _, it := range items {
		switch it.Status {
		case StatusFailed:
			b.Summary.Failed++
		case StatusAuthorizationRequired:
			if b.Authorization == nil {
				b.Authorization = &searchvolume.AuthorizationRequired{URL: it.AuthURL, State: it.State}
			}
		}
	}
	return b
}
