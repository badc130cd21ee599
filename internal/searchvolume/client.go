package searchvolume

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/searchconsole/v1"
)

// Scope is the read-only Search Console scope requested from the user.
const Scope = searchconsole.WebmastersReadonlyScope

// Config holds the OAuth client registration and query settings.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// AuthURL and TokenURL override the Google endpoints when set.
	AuthURL  string
	TokenURL string
	// Endpoint overrides the Search Console API base URL when set.
	Endpoint string
	Window   Window
}

// Request is one FetchVolume call. A non-empty Code takes precedence and is
// exchanged for tokens; otherwise Token is used to query Keyword.
type Request struct {
	Keyword string
	Token   string
	Code    string
}

// Client talks to Google's OAuth endpoints and the Search Console API.
type Client struct {
	oauth      *oauth2.Config
	endpoint   string
	window     Window
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for degraded lookups.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient sets the base HTTP client for token exchange and API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock overrides the clock used to resolve the default reporting window.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Client.
func New(cfg Config, opts ...Option) *Client {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	c := &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{Scope},
		},
		endpoint:   cfg.Endpoint,
		window:     cfg.Window,
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchVolume resolves one request into an Outcome. Access problems that are
// not authorization failures degrade to a zero Volume; only token exchange
// failures and context cancellation are returned as errors.
func (c *Client) FetchVolume(ctx context.Context, req Request) (Outcome, error) {
	if req.Code != "" {
		return c.Exchange(ctx, req.Code)
	}
	if req.Token == "" {
		return c.AuthorizationURL(), nil
	}
	return c.query(ctx, req.Keyword, req.Token)
}

// AuthorizationURL builds a consent URL with a fresh state. Offline access and
// a forced consent prompt are requested so that a refresh token is issued.
func (c *Client) AuthorizationURL() AuthorizationRequired {
	state := generateState()
	return AuthorizationRequired{
		URL:   c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce),
		State: state,
	}
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, code string) (TokensIssued, error) {
	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return TokensIssued{}, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return TokensIssued{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *Client) service(ctx context.Context, token string) (*searchconsole.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	opts := []option.ClientOption{
		option.WithHTTPClient(oauth2.NewClient(c.oauthContext(ctx), ts)),
	}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	return searchconsole.NewService(ctx, opts...)
}

func (c *Client) query(ctx context.Context, keyword, token string) (Outcome, error) {
	svc, err := c.service(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create search console service: %w", err)
	}

	sites, err := svc.Sites.List().Context(ctx).Do()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		switch statusCode(err) {
		case http.StatusUnauthorized:
			return c.AuthorizationURL(), nil
		case http.StatusForbidden:
			return c.degraded(keyword, ReasonForbidden, err), nil
		}
		return c.degraded(keyword, ReasonSitesFailed, err), nil
	}
	if len(sites.SiteEntry) == 0 {
		return c.degraded(keyword, ReasonNoProperty, nil), nil
	}

	// The first verified property is used as-is.
	site := sites.SiteEntry[0].SiteUrl
	window := c.window.Resolve(c.now())

	resp, err := svc.Searchanalytics.Query(site, &searchconsole.SearchAnalyticsQueryRequest{
		StartDate:  window.Start,
		EndDate:    window.End,
		Dimensions: []string{"query"},
		DimensionFilterGroups: []*searchconsole.ApiDimensionFilterGroup{{
			Filters: []*searchconsole.ApiDimensionFilter{{
				Dimension:  "query",
				Operator:   "equals",
				Expression: keyword,
			}},
		}},
		RowLimit: 1,
	}).Context(ctx).Do()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if statusCode(err) == http.StatusUnauthorized {
			return c.AuthorizationURL(), nil
		}
		return c.degraded(keyword, ReasonQueryFailed, err), nil
	}

	if len(resp.Rows) == 0 {
		return Volume{}, nil
	}
	return Volume{Count: impressions(resp.Rows[0].Impressions)}, nil
}

func (c *Client) degraded(keyword string, reason Reason, err error) Volume {
	fields := []zap.Field{zap.String("keyword", keyword), zap.String("reason", string(reason))}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	c.logger.Warn("search volume unavailable, using zero", fields...)
	return Volume{Degraded: reason}
}

func impressions(f float64) int64 {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Round(f))
}

func statusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		return rerr.Response.StatusCode
	}
	return 0
}

func generateState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
