package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/john-revops11/keyword-gemini-insight/internal/enrich"
	"github.com/john-revops11/keyword-gemini-insight/internal/estimate"
	"github.com/john-revops11/keyword-gemini-insight/internal/models"
	"github.com/john-revops11/keyword-gemini-insight/internal/searchvolume"
)

type fakePipeline struct {
	got    []string
	result *enrich.BatchResult
}

func (f *fakePipeline) AnalyzeBatch(_ context.Context, keywords []string) *enrich.BatchResult {
	f.got = keywords
	if f.result != nil {
		return f.result
	}
	return &enrich.BatchResult{Items: []enrich.ItemResult{}}
}

type fakeEstimator struct {
	est estimate.Estimate
	err error
}

func (f fakeEstimator) Estimate(context.Context, string) (estimate.Estimate, error) {
	return f.est, f.err
}

type fakeVolumes struct {
	got searchvolume.Request
	out searchvolume.Outcome
	err error
}

func (f *fakeVolumes) FetchVolume(_ context.Context, req searchvolume.Request) (searchvolume.Outcome, error) {
	f.got = req
	return f.out, f.err
}

// newAnalyzeApp mounts h behind a session plus a /state route that echoes the
// pending Search Console state.
func newAnalyzeApp(h *AnalyzeHandler) *fiber.App {
	app := fiber.New()
	sessionMiddleware, _ := session.NewWithStore()
	app.Use(sessionMiddleware)
	app.Post("/api/analyze", h.Analyze)
	app.Post("/api/analyze-keywords", h.AnalyzeKeywords)
	app.Post("/api/google-search-data", h.GoogleSearchData)
	app.Get("/state", func(c fiber.Ctx) error {
		state, _ := session.FromContext(c).Get(SearchConsoleStateKey).(string)
		return c.SendString(state)
	})
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string, header ...string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func sessionState(t *testing.T, app *fiber.App, cookies []*http.Cookie) string {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, "/state", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	return string(data)
}

type envelope struct {
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Data   json.RawMessage `json:"data"`
}

func TestAnalyze(t *testing.T) {
	res := models.AnalysisResult{Keyword: "seo tools", Volume: 900, Difficulty: 30, Intent: models.IntentInformational, VolumeSource: models.VolumeSourceSearchConsole}
	pipeline := &fakePipeline{result: &enrich.BatchResult{
		Items:   []enrich.ItemResult{{Keyword: "seo tools", Status: enrich.StatusOK, Result: &res}},
		Summary: models.Summarize(1, []models.AnalysisResult{res}),
	}}
	app := newAnalyzeApp(NewAnalyzeHandler(pipeline, fakeEstimator{}, &fakeVolumes{}, nil))

	resp, body := postJSON(t, app, "/api/analyze", `{"keywords":["seo tools"," SEO Tools "],"text":"backlinks\n\nseo tools\n"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, []string{"seo tools", "backlinks"}, pipeline.got)

	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, "ok", env.Status)

	var data analyzeResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Results, 1)
	assert.Equal(t, enrich.StatusOK, data.Results[0].Status)
	assert.EqualValues(t, 900, data.Results[0].Result.Volume)
	assert.Equal(t, 1, data.Summary.Succeeded)
	assert.Empty(t, data.AuthURL)
}

func TestAnalyze_AuthorizationRemembersState(t *testing.T) {
	authURL := "https://accounts.example.com/o/oauth2/auth?state=s-123"
	pipeline := &fakePipeline{result: &enrich.BatchResult{
		Items:         []enrich.ItemResult{{Keyword: "seo", Status: enrich.StatusAuthorizationRequired, AuthURL: authURL, State: "s-123"}},
		Authorization: &searchvolume.AuthorizationRequired{URL: authURL, State: "s-123"},
	}}
	app := newAnalyzeApp(NewAnalyzeHandler(pipeline, fakeEstimator{}, &fakeVolumes{}, nil))

	resp, body := postJSON(t, app, "/api/analyze", `{"keywords":["seo"]}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	var data analyzeResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, authURL, data.AuthURL)
	assert.Equal(t, "s-123", sessionState(t, app, resp.Cookies()))
}

func TestAnalyze_BadRequests(t *testing.T) {
	app := newAnalyzeApp(NewAnalyzeHandler(&fakePipeline{}, fakeEstimator{}, &fakeVolumes{}, nil))

	tooMany := make([]string, MaxBatchKeywords+1)
	for i := range tooMany {
		tooMany[i] = "kw" + strings.Repeat("x", i)
	}
	tooManyBody, _ := json.Marshal(analyzeRequest{Keywords: tooMany})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `{"keywords":`, "invalid request body"},
		{"empty", `{"keywords":["  ",""],"text":"\n\n"}`, "please enter at least one keyword"},
		{"too many", string(tooManyBody), "too many keywords"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, app, "/api/analyze", tt.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, string(body), tt.want)
		})
	}
}

func TestAnalyzeKeywords(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		est        fakeEstimator
		wantStatus int
		wantBody   string
	}{
		{
			name:       "estimate",
			body:       `{"keyword":"seo tools"}`,
			est:        fakeEstimator{est: estimate.Estimate{Volume: 0, Difficulty: 12, Intent: models.IntentNavigational}},
			wantStatus: fiber.StatusOK,
			wantBody:   `{"volume":0,"difficulty":12,"intent":"navigational"}`,
		},
		{
			name:       "missing keyword",
			body:       `{"keyword":"   "}`,
			wantStatus: fiber.StatusBadRequest,
			wantBody:   `{"error":"keyword is required"}`,
		},
		{
			name:       "backend unavailable",
			body:       `{"keyword":"seo"}`,
			est:        fakeEstimator{err: estimate.ErrBackendUnavailable},
			wantStatus: fiber.StatusServiceUnavailable,
			wantBody:   `{"error":"AI backend unavailable"}`,
		},
		{
			name:       "other failure",
			body:       `{"keyword":"seo"}`,
			est:        fakeEstimator{err: errors.New("boom")},
			wantStatus: fiber.StatusInternalServerError,
			wantBody:   `{"error":"estimate failed"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAnalyzeApp(NewAnalyzeHandler(&fakePipeline{}, tt.est, &fakeVolumes{}, nil))
			resp, body := postJSON(t, app, "/api/analyze-keywords", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.JSONEq(t, tt.wantBody, string(body))
		})
	}
}

func TestGoogleSearchData(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("authorization url", func(t *testing.T) {
		volumes := &fakeVolumes{out: searchvolume.AuthorizationRequired{URL: "https://auth.example.com/?state=st", State: "st"}}
		app := newAnalyzeApp(NewAnalyzeHandler(&fakePipeline{}, fakeEstimator{}, volumes, nil))

		resp, body := postJSON(t, app, "/api/google-search-data", `{"keyword":"seo"}`)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"authUrl":"https://auth.example.com/?state=st"}`, string(body))
		assert.Empty(t, volumes.got.Token)
		assert.Equal(t, "st", sessionState(t, app, resp.Cookies()))
	})

	t.Run("code exchange", func(t *testing.T) {
		volumes := &fakeVolumes{out: searchvolume.TokensIssued{AccessToken: "at", RefreshToken: "rt", Expiry: expiry}}
		app := newAnalyzeApp(NewAnalyzeHandler(&fakePipeline{}, fakeEstimator{}, volumes, nil))

		resp, body := postJSON(t, app, "/api/google-search-data", `{"code":"4/xyz"}`)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"tokens":{"access_token":"at","refresh_token":"rt","expiry":"2026-03-01T12:00:00Z"}}`, string(body))
		assert.Equal(t, "4/xyz", volumes.got.Code)
	})

	t.Run("volume with bearer token", func(t *testing.T) {
		volumes := &fakeVolumes{out: searchvolume.Volume{Count: 4321}}
		app := newAnalyzeApp(NewAnalyzeHandler(&fakePipeline{}, fakeEstimator{}, volumes, nil))

		resp, body := postJSON(t, app, "/api/google-search-data", `{"keyword":" seo tools "}`, fiber.HeaderAuthorization, "Bearer tok-1")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"searchVolume":4321}`, string(body))
		assert.Equal(t, "tok-1", volumes.got.Token)
		assert.Equal(t, "seo tools", volumes.got.Keyword)
	})

	t.Run("token without keyword", func(t *testing.T) {
		app := newAnalyzeApp(NewAnalyzeHandler(&fakePipeline{}, fakeEstimator{}, &fakeVolumes{}, nil))
		resp, _ := postJSON(t, app, "/api/google-search-data", `{}`, fiber.HeaderAuthorization, "Bearer tok-1")
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("lookup error", func(t *testing.T) {
		volumes := &fakeVolumes{err: errors.New("token exchange failed")}
		app := newAnalyzeApp(NewAnalyzeHandler(&fakePipeline{}, fakeEstimator{}, volumes, nil))

		resp, body := postJSON(t, app, "/api/google-search-data", `{"code":"bad"}`)
		assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
		assert.JSONEq(t, `{"error":"search volume request failed"}`, string(body))
		assert.NotContains(t, string(body), "token exchange failed")
	})
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"":                "",
		"Bearer abc":      "abc",
		"bearer  abc ":    "abc",
		"Basic dXNlcjpw":  "",
		"Bearer":          "",
		"  Bearer xyz   ": "xyz",
	}
	for header, want := range tests {
		assert.Equal(t, want, bearerToken(header), "header %q", header)
	}
}

func TestAnalyzeResponseShape(t *testing.T) {
	// Failed items carry their error text; internal fields stay out of the JSON.
	item := enrich.ItemResult{Keyword: "x", Status: enrich.StatusFailed, Error: "boom", State: "secret", Err: errors.New("boom")}
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(item))
	assert.JSONEq(t, `{"keyword":"x","status":"failed","error":"boom"}`, buf.String())
}
