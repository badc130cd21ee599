package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/john-revops11/keyword-gemini-insight/internal/config"
	"github.com/john-revops11/keyword-gemini-insight/internal/enrich"
	"github.com/john-revops11/keyword-gemini-insight/internal/estimate"
	"github.com/john-revops11/keyword-gemini-insight/internal/models"
	"github.com/john-revops11/keyword-gemini-insight/internal/searchvolume"
	"github.com/john-revops11/keyword-gemini-insight/internal/testutil"
	"github.com/john-revops11/keyword-gemini-insight/internal/tokenstore"
)

type stubVolumes struct{}

func (stubVolumes) FetchVolume(_ context.Context, req searchvolume.Request) (searchvolume.Outcome, error) {
	if req.Token == "" {
		return searchvolume.AuthorizationRequired{URL: "https://auth.example.com/?state=st", State: "st"}, nil
	}
	return searchvolume.Volume{Count: 321}, nil
}

type stubEstimates struct{}

func (stubEstimates) Estimate(context.Context, string) (estimate.Estimate, error) {
	return estimate.Estimate{Volume: 5000, Difficulty: 20, Intent: models.IntentInformational, Source: estimate.SourceModel}, nil
}

func newTestServer(t *testing.T, tokens *tokenstore.Store) *Server {
	t.Helper()
	cfg := &config.Config{
		Env:           "development",
		BaseURL:       "http://localhost:3000",
		SessionSecret: "test-secret-that-is-long-enough-for-production",
	}
	store := testutil.TestDB(t)
	testutil.CreateTestKeywords(t, store, 10, "stored keyword")

	srv := New(cfg, zap.NewNop(), nil)
	err := srv.RegisterRoutes(context.Background(), Deps{
		Store:     store,
		Pipeline:  enrich.New(stubVolumes{}, stubEstimates{}, tokens),
		Estimates: stubEstimates{},
		Volumes:   stubVolumes{},
		Tokens:    tokens,
	})
	require.NoError(t, err)
	return srv
}

func request(t *testing.T, srv *Server, method, path, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := srv.App.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t, tokenstore.New())

	tests := []struct {
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{http.MethodGet, "/healthz", fiber.StatusOK, `"ok"`},
		{http.MethodGet, "/readyz", fiber.StatusOK, `"ok"`},
		{http.MethodGet, "/metrics", fiber.StatusOK, "go_goroutines"},
		{http.MethodGet, "/", fiber.StatusOK, "stored keyword"},
		{http.MethodGet, "/api/keywords", fiber.StatusOK, `"stored keyword"`},
		{http.MethodGet, "/api/nope", fiber.StatusNotFound, `"status":"error"`},
		{http.MethodGet, "/nope", fiber.StatusNotFound, "Back to keywords"},
		{http.MethodGet, "/oauth/callback?code=x&state=y", fiber.StatusBadRequest, "invalid state"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp, body := request(t, srv, tt.method, tt.path, "")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, body, tt.wantBody)
		})
	}
}

func TestRoutes_AnalyzeNeedsAuthorization(t *testing.T) {
	srv := newTestServer(t, tokenstore.New())

	resp, body := request(t, srv, http.MethodPost, "/api/analyze", `{"keywords":["seo tools","backlinks"]}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)

	var env struct {
		Data struct {
			Results []enrich.ItemResult `json:"results"`
			AuthURL string              `json:"authUrl"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &env))
	assert.Equal(t, "https://auth.example.com/?state=st", env.Data.AuthURL)
	require.Len(t, env.Data.Results, 2)
	for _, it := range env.Data.Results {
		assert.Equal(t, enrich.StatusAuthorizationRequired, it.Status)
	}
}

func TestRoutes_AnalyzeWithToken(t *testing.T) {
	tokens := tokenstore.New()
	tokens.Set("access-token")
	srv := newTestServer(t, tokens)

	resp, body := request(t, srv, http.MethodPost, "/api/analyze", `{"text":"seo tools\n"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)

	var env struct {
		Data struct {
			Results []enrich.ItemResult `json:"results"`
			Summary models.BatchSummary `json:"summary"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &env))
	require.Len(t, env.Data.Results, 1)
	res := env.Data.Results[0].Result
	require.NotNil(t, res)
	assert.EqualValues(t, 321, res.Volume)
	assert.Equal(t, models.VolumeSourceSearchConsole, res.VolumeSource)
	assert.Equal(t, 20, res.Difficulty)
	assert.Equal(t, 1, env.Data.Summary.Succeeded)
}

func TestRoutes_AnalyzeKeywords(t *testing.T) {
	srv := newTestServer(t, tokenstore.New())

	resp, body := request(t, srv, http.MethodPost, "/api/analyze-keywords", `{"keyword":"seo tools"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"volume":5000,"difficulty":20,"intent":"informational"}`, body)
}
