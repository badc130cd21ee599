package app

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/john-revops11/keyword-gemini-insight/internal/config"
	"github.com/john-revops11/keyword-gemini-insight/internal/estimate"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("DATABASE_URL", "sqlite://"+filepath.Join(t.TempDir(), "keywords.db"))
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("OIDC_ISSUER", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Store.Ping(ctx))
	assert.Nil(t, a.Storage)
	assert.NotNil(t, a.Pipeline)

	srv, err := a.Server(ctx)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, "/readyz", nil)
	resp, err := srv.App.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNew_BadDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseURL = "sqlite://" + filepath.Join(t.TempDir(), "missing", "dir", "keywords.db")

	_, err := New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestNewEstimateClient_WithoutKey(t *testing.T) {
	cfg := testConfig(t)
	client := NewEstimateClient(context.Background(), cfg, nil, zap.NewNop())

	_, err := client.Estimate(context.Background(), "seo tools")
	assert.True(t, errors.Is(err, estimate.ErrBackendUnavailable), "err = %v", err)
}

func TestNewVolumeClient_AuthorizationURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.GoogleClientID = "client-id"
	cfg.GoogleClientSecret = "secret"
	cfg.GoogleAuthURL = "https://auth.example.com/o/oauth2/auth"

	auth := NewVolumeClient(cfg, zap.NewNop()).AuthorizationURL()
	assert.NotEmpty(t, auth.State)
	assert.Contains(t, auth.URL, "https://auth.example.com/o/oauth2/auth?")
	assert.Contains(t, auth.URL, "client_id=client-id")
	assert.Contains(t, auth.URL, "access_type=offline")
	assert.Contains(t, auth.URL, "state="+auth.State)
}
