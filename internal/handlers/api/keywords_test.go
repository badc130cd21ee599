package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/john-revops11/keyword-gemini-insight/internal/db"
	"github.com/john-revops11/keyword-gemini-insight/internal/models"
	"github.com/john-revops11/keyword-gemini-insight/internal/testutil"
)

// newKeywordApp mounts the keyword routes. Requests carrying X-Test-User act
// as that stored user.
func newKeywordApp(t *testing.T, store db.Store) *fiber.App {
	t.Helper()
	h := NewKeywordHandler(store, nil)
	app := fiber.New()
	app.Use(func(c fiber.Ctx) error {
		if sub := c.Get("X-Test-User"); sub != "" {
			user, err := store.GetUserBySub(c.Context(), sub)
			require.NoError(t, err)
			c.Locals("user", user)
		}
		return c.Next()
	})
	app.Get("/api/keywords", h.List)
	app.Post("/api/keywords/upload", h.Upload)
	app.Post("/api/keywords/import", h.Import)
	app.Post("/api/keywords/results", h.SaveResults)
	return app
}

func get(t *testing.T, app *fiber.App, path string, header ...string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeList(t *testing.T, body []byte) keywordListResponse {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	require.Equal(t, "ok", env.Status, env.Error)
	var page keywordListResponse
	require.NoError(t, json.Unmarshal(env.Data, &page))
	return page
}

func decodeImport(t *testing.T, body []byte) models.ImportResponse {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	require.Equal(t, "ok", env.Status, env.Error)
	var res models.ImportResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return res
}

func TestKeywordList(t *testing.T) {
	store := testutil.TestDB(t)
	testutil.CreateTestKeywords(t, store, 100, "alpha", "beta", "gamma")
	app := newKeywordApp(t, store)

	resp, body := get(t, app, "/api/keywords?page=1&pageSize=2&sort=keyword&order=desc")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	page := decodeList(t, body)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Keywords, 2)
	assert.Equal(t, "gamma", page.Keywords[0].Keyword)
	assert.Equal(t, "beta", page.Keywords[1].Keyword)

	_, body = get(t, app, "/api/keywords?q=AL")
	page = decodeList(t, body)
	require.Len(t, page.Keywords, 1)
	assert.Equal(t, "alpha", page.Keywords[0].Keyword)

	resp, _ = get(t, app, "/api/keywords?sort=password&order=asc")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestKeywordList_Mine(t *testing.T) {
	store := testutil.TestDB(t)
	app := newKeywordApp(t, store)
	testutil.CreateTestUser(t, store, "alice", "alice@example.com")
	testutil.CreateTestKeywords(t, store, 5, "someone else's")

	resp, _ := get(t, app, "/api/keywords?mine=true")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body := postJSON(t, app, "/api/keywords/import", `{"rows":[{"Keyword":"mine"}]}`, "X-Test-User", "alice")
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	_, body = get(t, app, "/api/keywords?mine=true", "X-Test-User", "alice")
	page := decodeList(t, body)
	require.Len(t, page.Keywords, 1)
	assert.Equal(t, "mine", page.Keywords[0].Keyword)
	assert.NotNil(t, page.Keywords[0].UserID)
}

func TestKeywordImport(t *testing.T) {
	store := testutil.TestDB(t)
	app := newKeywordApp(t, store)

	body := `{"rows":[
		{"Keyword":"seo tools","Search Volume":"1,200","KD %":45,"Intent":"commercial, informational","CPC":"-1"},
		{"Keyword":"   ","Search Volume":10},
		{"keyword":"backlinks","volume":0,"url":"not a url"}
	]}`
	resp, data := postJSON(t, app, "/api/keywords/import", body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, models.ImportResponse{Inserted: 2, Skipped: 1}, decodeImport(t, data))

	page, err := store.ListKeywords(context.Background(), db.KeywordQuery{Sort: "keyword", Order: db.OrderAsc})
	require.NoError(t, err)
	require.Len(t, page.Keywords, 2)

	backlinks, seo := page.Keywords[0], page.Keywords[1]
	require.NotNil(t, backlinks.Volume)
	assert.EqualValues(t, 0, *backlinks.Volume)
	assert.Nil(t, backlinks.URL)

	require.NotNil(t, seo.Volume)
	assert.EqualValues(t, 1200, *seo.Volume)
	require.NotNil(t, seo.KeywordDifficulty)
	assert.EqualValues(t, 45, *seo.KeywordDifficulty)
	require.NotNil(t, seo.Intent)
	assert.Equal(t, models.IntentCommercial, *seo.Intent)
	assert.Nil(t, seo.CPC)
}

func TestKeywordImport_Rejected(t *testing.T) {
	store := testutil.TestDB(t)
	app := newKeywordApp(t, store)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"no rows", `{"rows":[]}`, "no data found"},
		{"no keywords", `{"rows":[{"Volume":1},{"Keyword":""}]}`, "no valid keyword data"},
		{"malformed", `{"rows":`, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, app, "/api/keywords/import", tt.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, string(body), tt.want)
		})
	}

	page, err := store.ListKeywords(context.Background(), db.KeywordQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func upload(t *testing.T, app *fiber.App, filename, content string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.Copy(part, strings.NewReader(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, "/api/keywords/upload", &buf)
	require.NoError(t, err)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	resp, err := app.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestKeywordUpload(t *testing.T) {
	store := testutil.TestDB(t)
	app := newKeywordApp(t, store)

	resp, data := upload(t, app, "export.csv", "Keyword,Volume,Position\nseo tools,1200,3\nbacklinks,,\n")
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, models.ImportResponse{Inserted: 2}, decodeImport(t, data))

	page, err := store.ListKeywords(context.Background(), db.KeywordQuery{Search: "backlinks"})
	require.NoError(t, err)
	require.Len(t, page.Keywords, 1)
	assert.Nil(t, page.Keywords[0].Volume)
	assert.Nil(t, page.Keywords[0].Position)
}

func TestKeywordUpload_Rejected(t *testing.T) {
	app := newKeywordApp(t, testutil.TestDB(t))

	tests := []struct {
		name     string
		filename string
		content  string
		want     string
	}{
		{"no file", "", "", "please select a file"},
		{"legacy excel", "old.xls", "binary", ".xls"},
		{"unknown type", "notes.pdf", "%PDF", "invalid file type"},
		{"header only", "empty.csv", "Keyword,Volume\n", "no data found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := upload(t, app, tt.filename, tt.content)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, string(body), tt.want)
		})
	}
}

func TestSaveResults(t *testing.T) {
	store := testutil.TestDB(t)
	app := newKeywordApp(t, store)

	body := `{"results":[
		{"keyword":" seo tools ","volume":0,"difficulty":55,"intent":"Transactional","volume_source":"estimate"},
		{"keyword":"odd","volume":3,"difficulty":1,"intent":"mystery"}
	]}`
	resp, data := postJSON(t, app, "/api/keywords/results", body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, 2, decodeImport(t, data).Inserted)

	counts, err := store.CountByIntent(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[string(models.IntentTransactional)])
	assert.EqualValues(t, 1, counts[string(models.IntentUnknown)])

	page, err := store.ListKeywords(context.Background(), db.KeywordQuery{Search: "seo tools"})
	require.NoError(t, err)
	require.Len(t, page.Keywords, 1)
	assert.Equal(t, "seo tools", page.Keywords[0].Keyword)
	require.NotNil(t, page.Keywords[0].Volume)
	assert.EqualValues(t, 0, *page.Keywords[0].Volume)
}

func TestSaveResults_Rejected(t *testing.T) {
	app := newKeywordApp(t, testutil.TestDB(t))

	tests := []struct {
		name string
		body string
	}{
		{"empty", `{"results":[]}`},
		{"blank keyword", `{"results":[{"keyword":" ","volume":1,"difficulty":1}]}`},
		{"difficulty out of range", `{"results":[{"keyword":"a","volume":1,"difficulty":101}]}`},
		{"negative volume", `{"results":[{"keyword":"a","volume":-1,"difficulty":1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postJSON(t, app, "/api/keywords/results", tt.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
}

type failingStore struct {
	db.Store
}

func (failingStore) InsertKeywords(context.Context, []models.KeywordRecord) (int, error) {
	return 0, errors.New("disk full")
}

func (failingStore) ListKeywords(context.Context, db.KeywordQuery) (*models.KeywordPage, error) {
	return nil, errors.New("connection reset")
}

func TestKeywordHandler_StoreErrors(t *testing.T) {
	app := newKeywordApp(t, failingStore{})

	resp, body := get(t, app, "/api/keywords")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, string(body), "connection reset")

	resp, body = postJSON(t, app, "/api/keywords/import", `{"rows":[{"keyword":"a"}]}`)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, string(body), "disk full")
}
