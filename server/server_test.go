package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/itemsearch/ai/recognition"
	"github.com/hrygo/itemsearch/internal/profile"
	"github.com/hrygo/itemsearch/store"
	"github.com/hrygo/itemsearch/store/db/sqlite"
)

func newTestServer(t *testing.T, configure func(*profile.Profile)) *Server {
	t.Helper()
	p := &profile.Profile{
		Mode:                 "dev",
		Driver:               profile.DriverSQLite,
		DSN:                  filepath.Join(t.TempDir(), "items.db"),
		ThumbnailSize:        299,
		ThumbnailConcurrency: 1,
		BodyLimit:            "1M",
	}
	if configure != nil {
		configure(p)
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	s := store.New(driver)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	server, err := NewServer(context.Background(), p, s)
	require.NoError(t, err)
	return server
}

func serve(server *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	rec := httptest.NewRecorder()
	server.GetEcho().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, nil)

	rec := serve(server, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Service ready.", rec.Body.String())
}

func TestCountUsesSonicSerializer(t *testing.T) {
	server := newTestServer(t, nil)

	rec := serve(server, http.MethodGet, "/item_search/count")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":200,"result":[0],"msg":""}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, func(p *profile.Profile) { p.MetricsEnabled = true })

	serve(server, http.MethodGet, "/item_search/count")
	rec := serve(server, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `itemsearch_http_requests_total{code="200",method="GET",route="/item_search/count"} 1`), rec.Body.String())
}

func TestMetricsDisabled(t *testing.T) {
	server := newTestServer(t, nil)

	rec := serve(server, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBodyLimit(t *testing.T) {
	server := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/item_search/search", strings.NewReader("category="+strings.Repeat("a", 2<<20)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	server.GetEcho().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestNewPipelineRunner(t *testing.T) {
	p := &profile.Profile{}
	s := store.New(nil)
	assert.Same(t, s, newPipelineRunner(p, s))

	p.RecognizerURL = "http://recognizer.local"
	p.RecognizerTimeout = 5
	_, ok := newPipelineRunner(p, s).(*recognition.HTTPRunner)
	assert.True(t, ok)
}
