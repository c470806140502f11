package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finsight/internal/app"
	"github.com/ternarybob/finsight/internal/common"
	"github.com/ternarybob/finsight/internal/interfaces"
)

const tcsPage = `<html><body>
<h1>Tata Consultancy Services Ltd</h1>
<span id="top-price">₹ 3,456</span>
<table>
  <tr><td>P/E</td><td>28.5</td></tr>
  <tr><td>ROCE</td><td>64.6 %</td></tr>
</table>
</body></html>`

type staticProvider struct {
	prompts []string
}

func (p *staticProvider) GenerateText(ctx context.Context, request *interfaces.GenerationRequest) (string, error) {
	p.prompts = append(p.prompts, request.Prompt)
	return "Overall sentiment: Positive", nil
}

func (p *staticProvider) Name() string { return "static" }
func (p *staticProvider) Close() error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *staticProvider, *[]string) {
	t.Helper()

	var fetched []string
	screenerSite := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetched = append(fetched, r.URL.Path)
		if r.URL.Path != "/company/TCS/consolidated/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(tcsPage))
	}))
	t.Cleanup(screenerSite.Close)

	cfg := common.NewDefaultConfig()
	cfg.Screener.BaseURL = screenerSite.URL
	cfg.Screener.RateLimit = 0
	cfg.Narrative.RateLimit = 0

	provider := &staticProvider{}
	application, err := app.New(context.Background(), cfg, arbor.NewLogger(), app.WithTextProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { application.Close() })

	srv := httptest.NewServer(New(application).Handler())
	t.Cleanup(srv.Close)

	return srv, provider, &fetched
}

func TestServer_QueryEndToEnd(t *testing.T) {
	srv, provider, fetched := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/query", strings.NewReader(`{"query":"tcs"}`))
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "turn-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "turn-1", resp.Header.Get(RequestIDHeader))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var body struct {
		RequestID string            `json:"request_id"`
		Status    string            `json:"status"`
		Metrics   map[string]string `json:"metrics"`
		Narrative struct {
			Status   string `json:"status"`
			Text     string `json:"text"`
			Provider string `json:"provider"`
		} `json:"narrative"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "turn-1", body.RequestID)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "Tata Consultancy Services Ltd", body.Metrics["Company Name"])
	assert.Equal(t, "₹3,456", body.Metrics["Current Price"])
	assert.Equal(t, "28.5", body.Metrics["P/E"])
	assert.Equal(t, "TCS", body.Metrics["NSE Symbol"])
	assert.Equal(t, "success", body.Narrative.Status)
	assert.Equal(t, "static", body.Narrative.Provider)

	assert.Equal(t, []string{"/company/TCS/consolidated/"}, *fetched)
	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "P/E: 28.5")
}

func TestServer_FetchFailureSkipsNarrative(t *testing.T) {
	srv, provider, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/query?q=infosys")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "fetch_failure", body["failure"])
	assert.Empty(t, provider.prompts)
}

func TestServer_SystemRoutes(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for path, want := range map[string]int{
		"/api/health":   http.StatusOK,
		"/api/version":  http.StatusOK,
		"/api/entities": http.StatusOK,
		"/api/help":     http.StatusOK,
		"/api/audit":    http.StatusOK,
		"/nope":         http.StatusNotFound,
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err, path)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, path)
		assert.NotEmpty(t, resp.Header.Get(RequestIDHeader), path)
	}

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/query", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRecoveryMiddleware(t *testing.T) {
	s := &Server{app: &app.App{Logger: arbor.NewLogger()}}
	handler := s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/query", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	s := &Server{app: &app.App{Logger: arbor.NewLogger()}}

	var seen string
	handler := s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = common.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestServer_WriteTimeoutCoversQueryTimeout(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Server.QueryTimeout = 45 * time.Second

	application, err := app.New(context.Background(), cfg, arbor.NewLogger(), app.WithTextProvider(&staticProvider{}))
	require.NoError(t, err)
	t.Cleanup(func() { application.Close() })

	s := New(application)
	assert.Equal(t, 45*time.Second+writeMargin, s.server.WriteTimeout)
	assert.Greater(t, s.server.WriteTimeout, cfg.Server.QueryTimeout)
}
