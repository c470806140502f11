package screener

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finsight/internal/common"
)

func TestClient_Fetch(t *testing.T) {
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(companyPage))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL+"/"), WithLogger(arbor.NewLogger()))

	body, err := client.Fetch(context.Background(), "TCS/consolidated")
	require.NoError(t, err)
	assert.Equal(t, companyPage, string(body))
	assert.Equal(t, "/company/TCS/consolidated/", gotPath)
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestClient_PageURL(t *testing.T) {
	client := NewClient()
	assert.Equal(t, "https://www.screener.in/company/TCS/", client.PageURL("TCS"))
	assert.Equal(t, "https://www.screener.in/company/TCS/consolidated/", client.PageURL("/TCS/consolidated/"))
	assert.Equal(t, "https://www.screener.in/company/M&M/", client.PageURL("M&M"))
}

func TestClient_Fetch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Fetch(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, srv.URL+"/company/NOPE/", statusErr.URL)
}

func TestClient_Fetch_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(WithBaseURL(url)).Fetch(context.Background(), "TCS")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnexpectedStatus))
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewClient(
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
	)
	_, err := client.Fetch(context.Background(), "TCS")
	assert.Error(t, err)
}

func TestClient_Fetch_BodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	body, err := NewClient(WithBaseURL(srv.URL), WithMaxBodySize(100)).Fetch(context.Background(), "TCS")
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	assert.Nil(t, body)

	// A body exactly at the cap is complete
	body, err = NewClient(WithBaseURL(srv.URL), WithMaxBodySize(4096)).Fetch(context.Background(), "TCS")
	require.NoError(t, err)
	assert.Len(t, body, 4096)
}

func TestClient_Fetch_Gzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte(companyPage))
		gz.Close()
	}))
	defer srv.Close()

	body, err := NewClient(WithBaseURL(srv.URL)).Fetch(context.Background(), "TCS")
	require.NoError(t, err)
	assert.Equal(t, companyPage, string(body))
}

func TestClient_Fetch_MinInterval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithMinInterval(100*time.Millisecond))

	start := time.Now()
	for i := 0; i < 2; i++ {
		_, err := client.Fetch(context.Background(), "TCS")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Fetch(ctx, "TCS")
	assert.Error(t, err)
}

func TestNewClientFromConfig(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	config := common.NewDefaultConfig().Screener
	config.BaseURL = srv.URL
	config.UserAgent = "FinSightTest/1.0"
	config.RateLimit = 0

	client, err := NewClientFromConfig(config, arbor.NewLogger())
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), "INFY")
	require.NoError(t, err)
	assert.Equal(t, "FinSightTest/1.0", gotUA)
	assert.Equal(t, "en-US,en;q=0.5", gotLang)
}
