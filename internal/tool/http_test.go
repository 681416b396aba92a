package tool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("response body"))
	}))
	defer srv.Close()

	fetcher := &httpFetcher{client: srv.Client()}
	ctx := context.Background()

	out, err := fetcher.fetch(ctx, Invocation{Args: map[string]any{"url": srv.URL + "/ok"}})
	if err != nil {
		t.Fatalf("fetch error = %v", err)
	}
	if out != "response body" {
		t.Errorf("fetch = %q, want %q", out, "response body")
	}

	_, err = fetcher.fetch(ctx, Invocation{Args: map[string]any{"url": srv.URL + "/missing"}})
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Errorf("fetch of 404 error = %v, want status 404", err)
	}
}

func TestHTTPFetchRejectsScheme(t *testing.T) {
	fetcher := &httpFetcher{client: &http.Client{}}

	_, err := fetcher.fetch(context.Background(), Invocation{Args: map[string]any{"url": "ftp://example.com/x"}})
	if err == nil || !strings.Contains(err.Error(), "scheme") {
		t.Errorf("fetch(ftp) error = %v, want scheme refusal", err)
	}
}
