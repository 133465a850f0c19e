package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebFetcherReturnsNonSuccessPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "Mozilla/5.0" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html>missing</html>"))
	}))
	defer server.Close()

	page, err := NewWebFetcher().Fetch(context.Background(), server.URL, time.Second)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if page.StatusCode != http.StatusNotFound || page.Body != "<html>missing</html>" {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestWebFetcherTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	if _, err := NewWebFetcher().Fetch(context.Background(), server.URL, 20*time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
}
