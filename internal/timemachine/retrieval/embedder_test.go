package retrieval_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bdobrica/timemachine/internal/timemachine/retrieval"
)

func TestOpenAIEmbedder_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header: got %q", got)
		}
		var req struct {
			Input string `json:"input"`
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "text-embedding-3-small" || req.Input != "uranium" {
			t.Errorf("request: got %+v", req)
		}
		w.Write([]byte(`{"data":[{"embedding":[0.5,0.25,1]}]}`))
	}))
	defer srv.Close()

	e := retrieval.NewOpenAIEmbedder(retrieval.OpenAIEmbedderConfig{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	vec, err := e.Embed(context.Background(), "uranium")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[2] != 1 {
		t.Errorf("vector: got %v", vec)
	}
}

func TestOpenAIEmbedder_BlankTextSkipsCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	vec, err := retrieval.NewOpenAIEmbedder(retrieval.OpenAIEmbedderConfig{BaseURL: srv.URL}).Embed(context.Background(), "  ")
	if vec != nil || err != nil {
		t.Errorf("got %v, %v; want nil, nil", vec, err)
	}
	if calls.Load() != 0 {
		t.Errorf("calls: got %d, want 0", calls.Load())
	}
}

func TestOpenAIEmbedder_UnauthorizedNotRetriedAndRedacted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	e := retrieval.NewOpenAIEmbedder(retrieval.OpenAIEmbedderConfig{APIKey: "sk-secret-key", BaseURL: srv.URL})
	_, err := e.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls: got %d, want 1", calls.Load())
	}
	if strings.Contains(err.Error(), "sk-secret-key") {
		t.Errorf("error leaks the API key: %v", err)
	}
}

func TestOpenAIEmbedder_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":[{"embedding":[1]}]}`))
	}))
	defer srv.Close()

	vec, err := retrieval.NewOpenAIEmbedder(retrieval.OpenAIEmbedderConfig{BaseURL: srv.URL}).Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 1 || calls.Load() != 2 {
		t.Errorf("got %v after %d calls", vec, calls.Load())
	}
}
