package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// ════════════════════════════════════════════════════════════════════
// Generate
// ════════════════════════════════════════════════════════════════════

func TestOllamaGenerate(t *testing.T) {
	var gotReq ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:    gotReq.Model,
			Response: "The outlook is positive.",
			Done:     true,
		})
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, WithOllamaModel("llama3.2:1b"))
	out, err := g.Generate(context.Background(), "Summarize this.", &GenerateOptions{MaxTokens: 300})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "The outlook is positive." {
		t.Errorf("unexpected output %q", out)
	}

	if gotReq.Model != "llama3.2:1b" {
		t.Errorf("model: got %q", gotReq.Model)
	}
	if gotReq.Stream {
		t.Error("stream must be false")
	}
	if gotReq.Options == nil || gotReq.Options.NumPredict != 300 {
		t.Errorf("num_predict not forwarded: %+v", gotReq.Options)
	}
	if gotReq.Options.Temperature != 0.7 || gotReq.Options.TopP != 0.9 {
		t.Errorf("default sampling not applied: %+v", gotReq.Options)
	}
}

func TestOllamaGenerateSamplingOverride(t *testing.T) {
	var gotReq ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "ok", Done: true})
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, WithOllamaSampling(0.2, 0.5))
	if _, err := g.Generate(context.Background(), "p", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotReq.Options.Temperature != 0.2 || gotReq.Options.TopP != 0.5 {
		t.Errorf("sampling override not applied: %+v", gotReq.Options)
	}
}

func TestOllamaGenerateBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Error: "model 'missing:1b' not found"})
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL)
	if _, err := g.Generate(context.Background(), "p", nil); err == nil {
		t.Fatal("expected error for backend error payload")
	}
}

func TestOllamaGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, WithOllamaTimeout(50*time.Millisecond))
	_, err := g.Generate(context.Background(), "p", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestOllamaGenerateUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening

	g := NewOllamaGenerator(srv.URL)
	_, err := g.Generate(context.Background(), "p", nil)
	if !errors.Is(err, ErrProcessUnavailable) {
		t.Fatalf("expected ErrProcessUnavailable, got %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// Ping
// ════════════════════════════════════════════════════════════════════

func TestOllamaPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL)
	if err := g.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOllamaPingDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	g := NewOllamaGenerator(srv.URL)
	if err := g.Ping(context.Background()); !errors.Is(err, ErrProcessUnavailable) {
		t.Fatalf("expected ErrProcessUnavailable, got %v", err)
	}
}
