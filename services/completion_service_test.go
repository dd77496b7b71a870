package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/intelogroup/searchmatic/internal/utils"
)

func newTestCompletionService(baseURL string) *CompletionService {
	return NewCompletionService(utils.CompletionConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "test-model",
		Temperature: 0.7,
		MaxTokens:   256,
	}, zap.NewNop().Sugar())
}

func TestCompleteReturnsFirstChoice(t *testing.T) {
	var captured completionAPIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}

		json.NewEncoder(w).Encode(completionAPIResponse{
			Model: "test-model",
			Choices: []completionAPIChoice{
				{Message: CompletionMessage{Role: "assistant", Content: "PICO is a framework."}},
			},
			Usage: &CompletionUsage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
		})
	}))
	defer server.Close()

	svc := newTestCompletionService(server.URL)
	completion, err := svc.Complete(context.Background(), []CompletionMessage{{Role: "user", Content: "What is PICO?"}}, CompletionOptions{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	if completion.Content != "PICO is a framework." {
		t.Fatalf("unexpected content %q", completion.Content)
	}
	if completion.Usage == nil || completion.Usage.TotalTokens != 8 {
		t.Fatalf("unexpected usage %+v", completion.Usage)
	}
	if captured.Model != "test-model" || captured.Stream {
		t.Fatalf("unexpected request payload %+v", captured)
	}
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limit exceeded", "type": "rate_limit_error"},
		})
	}))
	defer server.Close()

	svc := newTestCompletionService(server.URL)
	_, err := svc.Complete(context.Background(), []CompletionMessage{{Role: "user", Content: "hi"}}, CompletionOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Fatalf("expected api message in error, got %v", err)
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	svc := NewCompletionService(utils.CompletionConfig{BaseURL: "http://localhost:0"}, zap.NewNop().Sugar())
	_, err := svc.Complete(context.Background(), []CompletionMessage{{Role: "user", Content: "hi"}}, CompletionOptions{})
	if err == nil || !strings.Contains(err.Error(), "api key") {
		t.Fatalf("expected api key error, got %v", err)
	}
}

func TestStreamCompleteDeliversChunksInOrder(t *testing.T) {
	frames := []string{
		`data: {"model":"test-model","choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
		``,
		`data: {"choices":[{"index":0,"delta":{"content":"lo "}}]}`,
		``,
		`: keep-alive comment`,
		`data: {"choices":[{"index":0,"delta":{"content":"world"}}],"usage":{"total_tokens":11}}`,
		``,
		`data: [DONE]`,
		``,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req completionAPIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("expected stream=true in request")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			w.Write([]byte(frame + "\n"))
			flusher.Flush()
		}
	}))
	defer server.Close()

	svc := newTestCompletionService(server.URL)

	var chunks []string
	completion, err := svc.StreamComplete(context.Background(), []CompletionMessage{{Role: "user", Content: "hi"}}, CompletionOptions{}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("stream complete: %v", err)
	}

	if completion.Content != "Hello world" {
		t.Fatalf("unexpected accumulated content %q", completion.Content)
	}
	if len(chunks) != 3 || chunks[0] != "Hel" || chunks[1] != "lo " || chunks[2] != "world" {
		t.Fatalf("unexpected chunk order %v", chunks)
	}
	if completion.Usage == nil || completion.Usage.TotalTokens != 11 {
		t.Fatalf("unexpected usage %+v", completion.Usage)
	}
}

func TestStreamCompleteChunkCallbackAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"choices":[{"index":0,"delta":{"content":"chunk"}}]}` + "\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	svc := newTestCompletionService(server.URL)
	_, err := svc.StreamComplete(context.Background(), []CompletionMessage{{Role: "user", Content: "hi"}}, CompletionOptions{}, func(string) error {
		return context.Canceled
	})
	if err == nil || !strings.Contains(err.Error(), "chunk callback") {
		t.Fatalf("expected chunk callback error, got %v", err)
	}
}

func TestStreamCompleteSurfacesErrorFrame(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"error":{"message":"model overloaded"}}` + "\n\n"))
	}))
	defer server.Close()

	svc := newTestCompletionService(server.URL)
	_, err := svc.StreamComplete(context.Background(), []CompletionMessage{{Role: "user", Content: "hi"}}, CompletionOptions{}, nil)
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected error frame surfaced, got %v", err)
	}
}
