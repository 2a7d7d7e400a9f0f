package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
)

func TestEmbedderSendsBatchAndPreservesOrder(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured)
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed-model", Options{}))
	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || vectors[0][0] != 0.1 || vectors[1][0] != 0.3 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
	if captured["model"] != "embed-model" {
		t.Fatalf("expected embed model in request, got %v", captured["model"])
	}
	inputs := captured["input"].([]any)
	if len(inputs) != 2 || inputs[0] != "first" {
		t.Fatalf("expected batched inputs in order, got %v", inputs)
	}
}

func TestEmbedderCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed-model", Options{}))
	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected count mismatch error")
	}
}

func TestEmbedderEmptyInput(t *testing.T) {
	embedder := NewEmbedder(New("http://unused", "gen", "embed-model", Options{}))
	vectors, err := embedder.Embed(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Fatalf("expected nil, nil for empty input, got %v, %v", vectors, err)
	}
}

func TestGeneratorSendsMessagesNonStreaming(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"  the answer  "}}`))
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "gen-model", "embed", Options{}))
	answer, err := generator.Generate(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Content: "be helpful"},
		{Role: domain.RoleUser, Content: "reset plc fault"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "the answer" {
		t.Fatalf("expected trimmed answer, got %q", answer)
	}
	if captured["model"] != "gen-model" {
		t.Fatalf("expected gen model, got %v", captured["model"])
	}
	if captured["stream"] != false {
		t.Fatalf("expected stream disabled, got %v", captured["stream"])
	}
	msgs := captured["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %v", msgs)
	}
	first := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "be helpful" {
		t.Fatalf("unexpected first message: %v", first)
	}
}

func TestGeneratorEmptyMessages(t *testing.T) {
	generator := NewGenerator(New("http://unused", "gen", "embed", Options{}))
	if _, err := generator.Generate(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty message list")
	}
}

func TestGeneratorServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "gen", "embed", Options{}))
	_, err := generator.Generate(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "q"}})
	if err == nil {
		t.Fatalf("expected error on 500")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error kind for 500, got %v", err)
	}
}

func TestClassifyOllamaError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"rate limited", &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"server error", &HTTPStatusError{StatusCode: http.StatusInternalServerError}, true},
		{"bad request", &HTTPStatusError{StatusCode: http.StatusBadRequest}, false},
		{"not found", &HTTPStatusError{StatusCode: http.StatusNotFound}, false},
		{"cancelled", context.Canceled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			class := classifyOllamaError(tc.err)
			if class.Retryable != tc.retryable {
				t.Fatalf("classifyOllamaError(%v).Retryable = %v, want %v", tc.err, class.Retryable, tc.retryable)
			}
		})
	}
}
