package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
	"github.com/mkarpov/plc-technical-assistant/internal/infrastructure/resilience"
)

// Client talks to a local Ollama instance for both chat generation and
// embeddings. Per-call-type timeouts are applied here so the pipeline sees a
// timeout as the corresponding failure kind, never as an empty result.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor

	genTimeout   time.Duration
	embedTimeout time.Duration
}

type Options struct {
	GenerateTimeout    time.Duration
	EmbedTimeout       time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, genModel, embedModel string, options Options) *Client {
	genTimeout := options.GenerateTimeout
	if genTimeout <= 0 {
		genTimeout = 120 * time.Second
	}
	embedTimeout := options.EmbedTimeout
	if embedTimeout <= 0 {
		embedTimeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		genModel:     genModel,
		embedModel:   embedModel,
		httpClient:   &http.Client{},
		executor:     options.ResilienceExecutor,
		genTimeout:   genTimeout,
		embedTimeout: embedTimeout,
	}
}

// Embedder adapts the client to the Embedder port.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	call := func(callCtx context.Context) error {
		timeoutCtx, cancel := context.WithTimeout(callCtx, e.client.embedTimeout)
		defer cancel()
		return e.client.postJSON(timeoutCtx, "/api/embed", request, &response, "embed")
	}

	var err error
	if e.client.executor != nil {
		err = e.client.executor.Execute(ctx, "ollama.embed", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

// Generator adapts the client to the LanguageModel port.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, messages []domain.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("empty message list")
	}

	type chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	wire := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, chatMessage{Role: m.Role, Content: m.Content})
	}

	request := map[string]any{
		"model":    g.client.genModel,
		"messages": wire,
		"stream":   false,
	}

	var response struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	call := func(callCtx context.Context) error {
		timeoutCtx, cancel := context.WithTimeout(callCtx, g.client.genTimeout)
		defer cancel()
		return g.client.postJSON(timeoutCtx, "/api/chat", request, &response, "chat")
	}

	var err error
	if g.client.executor != nil {
		err = g.client.executor.Execute(ctx, "ollama.chat", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("chat", err)
	}
	return strings.TrimSpace(response.Message.Content), nil
}
