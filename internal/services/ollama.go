package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/sachiverma0/policychat/internal/models"
)

// Ollama provides an implementation of the LLM interface for interacting with
// locally hosted models through an Ollama server instance.
type Ollama struct {
	host  string
	model string

	client *api.Client

	logger *slog.Logger
}

// NewOllama creates a new Ollama instance with the specified host URL and
// model name. The host parameter should be a valid URL pointing to an Ollama
// server. If the provided host URL is invalid, the function will panic.
func NewOllama(host, model string, logger *slog.Logger) Ollama {
	u, err := url.Parse(host)
	if err != nil {
		panic(err)
	}

	return Ollama{
		host:   host,
		model:  model,
		client: api.NewClient(u, &http.Client{}),
		logger: logger.With(slog.String("module", "ollama")),
	}
}

// Chat sends the message sequence to the Ollama server and returns the full
// reply. Token usage is taken from the final response metrics.
func (o Ollama) Chat(ctx context.Context, messages []models.Message) (models.Completion, error) {
	msgs := make([]api.Message, len(messages))
	for i, msg := range messages {
		msgs[i] = api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	f := false
	req := api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   &f,
	}

	var sb strings.Builder
	var final api.ChatResponse

	if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
		sb.WriteString(res.Message.Content)
		final = res
		return nil
	}); err != nil {
		return models.Completion{}, fmt.Errorf("error sending request: %w", err)
	}

	return models.Completion{
		Content: sb.String(),
		Model:   o.model,
		Usage: models.Usage{
			PromptTokens:     final.Metrics.PromptEvalCount,
			CompletionTokens: final.Metrics.EvalCount,
			TotalTokens:      final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		},
	}, nil
}

// Embed returns the embedding vector for the given text using the configured
// model.
func (o Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  o.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}

	embedding := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}
