package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/sachiverma0/policychat/internal/models"
)

// LLMParameters contains the tunable sampling options shared by the OpenAI
// compatible providers. Nil pointers mean the provider default is used.
type LLMParameters struct {
	Temperature *float32
	MaxTokens   int
}

// OpenAI provides chat completions and embeddings through the OpenAI API or
// an Azure OpenAI deployment. The same type serves both roles; the configured
// model decides whether an instance is used for chatting or embedding.
type OpenAI struct {
	model  string
	params LLMParameters

	client *goopenai.Client

	logger *slog.Logger
}

// NewOpenAI creates an OpenAI instance talking to the public OpenAI API with
// the specified API key and model name.
func NewOpenAI(apiKey, model string, params LLMParameters, logger *slog.Logger) OpenAI {
	return OpenAI{
		model:  model,
		params: params,
		client: goopenai.NewClient(apiKey),
		logger: logger.With(slog.String("module", "openai")),
	}
}

// NewAzureOpenAI creates an OpenAI instance talking to an Azure OpenAI
// resource. The deployment name takes the place of the model in every
// request.
func NewAzureOpenAI(apiKey, endpoint, deployment string, params LLMParameters, logger *slog.Logger) OpenAI {
	cfg := goopenai.DefaultAzureConfig(apiKey, endpoint)
	cfg.AzureModelMapperFunc = func(string) string { return deployment }

	return OpenAI{
		model:  deployment,
		params: params,
		client: goopenai.NewClientWithConfig(cfg),
		logger: logger.With(slog.String("module", "azure-openai")),
	}
}

// Chat sends the full message sequence to the chat completion API and returns
// the first choice along with its token usage.
func (o OpenAI) Chat(ctx context.Context, messages []models.Message) (models.Completion, error) {
	msgs := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = goopenai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	req := goopenai.ChatCompletionRequest{
		Model:    o.model,
		Messages: msgs,
	}
	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.MaxTokens > 0 {
		req.MaxTokens = o.params.MaxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return models.Completion{}, fmt.Errorf("error sending request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.Completion{}, errors.New("no choices found")
	}

	o.logger.Debug("Chat completion",
		slog.String("model", resp.Model),
		slog.Int("totalTokens", resp.Usage.TotalTokens),
	)

	return models.Completion{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: models.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Embed returns the embedding vector for the given text using the configured
// embeddings model or deployment.
func (o OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Model: goopenai.EmbeddingModel(o.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data found")
	}

	return resp.Data[0].Embedding, nil
}
