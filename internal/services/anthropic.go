package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sachiverma0/policychat/internal/models"
)

// Anthropic provides an interface to the Anthropic Messages API for large
// language model interactions using Claude models.
type Anthropic struct {
	apiKey    string
	model     string
	maxTokens int

	client *http.Client

	logger *slog.Logger
}

type anthropicChatRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

const anthropicAPIEndpoint = "https://api.anthropic.com/v1"

// NewAnthropic creates a new Anthropic instance with the specified API key,
// model name, and maximum token limit.
func NewAnthropic(apiKey, model string, maxTokens int, logger *slog.Logger) Anthropic {
	return Anthropic{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		client:    &http.Client{},
		logger:    logger.With(slog.String("module", "anthropic")),
	}
}

func extractSystemMessage(messages []models.Message) (string, []models.Message) {
	if len(messages) == 0 {
		return "", messages
	}

	if messages[0].Role == models.RoleSystem {
		return messages[0].Content, messages[1:]
	}

	return "", messages
}

// Chat sends the message sequence to the Anthropic API and returns the
// aggregated text reply. A leading system message is lifted into the
// dedicated system field as the API requires.
func (a Anthropic) Chat(ctx context.Context, messages []models.Message) (models.Completion, error) {
	systemMessage, ms := extractSystemMessage(messages)

	msgs := make([]anthropicMessage, len(ms))
	for i, msg := range ms {
		msgs[i] = anthropicMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	reqBody := anthropicChatRequest{
		Model:     a.model,
		Messages:  msgs,
		System:    systemMessage,
		MaxTokens: a.maxTokens,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return models.Completion{}, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		anthropicAPIEndpoint+"/messages", bytes.NewBuffer(jsonBody))
	if err != nil {
		return models.Completion{}, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return models.Completion{}, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e anthropicError
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
			return models.Completion{}, fmt.Errorf("anthropic returned status %d", resp.StatusCode)
		}
		return models.Completion{}, fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message)
	}

	var res anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return models.Completion{}, fmt.Errorf("error unmarshaling response: %w", err)
	}

	var sb strings.Builder
	for _, block := range res.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return models.Completion{
		Content: sb.String(),
		Model:   res.Model,
		Usage: models.Usage{
			PromptTokens:     res.Usage.InputTokens,
			CompletionTokens: res.Usage.OutputTokens,
			TotalTokens:      res.Usage.InputTokens + res.Usage.OutputTokens,
		},
	}, nil
}
