package main

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sachiverma0/policychat/internal/handlers"
	"github.com/sachiverma0/policychat/internal/services"
)

type llmConfig interface {
	llm(logger *slog.Logger) (handlers.LLM, error)
}

type embedderConfig interface {
	embedder(logger *slog.Logger) (handlers.Embedder, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port      string `yaml:"port"`
	AuthToken string `yaml:"authToken"`
	DataDir   string `yaml:"dataDir"`

	SystemPrompt string `yaml:"systemPrompt"`
	RAGPrompt    string `yaml:"ragPrompt"`
	TitlePrompt  string `yaml:"titlePrompt"`

	LLM      llmConfig      `yaml:"llm"`
	Embedder embedderConfig `yaml:"embedder"`
}

type azureOpenAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string   `yaml:"apiKey"`
	Endpoint      string   `yaml:"endpoint"`
	Deployment    string   `yaml:"deployment"`
	MaxTokens     int      `yaml:"maxTokens"`
	Temperature   *float32 `yaml:"temperature"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string   `yaml:"apiKey"`
	MaxTokens     int      `yaml:"maxTokens"`
	Temperature   *float32 `yaml:"temperature"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	MaxTokens     int    `yaml:"maxTokens"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port         string         `yaml:"port"`
		AuthToken    string         `yaml:"authToken"`
		DataDir      string         `yaml:"dataDir"`
		SystemPrompt string         `yaml:"systemPrompt"`
		RAGPrompt    string         `yaml:"ragPrompt"`
		TitlePrompt  string         `yaml:"titlePrompt"`
		LLM          map[string]any `yaml:"llm"`
		Embedder     map[string]any `yaml:"embedder"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.AuthToken = rawConfig.AuthToken
	c.DataDir = rawConfig.DataDir
	c.SystemPrompt = rawConfig.SystemPrompt
	c.RAGPrompt = rawConfig.RAGPrompt
	c.TitlePrompt = rawConfig.TitlePrompt

	llm, err := decodeProvider(rawConfig.LLM)
	if err != nil {
		return err
	}
	c.LLM = llm

	if rawConfig.Embedder != nil {
		emb, err := decodeProvider(rawConfig.Embedder)
		if err != nil {
			return err
		}
		embedder, ok := emb.(embedderConfig)
		if !ok {
			return fmt.Errorf("embedder provider does not support embeddings")
		}
		c.Embedder = embedder
	}

	return nil
}

func decodeProvider(raw map[string]any) (llmConfig, error) {
	provider, ok := raw["provider"].(string)
	if !ok {
		return nil, fmt.Errorf("llm provider is required")
	}

	rawYAML, err := yaml.Marshal(raw)
	if err != nil {
		return nil, err
	}

	var cfg llmConfig
	switch provider {
	case "azure-openai":
		cfg = &azureOpenAIConfig{}
	case "openai":
		cfg = &openAIConfig{}
	case "anthropic":
		cfg = &anthropicConfig{}
	case "ollama":
		cfg = &ollamaConfig{}
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}

	if err := yaml.Unmarshal(rawYAML, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (a azureOpenAIConfig) newAzureOpenAI(logger *slog.Logger) (services.OpenAI, error) {
	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
	}
	endpoint := a.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
	}
	if apiKey == "" || endpoint == "" {
		return services.OpenAI{}, fmt.Errorf("azure-openai requires an apiKey and an endpoint")
	}
	if a.Deployment == "" {
		return services.OpenAI{}, fmt.Errorf("deployment is required")
	}

	return services.NewAzureOpenAI(apiKey, endpoint, a.Deployment, services.LLMParameters{
		Temperature: a.Temperature,
		MaxTokens:   a.MaxTokens,
	}, logger), nil
}

func (a azureOpenAIConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	return a.newAzureOpenAI(logger)
}

func (a azureOpenAIConfig) embedder(logger *slog.Logger) (handlers.Embedder, error) {
	return a.newAzureOpenAI(logger)
}

func (o openAIConfig) newOpenAI(logger *slog.Logger) (services.OpenAI, error) {
	if o.Model == "" {
		return services.OpenAI{}, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.Model, services.LLMParameters{
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
	}, logger), nil
}

func (o openAIConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	return o.newOpenAI(logger)
}

func (o openAIConfig) embedder(logger *slog.Logger) (handlers.Embedder, error) {
	return o.newOpenAI(logger)
}

func (a anthropicConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if a.MaxTokens == 0 {
		return nil, fmt.Errorf("maxTokens is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, a.Model, a.MaxTokens, logger), nil
}

func (o ollamaConfig) newOllama(logger *slog.Logger) (services.Ollama, error) {
	if o.Model == "" {
		return services.Ollama{}, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	return services.NewOllama(host, o.Model, logger), nil
}

func (o ollamaConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	return o.newOllama(logger)
}

func (o ollamaConfig) embedder(logger *slog.Logger) (handlers.Embedder, error) {
	return o.newOllama(logger)
}

const (
	defaultSystemPrompt = "You are a helpful assistant."
	defaultRAGPrompt    = "You are a RAG assistant. Always cite from context."
	defaultTitlePrompt  = "Generate a title for this conversation in at most five words. " +
		"Respond with the title only."
)

// loadConfig reads the YAML config at path. A missing file is not an error:
// the configuration is then assembled from environment variables alone, the
// way the original deployment was driven.
func loadConfig(path string) (config, error) {
	cfg := config{}

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	case os.IsNotExist(err):
		cfg.LLM = &azureOpenAIConfig{
			BaseLLMConfig: BaseLLMConfig{Provider: "azure-openai"},
			Deployment:    os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
		}
		if dep := os.Getenv("AZURE_OPENAI_EMBEDDINGS_DEPLOYMENT"); dep != "" {
			cfg.Embedder = &azureOpenAIConfig{
				BaseLLMConfig: BaseLLMConfig{Provider: "azure-openai"},
				Deployment:    dep,
			}
		}
	default:
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}

	if cfg.Port == "" {
		cfg.Port = os.Getenv("PORT")
	}
	if cfg.Port == "" {
		cfg.Port = "5000"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.RAGPrompt == "" {
		cfg.RAGPrompt = defaultRAGPrompt
	}
	if cfg.TitlePrompt == "" {
		cfg.TitlePrompt = defaultTitlePrompt
	}

	return cfg, nil
}
