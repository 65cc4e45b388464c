package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible vision endpoint (OpenAI, vLLM, ...).
type OpenAIConfig struct {
	BaseURL string // empty for api.openai.com
	APIKey  string
	Model   string
	Timeout time.Duration
}

// DefaultOpenAIConfig returns default configuration.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:   openai.GPT4oMini,
		Timeout: 60 * time.Second,
	}
}

// OpenAIClient classifies frames through the chat completions API.
type OpenAIClient struct {
	config OpenAIConfig
	cli    *openai.Client
}

// NewOpenAIClient creates a new client.
func NewOpenAIClient(config OpenAIConfig) *OpenAIClient {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &OpenAIClient{config: config, cli: openai.NewClientWithConfig(clientConfig)}
}

// ClassifyFrame sends one JPEG frame with prompt to the model.
func (c *OpenAIClient) ClassifyFrame(ctx context.Context, image []byte, prompt string) (*FrameAnalysis, error) {
	content, model, err := c.complete(ctx, prompt, image, 300)
	if err != nil {
		return nil, err
	}
	return ParseFrameAnalysis(content, model), nil
}

// ReadTimestamp asks the model for the on-screen date/time overlay.
func (c *OpenAIClient) ReadTimestamp(ctx context.Context, image []byte) (*TimestampReading, error) {
	content, _, err := c.complete(ctx, TimestampPrompt, image, 60)
	if err != nil {
		return nil, err
	}
	return ParseTimestampReading(content)
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string, image []byte, maxTokens int) (string, string, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
	resp, err := c.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.config.Model,
		MaxTokens:   maxTokens,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURI,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", "", fmt.Errorf("no response choices from %s", c.config.Model)
	}
	return resp.Choices[0].Message.Content, resp.Model, nil
}
