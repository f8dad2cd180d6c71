package ai

import (
	"context"
	"time"

	"github.com/myrjola/interrogame/internal/errors"
	"github.com/myrjola/interrogame/internal/prompt"
	"github.com/sashabaranov/go-openai"
)

const MaxTokens = 4096

// Config points the client at an OpenAI-compatible chat endpoint. A local
// inference server works as long as it speaks the chat completion API.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout bounds a single completion call. After it fires the engine
	// falls back to a canned answer, so keep it generous but finite.
	Timeout time.Duration
}

type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewClient(cfg Config) Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo1106
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return Client{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
	}
}

// Answer runs one chat completion for the built interrogation request and
// returns the suspect's reply. Question messages map to the user role and
// answer messages to the assistant role; the system prompt leads the
// conversation.
func (c *Client) Answer(ctx context.Context, req prompt.Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.SystemPrompt,
	})
	for _, message := range req.Messages {
		role := openai.ChatMessageRoleUser
		if message.Role == prompt.RoleAnswer {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: message.Content,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     c.model,
			MaxTokens: MaxTokens,
			Messages:  messages,
		},
	)
	if err != nil {
		return "", errors.Wrap(err, "create chat completion")
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}
