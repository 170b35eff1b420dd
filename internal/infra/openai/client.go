package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o-mini"

// RequestFilterPrompt asks the model whether a message is a product request
const RequestFilterPrompt = `You are a message filter for a personal shopping service.
Customers send descriptions and photos of items they want staff to find.

Decide whether the message is a request for an item.

Decision rules:
1. Describes an item to find (clothing, shoes, accessories, with or without budget) -> YES
2. Asks about the status of an earlier request -> YES
3. Greetings, thanks, or chit-chat with no item -> NO
4. If uncertain -> YES

Reply only "YES" or "NO", no explanations.`

// Client is a chat completion client for any OpenAI-compatible endpoint
type Client struct {
	client  *goopenai.Client
	model   string
	timeout time.Duration
}

// NewClient creates a client. An empty baseURL uses the OpenAI default.
func NewClient(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = defaultModel
	}

	config := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &Client{
		client:  goopenai.NewClientWithConfig(config),
		model:   model,
		timeout: 30 * time.Second,
	}
}

// Chat sends a message and returns the response
func (c *Client) Chat(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: 0.1, // Low temperature for deterministic responses
		MaxTokens:   50,  // Short response needed for YES/NO
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// IsRequest classifies a message with RequestFilterPrompt
func (c *Client) IsRequest(ctx context.Context, message string) (bool, error) {
	answer, err := c.Chat(ctx, RequestFilterPrompt, message)
	if err != nil {
		return false, err
	}
	return ParseYesNo(answer)
}

// ParseYesNo reads a YES/NO answer, tolerating case and trailing text
func ParseYesNo(answer string) (bool, error) {
	a := strings.ToUpper(strings.TrimSpace(answer))
	switch {
	case strings.HasPrefix(a, "YES"):
		return true, nil
	case strings.HasPrefix(a, "NO"):
		return false, nil
	}
	return false, fmt.Errorf("unexpected filter answer %q", answer)
}
