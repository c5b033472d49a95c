package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const (
	defaultModel    = "gpt-4o-mini"
	defaultEndpoint = "https://api.openai.com/v1"
	maxTokens       = 300
)

// DefaultSystemPrompt sets the companion's conversational register.
const DefaultSystemPrompt = `You are NAINA, a warm and empathetic mental health AI companion.

Be conversational, not clinical. Use active listening, ask follow-up questions,
and validate emotions before suggesting solutions. Keep responses under 100 words.
Use phrases like "I hear you", "That sounds tough", "Tell me more".

Do not jump to "talk to a friend" immediately, give generic advice without
understanding context, or dismiss feelings. You are a supportive listener first,
advisor second.`

// ClientConfig configures an OpenAI-compatible chat-completions client.
type ClientConfig struct {
	APIKey       string // Defaults to OPENAI_API_KEY
	Model        string
	Endpoint     string // Base URL; "/chat/completions" is appended
	SystemPrompt string
	HistoryTurns int // Prior turns sent with each request
	HTTPClient   *http.Client
}

// OpenAIClient implements Generator against an OpenAI-compatible API.
type OpenAIClient struct {
	apiKey       string
	model        string
	endpoint     string
	systemPrompt string
	historyTurns int
	httpClient   *http.Client
}

// NewOpenAIClient creates a client, failing when no API key is available.
func NewOpenAIClient(cfg ClientConfig) (*OpenAIClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	c := &OpenAIClient{
		apiKey:       apiKey,
		model:        cfg.Model,
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		systemPrompt: cfg.SystemPrompt,
		historyTurns: cfg.HistoryTurns,
		httpClient:   cfg.HTTPClient,
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.endpoint == "" {
		c.endpoint = defaultEndpoint
	}
	if c.systemPrompt == "" {
		c.systemPrompt = DefaultSystemPrompt
	}
	if c.historyTurns <= 0 {
		c.historyTurns = 6
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c, nil
}

type chatRequest struct {
	Model     string `json:"model"`
	Messages  []Turn `json:"messages"`
	MaxTokens int    `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message Turn `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	messages := []Turn{{Role: "system", Content: c.systemPrompt}}
	history := req.History
	if len(history) > c.historyTurns {
		history = history[len(history)-c.historyTurns:]
	}
	messages = append(messages, history...)
	messages = append(messages, Turn{Role: "user", Content: req.Message})

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, MaxTokens: maxTokens})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return Truncate(strings.TrimSpace(out.Choices[0].Message.Content)), nil
}
