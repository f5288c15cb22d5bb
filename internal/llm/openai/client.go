package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"careercatalyst-backend/internal/llm"
)

const defaultAPIURL = "https://api.openai.com/v1/chat/completions"

// Client implements llm.Generator using the OpenAI chat-completions wire
// format. BaseURL and ExtraHeaders make it reusable against compatible
// providers (Venice and friends).
type Client struct {
	apiKey       string
	model        string
	apiURL       string
	extraHeaders map[string]string
	httpClient   *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at an OpenAI-compatible endpoint. The
// chat-completions path is appended to the given base.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimRight(strings.TrimSpace(base), "/")
		if base != "" {
			c.apiURL = base + "/chat/completions"
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.extraHeaders[key] = value
	}
}

// NewClient constructs a chat-completions client.
func NewClient(apiKey, model string, timeout time.Duration, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, llm.ErrMissingAPIKey
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c := &Client{
		apiKey:       apiKey,
		model:        model,
		apiURL:       defaultAPIURL,
		extraHeaders: make(map[string]string),
		httpClient:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []chatMessage  `json:"messages"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// Usage reports provider-side token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		Delta        chatMessage `json:"delta"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate sends the prompt with the system instruction and returns the text.
func (c *Client) Generate(ctx context.Context, systemInstruction, prompt string) (string, error) {
	resp, err := c.do(ctx, buildMessages(systemInstruction, prompt), false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &llm.ProviderError{Provider: "openai", Err: err}
	}
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &llm.ProviderError{Provider: "openai", Err: fmt.Errorf("response parse: %w", err)}
	}
	if parsed.Error != nil {
		return "", &llm.ProviderError{Provider: "openai", Err: fmt.Errorf("%s (%s)", parsed.Error.Message, parsed.Error.Type)}
	}
	if len(parsed.Choices) == 0 {
		return "", &llm.ProviderError{Provider: "openai", Err: fmt.Errorf("response missing choices")}
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", &llm.ProviderError{Provider: "openai", Err: fmt.Errorf("response empty content")}
	}
	return content, nil
}

// StreamResult summarizes a completed streaming call.
type StreamResult struct {
	Usage        *Usage
	FinishReason string
}

// Stream sends the prompt and forwards generated text chunks to onText as
// they arrive. Usage and finish reason come back once the stream ends.
func (c *Client) Stream(ctx context.Context, systemInstruction, prompt string, onText func(string)) (StreamResult, error) {
	resp, err := c.do(ctx, buildMessages(systemInstruction, prompt), true)
	if err != nil {
		return StreamResult{}, err
	}
	defer resp.Body.Close()

	var result StreamResult
	decoder := newSSEDecoder(resp.Body)
	for {
		data, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			return result, &llm.ProviderError{Provider: "openai", Err: err}
		}
		if data == "[DONE]" {
			return result, nil
		}
		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return result, &llm.ProviderError{Provider: "openai", Err: fmt.Errorf("stream chunk parse: %w", err)}
		}
		if chunk.Error != nil {
			return result, &llm.ProviderError{Provider: "openai", Err: fmt.Errorf("%s (%s)", chunk.Error.Message, chunk.Error.Type)}
		}
		if chunk.Usage != nil {
			result.Usage = chunk.Usage
		}
		if len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]
			if choice.Delta.Content != "" && onText != nil {
				onText(choice.Delta.Content)
			}
			if choice.FinishReason != "" {
				result.FinishReason = choice.FinishReason
			}
		}
	}
}

func (c *Client) do(ctx context.Context, messages []chatMessage, stream bool) (*http.Response, error) {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   stream,
	}
	if stream {
		reqBody.StreamOptions = &streamOptions{IncludeUsage: true}
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, &llm.ProviderError{Provider: "openai", Err: fmt.Errorf("request timeout: %w", err)}
		}
		return nil, &llm.ProviderError{Provider: "openai", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &llm.ProviderError{
			Provider: "openai",
			Err:      fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
	return resp, nil
}

func buildMessages(systemInstruction, prompt string) []chatMessage {
	var messages []chatMessage
	if strings.TrimSpace(systemInstruction) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemInstruction})
	}
	return append(messages, chatMessage{Role: "user", Content: prompt})
}

var _ llm.Generator = (*Client)(nil)
