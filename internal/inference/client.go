// Package inference wraps the local OpenAI-compatible generation backend
// (llama-server, Ollama, vLLM — anything speaking /v1/chat/completions).
//
// A job's logical model ID is routed to a concrete backend model by ordered
// substring matching, falling back to the configured default. Backend failures
// are returned to the caller, who converts them into a job-level error — they
// never crash a worker loop.
package inference

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Route maps job model IDs containing a substring to one backend model.
type Route struct {
	Contains string `toml:"contains"`
	Model    string `toml:"model"`
}

// Client generates text through one backend on behalf of the worker loop.
type Client struct {
	api          *openai.Client
	routes       []Route
	defaultModel string
}

// New creates a backend client. baseURL is the backend root without the /v1
// suffix. The backend is local and unauthenticated, so no API key is sent.
func New(baseURL string, routes []Route, defaultModel string, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig("")
	cfg.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:          openai.NewClientWithConfig(cfg),
		routes:       routes,
		defaultModel: defaultModel,
	}
}

// Resolve maps a job's logical model ID to the backend model name. The first
// route whose substring occurs in the ID (case-insensitive) wins; everything
// else falls back to the default model.
func (c *Client) Resolve(modelID string) string {
	id := strings.ToLower(modelID)
	for _, r := range c.routes {
		if r.Contains != "" && strings.Contains(id, strings.ToLower(r.Contains)) {
			return r.Model
		}
	}
	return c.defaultModel
}

// Generate runs one synchronous completion for the given job model ID and
// prompt and returns the generated text.
func (c *Client) Generate(ctx context.Context, modelID, prompt string) (string, error) {
	model := c.Resolve(modelID)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("backend generate (model %s): %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("backend generate (model %s): empty response", model)
	}
	return resp.Choices[0].Message.Content, nil
}
