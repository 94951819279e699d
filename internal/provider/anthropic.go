package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const anthropicAPIVersion = "2023-06-01"

// AnthropicAdapter streams completions from Anthropic's Messages API.
type AnthropicAdapter struct {
	apiKey  string
	baseURL string
	models  []string
	client  *http.Client
}

func NewAnthropicAdapter(apiKey, baseURL string) *AnthropicAdapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	return &AnthropicAdapter{apiKey: apiKey, baseURL: baseURL, client: newHTTPClient()}
}

// Serving records which catalog models route to this adapter.
func (a *AnthropicAdapter) Serving(models ...string) *AnthropicAdapter {
	a.models = append([]string(nil), models...)
	return a
}

func (a *AnthropicAdapter) Name() string { return "anthropic" }

func (a *AnthropicAdapter) Configured() bool { return strings.TrimSpace(a.apiKey) != "" }

func (a *AnthropicAdapter) Models() []string { return append([]string(nil), a.models...) }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicStreamEvent is the envelope for every named SSE event. Only the
// fields relevant to the event's type are populated.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type string `json:"type,omitempty"`
		Text string `json:"text,omitempty"`
	} `json:"delta,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *AnthropicAdapter) StreamCompletion(ctx context.Context, modelID, prompt string) (<-chan Chunk, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     modelID,
		MaxTokens: 1024,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
		Stream:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return nil, fmt.Errorf("anthropic API status %d: %v", resp.StatusCode, errBody)
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			var event anthropicStreamEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				send(ctx, ch, Chunk{Err: fmt.Errorf("decode anthropic event: %w", err)})
				return
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta == nil || event.Delta.Text == "" {
					continue
				}
				if !send(ctx, ch, Chunk{Text: event.Delta.Text}) {
					return
				}
			case "error":
				msg := "unknown"
				if event.Error != nil {
					msg = event.Error.Message
				}
				send(ctx, ch, Chunk{Err: fmt.Errorf("anthropic stream error: %s", msg)})
				return
			case "message_stop":
				return
			}
		}
		if err := scanner.Err(); err != nil {
			send(ctx, ch, Chunk{Err: fmt.Errorf("read anthropic stream: %w", err)})
		}
	}()
	return ch, nil
}
