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

// OpenAIAdapter streams completions from OpenAI's chat completions API.
type OpenAIAdapter struct {
	apiKey  string
	baseURL string
	models  []string
	client  *http.Client
}

func NewOpenAIAdapter(apiKey, baseURL string) *OpenAIAdapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIAdapter{apiKey: apiKey, baseURL: baseURL, client: newHTTPClient()}
}

// Serving records which catalog models route to this adapter.
func (a *OpenAIAdapter) Serving(models ...string) *OpenAIAdapter {
	a.models = append([]string(nil), models...)
	return a
}

func (a *OpenAIAdapter) Name() string { return "openai" }

func (a *OpenAIAdapter) Configured() bool { return strings.TrimSpace(a.apiKey) != "" }

func (a *OpenAIAdapter) Models() []string { return append([]string(nil), a.models...) }

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func (a *OpenAIAdapter) StreamCompletion(ctx context.Context, modelID, prompt string) (<-chan Chunk, error) {
	body, err := json.Marshal(openAIRequest{
		Model:    modelID,
		Messages: []openAIMessage{{Role: "user", Content: prompt}},
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return nil, fmt.Errorf("openai API status %d: %v", resp.StatusCode, errBody)
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
			payload := strings.TrimPrefix(line, "data: ")
			if payload == "[DONE]" {
				return
			}

			var chunk openAIStreamChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				send(ctx, ch, Chunk{Err: fmt.Errorf("decode openai chunk: %w", err)})
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if text := chunk.Choices[0].Delta.Content; text != "" {
				if !send(ctx, ch, Chunk{Text: text}) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			send(ctx, ch, Chunk{Err: fmt.Errorf("read openai stream: %w", err)})
		}
	}()
	return ch, nil
}
