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

// GoogleAdapter streams completions from the Gemini API. Unlike Anthropic and
// OpenAI, streaming uses a separate URL path and the key travels as a query
// parameter.
type GoogleAdapter struct {
	apiKey  string
	baseURL string
	models  []string
	client  *http.Client
}

func NewGoogleAdapter(apiKey, baseURL string) *GoogleAdapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GoogleAdapter{apiKey: apiKey, baseURL: baseURL, client: newHTTPClient()}
}

// Serving records which catalog models route to this adapter.
func (a *GoogleAdapter) Serving(models ...string) *GoogleAdapter {
	a.models = append([]string(nil), models...)
	return a
}

func (a *GoogleAdapter) Name() string { return "google" }

func (a *GoogleAdapter) Configured() bool { return strings.TrimSpace(a.apiKey) != "" }

func (a *GoogleAdapter) Models() []string { return append([]string(nil), a.models...) }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiStreamChunk struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (a *GoogleAdapter) StreamCompletion(ctx context.Context, modelID, prompt string) (<-chan Chunk, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", a.baseURL, modelID, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return nil, fmt.Errorf("gemini API status %d: %v", resp.StatusCode, errBody)
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

			var chunk geminiStreamChunk
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
				send(ctx, ch, Chunk{Err: fmt.Errorf("decode gemini chunk: %w", err)})
				return
			}
			for _, cand := range chunk.Candidates {
				for _, part := range cand.Content.Parts {
					if part.Text == "" {
						continue
					}
					if !send(ctx, ch, Chunk{Text: part.Text}) {
						return
					}
				}
			}
		}
		if err := scanner.Err(); err != nil {
			send(ctx, ch, Chunk{Err: fmt.Errorf("read gemini stream: %w", err)})
		}
	}()
	return ch, nil
}
