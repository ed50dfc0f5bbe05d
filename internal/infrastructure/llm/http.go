package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"MarketAdvisor/internal/config"
	"MarketAdvisor/internal/ports"
)

// maxResponseBytes caps how much of a response is buffered.
const maxResponseBytes = 4 << 20

// HTTPClient implements ports.ReasoningService against a generateContent-style REST endpoint.
type HTTPClient struct {
	endpoint    string
	apiKey      string
	temperature float32
	httpClient  *http.Client
}

var _ ports.ReasoningService = (*HTTPClient)(nil)

// NewHTTPClient builds a client from configuration.
func NewHTTPClient(cfg config.ReasoningConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPClient{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type restPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type restContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []restPart `json:"parts"`
}

type generationConfig struct {
	Temperature      float32 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents         []restContent    `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content restContent `json:"content"`
	} `json:"candidates"`
}

// Invoke posts the prompt and returns the first candidate's text.
// When the envelope has no text, Body is empty and Raw carries the envelope.
func (c *HTTPClient) Invoke(ctx context.Context, prompt ports.Prompt) (ports.Response, error) {
	if c == nil {
		return ports.Response{}, errors.New("reasoning client is nil")
	}
	if c.endpoint == "" {
		return ports.Response{}, errors.New("reasoning client misconfigured: endpoint is empty")
	}

	body, err := json.Marshal(buildRequest(prompt, c.temperature))
	if err != nil {
		return ports.Response{}, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.Response{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.Response{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return ports.Response{Status: resp.StatusCode}, fmt.Errorf("read response: %w", err)
	}

	out := ports.Response{Status: resp.StatusCode, Raw: string(raw)}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		out.Body = strings.TrimSpace(string(raw))
		return out, nil
	}

	out.Body = extractText(raw)
	return out, nil
}

func buildRequest(prompt ports.Prompt, temperature float32) generateRequest {
	parts := make([]restPart, 0, len(prompt.Images)+1)
	parts = append(parts, restPart{Text: prompt.Text})
	for _, img := range prompt.Images {
		parts = append(parts, restPart{InlineData: &inlineData{
			MIMEType: img.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}

	req := generateRequest{
		Contents:         []restContent{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{Temperature: temperature},
	}
	if prompt.JSON {
		req.GenerationConfig.ResponseMIMEType = "application/json"
	}
	return req
}

// extractText returns candidates[0].content.parts[*].text joined, or "" when absent.
func extractText(raw []byte) string {
	var envelope generateResponse
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range envelope.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String())
}
