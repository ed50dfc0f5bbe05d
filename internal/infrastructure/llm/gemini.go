package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"MarketAdvisor/internal/config"
	"MarketAdvisor/internal/ports"
)

// GeminiClient implements ports.ReasoningService on the Gemini API.
type GeminiClient struct {
	models      *genai.Models
	model       string
	temperature float32
}

var _ ports.ReasoningService = (*GeminiClient)(nil)

// NewGeminiClient builds a client from configuration.
func NewGeminiClient(ctx context.Context, cfg config.ReasoningConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini client misconfigured: api key is empty")
	}
	if cfg.Model == "" {
		return nil, errors.New("gemini client misconfigured: model is empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{
		models:      client.Models,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Invoke sends the prompt with its images in a single user turn.
// API errors are reported as non-2xx responses so the caller can retry them.
func (c *GeminiClient) Invoke(ctx context.Context, prompt ports.Prompt) (ports.Response, error) {
	if c == nil || c.models == nil {
		return ports.Response{}, errors.New("gemini client is nil")
	}

	parts := make([]*genai.Part, 0, len(prompt.Images)+1)
	parts = append(parts, genai.NewPartFromText(prompt.Text))
	for _, img := range prompt.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if prompt.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		if apiResp, ok := apiErrorResponse(err); ok {
			return apiResp, nil
		}
		return ports.Response{}, fmt.Errorf("generate content: %w", err)
	}

	return ports.Response{Status: http.StatusOK, Body: strings.TrimSpace(resp.Text())}, nil
}

func apiErrorResponse(err error) (ports.Response, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return ports.Response{Status: apiErr.Code, Body: apiErr.Message}, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return ports.Response{Status: apiErrPtr.Code, Body: apiErrPtr.Message}, true
	}
	return ports.Response{}, false
}
