// Package providers contains concrete LLM backends.
package providers

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

	"github.com/ibeckermayer/xdigest/internal/errs"
	"github.com/ibeckermayer/xdigest/internal/llm"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider implements llm.Provider using the Gemini REST API.
type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGeminiProvider creates a Gemini provider for the given model.
func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	return &GeminiProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultGeminiBaseURL,
		client: &http.Client{
			Timeout: 120 * time.Second, // LLM calls can be slow
		},
	}
}

// NewGeminiProviderWithBaseURL is used by tests to point at a local server.
func NewGeminiProviderWithBaseURL(apiKey, model, baseURL string) *GeminiProvider {
	p := NewGeminiProvider(apiKey, model)
	p.baseURL = strings.TrimRight(baseURL, "/")
	return p
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate calls the Gemini generateContent endpoint with the prompt, an
// optional system instruction, and any inline images.
func (g *GeminiProvider) Generate(ctx context.Context, prompt, system string, images []llm.Image) (string, error) {
	reqBody := g.buildRequest(prompt, system, images)

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", errs.Wrap(errs.LLMTimeout, "Gemini API request timed out", err)
		}
		return "", errs.Wrap(errs.LLMNetworkError, "failed to call Gemini API", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.Wrap(errs.LLMNetworkError, "failed to read response", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", errs.New(errs.LLMAuthFailed, "invalid Gemini API key")
	case http.StatusForbidden:
		return "", errs.New(errs.LLMQuotaExceeded, "Gemini API quota exceeded")
	case http.StatusTooManyRequests:
		return "", errs.New(errs.LLMRateLimited, "Gemini API rate limit exceeded")
	default:
		return "", errs.Newf(errs.LLMInvalidResponse, "Gemini API returned status %d", resp.StatusCode)
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", errs.Wrap(errs.LLMInvalidResponse, "failed to parse Gemini response", err)
	}

	return extractText(&geminiResp)
}

func (g *GeminiProvider) buildRequest(prompt, system string, images []llm.Image) geminiRequest {
	var contents []geminiContent

	if system != "" {
		contents = append(contents, geminiContent{
			Role:  "user",
			Parts: []geminiPart{{Text: system}},
		})
	}

	parts := []geminiPart{{Text: prompt}}
	for _, img := range images {
		mime := img.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MIMEType: mime,
				Data:     base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: parts})

	return geminiRequest{
		Contents: contents,
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     0.1, // low temperature for consistent output
			MaxOutputTokens: 4000,
		},
	}
}

func extractText(resp *geminiResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", errs.New(errs.LLMEmptyResponse, "no candidates in response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errs.New(errs.LLMEmptyResponse, "no text in response parts")
	}
	return text, nil
}

// CountTokens estimates token usage at roughly four characters per token,
// which tracks Gemini's tokenizer closely enough for budget checks.
func (g *GeminiProvider) CountTokens(text string) int {
	return len(text) / 4
}
