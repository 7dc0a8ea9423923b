package generation

// gemini_rest.go calls Gemini's generateContent endpoint with plain HTTP. It
// serves proxies and self-hosted gateways that speak the REST wire format but
// not the SDK's discovery conventions.

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fpang/claw-cam/internal/dataurl"
	"github.com/rs/zerolog/log"
)

// GeminiBaseURL is the Gemini REST API base URL.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiRESTProvider calls models/<model>:generateContent directly.
type GeminiRESTProvider struct {
	BaseURL    string
	httpClient *http.Client
}

var _ Provider = (*GeminiRESTProvider)(nil)

// NewGeminiRESTProvider creates the REST provider. An empty baseURL means
// GeminiBaseURL. The per-attempt deadline comes from the request context.
func NewGeminiRESTProvider(baseURL string) *GeminiRESTProvider {
	if baseURL == "" {
		baseURL = GeminiBaseURL
	}
	return &GeminiRESTProvider{
		BaseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

func (p *GeminiRESTProvider) Name() string        { return ProviderGeminiREST }
func (p *GeminiRESTProvider) RequiresKey() bool   { return true }
func (p *GeminiRESTProvider) Check(Request) error { return nil }

// --- REST API request/response types ---

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlobData `json:"inlineData,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiBlobData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Generate posts the frame and prompt and returns the first inline image.
func (p *GeminiRESTProvider) Generate(ctx context.Context, key string, req Request) (string, error) {
	startTime := time.Now()

	mimeType, data, err := dataurl.Decode(req.Input)
	if err != nil {
		return "", configErrorf("input frame is not a data URL: %v", err)
	}

	body, err := json.Marshal(geminiRequest{
		GenerationConfig: &geminiGenerationConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiBlobData{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}},
				{Text: req.Prompt},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	baseURL := req.Endpoint
	if baseURL == "" {
		baseURL = p.BaseURL
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(baseURL, "/"), req.Model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", configErrorf("failed to create request for %s: %v", url, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", key)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Warn().
			Int("status", resp.StatusCode).
			Str("body", truncateString(string(respBody), 500)).
			Msg("Gemini REST API returned error")
		return "", &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return "", &Error{Kind: KindInvalidResponse, Message: "failed to parse response", Err: err}
	}
	if geminiResp.Error != nil {
		return "", &StatusError{Code: geminiResp.Error.Code, Body: geminiResp.Error.Status + " " + geminiResp.Error.Message}
	}

	var text string
	for _, candidate := range geminiResp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				outMIME := part.InlineData.MIMEType
				if outMIME == "" {
					outMIME = dataurl.DefaultMIMEType
				}
				log.Debug().
					Int("output_chars", len(part.InlineData.Data)).
					Str("output_mime", outMIME).
					Dur("duration", time.Since(startTime)).
					Msg("Gemini REST image generation complete")
				return "data:" + outMIME + ";base64," + part.InlineData.Data, nil
			}
			text += part.Text
		}
	}
	return "", &Error{
		Kind:    KindInvalidResponse,
		Message: fmt.Sprintf("no image returned in response (text: %s)", truncateString(text, 200)),
	}
}
