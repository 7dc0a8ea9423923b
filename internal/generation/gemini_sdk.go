package generation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fpang/claw-cam/internal/dataurl"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// GeminiSDKProvider calls Gemini through the google.golang.org/genai SDK.
// One SDK client is kept per key and base URL.
type GeminiSDKProvider struct {
	// BaseURL overrides the Gemini API base URL when a request has no Endpoint.
	BaseURL string

	mu      sync.Mutex
	clients map[string]*genai.Client
}

var _ Provider = (*GeminiSDKProvider)(nil)

// NewGeminiSDKProvider creates the SDK-backed provider.
func NewGeminiSDKProvider(baseURL string) *GeminiSDKProvider {
	return &GeminiSDKProvider{BaseURL: baseURL, clients: make(map[string]*genai.Client)}
}

func (p *GeminiSDKProvider) Name() string        { return ProviderGemini }
func (p *GeminiSDKProvider) RequiresKey() bool   { return true }
func (p *GeminiSDKProvider) Check(Request) error { return nil }

func (p *GeminiSDKProvider) client(ctx context.Context, key, baseURL string) (*genai.Client, error) {
	cacheKey := baseURL + "|" + key

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[cacheKey]; ok {
		return c, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions.BaseURL = baseURL
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, configErrorf("failed to create Gemini client: %v", err)
	}
	p.clients[cacheKey] = c
	return c, nil
}

// Generate sends the frame and prompt to the model and returns the first
// inline image of the first candidate.
func (p *GeminiSDKProvider) Generate(ctx context.Context, key string, req Request) (string, error) {
	baseURL := req.Endpoint
	if baseURL == "" {
		baseURL = p.BaseURL
	}
	client, err := p.client(ctx, key, baseURL)
	if err != nil {
		return "", err
	}

	mimeType, data, err := dataurl.Decode(req.Input)
	if err != nil {
		return "", configErrorf("input frame is not a data URL: %v", err)
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
			{Text: req.Prompt},
		},
	}}
	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				outMIME := part.InlineData.MIMEType
				if outMIME == "" {
					outMIME = dataurl.DefaultMIMEType
				}
				log.Debug().
					Str("model", req.Model).
					Int("output_bytes", len(part.InlineData.Data)).
					Str("output_mime", outMIME).
					Msg("Gemini returned image")
				return dataurl.Encode(outMIME, part.InlineData.Data), nil
			}
			if part.Text != "" && !part.Thought {
				text.WriteString(part.Text)
			}
		}
	}
	return "", &Error{
		Kind:    KindInvalidResponse,
		Message: fmt.Sprintf("no image returned in response (text: %s)", truncateString(text.String(), 200)),
	}
}
