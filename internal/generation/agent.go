package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fpang/claw-cam/internal/assets"
	"github.com/fpang/claw-cam/internal/dataurl"
	"github.com/fpang/claw-cam/internal/jsonutil"
	"github.com/rs/zerolog/log"
)

// imageFields are the response fields searched for an image, in order.
var imageFields = []string{"imageUrl", "image", "outputImage", "result", "dataUrl", "output", "base64", "imageBase64", "imageBytes"}

// AgentProvider posts the frame to an image-editing agent endpoint that takes
// {"prompt", "image"} JSON and answers with an image in one of imageFields,
// or a bare string body.
type AgentProvider struct {
	Endpoint   string
	Token      string
	httpClient *http.Client
}

var _ Provider = (*AgentProvider)(nil)

// NewAgentProvider creates the agent provider. token may be empty.
func NewAgentProvider(endpoint, token string) *AgentProvider {
	return &AgentProvider{Endpoint: endpoint, Token: token, httpClient: &http.Client{}}
}

func (p *AgentProvider) Name() string      { return ProviderAgent }
func (p *AgentProvider) RequiresKey() bool { return false }

func (p *AgentProvider) endpoint(req Request) string {
	if req.Endpoint != "" {
		return req.Endpoint
	}
	return p.Endpoint
}

// Check fails when no agent endpoint is configured.
func (p *AgentProvider) Check(req Request) error {
	if p.endpoint(req) == "" {
		return configErrorf("agent endpoint is not configured, set OPENCLAW_AGENT_ENDPOINT")
	}
	return nil
}

type agentRequest struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image"`
}

func (p *AgentProvider) Generate(ctx context.Context, _ string, req Request) (string, error) {
	startTime := time.Now()
	endpoint := p.endpoint(req)

	body, err := json.Marshal(agentRequest{
		Prompt: assets.RenderAgentPrompt(req.Prompt),
		Image:  req.Input,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", configErrorf("invalid agent endpoint %q: %v", endpoint, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.Token)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read agent response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := string(respBody)
		if detail == "" {
			detail = resp.Status
		}
		return "", &StatusError{Code: resp.StatusCode, Body: detail}
	}

	out, ok := ParseAgentResponse(respBody)
	if !ok {
		return "", &Error{
			Kind:    KindInvalidResponse,
			Message: fmt.Sprintf("agent response did not contain image data (body: %s)", truncateString(string(respBody), 200)),
		}
	}
	log.Debug().
		Str("endpoint", endpoint).
		Int("output_chars", len(out)).
		Dur("duration", time.Since(startTime)).
		Msg("Agent image generation complete")
	return out, nil
}

// ParseAgentResponse extracts an image data URL from an agent response body.
// The body may be a JSON object carrying the image in one of the known
// fields, a JSON string, a JSON object embedded in prose or a fenced block,
// or a raw string.
func ParseAgentResponse(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", false
	}

	var payload any
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		if obj, ok := jsonutil.ExtractObject(string(trimmed)); ok {
			return ParseAgentResponse([]byte(obj))
		}
		return dataurl.Normalize(string(trimmed))
	}

	switch v := payload.(type) {
	case string:
		return dataurl.Normalize(v)
	case map[string]any:
		for _, field := range imageFields {
			s, ok := v[field].(string)
			if !ok || strings.TrimSpace(s) == "" {
				continue
			}
			if out, ok := dataurl.Normalize(s); ok {
				return out, true
			}
		}
	}
	return "", false
}
