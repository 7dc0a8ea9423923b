package auth

import (
	"context"
	"time"

	"github.com/fpang/claw-cam/internal/generation"
	"github.com/fpang/claw-cam/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ValidationModel is the model pinged to validate a key. It is a cheap text
// model; image models count against a smaller quota.
const ValidationModel = "gemini-2.5-flash"

// KeyStatus is the outcome of validating one key slot.
type KeyStatus struct {
	Index  int
	Masked string
	// Err is nil for a working key, otherwise a classified *generation.Error.
	Err      error
	Duration time.Duration
}

// OK reports whether the key answered.
func (s KeyStatus) OK() bool { return s.Err == nil }

// ValidateKeys makes one minimal generateContent call per key and reports
// which keys work. baseURL may be empty for the public endpoint.
func ValidateKeys(ctx context.Context, keys []string, baseURL string) []KeyStatus {
	out := make([]KeyStatus, 0, len(keys))
	for i, key := range keys {
		status := KeyStatus{Index: i, Masked: generation.MaskKey(key)}
		start := time.Now()
		status.Err = validateKey(ctx, key, baseURL)
		status.Duration = time.Since(start)
		out = append(out, status)
	}
	return out
}

func validateKey(ctx context.Context, key, baseURL string) error {
	cfg := &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cfg.HTTPOptions.BaseURL = baseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return &generation.Error{Kind: generation.KindConfig, Message: "failed to create Gemini client", Err: err}
	}

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, ValidationModel, genai.Text("hi"), nil)
	elapsed := time.Since(start)

	result := "success"
	if err == nil && (resp == nil || len(resp.Candidates) == 0) {
		err = &generation.Error{Kind: generation.KindInvalidResponse, Message: "API returned empty response"}
	}
	if err != nil {
		classified := generation.Classify(err)
		result = classified.Kind.String()
		err = classified
	}

	metrics.New(metrics.Namespace).
		Dimension("Result", result).
		Duration("ApiKeyValidationLatency", elapsed).
		Count("ApiKeyValidationResult").
		Flush()

	log.Debug().
		Str("key", generation.MaskKey(key)).
		Str("result", result).
		Dur("duration", elapsed).
		Msg("API key validation result")
	return err
}
