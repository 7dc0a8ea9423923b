// Package generation turns a captured frame and a style prompt into a
// generated image by calling a remote image model. The Client owns key
// rotation, retries with backoff, per-attempt timeouts, cancellation, a
// global concurrency ceiling and response validation; Providers only know how
// to talk to one kind of backend.
package generation

import (
	"context"
	"time"
)

// Provider names.
const (
	ProviderGemini     = "gemini"
	ProviderGeminiREST = "gemini-rest"
	ProviderAgent      = "agent"
)

// DefaultModel is the image model used when none is configured.
const DefaultModel = "gemini-2.5-flash-image-preview"

// DefaultTimeout bounds a single provider attempt.
const DefaultTimeout = 123333 * time.Millisecond

// Request is one generation: the style prompt applied to the input frame.
type Request struct {
	Provider string
	Model    string
	// Endpoint overrides the provider's default base URL or agent endpoint.
	Endpoint string
	Prompt   string
	// Input is the captured frame as a data URL.
	Input string
}

// Provider calls one kind of image-generation backend. Generate returns the
// generated image as a data URL or bare base64; the Client validates it.
// Errors should be *Error or *StatusError where the provider knows better
// than Classify.
type Provider interface {
	Name() string
	// RequiresKey reports whether requests need a key from the pool.
	RequiresKey() bool
	// Check reports a configuration problem for req, e.g. a missing endpoint.
	Check(req Request) error
	Generate(ctx context.Context, key string, req Request) (string, error)
}
