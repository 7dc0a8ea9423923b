package generation

import (
	"errors"
	"fmt"
)

// Kind categorizes a generation failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfig means no usable provider configuration: no keys, no endpoint
	// or an unknown provider. Never retried.
	KindConfig
	// KindRateLimited means the provider rejected the key for quota or rate
	// limiting. The key is skipped, not retried.
	KindRateLimited
	// KindTimeout means the per-attempt deadline expired.
	KindTimeout
	// KindCancelled means the caller cancelled the request.
	KindCancelled
	// KindProvider is a transport or HTTP failure. Retried with backoff.
	KindProvider
	// KindInvalidResponse means the provider answered without usable image data.
	KindInvalidResponse
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindRateLimited:
		return "RateLimited"
	case KindTimeout:
		return "Timeout"
	case KindCancelled:
		return "Cancelled"
	case KindProvider:
		return "ProviderError"
	case KindInvalidResponse:
		return "InvalidResponse"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by Client.Generate and by providers.
type Error struct {
	Kind    Kind
	Message string
	// Status is the HTTP status reported by the provider, if any.
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a bare sentinel of the same Kind, so errors.Is(err, ErrTimeout)
// works for any timeout regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Status == 0 && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrConfig          = &Error{Kind: KindConfig}
	ErrRateLimited     = &Error{Kind: KindRateLimited}
	ErrTimeout         = &Error{Kind: KindTimeout}
	ErrCancelled       = &Error{Kind: KindCancelled}
	ErrProvider        = &Error{Kind: KindProvider}
	ErrInvalidResponse = &Error{Kind: KindInvalidResponse}
)

// ErrPoolExhausted is wrapped by the terminal error returned when every key
// in the pool has failed.
var ErrPoolExhausted = errors.New("api key pool exhausted")

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func configErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}

// IsSilent reports whether err should not be shown to the user. Only
// caller cancellation is silent; a timeout was not asked for.
func IsSilent(err error) bool {
	return KindOf(err) == KindCancelled
}
