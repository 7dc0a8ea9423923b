// Package dataurl parses, builds and validates the data-URL image payloads
// that flow between captures, providers, storage and the GIF assembler.
package dataurl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MinOutputLength is the smallest payload, in bytes of data-URL text, that
// counts as a usable generated image.
const MinOutputLength = 100

// DefaultMIMEType is assumed for bare base64 whose content cannot be sniffed.
const DefaultMIMEType = "image/png"

const imagePrefix = "data:image/"

// ErrMalformed is returned when a string is not a base64 data URL.
var ErrMalformed = errors.New("malformed data URL")

var base64Body = regexp.MustCompile(`^[A-Za-z0-9+/=\s]+$`)

// IsValidOutput reports whether payload can be rendered and persisted as a
// generated image: non-empty, longer than MinOutputLength and tagged with an
// image MIME type.
func IsValidOutput(payload string) bool {
	return len(payload) > MinOutputLength && strings.HasPrefix(payload, imagePrefix)
}

// IsImage reports whether s is a data URL with an image MIME type.
func IsImage(s string) bool {
	return strings.HasPrefix(s, imagePrefix)
}

// LooksLikeBase64 reports whether s consists only of base64 alphabet and whitespace.
func LooksLikeBase64(s string) bool {
	return s != "" && base64Body.MatchString(s)
}

// Encode builds a base64 data URL for data with the given MIME type.
func Encode(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Decode splits a base64 data URL into its MIME type and raw bytes.
func Decode(s string) (mimeType string, data []byte, err error) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, ErrMalformed
	}
	header, body, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return "", nil, ErrMalformed
	}
	mimeType, params, _ := strings.Cut(header, ";")
	if !strings.Contains(params, "base64") {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrMalformed)
	}
	data, err = base64.StdEncoding.DecodeString(stripSpace(body))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return mimeType, data, nil
}

// FromBase64 turns bare base64 image bytes into a data URL, sniffing the MIME
// type from the decoded content. Content that does not decode or is not
// recognised as an image is labelled DefaultMIMEType.
func FromBase64(b64 string) string {
	clean := stripSpace(b64)
	mimeType := DefaultMIMEType
	if raw, err := base64.StdEncoding.DecodeString(clean); err == nil {
		if mt := mimetype.Detect(raw); strings.HasPrefix(mt.String(), "image/") {
			mimeType = mt.String()
		}
	}
	return "data:" + mimeType + ";base64," + clean
}

// FromBytes builds a data URL for raw image bytes, sniffing their MIME type.
func FromBytes(raw []byte) string {
	mimeType := DefaultMIMEType
	if mt := mimetype.Detect(raw); strings.HasPrefix(mt.String(), "image/") {
		mimeType = mt.String()
	}
	return Encode(mimeType, raw)
}

// Normalize reduces a provider string to a data URL: image data URLs are
// returned unchanged, bare base64 is wrapped. ok is false for anything else.
func Normalize(s string) (string, bool) {
	switch {
	case IsImage(s):
		return s, true
	case LooksLikeBase64(s):
		return FromBase64(s), true
	default:
		return "", false
	}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}
