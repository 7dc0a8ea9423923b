// Package jsonutil digs JSON out of model and agent replies that wrap it in
// markdown code fences or surrounding prose.
package jsonutil

import (
	"encoding/json"
	"strings"
)

// StripMarkdownFences returns the body of a ```json ... ``` (or bare ```)
// block, or text unchanged when it is not fenced.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	// Drop the opening fence line, including any language tag.
	nl := strings.IndexByte(text, '\n')
	if nl < 0 {
		return text
	}
	body := text[nl+1:]
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// ExtractObject finds the outermost JSON object in text: from the first '{'
// to the last '}'. It reports false when that span is not valid JSON.
func ExtractObject(text string) (string, bool) {
	text = StripMarkdownFences(text)
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}
