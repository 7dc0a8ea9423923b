// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and the style
// catalog as styles.json; both are embedded at compile time.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// StylesJSON is the style catalog: an ordered JSON array of
// {id, name, emoji, prompt} entries. The "random" and "custom" entries are
// sentinels whose prompt is resolved at capture time.
//
//go:embed styles.json
var StylesJSON []byte

//go:embed prompts/agent-instructions.txt
var agentInstructionsTemplate string

// Pre-parsed so a malformed template fails at program startup.
var agentPromptTmpl = template.Must(template.New("agent").Parse(agentInstructionsTemplate))

// AgentPromptData holds the dynamic data injected into the agent prompt.
type AgentPromptData struct {
	Instruction string
}

// RenderAgentPrompt wraps a style instruction in the image-editing agent
// instructions sent to agent-style providers.
func RenderAgentPrompt(instruction string) string {
	var buf bytes.Buffer
	_ = agentPromptTmpl.Execute(&buf, AgentPromptData{Instruction: instruction})
	return string(bytes.TrimSpace(buf.Bytes()))
}
