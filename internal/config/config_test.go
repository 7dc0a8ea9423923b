package config

import (
	"testing"
	"time"

	"github.com/fpang/claw-cam/internal/generation"
	"github.com/spf13/pflag"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEYS", "k1,k2")
	t.Setenv("CLAWCAM_PROVIDER", "agent")
	t.Setenv("OPENCLAW_AGENT_ENDPOINT", "")
	t.Setenv("VITE_OPENCLAW_AGENT_ENDPOINT", "http://127.0.0.1:8787/agent-run")
	t.Setenv("CLAWCAM_TIMEOUT", "1500")
	t.Setenv("CLAWCAM_MAX_CONCURRENT", "not-a-number")
	t.Setenv("CLAWCAM_STORAGE", "AWS")
	t.Setenv("CLAWCAM_COMPRESS", "true")
	t.Setenv("CLAWCAM_ADDR", "")
	t.Setenv("PORT", "9000")

	c := FromEnv()
	if c.Provider != "agent" {
		t.Errorf("Provider = %q", c.Provider)
	}
	if c.AgentEndpoint != "http://127.0.0.1:8787/agent-run" {
		t.Errorf("AgentEndpoint = %q", c.AgentEndpoint)
	}
	if len(c.APIKeys) != 2 {
		t.Errorf("APIKeys = %v", c.APIKeys)
	}
	if c.Timeout != 1500*time.Millisecond {
		t.Errorf("Timeout = %v", c.Timeout)
	}
	if c.MaxConcurrent != generation.DefaultMaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want default", c.MaxConcurrent)
	}
	if c.Storage != StorageAWS || !c.Compress {
		t.Errorf("Storage = %q, Compress = %v", c.Storage, c.Compress)
	}
	if c.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q", c.ListenAddr)
	}
}

func TestBindFlagsOverrides(t *testing.T) {
	c := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.BindFlags(fs)
	if err := fs.Parse([]string{"--provider", "gemini-rest", "--api-key", "a", "--api-key", "b", "--storage", "none", "--timeout", "5s"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Provider != "gemini-rest" || c.Storage != StorageNone || c.Timeout != 5*time.Second {
		t.Errorf("config = %+v", c)
	}
	if len(c.APIKeys) != 2 || c.APIKeys[1] != "b" {
		t.Errorf("APIKeys = %v", c.APIKeys)
	}

	s := c.Settings()
	if s.Provider != "gemini-rest" || s.Model != c.Model {
		t.Errorf("Settings = %+v", s)
	}
}
