// Package config holds the booth's runtime configuration: defaults,
// environment variables and command-line overrides.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fpang/claw-cam/internal/auth"
	"github.com/fpang/claw-cam/internal/generation"
	"github.com/fpang/claw-cam/internal/photo"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// Storage backends selectable with CLAWCAM_STORAGE.
const (
	StorageSQLite = "sqlite"
	StorageS3     = "s3"
	StorageDynamo = "dynamodb"
	// StorageAWS keeps payloads in S3 and settings in DynamoDB.
	StorageAWS  = "aws"
	StorageNone = "none"
)

// Config is everything a booth binary needs to start.
type Config struct {
	Provider      string
	Model         string
	APIURL        string
	APIKeys       []string
	AgentEndpoint string
	AgentToken    string

	Timeout           time.Duration
	MaxConcurrent     int
	RequestsPerMinute int

	Storage      string
	SQLitePath   string
	S3Bucket     string
	S3Prefix     string
	DynamoTable  string
	Compress     bool
	SSMKeysParam string

	CaptureInterval int
	BurstCount      int
	MaxPhotos       int

	ListenAddr string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Provider:        generation.ProviderGemini,
		Model:           generation.DefaultModel,
		Timeout:         generation.DefaultTimeout,
		MaxConcurrent:   generation.DefaultMaxConcurrent,
		Storage:         StorageSQLite,
		SQLitePath:      "./clawcam.db",
		S3Prefix:        "booth",
		CaptureInterval: photo.DefaultCaptureInterval,
		BurstCount:      photo.DefaultBurstCount,
		MaxPhotos:       photo.DefaultMaxPhotos,
		ListenAddr:      ":8080",
	}
}

// FromEnv returns Default overridden by environment variables.
func FromEnv() Config {
	c := Default()
	c.Provider = envOr("CLAWCAM_PROVIDER", c.Provider)
	c.Model = envOr("GEMINI_MODEL", c.Model)
	c.APIURL = envOr("CLAWCAM_API_URL", c.APIURL)
	c.AgentEndpoint = firstEnv("OPENCLAW_AGENT_ENDPOINT", "VITE_OPENCLAW_AGENT_ENDPOINT", "OPENCLAW_ENDPOINT")
	c.AgentToken = firstEnv("OPENCLAW_AGENT_TOKEN", "VITE_OPENCLAW_AGENT_TOKEN")

	if keys, err := auth.GetAPIKeys(); err == nil {
		c.APIKeys = keys
	}

	c.Timeout = envDuration("CLAWCAM_TIMEOUT", c.Timeout)
	c.MaxConcurrent = envInt("CLAWCAM_MAX_CONCURRENT", c.MaxConcurrent)
	c.RequestsPerMinute = envInt("CLAWCAM_RPM", c.RequestsPerMinute)

	c.Storage = strings.ToLower(envOr("CLAWCAM_STORAGE", c.Storage))
	c.SQLitePath = envOr("SQLITE_DB_PATH", c.SQLitePath)
	c.S3Bucket = envOr("CLAWCAM_S3_BUCKET", c.S3Bucket)
	c.S3Prefix = envOr("CLAWCAM_S3_PREFIX", c.S3Prefix)
	c.DynamoTable = envOr("CLAWCAM_DYNAMO_TABLE", c.DynamoTable)
	c.Compress = envBool("CLAWCAM_COMPRESS", c.Compress)
	c.SSMKeysParam = envOr("SSM_API_KEYS_PARAM", c.SSMKeysParam)

	c.CaptureInterval = envInt("CLAWCAM_CAPTURE_INTERVAL", c.CaptureInterval)
	c.BurstCount = envInt("CLAWCAM_BURST_COUNT", c.BurstCount)
	c.MaxPhotos = envInt("CLAWCAM_MAX_PHOTOS", c.MaxPhotos)
	c.ListenAddr = envOr("CLAWCAM_ADDR", c.ListenAddr)
	if port := os.Getenv("PORT"); port != "" && os.Getenv("CLAWCAM_ADDR") == "" {
		c.ListenAddr = ":" + port
	}
	return c
}

// BindFlags registers command-line overrides for c on fs. Flag defaults are
// the current values of c, so bind after FromEnv.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Provider, "provider", c.Provider, "generation provider (gemini, gemini-rest, agent)")
	fs.StringVar(&c.Model, "model", c.Model, "model identifier")
	fs.StringVar(&c.APIURL, "api-url", c.APIURL, "provider endpoint override")
	fs.StringSliceVar(&c.APIKeys, "api-key", c.APIKeys, "API key (repeatable, up to 5)")
	fs.StringVar(&c.AgentEndpoint, "agent-endpoint", c.AgentEndpoint, "image-editing agent endpoint")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "per-attempt generation timeout")
	fs.IntVar(&c.MaxConcurrent, "max-concurrent", c.MaxConcurrent, "simultaneous generations")
	fs.StringVar(&c.Storage, "storage", c.Storage, "storage backend (sqlite, s3, dynamodb, aws, none)")
	fs.StringVar(&c.SQLitePath, "db", c.SQLitePath, "SQLite database path")
	fs.BoolVar(&c.Compress, "compress", c.Compress, "zstd-compress stored payloads")
	fs.IntVar(&c.MaxPhotos, "max-photos", c.MaxPhotos, "gallery size")
}

// Settings returns the photo settings seeded from c.
func (c Config) Settings() photo.Settings {
	return photo.Settings{
		Provider:            c.Provider,
		APIURL:              c.APIURL,
		Model:               c.Model,
		AutoCaptureInterval: c.CaptureInterval,
		BurstCount:          c.BurstCount,
	}
}

// Generation returns the client options derived from c.
func (c Config) Generation() generation.Options {
	return generation.Options{
		Timeout:           c.Timeout,
		MaxConcurrent:     int64(c.MaxConcurrent),
		RequestsPerMinute: c.RequestsPerMinute,
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Warn().Str("env", key).Str("value", v).Msg("Ignoring non-integer environment value")
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Warn().Str("env", key).Str("value", v).Msg("Ignoring non-boolean environment value")
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	log.Warn().Str("env", key).Str("value", v).Msg("Ignoring invalid duration")
	return def
}
