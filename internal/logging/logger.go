package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnvVar names the environment variable that selects the log level.
const LevelEnvVar = "CLAWCAM_LOG_LEVEL"

// Init initializes the global logger with configuration from environment variables.
// CLAWCAM_LOG_LEVEL controls the log level: debug, info, warn, error (default: info).
// CLAWCAM_LOG_FORMAT=json switches from the console writer to raw JSON lines,
// which is what CloudWatch expects when running as a Lambda.
func Init() {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv(LevelEnvVar)))

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if os.Getenv("CLAWCAM_LOG_FORMAT") == "json" {
		out = os.Stderr
	}
	log.Logger = log.Output(out).With().Str("service", "claw-cam").Logger()
}

// ParseLevel maps a level name to a zerolog level. Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
