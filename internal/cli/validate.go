package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/claw-cam/internal/auth"
	"github.com/fpang/claw-cam/internal/generation"
)

// WriteKeyReport prints one line per key status and returns how many keys
// work.
func WriteKeyReport(w io.Writer, statuses []auth.KeyStatus) int {
	ok := 0
	for _, s := range statuses {
		if s.OK() {
			ok++
			fmt.Fprintf(w, "  slot %d  %s  ok (%s)\n", s.Index+1, s.Masked, s.Duration.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(w, "  slot %d  %s  %s\n", s.Index+1, s.Masked, keyAdvice(s.Err))
	}
	fmt.Fprintf(w, "%d of %d keys usable\n", ok, len(statuses))
	return ok
}

// keyAdvice turns a validation failure into a one-line hint.
func keyAdvice(err error) string {
	switch generation.KindOf(err) {
	case generation.KindRateLimited:
		return "quota exceeded, try again later or check usage limits"
	case generation.KindConfig:
		return "client setup failed: " + err.Error()
	case generation.KindTimeout:
		return "timed out, check your internet connection"
	case generation.KindProvider:
		return "rejected: " + err.Error()
	}
	return "failed: " + err.Error()
}

// ValidateAndResolveDirectory checks that the path exists and is a directory,
// then returns the absolute path. Exits fatally on failure.
func ValidateAndResolveDirectory(dirPath string) string {
	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatal().Str("path", dirPath).Msg("Directory not found")
		}
		log.Fatal().Err(err).Str("path", dirPath).Msg("Failed to access directory")
	}
	if !info.IsDir() {
		log.Fatal().Str("path", dirPath).Msg("Path is not a directory")
	}

	if absPath, err := filepath.Abs(dirPath); err == nil {
		dirPath = absPath
	}
	return dirPath
}
