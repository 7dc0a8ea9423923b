// Package auth locates the booth's API keys outside persisted settings:
// environment variables first, then a GPG-encrypted credentials file.
package auth

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fpang/claw-cam/internal/generation"
	"github.com/rs/zerolog/log"
)

const (
	credentialDir  = ".claw-cam"
	credentialFile = "credentials.gpg"
)

// GetAPIKeys returns up to generation.MaxKeySlots keys from the first source
// that has any. Priority order:
//  1. GEMINI_API_KEYS (comma or newline separated)
//  2. GEMINI_API_KEY
//  3. GPG-encrypted file at ~/.claw-cam/credentials.gpg, one key per line
func GetAPIKeys() ([]string, error) {
	if keys := SplitKeys(os.Getenv("GEMINI_API_KEYS")); len(keys) > 0 {
		log.Debug().Int("keys", len(keys)).Msg("Using API keys from GEMINI_API_KEYS")
		return keys, nil
	}
	if key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return []string{key}, nil
	}

	raw, err := getFromGPG()
	if keys := SplitKeys(raw); err == nil && len(keys) > 0 {
		log.Debug().Int("keys", len(keys)).Msg("Using API keys from GPG encrypted file")
		return keys, nil
	}

	log.Debug().Err(err).Msg("No API key source available")
	return nil, fmt.Errorf("API key not found. Set GEMINI_API_KEY or GEMINI_API_KEYS, or store keys in ~/%s/%s", credentialDir, credentialFile)
}

// SplitKeys splits a comma- or newline-separated key list, dropping blanks
// and anything past generation.MaxKeySlots.
func SplitKeys(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	keys := generation.CompactKeys(fields)
	if len(keys) > generation.MaxKeySlots {
		log.Warn().Int("found", len(keys)).Int("max", generation.MaxKeySlots).Msg("Ignoring API keys beyond the slot limit")
		keys = keys[:generation.MaxKeySlots]
	}
	return keys
}

// getFromGPG decrypts the credentials file.
func getFromGPG() (string, error) {
	credPath, err := getCredentialPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	args := []string{"--decrypt", "--quiet"}
	if passphrasePath, ok := passphraseFile(); ok {
		args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
	}
	args = append(args, credPath)

	output, err := exec.Command("gpg", args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("GPG decryption failed: %s", string(exitErr.Stderr))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}
	return string(output), nil
}

// getCredentialPath returns the full path to the credentials file.
func getCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, credentialFile), nil
}

// passphraseFile finds .gpg-passphrase next to the credentials file or in
// the working directory. Files readable by group or others are ignored.
func passphraseFile() (string, bool) {
	var candidates []string
	if credPath, err := getCredentialPath(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(credPath), ".gpg-passphrase"))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".gpg-passphrase"))
	}

	for _, path := range candidates {
		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		if mode := fi.Mode().Perm(); mode&0077 != 0 {
			log.Warn().
				Str("passphrase_file", path).
				Str("permissions", fmt.Sprintf("%04o", mode)).
				Msg("Passphrase file has insecure permissions (should be 0600); skipping")
			continue
		}
		return path, true
	}
	return "", false
}
