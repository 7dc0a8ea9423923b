// Package filehandler loads booth captures from disk and writes generated
// images back out, for the CLI and MCP front ends.
package filehandler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/fpang/claw-cam/internal/dataurl"
)

// MaxCaptureSize bounds a capture file read from disk.
const MaxCaptureSize = 20 << 20

// SupportedImageExtensions are the capture formats the GIF assembler can
// decode.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ErrNotImage is returned for files whose content is not an image.
var ErrNotImage = errors.New("file is not an image")

// Capture is an image file loaded as a data URL.
type Capture struct {
	Path     string
	MIMEType string
	DataURL  string
	Size     int
	// Info is nil when the file carries no readable EXIF block.
	Info *CaptureInfo
}

// LoadCapture reads path and encodes it as a data URL. The MIME type comes
// from the content, not the extension.
func LoadCapture(path string) (*Capture, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat capture: %w", err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("capture path is a directory: %s", path)
	}
	if fi.Size() > MaxCaptureSize {
		return nil, fmt.Errorf("capture %s is %d bytes, limit is %d", path, fi.Size(), MaxCaptureSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotImage, path, mime.String())
	}

	c := &Capture{
		Path:     path,
		MIMEType: mime.String(),
		DataURL:  dataurl.Encode(mime.String(), data),
		Size:     len(data),
	}
	if info, err := ReadCaptureInfo(data); err == nil {
		c.Info = info
	} else {
		log.Debug().Err(err).Str("path", path).Msg("No EXIF metadata in capture")
	}

	log.Debug().
		Str("path", path).
		Str("mime", c.MIMEType).
		Int("bytes", c.Size).
		Msg("Capture loaded")
	return c, nil
}

// ScanCaptures lists the supported image files directly inside dir, sorted
// by name. limit 0 means no limit.
func ScanCaptures(dir string, limit int) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory not found: %s", dir)
		}
		return nil, fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error accessing path, skipping")
			return nil
		}
		if d.IsDir() {
			if path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := SupportedImageExtensions[strings.ToLower(filepath.Ext(path))]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	sort.Strings(paths)
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	return paths, nil
}

// SaveImage decodes a data URL and writes it to path. When path has no
// extension one matching the payload's MIME type is added. It returns the
// path written.
func SaveImage(payload, path string) (string, error) {
	mimeType, data, err := dataurl.Decode(payload)
	if err != nil {
		return "", err
	}
	if filepath.Ext(path) == "" {
		if m := mimetype.Lookup(mimeType); m != nil {
			path += m.Extension()
		} else {
			path += mimetype.Detect(data).Extension()
		}
	}
	if err := WriteFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("bytes", len(data)).Msg("File written")
	return nil
}
