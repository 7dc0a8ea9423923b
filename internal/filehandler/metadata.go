package filehandler

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
)

// CaptureInfo is the EXIF metadata of a capture that is worth logging.
type CaptureInfo struct {
	DateTaken   time.Time
	HasDate     bool
	CameraMake  string
	CameraModel string
}

// Camera returns "make model", or "" when neither is known.
func (i *CaptureInfo) Camera() string {
	return strings.TrimSpace(i.CameraMake + " " + i.CameraModel)
}

// ReadCaptureInfo decodes the EXIF block of an image. Only the metadata
// bytes are read, not the pixels.
func ReadCaptureInfo(data []byte) (*CaptureInfo, error) {
	exif, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	info := &CaptureInfo{
		CameraMake:  strings.TrimSpace(exif.Make),
		CameraModel: strings.TrimSpace(exif.Model),
	}
	// DateTimeOriginal, then CreateDate, then ModifyDate.
	for _, t := range []time.Time{exif.DateTimeOriginal(), exif.CreateDate(), exif.ModifyDate()} {
		if !t.IsZero() {
			info.DateTaken = t
			info.HasDate = true
			break
		}
	}
	return info, nil
}
