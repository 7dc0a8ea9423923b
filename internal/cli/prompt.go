package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
)

// ErrCanceled is returned when the user dismisses the file picker.
var ErrCanceled = errors.New("selection canceled")

// PickCaptures opens the native file dialog for one or more images.
func PickCaptures() ([]string, error) {
	selected, err := zenity.SelectFileMultiple(
		zenity.Title("Select captures"),
		zenity.FileFilters{
			{
				Name:     "Images",
				Patterns: []string{"*.jpg", "*.jpeg", "*.png", "*.gif", "*.webp"},
			},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return nil, ErrCanceled
		}
		return nil, fmt.Errorf("file picker failed: %w", err)
	}
	log.Debug().Int("count", len(selected)).Msg("Captures picked via native dialog")
	return selected, nil
}

// PromptForPath asks for a path on out and reads one line from in. It
// returns def when the user enters nothing.
func PromptForPath(in io.Reader, out io.Writer, label, def string) string {
	if def != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		log.Warn().Err(err).Msg("Failed to read input, using default")
		return def
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}
