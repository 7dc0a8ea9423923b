package cli

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/fpang/claw-cam/internal/photo"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// FormatBytes renders n as B, KB or MB.
func FormatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

// WritePhotoTable prints the gallery as an aligned table. Ages are relative
// to now.
func WritePhotoTable(w io.Writer, photos []photo.Photo, favorites, selection []string, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTYLE\tSTATUS\tAGE\tFLAGS")
	for _, p := range photos {
		status := "ready"
		if p.IsBusy {
			status = "generating"
		}
		flags := ""
		if slices.Contains(favorites, p.ID) {
			flags += "★"
		}
		if i := slices.Index(selection, p.ID); i >= 0 {
			flags += fmt.Sprintf("[%d]", i+1)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Mode, status, FormatDurationShort(now.Sub(p.CreatedAt)), flags)
	}
	return tw.Flush()
}
