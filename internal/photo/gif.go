package photo

import (
	"context"
	"slices"

	"github.com/fpang/claw-cam/internal/dataurl"
	"github.com/fpang/claw-cam/internal/gifmaker"
	"github.com/fpang/claw-cam/internal/imagecache"
)

// completedLocked reports whether p is done and has a valid output.
func (o *Orchestrator) completedLocked(p Photo) bool {
	if p.IsBusy {
		return false
	}
	out, ok := o.cache.Get(imagecache.Output, p.ID)
	return ok && dataurl.IsValidOutput(out)
}

// GIFFrames returns the photos a GIF is assembled from. With ids, those
// completed photos are used in the given order; without, the most recent
// completed photos in chronological order. At most gifmaker.MaxFrames are
// returned.
func (o *Orchestrator) GIFFrames(ids []string) []Photo {
	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()

	var frames []Photo
	if len(ids) > 0 {
		for _, id := range ids {
			i := s.indexLocked(id)
			if i < 0 || !o.completedLocked(s.photos[i]) {
				continue
			}
			frames = append(frames, s.photos[i])
			if len(frames) == gifmaker.MaxFrames {
				break
			}
		}
		return frames
	}

	for _, p := range s.photos {
		if o.completedLocked(p) {
			frames = append(frames, p)
			if len(frames) == gifmaker.MaxFrames {
				break
			}
		}
	}
	slices.Reverse(frames)
	return frames
}

// MakeGIF assembles a GIF from the photos GIFFrames picks for ids. It fails
// with gifmaker.ErrEncoding when no usable frame remains.
func (o *Orchestrator) MakeGIF(ctx context.Context, ids []string) ([]byte, error) {
	frames := o.GIFFrames(ids)
	payloads := make([]string, 0, len(frames))
	for _, p := range frames {
		if out, ok := o.Output(p.ID); ok {
			payloads = append(payloads, out)
		}
	}

	o.state.mu.Lock()
	o.state.gifBusy = true
	o.state.mu.Unlock()
	defer func() {
		o.state.mu.Lock()
		o.state.gifBusy = false
		o.state.mu.Unlock()
	}()

	return gifmaker.Assemble(ctx, payloads, gifmaker.Options{})
}

// ReplayPhotos returns the photos the replay slideshow cycles through: the
// selected photos with valid output, in selection order, or every completed
// photo when none of the selection qualifies.
func (o *Orchestrator) ReplayPhotos() []Photo {
	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Photo
	for _, id := range s.selection {
		if i := s.indexLocked(id); i >= 0 && o.completedLocked(s.photos[i]) {
			out = append(out, s.photos[i])
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, p := range s.photos {
		if o.completedLocked(p) {
			out = append(out, p)
		}
	}
	return out
}
