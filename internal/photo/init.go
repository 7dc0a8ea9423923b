package photo

import (
	"context"
	"slices"
	"time"

	"github.com/fpang/claw-cam/internal/dataurl"
	"github.com/fpang/claw-cam/internal/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Init rehydrates the state from durable storage: settings, favorites,
// selection, the photo list and every cached payload. It then reconciles
// the list and persists the cleaned result. Storage failures leave the
// defaults in place.
func (o *Orchestrator) Init(ctx context.Context) {
	start := time.Now()

	var (
		photos              []Photo
		favorites, selected []string
		keys                []string
		inputs, outputs     map[string]string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		inputs = o.store.GetAllStrings(gctx, store.Inputs)
		return nil
	})
	g.Go(func() error {
		outputs = o.store.GetAllStrings(gctx, store.Outputs)
		return nil
	})
	o.store.GetJSON(ctx, keyPhotos, &photos)
	o.store.GetJSON(ctx, keyFavorites, &favorites)
	o.store.GetJSON(ctx, keySelection, &selected)
	_ = g.Wait()

	if o.store.GetJSON(ctx, keyAPIKeys, &keys) && len(keys) > 0 {
		o.client.Keys().Set(keys)
	}
	var keyCursor int
	if o.store.GetJSON(ctx, keyAPIKeyCursor, &keyCursor) {
		o.client.Keys().SetCursor(keyCursor)
	}

	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()

	o.loadSettingsLocked(ctx)
	s.keyCursor = o.client.Keys().Cursor()
	o.cache.Load(inputs, outputs)

	kept := make([]Photo, 0, len(photos))
	removed := 0
	now := o.now()
	for _, p := range photos {
		if reason := o.staleReason(p, outputs[p.ID], now); reason != "" {
			log.Info().Str("id", p.ID).Str("reason", reason).Msg("Dropping photo at startup")
			o.cache.Delete(p.ID)
			o.store.Delete(store.Inputs, p.ID)
			o.store.Delete(store.Outputs, p.ID)
			removed++
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) > o.maxPhotos {
		for _, p := range kept[o.maxPhotos:] {
			o.cache.Delete(p.ID)
			o.store.Delete(store.Inputs, p.ID)
			o.store.Delete(store.Outputs, p.ID)
			removed++
		}
		kept = kept[:o.maxPhotos]
	}

	live := make(map[string]bool, len(kept))
	for _, p := range kept {
		live[p.ID] = true
	}
	// Payloads whose record is gone.
	orphans := 0
	for _, id := range o.cache.IDs() {
		if !live[id] {
			o.cache.Delete(id)
			o.store.Delete(store.Inputs, id)
			o.store.Delete(store.Outputs, id)
			orphans++
		}
	}

	gone := func(id string) bool { return !live[id] }
	s.photos = kept
	s.favorites = slices.DeleteFunc(favorites, gone)
	s.selection = slices.DeleteFunc(selected, gone)

	o.persistPhotosLocked()
	o.store.SetJSON(keyFavorites, nonNil(s.favorites))
	o.store.SetJSON(keySelection, nonNil(s.selection))

	log.Info().
		Int("photos", len(kept)).
		Int("removed", removed).
		Int("orphans", orphans).
		Int("favorites", len(s.favorites)).
		Int("keys", o.client.Keys().Len()).
		Bool("storage", o.store.Available()).
		Dur("duration", time.Since(start)).
		Msg("Photo booth state restored")
}

// staleReason says why p must not survive a restart, or "" to keep it.
func (o *Orchestrator) staleReason(p Photo, output string, now time.Time) string {
	switch {
	case p.ID == "":
		return "missing id"
	case p.IsBusy:
		// Its generation died with the previous process.
		return "interrupted"
	case output == "" && now.Sub(p.CreatedAt) > o.staleAfter:
		return "no output"
	case output != "" && !dataurl.IsValidOutput(output):
		return "invalid output"
	}
	return ""
}

func (o *Orchestrator) loadSettingsLocked(ctx context.Context) {
	s := o.state
	var (
		interval, burst, cursor int
		provider, apiURL, model string
	)
	if o.store.GetJSON(ctx, keyCaptureInterval, &interval) {
		s.settings.AutoCaptureInterval = clamp(interval, MinCaptureInterval, MaxCaptureInterval)
	}
	if o.store.GetJSON(ctx, keyBurstCount, &burst) {
		s.settings.BurstCount = clamp(burst, 1, MaxBurstCount)
	}
	if o.store.GetJSON(ctx, keyProvider, &provider) && slices.Contains(o.client.Providers(), provider) {
		s.settings.Provider = provider
	}
	if o.store.GetJSON(ctx, keyAPIURL, &apiURL) {
		s.settings.APIURL = apiURL
	}
	if o.store.GetJSON(ctx, keyModel, &model) {
		s.settings.Model = model
	}
	if o.store.GetJSON(ctx, keyRandomStyleIndex, &cursor) && cursor >= 0 {
		s.randomCursor = cursor
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
