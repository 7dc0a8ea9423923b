package photo

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fpang/claw-cam/internal/dataurl"
	"github.com/fpang/claw-cam/internal/generation"
	"github.com/fpang/claw-cam/internal/imagecache"
	"github.com/rs/zerolog/log"
)

// Settings store keys.
const (
	keyPhotos           = "photos"
	keyFavorites        = "favorites"
	keySelection        = "selectedPhotos"
	keyAPIKeys          = "gemini-api-keys"
	keyCaptureInterval  = "auto-capture-interval"
	keyBurstCount       = "burst-count"
	keyProvider         = "provider"
	keyAPIURL           = "api-url"
	keyModel            = "model"
	keyRandomStyleIndex = "random-style-index"
	keyAPIKeyCursor     = "gemini-api-key-cursor"
)

// --- Pure state setters ---

// SetMode selects the style for subsequent captures.
func (o *Orchestrator) SetMode(mode string) error {
	if !o.catalog.Has(mode) {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	o.state.mode = mode
	return nil
}

// SetCustomPrompt sets the instruction used in custom mode.
func (o *Orchestrator) SetCustomPrompt(prompt string) {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	o.state.customPrompt = prompt
}

// SetLiveMode toggles continuous capture.
func (o *Orchestrator) SetLiveMode(on bool) {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	o.state.liveMode = on
}

// SetReplayMode toggles the replay slideshow.
func (o *Orchestrator) SetReplayMode(on bool) {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	o.state.replayMode = on
}

// --- Favorites and selection ---

// ToggleFavorite flips id's favorite flag and returns the new value.
func (o *Orchestrator) ToggleFavorite(id string) (bool, error) {
	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(id) < 0 {
		return false, ErrNotFound
	}
	var on bool
	s.favorites, on = toggle(s.favorites, id)
	o.store.SetJSON(keyFavorites, s.favorites)
	return on, nil
}

// ToggleSelection flips id's selection and returns the new value. Newly
// selected photos go to the end of the selection.
func (o *Orchestrator) ToggleSelection(id string) (bool, error) {
	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(id) < 0 {
		return false, ErrNotFound
	}
	var on bool
	s.selection, on = toggle(s.selection, id)
	o.store.SetJSON(keySelection, s.selection)
	return on, nil
}

// ClearSelection empties the selection.
func (o *Orchestrator) ClearSelection() {
	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = nil
	o.store.SetJSON(keySelection, []string{})
}

// --- Persisted settings ---

// SetAPIKeys replaces the key slots (at most generation.MaxKeySlots) and
// refreshes the client's key pool.
func (o *Orchestrator) SetAPIKeys(slots []string) error {
	if len(slots) > generation.MaxKeySlots {
		return fmt.Errorf("at most %d API keys are supported, got %d", generation.MaxKeySlots, len(slots))
	}
	trimmed := make([]string, len(slots))
	for i, k := range slots {
		trimmed[i] = strings.TrimSpace(k)
	}
	o.client.Keys().Set(trimmed)
	o.store.SetJSON(keyAPIKeys, trimmed)

	s := o.state
	s.mu.Lock()
	if c := o.client.Keys().Cursor(); c != s.keyCursor {
		s.keyCursor = c
		o.store.SetJSON(keyAPIKeyCursor, c)
	}
	s.mu.Unlock()
	log.Info().Int("keys", o.client.Keys().Len()).Msg("API keys updated")
	return nil
}

// SetAutoCaptureInterval sets the live-mode capture interval in seconds,
// clamped to [MinCaptureInterval, MaxCaptureInterval], and returns the value
// stored.
func (o *Orchestrator) SetAutoCaptureInterval(seconds int) int {
	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.AutoCaptureInterval = clamp(seconds, MinCaptureInterval, MaxCaptureInterval)
	o.store.SetJSON(keyCaptureInterval, s.settings.AutoCaptureInterval)
	return s.settings.AutoCaptureInterval
}

// SetBurstCount sets how many frames a burst captures, clamped to
// [1, MaxBurstCount], and returns the value stored.
func (o *Orchestrator) SetBurstCount(n int) int {
	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.BurstCount = clamp(n, 1, MaxBurstCount)
	o.store.SetJSON(keyBurstCount, s.settings.BurstCount)
	return s.settings.BurstCount
}

// SetProvider selects the generation provider by name.
func (o *Orchestrator) SetProvider(name string) error {
	if !slices.Contains(o.client.Providers(), name) {
		return fmt.Errorf("unknown provider %q (available: %s)", name, strings.Join(o.client.Providers(), ", "))
	}
	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Provider = name
	o.store.SetJSON(keyProvider, name)
	return nil
}

// SetAPIURL overrides the provider endpoint; empty restores the default.
func (o *Orchestrator) SetAPIURL(url string) {
	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.APIURL = strings.TrimSpace(url)
	o.store.SetJSON(keyAPIURL, s.settings.APIURL)
}

// SetModel overrides the model; empty restores the default.
func (o *Orchestrator) SetModel(model string) {
	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Model = strings.TrimSpace(model)
	o.store.SetJSON(keyModel, s.settings.Model)
}

// --- Queries ---

// Photos returns the gallery, newest first.
func (o *Orchestrator) Photos() []Photo {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	return o.state.photosCopyLocked()
}

// Photo returns the record for id.
func (o *Orchestrator) Photo(id string) (Photo, bool) {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	if i := o.state.indexLocked(id); i >= 0 {
		return o.state.photos[i], true
	}
	return Photo{}, false
}

// Input returns the captured frame of id.
func (o *Orchestrator) Input(id string) (string, bool) {
	return o.cache.Get(imagecache.Input, id)
}

// Output returns the generated image of id, if it is valid.
func (o *Orchestrator) Output(id string) (string, bool) {
	out, ok := o.cache.Get(imagecache.Output, id)
	if !ok || !dataurl.IsValidOutput(out) {
		return "", false
	}
	return out, true
}

// Favorites returns the favorite ids.
func (o *Orchestrator) Favorites() []string {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	return slices.Clone(o.state.favorites)
}

// Selection returns the selected ids in selection order.
func (o *Orchestrator) Selection() []string {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	return slices.Clone(o.state.selection)
}

// Providers lists the provider names SetProvider accepts.
func (o *Orchestrator) Providers() []string {
	return o.client.Providers()
}

// Settings returns the current settings.
func (o *Orchestrator) Settings() Settings {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	return o.state.settings
}

// Snapshot returns a consistent copy of the whole state.
func (o *Orchestrator) Snapshot() Snapshot {
	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := o.client.Keys().Keys()
	masked := make([]string, len(keys))
	for i, k := range keys {
		masked[i] = generation.MaskKey(k)
	}
	return Snapshot{
		Photos:        s.photosCopyLocked(),
		Mode:          s.mode,
		CustomPrompt:  s.customPrompt,
		Favorites:     slices.Clone(s.favorites),
		Selection:     slices.Clone(s.selection),
		LiveMode:      s.liveMode,
		ReplayMode:    s.replayMode,
		GIFInProgress: s.gifBusy,
		InFlight:      len(s.inflight),
		Settings:      s.settings,
		APIKeys:       masked,
	}
}
