package photo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fpang/claw-cam/internal/dataurl"
	"github.com/fpang/claw-cam/internal/generation"
	"github.com/fpang/claw-cam/internal/imagecache"
	"github.com/fpang/claw-cam/internal/store"
	"github.com/fpang/claw-cam/internal/styles"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaxPhotos caps the gallery; the oldest record is evicted beyond it.
	DefaultMaxPhotos = 10
	// DefaultStaleAfter is the age past which a record without output is
	// dropped at startup.
	DefaultStaleAfter = 5 * time.Minute
)

var (
	// ErrInvalidInput is returned when a capture is not an image data URL.
	ErrInvalidInput = errors.New("capture is not an image data URL")
	// ErrUnknownMode is returned by SetMode for ids outside the catalog.
	ErrUnknownMode = errors.New("unknown style mode")
	// ErrNotFound is returned for operations on a photo id that does not exist.
	ErrNotFound = errors.New("photo not found")

	// ErrPhotoRemoved ends a generation whose record was deleted or evicted
	// while it ran.
	ErrPhotoRemoved = errors.New("photo was removed during generation")
)

// Config wires an Orchestrator. Nil collaborators get empty defaults.
type Config struct {
	State   *State
	Cache   *imagecache.Cache
	Store   *store.Adapter
	Client  *generation.Client
	Catalog *styles.Catalog
	Notices *Notices

	MaxPhotos  int
	StaleAfter time.Duration
	// Now is the clock, for tests.
	Now func() time.Time
}

// Orchestrator owns every mutation of a State and keeps the image cache and
// durable storage in step with it.
type Orchestrator struct {
	state   *State
	cache   *imagecache.Cache
	store   *store.Adapter
	client  *generation.Client
	catalog *styles.Catalog
	notices *Notices

	maxPhotos  int
	staleAfter time.Duration
	now        func() time.Time

	wg sync.WaitGroup
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.State == nil {
		cfg.State = NewState(Settings{})
	}
	if cfg.Cache == nil {
		cfg.Cache = imagecache.New()
	}
	if cfg.Store == nil {
		cfg.Store = store.NewAdapter(nil)
	}
	if cfg.Client == nil {
		cfg.Client = generation.NewClient(nil, generation.Options{})
	}
	if cfg.Catalog == nil {
		cfg.Catalog = styles.Default
	}
	if cfg.Notices == nil {
		cfg.Notices = NewNotices(DefaultNoticeTTL)
	}
	if cfg.MaxPhotos <= 0 {
		cfg.MaxPhotos = DefaultMaxPhotos
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		state:      cfg.State,
		cache:      cfg.Cache,
		store:      cfg.Store,
		client:     cfg.Client,
		catalog:    cfg.Catalog,
		notices:    cfg.Notices,
		maxPhotos:  cfg.MaxPhotos,
		staleAfter: cfg.StaleAfter,
		now:        cfg.Now,
	}
}

// Notices returns the notice board failures are reported to.
func (o *Orchestrator) Notices() *Notices { return o.notices }

// Catalog returns the style catalog.
func (o *Orchestrator) Catalog() *styles.Catalog { return o.catalog }

// pending is a record that was just created and the request to run for it.
type pending struct {
	photo Photo
	req   generation.Request
	ctx   context.Context
}

// SnapPhoto captures input and blocks until its generation ends. On success
// the completed record is returned. A ConfigError is returned before any
// record is created; every other failure removes the record.
func (o *Orchestrator) SnapPhoto(ctx context.Context, input string) (Photo, error) {
	p, err := o.begin(ctx, input)
	if err != nil {
		return Photo{}, err
	}
	return o.finish(p)
}

// StartSnap captures input and returns the Pending record at once;
// generation continues in the background. Wait joins outstanding snaps.
func (o *Orchestrator) StartSnap(input string) (Photo, error) {
	p, err := o.begin(context.Background(), input)
	if err != nil {
		return Photo{}, err
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_, _ = o.finish(p)
	}()
	return p.photo, nil
}

// StartBurst starts one snap per frame, up to the configured burst count.
func (o *Orchestrator) StartBurst(frames []string) ([]Photo, error) {
	o.state.mu.Lock()
	limit := o.state.settings.BurstCount
	o.state.mu.Unlock()
	if len(frames) > limit {
		frames = frames[:limit]
	}

	started := make([]Photo, 0, len(frames))
	for _, frame := range frames {
		p, err := o.StartSnap(frame)
		if err != nil {
			return started, err
		}
		started = append(started, p)
	}
	return started, nil
}

// Wait blocks until every background snap has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown cancels in-flight generations, waits for them and flushes storage.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.state.mu.Lock()
	for _, cancel := range o.state.inflight {
		cancel()
	}
	o.state.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return o.store.Flush(ctx)
}

// begin creates the Pending record for input under the state lock.
func (o *Orchestrator) begin(parent context.Context, input string) (*pending, error) {
	if !dataurl.IsImage(input) {
		return nil, ErrInvalidInput
	}

	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()

	mode, prompt, nextCursor, err := o.resolveLocked()
	if err != nil {
		return nil, err
	}
	req := generation.Request{
		Provider: s.settings.Provider,
		Model:    s.settings.Model,
		Endpoint: s.settings.APIURL,
		Prompt:   prompt,
		Input:    input,
	}
	if err := o.client.CheckConfig(req); err != nil {
		o.notices.Report("", err)
		return nil, err
	}

	if s.mode == styles.Random {
		s.randomCursor = nextCursor
		o.store.SetJSON(keyRandomStyleIndex, s.randomCursor)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate photo id: %w", err)
	}
	photo := Photo{ID: id.String(), Mode: mode, IsBusy: true, CreatedAt: o.now()}

	o.cache.SetInput(photo.ID, input)
	o.store.SetString(store.Inputs, photo.ID, input)

	s.photos = slices.Insert(s.photos, 0, photo)
	for len(s.photos) > o.maxPhotos {
		oldest := s.photos[len(s.photos)-1]
		log.Info().Str("id", oldest.ID).Int("max", o.maxPhotos).Msg("Gallery full, evicting oldest photo")
		o.removeLocked(oldest.ID)
	}

	ctx, cancel := context.WithCancel(parent)
	s.inflight[photo.ID] = cancel
	o.persistPhotosLocked()

	log.Debug().Str("id", photo.ID).Str("mode", mode).Str("provider", req.Provider).Msg("Photo pending")
	return &pending{photo: photo, req: req, ctx: ctx}, nil
}

// resolveLocked picks the style for the next capture. For random mode it
// returns the cursor to store once the capture is accepted.
func (o *Orchestrator) resolveLocked() (mode, prompt string, nextCursor int, err error) {
	s := o.state
	switch s.mode {
	case styles.Random:
		style, next := o.catalog.Next(s.randomCursor)
		if style.ID == "" {
			return "", "", 0, fmt.Errorf("style catalog has nothing to pick from")
		}
		return style.ID, style.Prompt, next, nil
	default:
		prompt, err := o.catalog.Resolve(s.mode, s.customPrompt)
		if err != nil {
			return "", "", 0, err
		}
		return s.mode, prompt, s.randomCursor, nil
	}
}

// finish runs the generation for p and settles its record.
func (o *Orchestrator) finish(p *pending) (Photo, error) {
	start := time.Now()
	out, err := o.client.Generate(p.ctx, p.req)

	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.inflight[p.photo.ID]; ok {
		cancel()
		delete(s.inflight, p.photo.ID)
	}

	if err != nil {
		removed := o.removeLocked(p.photo.ID)
		if removed {
			o.notices.Report(p.photo.ID, err)
		}
		evt := log.Warn()
		if generation.IsSilent(err) {
			evt = log.Debug()
		}
		evt.Err(err).
			Str("id", p.photo.ID).
			Str("kind", generation.KindOf(err).String()).
			Dur("duration", time.Since(start)).
			Msg("Photo generation failed, record removed")
		return Photo{}, err
	}

	i := s.indexLocked(p.photo.ID)
	if i < 0 {
		log.Debug().Str("id", p.photo.ID).Msg("Photo removed while generating, discarding output")
		return Photo{}, ErrPhotoRemoved
	}
	s.photos[i].IsBusy = false
	o.cache.SetOutput(p.photo.ID, out)
	o.store.SetString(store.Outputs, p.photo.ID, out)
	o.persistPhotosLocked()
	if c := o.client.Keys().Cursor(); c != s.keyCursor {
		s.keyCursor = c
		o.store.SetJSON(keyAPIKeyCursor, c)
	}

	log.Info().
		Str("id", p.photo.ID).
		Str("mode", p.photo.Mode).
		Dur("duration", time.Since(start)).
		Msg("Photo completed")
	return s.photos[i], nil
}

// CancelPhotoGeneration aborts the generation of id and removes its record.
// It reports true only if a generation was in flight; cancelling a finished
// or unknown photo is a no-op.
func (o *Orchestrator) CancelPhotoGeneration(id string) bool {
	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()

	cancel, ok := s.inflight[id]
	if !ok {
		return false
	}
	cancel()
	delete(s.inflight, id)
	o.removeLocked(id)
	log.Info().Str("id", id).Msg("Photo generation cancelled")
	return true
}

// DeletePhoto removes id, cancelling its generation if one is running.
func (o *Orchestrator) DeletePhoto(id string) bool {
	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()
	return o.removeLocked(id)
}

// DeleteSelected removes every selected photo and clears the selection.
func (o *Orchestrator) DeleteSelected() int {
	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, id := range slices.Clone(s.selection) {
		if o.removeLocked(id) {
			n++
		}
	}
	s.selection = nil
	o.store.SetJSON(keySelection, []string{})
	return n
}

// ClearAll cancels every generation and purges the gallery, the image cache
// and the durable payload stores.
func (o *Orchestrator) ClearAll() {
	s := o.state
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, cancel := range s.inflight {
		cancel()
		delete(s.inflight, id)
	}
	n := len(s.photos)
	s.photos = nil
	s.favorites = nil
	s.selection = nil
	o.cache.Clear()

	o.store.Clear(store.Inputs)
	o.store.Clear(store.Outputs)
	o.persistPhotosLocked()
	o.store.SetJSON(keyFavorites, []string{})
	o.store.SetJSON(keySelection, []string{})

	log.Info().Int("photos", n).Bool("storage", o.store.Available()).Msg("Gallery cleared")
}

// removeLocked deletes id from the list, its payloads from the cache and
// storage, and its favorite/selection membership. A running generation for
// id is cancelled. It reports whether a record was removed.
func (o *Orchestrator) removeLocked(id string) bool {
	s := o.state
	if cancel, ok := s.inflight[id]; ok {
		cancel()
		delete(s.inflight, id)
	}

	i := s.indexLocked(id)
	o.cache.Delete(id)
	o.store.Delete(store.Inputs, id)
	o.store.Delete(store.Outputs, id)

	var changed bool
	if s.favorites, changed = without(s.favorites, id); changed {
		o.store.SetJSON(keyFavorites, s.favorites)
	}
	if s.selection, changed = without(s.selection, id); changed {
		o.store.SetJSON(keySelection, s.selection)
	}

	if i < 0 {
		return false
	}
	s.photos = slices.Delete(s.photos, i, i+1)
	o.persistPhotosLocked()
	return true
}

func (o *Orchestrator) persistPhotosLocked() {
	o.store.SetJSON(keyPhotos, o.state.photosCopyLocked())
}
