// Package photo is the booth's photo lifecycle: it turns a captured frame
// into a photo record, drives it through the generation client and keeps the
// gallery, its image payloads and its settings replicated to durable storage.
//
// A record goes Pending (IsBusy) -> Completed, or is removed. It is never
// left Pending after its generation ends, and never goes back to busy.
package photo

import (
	"slices"
	"sync"
	"time"

	"github.com/fpang/claw-cam/internal/generation"
	"github.com/fpang/claw-cam/internal/styles"
)

// Photo is one capture/generation cycle. Payloads live in the image cache,
// keyed by ID.
type Photo struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"`
	IsBusy    bool      `json:"isBusy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Settings is the persisted configuration surface of the booth. API keys
// live in the generation key pool.
type Settings struct {
	Provider            string `json:"provider"`
	APIURL              string `json:"apiUrl"`
	Model               string `json:"model"`
	AutoCaptureInterval int    `json:"autoCaptureInterval"`
	BurstCount          int    `json:"burstCount"`
}

// Setting limits.
const (
	DefaultCaptureInterval = 5
	MinCaptureInterval     = 1
	MaxCaptureInterval     = 100
	DefaultBurstCount      = 1
	MaxBurstCount          = 10
)

// State is the booth's in-memory source of truth. It is owned by the
// application root and handed to an Orchestrator, which performs every
// mutation under mu.
type State struct {
	mu sync.Mutex

	photos       []Photo // newest first
	mode         string
	customPrompt string
	favorites    []string
	selection    []string
	randomCursor int
	// keyCursor is the last key rotation cursor written to storage.
	keyCursor  int
	liveMode   bool
	replayMode bool
	gifBusy    bool
	settings   Settings

	// inflight maps a busy photo to the cancel func of its generation.
	inflight map[string]func()
}

// NewState returns an empty state in random mode with default settings.
func NewState(defaults Settings) *State {
	if defaults.Provider == "" {
		defaults.Provider = generation.ProviderGemini
	}
	if defaults.AutoCaptureInterval == 0 {
		defaults.AutoCaptureInterval = DefaultCaptureInterval
	}
	if defaults.BurstCount == 0 {
		defaults.BurstCount = DefaultBurstCount
	}
	defaults.AutoCaptureInterval = clamp(defaults.AutoCaptureInterval, MinCaptureInterval, MaxCaptureInterval)
	defaults.BurstCount = clamp(defaults.BurstCount, 1, MaxBurstCount)
	return &State{
		mode:     styles.Random,
		settings: defaults,
		inflight: make(map[string]func()),
	}
}

func (s *State) indexLocked(id string) int {
	return slices.IndexFunc(s.photos, func(p Photo) bool { return p.ID == id })
}

func (s *State) photosCopyLocked() []Photo {
	return slices.Clone(s.photos)
}

// Snapshot is a consistent copy of the state for presentation.
type Snapshot struct {
	Photos        []Photo  `json:"photos"`
	Mode          string   `json:"mode"`
	CustomPrompt  string   `json:"customPrompt"`
	Favorites     []string `json:"favorites"`
	Selection     []string `json:"selection"`
	LiveMode      bool     `json:"liveMode"`
	ReplayMode    bool     `json:"replayMode"`
	GIFInProgress bool     `json:"gifInProgress"`
	InFlight      int      `json:"inFlight"`
	Settings      Settings `json:"settings"`
	// APIKeys are the configured keys, masked.
	APIKeys []string `json:"apiKeys"`
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// toggle flips id's membership in list, preserving order of the rest.
func toggle(list []string, id string) ([]string, bool) {
	if i := slices.Index(list, id); i >= 0 {
		return slices.Delete(list, i, i+1), false
	}
	return append(list, id), true
}

func without(list []string, id string) ([]string, bool) {
	i := slices.Index(list, id)
	if i < 0 {
		return list, false
	}
	return slices.Delete(list, i, i+1), true
}
