package photo

import (
	"errors"
	"sort"
	"time"

	"github.com/fpang/claw-cam/internal/generation"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// DefaultNoticeTTL is how long a notice stays visible.
const DefaultNoticeTTL = 5 * time.Second

// NoticeKind groups notices for presentation.
type NoticeKind string

const (
	NoticeConfig          NoticeKind = "config"
	NoticeRateLimited     NoticeKind = "rate-limited"
	NoticeTimeout         NoticeKind = "timeout"
	NoticeInvalidResponse NoticeKind = "invalid-response"
	NoticeError           NoticeKind = "error"
)

// Notice is a transient, user-visible message about a failed generation.
type Notice struct {
	ID        string     `json:"id"`
	Kind      NoticeKind `json:"kind"`
	Message   string     `json:"message"`
	Detail    string     `json:"detail,omitempty"`
	PhotoID   string     `json:"photoId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Notices holds auto-dismissing notices. Safe for concurrent use.
type Notices struct {
	c *cache.Cache
}

// NewNotices creates a notice board whose entries expire after ttl.
func NewNotices(ttl time.Duration) *Notices {
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}
	return &Notices{c: cache.New(ttl, 2*ttl)}
}

// Report turns a generation failure into a notice. Silent failures (user
// cancellation) produce none and report false.
func (n *Notices) Report(photoID string, err error) (Notice, bool) {
	if err == nil || generation.IsSilent(err) || errors.Is(err, ErrPhotoRemoved) {
		return Notice{}, false
	}
	kind, msg := describe(err)
	notice := Notice{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   msg,
		Detail:    err.Error(),
		PhotoID:   photoID,
		CreatedAt: time.Now(),
	}
	n.c.Set(notice.ID, notice, cache.DefaultExpiration)
	return notice, true
}

func describe(err error) (NoticeKind, string) {
	switch generation.KindOf(err) {
	case generation.KindConfig:
		return NoticeConfig, "Image generation is not configured"
	case generation.KindRateLimited:
		return NoticeRateLimited, "Every API key is rate limited, try again shortly"
	case generation.KindTimeout:
		return NoticeTimeout, "Image generation timed out"
	case generation.KindInvalidResponse:
		return NoticeInvalidResponse, "The model did not return an image"
	default:
		return NoticeError, "Image generation failed"
	}
}

// List returns the live notices, oldest first.
func (n *Notices) List() []Notice {
	items := n.c.Items()
	out := make([]Notice, 0, len(items))
	for _, item := range items {
		if notice, ok := item.Object.(Notice); ok {
			out = append(out, notice)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Dismiss removes a notice before it expires.
func (n *Notices) Dismiss(id string) {
	n.c.Delete(id)
}
