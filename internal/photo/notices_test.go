package photo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fpang/claw-cam/internal/generation"
)

func TestNotices_Report(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind NoticeKind
		wantOK   bool
	}{
		{"cancelled", &generation.Error{Kind: generation.KindCancelled, Err: context.Canceled}, "", false},
		{"removed", fmt.Errorf("x: %w", ErrPhotoRemoved), "", false},
		{"timeout", &generation.Error{Kind: generation.KindTimeout}, NoticeTimeout, true},
		{"rate limited", &generation.Error{Kind: generation.KindRateLimited}, NoticeRateLimited, true},
		{"invalid", &generation.Error{Kind: generation.KindInvalidResponse}, NoticeInvalidResponse, true},
		{"config", &generation.Error{Kind: generation.KindConfig}, NoticeConfig, true},
		{"other", errors.New("disk on fire"), NoticeError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNotices(time.Minute)
			notice, ok := n.Report("p1", tt.err)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				if len(n.List()) != 0 {
					t.Error("silent failure was listed")
				}
				return
			}
			if notice.Kind != tt.wantKind || notice.PhotoID != "p1" || notice.Detail == "" {
				t.Errorf("notice = %+v", notice)
			}
		})
	}
}

func TestNotices_ExpireAndDismiss(t *testing.T) {
	n := NewNotices(30 * time.Millisecond)
	a, _ := n.Report("", errors.New("first"))
	n.Report("", errors.New("second"))
	if got := len(n.List()); got != 2 {
		t.Fatalf("List = %d, want 2", got)
	}
	n.Dismiss(a.ID)
	if got := n.List(); len(got) != 1 || got[0].Detail != "second" {
		t.Errorf("after dismiss = %+v", got)
	}
	time.Sleep(60 * time.Millisecond)
	if got := len(n.List()); got != 0 {
		t.Errorf("notices did not expire: %d left", got)
	}
}
