package generation

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fpang/claw-cam/internal/metrics"
	"github.com/fpang/claw-cam/internal/retry"
)

func TestMain(m *testing.M) {
	metrics.SetEnabled(false)
	os.Exit(m.Run())
}

var validImage = "data:image/png;base64," + strings.Repeat("iVBORw0KGgo", 20)

type call struct {
	key string
}

// fakeProvider records calls and answers through respond.
type fakeProvider struct {
	name     string
	needsKey bool
	respond  func(ctx context.Context, key string, n int) (string, error)

	mu    sync.Mutex
	calls []call

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFake(respond func(ctx context.Context, key string, n int) (string, error)) *fakeProvider {
	return &fakeProvider{name: ProviderGemini, needsKey: true, respond: respond}
}

func (f *fakeProvider) Name() string        { return f.name }
func (f *fakeProvider) RequiresKey() bool   { return f.needsKey }
func (f *fakeProvider) Check(Request) error { return nil }

func (f *fakeProvider) Generate(ctx context.Context, key string, req Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{key: key})
	n := len(f.calls)
	f.mu.Unlock()

	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxInFlight.Load()
		if cur <= prev || f.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}
	return f.respond(ctx, key, n)
}

func (f *fakeProvider) keysCalled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.key
	}
	return out
}

var fastRetry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}

func newTestClient(keys []string, p Provider, opts Options) *Client {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = fastRetry
	}
	return NewClient(NewKeyPool(keys), opts, p)
}

func newGeminiReq(input string) Request {
	return Request{Provider: ProviderGemini, Prompt: "comic book", Input: input}
}

func rateLimited() error {
	return &StatusError{Code: 429, Body: `{"error":{"status":"RESOURCE_EXHAUSTED"}}`}
}

func TestGenerate_EmptyPoolIsConfigError(t *testing.T) {
	fake := newFake(func(context.Context, string, int) (string, error) { return validImage, nil })
	c := newTestClient([]string{"", "  "}, fake, Options{})

	_, err := c.Generate(context.Background(), newGeminiReq(validImage))
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
	if len(fake.keysCalled()) != 0 {
		t.Error("no provider call should happen without keys")
	}
}

func TestGenerate_UnknownProvider(t *testing.T) {
	c := newTestClient([]string{"k1"}, newFake(nil), Options{})
	_, err := c.Generate(context.Background(), Request{Provider: "dall-e", Input: validImage})
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}

func TestGenerate_RateLimitRotatesToSecondKey(t *testing.T) {
	fake := newFake(func(_ context.Context, key string, _ int) (string, error) {
		if key == "key-1" {
			return "", rateLimited()
		}
		return validImage, nil
	})
	c := newTestClient([]string{"key-1", "key-2"}, fake, Options{})

	out, err := c.Generate(context.Background(), newGeminiReq(validImage))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != validImage {
		t.Errorf("unexpected output %q", out)
	}
	if got := fake.keysCalled(); len(got) != 2 || got[0] != "key-1" || got[1] != "key-2" {
		t.Errorf("calls = %v, want [key-1 key-2]", got)
	}
	if c.Keys().Cursor() != 1 {
		t.Errorf("cursor = %d, want 1", c.Keys().Cursor())
	}
}

func TestGenerate_NKeysExactlyNAttempts(t *testing.T) {
	keys := []string{"k1", "k2", "k3", "k4"}
	fake := newFake(func(_ context.Context, key string, _ int) (string, error) {
		if key != "k4" {
			return "", rateLimited()
		}
		return validImage, nil
	})
	c := newTestClient(keys, fake, Options{})

	if _, err := c.Generate(context.Background(), newGeminiReq(validImage)); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := fake.keysCalled(); len(got) != len(keys) {
		t.Errorf("attempts = %d (%v), want %d", len(got), got, len(keys))
	}
	if c.Keys().Cursor() != 3 {
		t.Errorf("cursor = %d, want 3", c.Keys().Cursor())
	}
}

func TestGenerate_ProviderErrorRetriesSameKey(t *testing.T) {
	fake := newFake(func(_ context.Context, key string, _ int) (string, error) {
		if key == "k1" {
			return "", &StatusError{Code: 503, Body: "unavailable"}
		}
		return validImage, nil
	})
	c := newTestClient([]string{"k1", "k2"}, fake, Options{})

	if _, err := c.Generate(context.Background(), newGeminiReq(validImage)); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []string{"k1", "k1", "k1", "k2"}
	got := fake.keysCalled()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestGenerate_TransientErrorRecoversOnSameKey(t *testing.T) {
	fake := newFake(func(_ context.Context, _ string, n int) (string, error) {
		if n == 1 {
			return "", errors.New("connection reset by peer")
		}
		return validImage, nil
	})
	c := newTestClient([]string{"k1", "k2"}, fake, Options{})

	if _, err := c.Generate(context.Background(), newGeminiReq(validImage)); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := fake.keysCalled(); strings.Join(got, ",") != "k1,k1" {
		t.Errorf("calls = %v, want [k1 k1]", got)
	}
	if c.Keys().Cursor() != 0 {
		t.Errorf("cursor = %d, want 0", c.Keys().Cursor())
	}
}

func TestGenerate_PoolExhaustedAllRateLimited(t *testing.T) {
	fake := newFake(func(context.Context, string, int) (string, error) { return "", rateLimited() })
	c := newTestClient([]string{"k1", "k2"}, fake, Options{})

	_, err := c.Generate(context.Background(), newGeminiReq(validImage))
	if !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("err = %v, want ErrPoolExhausted", err)
	}
	if KindOf(err) != KindRateLimited {
		t.Errorf("kind = %v, want RateLimited", KindOf(err))
	}
	if !strings.Contains(err.Error(), "all 2 API keys") {
		t.Errorf("error should name the pool size: %v", err)
	}
	if len(fake.keysCalled()) != 2 {
		t.Errorf("attempts = %d, want 2", len(fake.keysCalled()))
	}
}

func TestGenerate_PoolExhaustedMixedKinds(t *testing.T) {
	fake := newFake(func(_ context.Context, key string, _ int) (string, error) {
		if key == "k1" {
			return "", rateLimited()
		}
		return "", &StatusError{Code: 500, Body: "boom"}
	})
	c := newTestClient([]string{"k1", "k2"}, fake, Options{})

	_, err := c.Generate(context.Background(), newGeminiReq(validImage))
	if KindOf(err) != KindProvider {
		t.Errorf("kind = %v, want ProviderError", KindOf(err))
	}
	if c.Keys().Cursor() != 0 {
		t.Error("cursor must not move on failure")
	}
}

func TestGenerate_InvalidResponse(t *testing.T) {
	fake := newFake(func(context.Context, string, int) (string, error) {
		return "I can describe the image but not edit it.", nil
	})
	c := newTestClient([]string{"k1"}, fake, Options{})

	_, err := c.Generate(context.Background(), newGeminiReq(validImage))
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("err = %v, want InvalidResponse", err)
	}
	if got := len(fake.keysCalled()); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestGenerate_ShortImageIsInvalid(t *testing.T) {
	fake := newFake(func(context.Context, string, int) (string, error) { return "data:image/png;base64,AAAA", nil })
	c := newTestClient([]string{"k1"}, fake, Options{Retry: retry.Policy{MaxAttempts: 1}})

	if _, err := c.Generate(context.Background(), newGeminiReq(validImage)); !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("err = %v, want InvalidResponse", err)
	}
}

func TestGenerate_CancellationStopsWithoutRetry(t *testing.T) {
	started := make(chan struct{})
	fake := newFake(func(ctx context.Context, _ string, _ int) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	c := newTestClient([]string{"k1", "k2"}, fake, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := c.Generate(ctx, newGeminiReq(validImage))
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want Cancelled", err)
	}
	if !IsSilent(err) {
		t.Error("cancellation should be silent")
	}
	if got := len(fake.keysCalled()); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestGenerate_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := newFake(func(context.Context, string, int) (string, error) {
		cancel()
		return "", &StatusError{Code: 500, Body: "boom"}
	})
	c := newTestClient([]string{"k1", "k2"}, fake, Options{Retry: retry.Policy{MaxAttempts: 3, BaseDelay: time.Hour}})

	start := time.Now()
	_, err := c.Generate(ctx, newGeminiReq(validImage))
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want Cancelled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("backoff was not short-circuited")
	}
	if got := len(fake.keysCalled()); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	fake := newFake(func(ctx context.Context, _ string, _ int) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	c := newTestClient([]string{"k1", "k2"}, fake, Options{Timeout: 20 * time.Millisecond})

	_, err := c.Generate(context.Background(), newGeminiReq(validImage))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want Timeout", err)
	}
	if got := len(fake.keysCalled()); got != 1 {
		t.Errorf("attempts = %d, want 1 (timeouts are not retried)", got)
	}
}

func TestGenerate_ConcurrencyCeiling(t *testing.T) {
	fake := newFake(func(context.Context, string, int) (string, error) {
		time.Sleep(20 * time.Millisecond)
		return validImage, nil
	})
	c := newTestClient([]string{"k1"}, fake, Options{MaxConcurrent: 2})

	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Generate(context.Background(), newGeminiReq(validImage))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("queued request failed: %v", err)
		}
	}
	if max := fake.maxInFlight.Load(); max > 2 {
		t.Errorf("max in flight = %d, want <= 2", max)
	}
	if got := len(fake.keysCalled()); got != 6 {
		t.Errorf("calls = %d, want 6 (queued, not dropped)", got)
	}
}

func TestGenerate_CancelWhileQueued(t *testing.T) {
	release := make(chan struct{})
	fake := newFake(func(context.Context, string, int) (string, error) {
		<-release
		return validImage, nil
	})
	c := newTestClient([]string{"k1"}, fake, Options{MaxConcurrent: 1})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Generate(context.Background(), newGeminiReq(validImage))
	}()
	for len(fake.keysCalled()) == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Generate(ctx, newGeminiReq(validImage))
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("err = %v, want Cancelled", err)
	}
	close(release)
	<-done
	if got := len(fake.keysCalled()); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestGenerate_CursorPersistsAcrossRequests(t *testing.T) {
	fake := newFake(func(_ context.Context, key string, n int) (string, error) {
		if key == "k1" && n == 1 {
			return "", rateLimited()
		}
		return validImage, nil
	})
	c := newTestClient([]string{"k1", "k2", "k3"}, fake, Options{})

	if _, err := c.Generate(context.Background(), newGeminiReq(validImage)); err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	if _, err := c.Generate(context.Background(), newGeminiReq(validImage)); err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if got := fake.keysCalled(); strings.Join(got, ",") != "k1,k2,k2" {
		t.Errorf("calls = %v, want [k1 k2 k2]", got)
	}
}

func TestGenerate_KeylessProvider(t *testing.T) {
	fake := newFake(func(_ context.Context, key string, _ int) (string, error) {
		if key != "" {
			t.Errorf("keyless provider got key %q", key)
		}
		return "", &StatusError{Code: 502, Body: "bad gateway"}
	})
	fake.name = ProviderAgent
	fake.needsKey = false
	c := newTestClient(nil, fake, Options{})

	_, err := c.Generate(context.Background(), Request{Provider: ProviderAgent, Input: validImage})
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if errors.Is(err, ErrPoolExhausted) {
		t.Error("keyless provider has no pool to exhaust")
	}
	if got := len(fake.keysCalled()); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestGenerate_AgentWithoutEndpoint(t *testing.T) {
	c := NewClient(nil, Options{}, NewAgentProvider("", ""))
	_, err := c.Generate(context.Background(), Request{Provider: ProviderAgent, Input: validImage})
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}
