package manager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// createModelFile creates a small placeholder file and returns its path.
func createModelFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("GGUF"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	return p
}

// fakeAdapter is a lightweight in-memory adapter used for tests.
type fakeAdapter struct {
	loadErr   error
	loadDelay time.Duration
	genErr    error
	genDelay  time.Duration
	tokens    []string
	// gate, when set, blocks every Generate until it is closed.
	gate chan struct{}
	// started receives once per Generate call (non-blocking send).
	started chan struct{}

	onLoad     func()
	onGenerate func(ctx context.Context)

	loads       atomic.Int32
	closes      atomic.Int32
	// crashed makes the current handle report that its runtime is gone.
	crashed     atomic.Bool
	inflight    atomic.Int32
	maxInflight atomic.Int32

	mu       sync.Mutex
	lastSpec ModelSpec
	lastReq  GenerateRequest
}

func (f *fakeAdapter) Load(ctx context.Context, spec ModelSpec) (Handle, error) {
	f.loads.Add(1)
	f.mu.Lock()
	f.lastSpec = spec
	f.mu.Unlock()
	if f.onLoad != nil {
		f.onLoad()
	}
	if f.loadDelay > 0 {
		time.Sleep(f.loadDelay)
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	f.crashed.Store(false)
	return &fakeHandle{f: f}, nil
}

type fakeHandle struct{ f *fakeAdapter }

func (h *fakeHandle) Generate(ctx context.Context, req GenerateRequest, onToken func(string) error) (FinalResult, error) {
	f := h.f
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		cur := f.maxInflight.Load()
		if n <= cur || f.maxInflight.CompareAndSwap(cur, n) {
			break
		}
	}
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.onGenerate != nil {
		f.onGenerate(ctx)
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.genDelay > 0 {
		time.Sleep(f.genDelay)
	}
	if err := ctx.Err(); err != nil {
		return FinalResult{}, err
	}
	if f.genErr != nil {
		return FinalResult{}, f.genErr
	}
	for _, tok := range f.tokens {
		if err := onToken(tok); err != nil {
			return FinalResult{}, err
		}
	}
	return FinalResult{Content: strings.Join(f.tokens, ""), FinishReason: "stop"}, nil
}

func (h *fakeHandle) Close() error {
	h.f.closes.Add(1)
	return nil
}

func (h *fakeHandle) Alive() bool { return !h.f.crashed.Load() }

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// newTestManager creates model+projector files and a manager over the fake adapter.
func newTestManager(t *testing.T, fa *fakeAdapter, mutate func(*ManagerConfig)) *Manager {
	t.Helper()
	dir := t.TempDir()
	cfg := ManagerConfig{
		ModelPath:     createModelFile(t, dir, "model.gguf"),
		ProjectorPath: createModelFile(t, dir, "mmproj-model.gguf"),
		GPULayers:     -1,
		CtxSize:       4096,
		Adapter:       fa,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m := NewWithConfig(cfg)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func genReq() GenerateRequest {
	return GenerateRequest{Image: []byte{0xff, 0xd8, 0xff}, Prompt: "Describe", Params: SamplingParams{Temperature: 0.7, TopP: 0.9, MaxTokens: 8}}
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
