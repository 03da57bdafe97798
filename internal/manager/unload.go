package manager

import (
	"context"
	"runtime"
	"runtime/debug"
)

// Unload frees the model if it is loaded and reports whether it was. It waits
// for an in-flight generation to finish and always succeeds.
func (m *Manager) Unload() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unloadLocked(ReasonManual)
}

// unloadLocked releases the handle. Caller must hold m.mu.
func (m *Manager) unloadLocked(reason string) bool {
	if m.handle == nil {
		return false
	}
	idle := m.IdleFor()
	if err := m.handle.Close(); err != nil {
		m.log.Warn().Str("event", "unload_close_error").Err(err).Msg("closing model handle")
	}
	m.handle = nil
	m.loaded.Store(false)
	m.infoMu.Lock()
	m.state = StateUnloaded
	m.unloadsTot++
	m.infoMu.Unlock()

	// Return the freed memory to the OS right away.
	runtime.GC()
	debug.FreeOSMemory()

	modelLoaded.Set(0)
	modelUnloadsTotal.WithLabelValues(reason).Inc()
	m.publish(EventUnloadDone, map[string]any{"reason": reason, "idle_seconds": int64(idle.Seconds())})
	m.log.Info().Str("event", EventUnloadDone).Str("reason", reason).Dur("idle", idle).Msg("model unloaded")
	return true
}

// Shutdown stops the reaper, waits for it to exit and unloads the model
// (after any in-flight generation). Subsequent Generate calls fail with
// ErrManagerClosed. If ctx expires first Shutdown returns ctx.Err() and the
// unload still completes in the background.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.mu.Lock()
		m.closed = true
		m.unloadLocked(ReasonShutdown)
		m.mu.Unlock()
		// The reaper only TryLocks, so it exits on stopCh without needing mu.
		m.reaperWG.Wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
