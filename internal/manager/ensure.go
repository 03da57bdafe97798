package manager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"captiond/internal/common/fsutil"
)

// EnsureLoaded makes sure the model is resident. It is idempotent: when the
// model is already loaded it only refreshes the activity timestamp. Callers
// arriving while another caller is loading block until that load finishes.
func (m *Manager) EnsureLoaded(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	return m.ensureLocked(ctx)
}

// ensureLocked loads the model if needed. Caller must hold m.mu.
func (m *Manager) ensureLocked(ctx context.Context) error {
	if m.handle != nil {
		if m.handle.Alive() {
			m.touch()
			return nil
		}
		m.log.Warn().Str("event", EventSpawnExit).Str("model", m.cfg.ModelPath).Msg("runtime exited, reloading model")
		m.unloadLocked(ReasonExited)
	}
	spec := ModelSpec{
		ModelPath:     m.cfg.ModelPath,
		ProjectorPath: m.cfg.ProjectorPath,
		GPULayers:     m.cfg.GPULayers,
		CtxSize:       m.cfg.CtxSize,
		Threads:       m.cfg.Threads,
	}
	m.setState(StateLoading)
	m.publish(EventLoadStart, map[string]any{"projector": spec.ProjectorPath})
	m.log.Info().Str("event", EventLoadStart).Str("model", spec.ModelPath).Str("projector", spec.ProjectorPath).
		Int("gpu_layers", spec.GPULayers).Int("ctx", spec.CtxSize).Msg("loading model")
	start := time.Now()

	h, err := m.load(ctx, spec)
	if err != nil {
		m.infoMu.Lock()
		m.state = StateUnloaded
		m.lastErr = err.Error()
		m.infoMu.Unlock()
		modelLoadsTotal.WithLabelValues("error").Inc()
		m.publish(EventLoadError, map[string]any{"error": err.Error()})
		m.log.Error().Str("event", EventLoadError).Str("model", spec.ModelPath).Err(err).Msg("model load failed")
		return err
	}

	m.handle = h
	m.loaded.Store(true)
	m.touch()
	m.infoMu.Lock()
	m.state = StateReady
	m.lastErr = ""
	m.loadsTotal++
	m.infoMu.Unlock()
	modelLoaded.Set(1)
	modelLoadsTotal.WithLabelValues("ok").Inc()
	m.publish(EventLoadReady, map[string]any{"duration_ms": time.Since(start).Milliseconds()})
	m.log.Info().Str("event", EventLoadReady).Str("model", spec.ModelPath).Dur("dur", time.Since(start)).Msg("model loaded")
	m.startReaperLocked()
	return nil
}

// load runs the preflight checks and the adapter, normalizing every failure
// into a *ModelLoadError.
func (m *Manager) load(ctx context.Context, spec ModelSpec) (Handle, error) {
	if err := preflight(spec); err != nil {
		return nil, err
	}
	h, err := m.adapter.Load(ctx, spec)
	if err != nil {
		var le *ModelLoadError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, &ModelLoadError{Path: spec.ModelPath, Err: err}
	}
	if h == nil {
		return nil, &ModelLoadError{Path: spec.ModelPath, Err: errors.New("runtime returned no handle")}
	}
	return h, nil
}

func preflight(spec ModelSpec) error {
	if spec.ModelPath == "" {
		return &ModelLoadError{Err: errors.New("no weights file configured")}
	}
	if !fsutil.IsRegularFile(spec.ModelPath) {
		return &ModelLoadError{Path: spec.ModelPath, Err: fmt.Errorf("weights file not found: %w", fs.ErrNotExist)}
	}
	if spec.ProjectorPath == "" {
		return &ModelLoadError{Path: spec.ModelPath, Err: errors.New("no vision projector (mmproj) file configured")}
	}
	if !fsutil.IsRegularFile(spec.ProjectorPath) {
		return &ModelLoadError{Path: spec.ProjectorPath, Err: fmt.Errorf("projector file not found: %w", fs.ErrNotExist)}
	}
	return nil
}
