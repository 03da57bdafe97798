package manager

import (
	"sync"
	"time"

	"captiond/internal/common/fsutil"
	"captiond/pkg/types"
)

// generationTracker holds the status of the current or most recent
// generation. Last write wins; it keeps no history.
type generationTracker struct {
	mu  sync.Mutex
	st  types.GenerationStatus
	now func() time.Time
}

func newGenerationTracker(now func() time.Time) *generationTracker {
	g := &generationTracker{now: now}
	g.set(types.GenIdle, "Ready", 0)
	return g
}

func (g *generationTracker) set(status, msg string, progress int) {
	g.mu.Lock()
	g.st = types.GenerationStatus{Status: status, Message: msg, Progress: progress, UpdatedUnix: g.now().Unix()}
	g.mu.Unlock()
}

func (g *generationTracker) snapshot() types.GenerationStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.st
}

// GenerationStatus returns the current generation status record.
func (m *Manager) GenerationStatus() types.GenerationStatus { return m.gen.snapshot() }

// Status builds a detailed status response for /status. It never waits on
// the model lock, so it answers while a generation is running.
func (m *Manager) Status() types.StatusResponse {
	m.infoMu.Lock()
	state, lastErr, loads, unloads := m.state, m.lastErr, m.loadsTotal, m.unloadsTot
	m.infoMu.Unlock()

	now := m.now()
	resp := types.StatusResponse{
		State:          string(state),
		ModelLoaded:    m.loaded.Load(),
		ModelPath:      m.cfg.ModelPath,
		ProjectorPath:  m.cfg.ProjectorPath,
		LastError:      lastErr,
		LoadsTotal:     loads,
		UnloadsTotal:   unloads,
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
		Generation:     m.gen.snapshot(),
	}
	if m.cfg.IdleTimeout > 0 {
		resp.IdleTimeoutSeconds = int64(m.cfg.IdleTimeout.Seconds())
	}
	if resp.ModelLoaded {
		resp.IdleSeconds = int64(m.IdleFor().Seconds())
	}
	return resp
}

// Health reports whether the model files are present. Loading is lazy, so a
// healthy service may not have the model in memory yet.
func (m *Manager) Health() types.HealthResponse {
	h := types.HealthResponse{
		ModelLoaded:     m.loaded.Load(),
		ModelPath:       m.cfg.ModelPath,
		ModelExists:     fsutil.IsRegularFile(m.cfg.ModelPath),
		ProjectorPath:   m.cfg.ProjectorPath,
		ProjectorExists: fsutil.IsRegularFile(m.cfg.ProjectorPath),
		DevMode:         m.cfg.DevMode,
		GPULayers:       m.cfg.GPULayers,
	}
	if h.ModelExists && h.ProjectorExists {
		h.Status = "ok"
	} else {
		h.Status = "model_unavailable"
	}
	return h
}
