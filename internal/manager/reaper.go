package manager

import "time"

// startReaperLocked launches the idle reclamation loop once per manager.
// Caller must hold m.mu.
func (m *Manager) startReaperLocked() {
	if m.reaperStarted || m.cfg.IdleTimeout <= 0 {
		return
	}
	select {
	case <-m.stopCh:
		return
	default:
	}
	m.reaperStarted = true
	m.reaperWG.Add(1)
	go m.reapLoop()
	m.publish(EventReaperStart, map[string]any{
		"idle_timeout_seconds": int64(m.cfg.IdleTimeout.Seconds()),
		"interval_ms":          m.cfg.ReapInterval.Milliseconds(),
	})
}

func (m *Manager) reapLoop() {
	defer m.reaperWG.Done()
	t := time.NewTicker(m.cfg.ReapInterval)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			m.reapOnce()
		}
	}
}

// reapOnce unloads the model when it has been idle past the timeout. A held
// model lock means the model is in use, so the check is skipped until the
// next tick instead of waiting.
func (m *Manager) reapOnce() bool {
	if !m.loaded.Load() || m.IdleFor() < m.cfg.IdleTimeout {
		return false
	}
	if !m.mu.TryLock() {
		return false
	}
	defer m.mu.Unlock()
	// Activity may have been refreshed between the check and the lock.
	if m.handle == nil || m.IdleFor() < m.cfg.IdleTimeout {
		return false
	}
	return m.unloadLocked(ReasonIdle)
}
