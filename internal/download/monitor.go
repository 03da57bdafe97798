package download

import (
	"context"
	"fmt"
	"time"

	"captiond/pkg/types"
)

// fileWatch describes one file of a job as seen by the monitor.
type fileWatch struct {
	name        string
	target      string
	label       string
	expected    int64 // 0 when the size query failed
	bytesBefore int64 // bytes of files finished earlier in the job
	jobTotal    int64
}

// watchState carries what one polling session has seen so far.
type watchState struct {
	w          fileWatch
	heartbeat  time.Duration
	found      string
	lastSize   int64
	lastUpdate time.Time
}

func newWatchState(w fileWatch, heartbeat time.Duration, now time.Time) *watchState {
	return &watchState{w: w, heartbeat: heartbeat, lastUpdate: now}
}

// step turns one observation into a record. It reports false when nothing
// should be written: the file did not grow, it vanished or shrank after being
// seen, or it is still missing and the heartbeat interval has not elapsed.
func (s *watchState) step(size int64, now time.Time) (types.ProgressRecord, bool) {
	if size <= 0 {
		if s.found != "" || s.lastSize > 0 || now.Sub(s.lastUpdate) < s.heartbeat {
			return types.ProgressRecord{}, false
		}
		s.lastUpdate = now
		return NewRecord(s.w.bytesBefore, s.w.jobTotal, fmt.Sprintf("Initializing %s...", s.w.name), 0, 0), true
	}
	if size <= s.lastSize {
		return types.ProgressRecord{}, false
	}
	var speed float64
	if dt := now.Sub(s.lastUpdate).Seconds(); dt > 0 {
		speed = float64(size-s.lastSize) / dt
	}
	current := size
	if s.w.expected > 0 && current > s.w.expected {
		current = s.w.expected
	}
	cumulative := s.w.bytesBefore + current
	var eta float64
	if remaining := s.w.jobTotal - cumulative; speed > 0 && remaining > 0 {
		eta = float64(remaining) / speed
	}
	s.lastSize = size
	s.lastUpdate = now
	return NewRecord(cumulative, s.w.jobTotal, s.w.label, speed, eta), true
}

// watch polls until done is closed or ctx is cancelled. It never fails.
func (r *Runner) watch(ctx context.Context, w fileWatch, out *progressWriter, done <-chan struct{}) {
	st := newWatchState(w, r.heartbeat(), r.now())
	loc := Locator{CacheDir: r.CacheDir}
	log := r.Logger.With().Str("file", w.name).Logger()
	log.Debug().Str("target", w.target).Str("cache", r.CacheDir).Int64("bytes_before", w.bytesBefore).Msg("monitoring")

	t := time.NewTicker(r.pollInterval())
	defer t.Stop()
	lastSearchLog := r.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-t.C:
		}
		size, path := loc.Locate(w.target, st.found)
		if path != "" && path != st.found {
			st.found = path
			log.Debug().Str("path", path).Msg("found downloading file")
		}
		now := r.now()
		if rec, ok := st.step(size, now); ok {
			out.write(rec)
		}
		if size == 0 && now.Sub(lastSearchLog) > searchLogInterval {
			lastSearchLog = now
			log.Info().Msg("still searching for file")
		}
	}
}
