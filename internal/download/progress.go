package download

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"captiond/internal/common/fsutil"
	"captiond/pkg/types"
)

// maxRunningPercent keeps in-flight records below 100 so an interrupted job
// never looks finished.
const maxRunningPercent = 99

// NewRecord builds an in-flight record. Percent is clamped to 99, and is 0
// while the total is unknown. A total below the bytes seen so far is raised
// to match them.
func NewRecord(downloaded, total int64, label string, speed, eta float64) types.ProgressRecord {
	pct := 0
	if total > 0 {
		pct = int(downloaded * 100 / total)
	}
	if total < downloaded {
		total = downloaded
	}
	if pct > maxRunningPercent {
		pct = maxRunningPercent
	}
	if pct < 0 {
		pct = 0
	}
	return types.ProgressRecord{
		Downloaded:  downloaded,
		Total:       total,
		Progress:    pct,
		CurrentFile: label,
		Speed:       speed,
		ETA:         eta,
	}
}

// CompleteRecord is the only record that reports 100 percent.
func CompleteRecord(total int64, label string) types.ProgressRecord {
	return types.ProgressRecord{Downloaded: total, Total: total, Progress: 100, CurrentFile: label}
}

// WriteProgress atomically replaces the progress file at path with rec.
func WriteProgress(path string, rec types.ProgressRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, b, 0o644); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}

// progressWriter publishes records to the progress file and logs overall
// progress each time it crosses a 10% step.
type progressWriter struct {
	path     string
	log      zerolog.Logger
	observe  func(types.ProgressRecord)
	lastStep int
}

func (p *progressWriter) write(rec types.ProgressRecord) {
	if p.observe != nil {
		p.observe(rec)
	}
	if p.path != "" {
		if err := WriteProgress(p.path, rec); err != nil {
			p.log.Warn().Err(err).Str("path", p.path).Msg("progress file update failed")
		}
	}
	if step := rec.Progress / 10; step > p.lastStep {
		p.lastStep = step
		e := p.log.Info().
			Int("progress", rec.Progress).
			Str("downloaded", humanBytes(rec.Downloaded)).
			Str("total", humanBytes(rec.Total))
		if rec.Speed > 0 {
			e = e.Str("speed", humanBytes(int64(rec.Speed))+"/s")
		}
		if rec.ETA > 0 {
			e = e.Int("eta_s", int(rec.ETA))
		}
		e.Msg("overall progress")
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
