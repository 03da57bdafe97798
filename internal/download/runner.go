package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"captiond/internal/common/fsutil"
	"captiond/pkg/types"
)

const (
	// DefaultLocalDir is used when a job has no local_dir.
	DefaultLocalDir = "/workspace/models"

	defaultPollInterval = 500 * time.Millisecond
	defaultHeartbeat    = 2 * time.Second
	searchLogInterval   = 10 * time.Second
)

// Runner executes download jobs, one file at a time.
type Runner struct {
	Fetcher Fetcher
	// CacheDir is searched for staging files (HF_HOME).
	CacheDir string

	PollInterval time.Duration
	Heartbeat    time.Duration
	Clock        func() time.Time
	Logger       zerolog.Logger

	// OnRecord, when set, sees every record before it is written.
	OnRecord func(types.ProgressRecord)
}

func (r *Runner) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func (r *Runner) pollInterval() time.Duration {
	if r.PollInterval > 0 {
		return r.PollInterval
	}
	return defaultPollInterval
}

func (r *Runner) heartbeat() time.Duration {
	if r.Heartbeat > 0 {
		return r.Heartbeat
	}
	return defaultHeartbeat
}

// Run downloads job.Files in order, or the whole repository when the list is
// empty. The first failed transfer aborts the job with a *DownloadError.
func (r *Runner) Run(ctx context.Context, job types.DownloadJob) (types.DownloadResult, error) {
	if job.RepoID == "" {
		return types.DownloadResult{Error: ErrRepoIDRequired.Error()}, ErrRepoIDRequired
	}
	localDir := job.LocalDir
	if localDir == "" {
		localDir = DefaultLocalDir
	}
	log := r.Logger.With().Str("repo_id", job.RepoID).Logger()
	log.Info().
		Strs("files", job.Files).
		Str("local_dir", localDir).
		Str("progress_file", job.ProgressFile).
		Msg("download configuration")

	out := &progressWriter{path: job.ProgressFile, log: log, observe: r.OnRecord}
	out.write(NewRecord(0, 100, "Starting download...", 0, 0))

	fail := func(err error) (types.DownloadResult, error) {
		log.Error().Err(err).Msg("download failed")
		return types.DownloadResult{Error: err.Error()}, err
	}
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return fail(&DownloadError{Err: err})
	}

	files := job.Files
	snapshot := len(files) == 0
	if snapshot {
		list, err := r.Fetcher.ListFiles(ctx)
		if err != nil {
			return fail(&DownloadError{Err: fmt.Errorf("list repository: %w", err)})
		}
		files = list
		log.Info().Int("count", len(files)).Msg("downloading repository snapshot")
	}

	sizes := make([]int64, len(files))
	var total int64
	for i, f := range files {
		n, err := r.Fetcher.FileSize(ctx, f)
		if err != nil {
			log.Warn().Err(err).Str("file", f).Msg("size query failed, treating as unknown")
			n = 0
		}
		sizes[i] = n
		total += n
	}
	if total > 0 {
		log.Info().Str("total", humanBytes(total)).Msg("total download size")
	}

	var done int64
	paths := make([]string, 0, len(files))
	for i, f := range files {
		label := fmt.Sprintf("%s (%d/%d)", f, i+1, len(files))
		dest := filepath.Join(localDir, filepath.FromSlash(f))
		log.Info().Str("file", f).Int("index", i+1).Int("of", len(files)).Msg("downloading")
		out.write(NewRecord(done, total, fmt.Sprintf("Downloading %s...", label), 0, 0))

		err := r.fetchWatched(ctx, f, dest, fileWatch{
			name:        f,
			target:      dest,
			label:       label,
			expected:    sizes[i],
			bytesBefore: done,
			jobTotal:    total,
		}, out)
		if err != nil {
			return fail(&DownloadError{File: f, Err: err})
		}

		n := sizes[i]
		if n == 0 {
			// unknown up front, so the job total grows by what landed on disk
			n, _ = fsutil.FileSize(dest)
			total += n
		}
		done += n
		paths = append(paths, dest)
		log.Info().Str("file", f).Msg("completed")
		out.write(NewRecord(done, total, "Completed "+f, 0, 0))
	}

	out.write(CompleteRecord(done, "Complete"))

	if snapshot {
		return types.DownloadResult{Success: true, Path: localDir}, nil
	}
	return types.DownloadResult{Success: true, Files: paths, Count: len(paths)}, nil
}

// fetchWatched runs the transfer and the polling loop side by side. The
// loop has stopped by the time it returns.
func (r *Runner) fetchWatched(ctx context.Context, file, dest string, w fileWatch, out *progressWriter) error {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.watch(ctx, w, out, done)
	}()
	err := r.Fetcher.Fetch(ctx, file, dest)
	close(done)
	wg.Wait()
	return err
}
