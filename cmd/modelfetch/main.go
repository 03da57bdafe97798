// Command modelfetch downloads model files and reports progress through a
// JSON progress file. The final result is printed to stdout as JSON; logs go
// to stderr.
//
//	modelfetch '{"repo_id":"org/repo","files":["a.gguf"],"local_dir":"/workspace/models","progress_file":"/tmp/p.json"}'
//	modelfetch --job-file job.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"captiond/internal/common/logx"
	"captiond/internal/config"
	"captiond/internal/download"
	"captiond/pkg/types"
)

var errUsage = errors.New("usage: modelfetch '<job-json>' | --job-file <path>")

// newFetcher is swapped in tests.
var newFetcher = download.NewFetcher

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	if args == nil {
		// cobra falls back to os.Args for a nil slice
		args = []string{}
	}
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var jobFile, logLevel, logFormat string
	cmd := &cobra.Command{
		Use:           "modelfetch [job-json]",
		Short:         "Download model files with cumulative progress reporting",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logx.New(logLevel, logFormat, stderr)
			job, err := parseJob(args, jobFile)
			if err != nil {
				writeResult(stdout, types.DownloadResult{Error: err.Error()})
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			res, err := runJob(ctx, job, logger)
			writeResult(stdout, res)
			return err
		},
	}
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)
	cmd.Flags().StringVar(&jobFile, "job-file", "", "Read the job JSON from a file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	cmd.Flags().StringVar(&logFormat, "log-format", "console", "Log format: console|json")
	return cmd
}

func parseJob(args []string, jobFile string) (types.DownloadJob, error) {
	var job types.DownloadJob
	var raw []byte
	switch {
	case jobFile != "" && len(args) > 0:
		return job, errors.New("pass either a job argument or --job-file, not both")
	case jobFile != "":
		b, err := os.ReadFile(jobFile)
		if err != nil {
			return job, err
		}
		raw = b
	case len(args) == 1:
		raw = []byte(args[0])
	default:
		return job, errUsage
	}
	if err := json.Unmarshal(raw, &job); err != nil {
		return job, fmt.Errorf("invalid job JSON: %w", err)
	}
	return job, nil
}

func runJob(ctx context.Context, job types.DownloadJob, logger zerolog.Logger) (types.DownloadResult, error) {
	if job.RepoID == "" {
		return types.DownloadResult{Error: download.ErrRepoIDRequired.Error()}, download.ErrRepoIDRequired
	}
	fc, err := config.LoadFetch()
	if err != nil {
		return types.DownloadResult{Error: err.Error()}, err
	}
	f, err := newFetcher(job, fc)
	if err != nil {
		return types.DownloadResult{Error: err.Error()}, err
	}
	r := &download.Runner{
		Fetcher:  f,
		CacheDir: fc.HFHome,
		Logger:   logger,
	}
	return r.Run(ctx, job)
}

func writeResult(w io.Writer, res types.DownloadResult) {
	b, err := json.Marshal(res)
	if err != nil {
		b = []byte(`{"success":false,"error":"encode result"}`)
	}
	fmt.Fprintln(w, string(b))
}
