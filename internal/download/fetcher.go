package download

import (
	"context"
	"strings"

	"captiond/internal/config"
	"captiond/pkg/types"
)

// Fetcher transfers files from one remote repository.
type Fetcher interface {
	// FileSize returns the expected size of file in bytes.
	FileSize(ctx context.Context, file string) (int64, error)
	// Fetch downloads file to dest, creating parent directories.
	Fetch(ctx context.Context, file, dest string) error
	// ListFiles returns every file in the repository, relative to its root.
	ListFiles(ctx context.Context) ([]string, error)
}

const ossScheme = "oss://"

// NewFetcher picks the source for job: oss:// repositories go to Aliyun OSS,
// everything else to the Hugging Face Hub.
func NewFetcher(job types.DownloadJob, cfg config.FetchConfig) (Fetcher, error) {
	if strings.HasPrefix(job.RepoID, ossScheme) {
		return newOSSFetcher(cfg, job.RepoID, job.Token)
	}
	return newHubFetcher(cfg, job.RepoID, job.Revision, job.Token), nil
}
