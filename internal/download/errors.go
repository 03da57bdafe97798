package download

import (
	"errors"
	"fmt"
)

// ErrRepoIDRequired is returned for jobs without a repo_id.
var ErrRepoIDRequired = errors.New("repo_id is required")

// DownloadError reports a transfer failure that aborted the job.
type DownloadError struct {
	File string
	Err  error
}

func (e *DownloadError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("download: %v", e.Err)
	}
	return fmt.Sprintf("download %s: %v", e.File, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// IsDownload reports whether err is a DownloadError.
func IsDownload(err error) bool {
	var de *DownloadError
	return errors.As(err, &de)
}
