package types

// Model represents a weights file discovered on disk.
type Model struct {
	// Stable identifier for the model (the file name).
	// example: Qwen2.5-VL-7B-Instruct-Q8_0.gguf
	ID string `json:"id" example:"Qwen2.5-VL-7B-Instruct-Q8_0.gguf"`
	// Absolute path to the model file on disk.
	Path string `json:"path"`
	// Size in bytes.
	Size int64 `json:"size"`
	// True for multimodal projector (mmproj) files.
	Projector bool `json:"projector,omitempty"`
}

// DownloadJob describes one modelfetch invocation. It is immutable once the
// download starts.
type DownloadJob struct {
	// Hugging Face repository id (owner/name) or oss://bucket/prefix.
	RepoID string `json:"repo_id"`
	// Files to download, in order. Empty means the whole repository.
	Files []string `json:"files,omitempty"`
	// Destination directory.
	LocalDir string `json:"local_dir,omitempty"`
	// Optional auth token (HF access token or OSS STS token).
	Token string `json:"token,omitempty"`
	// Path of the JSON progress file consumed by the UI.
	ProgressFile string `json:"progress_file,omitempty"`
	// Repository revision; defaults to main.
	Revision string `json:"revision,omitempty"`
}

// DownloadResult is printed to stdout when modelfetch exits.
type DownloadResult struct {
	Success bool     `json:"success"`
	Files   []string `json:"files,omitempty"`
	Count   int      `json:"count,omitempty"`
	Path    string   `json:"path,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ProgressRecord is the document written to the progress file.
type ProgressRecord struct {
	// Bytes transferred across all files in the job.
	Downloaded int64 `json:"downloaded"`
	// Expected bytes across all files in the job.
	Total int64 `json:"total"`
	// Percent 0-99 while running; 100 only once the whole job is done.
	Progress int `json:"progress"`
	// Label of the file being worked on.
	CurrentFile string `json:"current_file"`
	// Bytes per second.
	Speed float64 `json:"speed"`
	// Seconds remaining.
	ETA float64 `json:"eta"`
}
