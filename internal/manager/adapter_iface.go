package manager

import "context"

// ModelSpec identifies the files and runtime options for one model load.
type ModelSpec struct {
	ModelPath     string
	ProjectorPath string
	GPULayers     int
	CtxSize       int
	Threads       int
}

// InferenceAdapter abstracts the model runtime used by the Manager.
type InferenceAdapter interface {
	// Load brings the model into memory and returns an exclusively owned handle.
	Load(ctx context.Context, spec ModelSpec) (Handle, error)
}

// Handle is a loaded model. The manager only uses it while holding its lock.
type Handle interface {
	// Generate runs one image+prompt inference. onToken is invoked for each
	// streamed fragment; a non-nil return aborts the generation.
	Generate(ctx context.Context, req GenerateRequest, onToken func(string) error) (FinalResult, error)
	// Close releases the model and all memory associated with it.
	Close() error
	// Alive reports whether the runtime behind the handle can still serve.
	Alive() bool
}

// SamplingParams captures generation parameters passed to the runtime.
type SamplingParams struct {
	Temperature   float32
	TopP          float32
	TopK          int
	MaxTokens     int
	Stop          []string
	Seed          int
	RepeatPenalty float32
}

// GenerateRequest is one captioning call: JPEG image bytes plus the prompt.
type GenerateRequest struct {
	Image  []byte
	Prompt string
	Params SamplingParams
}

// FinalResult summarizes the generation after streaming.
type FinalResult struct {
	Content      string
	Usage        Usage
	FinishReason string
}

// Usage contains token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
