package types

// CaptionRequest is the payload accepted by POST /caption.
type CaptionRequest struct {
	// Base64-encoded image bytes. A data URL (data:image/png;base64,...) is also accepted.
	Image string `json:"image" example:"/9j/4AAQSkZJRgABAQ..."`
	// Optional prompt. When empty the built-in captioning prompt is used.
	// example: Describe this image in one sentence.
	Prompt string `json:"prompt,omitempty" example:"Describe this image in one sentence."`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling: limit candidates to top K tokens.
	// example: 40
	TopK int `json:"top_k,omitempty" example:"40"`
	// Maximum number of new tokens to generate.
	// example: 512
	MaxTokens int `json:"max_tokens,omitempty" example:"512"`
	// Random seed for reproducibility; 0 or omitted lets the runtime choose.
	// example: 42
	Seed int64 `json:"seed,omitempty" example:"42"`
	// Repeat penalty applied by the runtime.
	// example: 1.1
	RepeatPenalty float64 `json:"repeat_penalty,omitempty" example:"1.1"`

	// Text placed before the prompt.
	PromptPrefix string `json:"prompt_prefix,omitempty"`
	// Text placed after the prompt.
	PromptSuffix string `json:"prompt_suffix,omitempty"`
	// Text prepended to the generated caption (e.g. a trigger word).
	// example: ohwx woman
	Prepend string `json:"prepend,omitempty" example:"ohwx woman"`
	// Text appended to the generated caption.
	Append string `json:"append,omitempty"`
	// Remove lead-ins such as "Caption:" from the output. Defaults to true.
	StripPrefixes *bool `json:"strip_prefixes,omitempty"`
	// Collapse the caption onto a single line.
	SingleLine bool `json:"single_line,omitempty"`
	// Truncate the caption to at most this many characters (word boundary). 0 disables.
	MaxLength int `json:"max_length,omitempty"`
}

// CaptionResponse is returned by POST /caption on success.
type CaptionResponse struct {
	// Always true on success.
	Success bool `json:"success" example:"true"`
	// Generated caption text.
	// example: A woman in a red coat walks along a rain-soaked city street at dusk.
	Caption string `json:"caption" example:"A woman in a red coat walks along a rain-soaked city street at dusk."`
	// Time spent in the handler, including any model load.
	// example: 5321
	DurationMS int64 `json:"duration_ms" example:"5321"`
}

// UnloadResponse is returned by POST /unload.
type UnloadResponse struct {
	Success bool `json:"success" example:"true"`
	// Whether a model was loaded before the call.
	WasLoaded bool `json:"was_loaded" example:"true"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Always false.
	Success bool `json:"success" example:"false"`
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// ok when the model files are present, model_unavailable otherwise.
	// example: ok
	Status string `json:"status" example:"ok"`
	// Whether the model is resident in memory right now.
	ModelLoaded bool `json:"model_loaded" example:"false"`
	// Weights file path.
	// example: /workspace/models/Qwen2.5-VL-7B-Instruct-Q8_0.gguf
	ModelPath   string `json:"model_path" example:"/workspace/models/Qwen2.5-VL-7B-Instruct-Q8_0.gguf"`
	ModelExists bool   `json:"model_exists" example:"true"`
	// Vision projector file path.
	ProjectorPath   string `json:"projector_path,omitempty"`
	ProjectorExists bool   `json:"projector_exists"`
	// True when the model path came from DEV_MODEL_PATH.
	DevMode bool `json:"dev_mode" example:"false"`
	// Number of layers offloaded to the GPU (-1 = all).
	// example: -1
	GPULayers int `json:"gpu_layers" example:"-1"`
}

// GenerationStatus describes the most recent (or current) caption request.
type GenerationStatus struct {
	// One of idle, loading_model, generating, completed, error.
	// example: generating
	Status string `json:"status" example:"generating"`
	// Human-readable detail.
	// example: Generating caption...
	Message string `json:"message" example:"Generating caption..."`
	// Rough progress 0-100.
	// example: 40
	Progress int `json:"progress" example:"40"`
	// Unix seconds of the last update.
	UpdatedUnix int64 `json:"updated_unix" example:"1700000000"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Lifecycle state of the model: unloaded, loading, ready, generating.
	// example: ready
	State string `json:"state" example:"ready"`
	// Whether the model is resident in memory.
	ModelLoaded bool `json:"model_loaded" example:"true"`
	// Weights file path.
	ModelPath string `json:"model_path"`
	// Vision projector file path.
	ProjectorPath string `json:"projector_path,omitempty"`
	// Seconds since the model was last used.
	// example: 42
	IdleSeconds int64 `json:"idle_seconds" example:"42"`
	// Idle window after which the model is unloaded (0 = never).
	// example: 180
	IdleTimeoutSeconds int64 `json:"idle_timeout_seconds" example:"180"`
	// Last load error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Total number of successful model loads.
	// example: 3
	LoadsTotal uint64 `json:"loads_total" example:"3"`
	// Total number of unloads (manual, idle, shutdown).
	// example: 2
	UnloadsTotal uint64 `json:"unloads_total" example:"2"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Status of the current or most recent generation.
	Generation GenerationStatus `json:"generation"`
}

// Generation status values.
const (
	GenIdle         = "idle"
	GenLoadingModel = "loading_model"
	GenGenerating   = "generating"
	GenCompleted    = "completed"
	GenError        = "error"
)
