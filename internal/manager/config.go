package manager

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultReapInterval = 10 * time.Second
	defaultReadyTimeout = 5 * time.Minute
	defaultStopGrace    = 5 * time.Second
	defaultLlamaBin     = "llama-server"
	defaultLlamaHost    = "127.0.0.1"
	defaultMaxTokens    = 512
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Weights and vision projector files.
	ModelPath     string
	ProjectorPath string
	// DevMode is reported by Health (model path came from DEV_MODEL_PATH).
	DevMode bool

	GPULayers int
	CtxSize   int
	Threads   int

	// IdleTimeout <= 0 disables idle reclamation.
	IdleTimeout  time.Duration
	ReapInterval time.Duration

	// Adapter defaults to the llama-server subprocess adapter built from the Llama* fields.
	Adapter        InferenceAdapter
	LlamaBin       string
	LlamaHost      string
	LlamaExtraArgs []string
	ReadyTimeout   time.Duration
	StopGrace      time.Duration

	Publisher EventPublisher
	Logger    *zerolog.Logger
	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = defaultReapInterval
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	if cfg.LlamaBin == "" {
		cfg.LlamaBin = defaultLlamaBin
	}
	if cfg.LlamaHost == "" {
		cfg.LlamaHost = defaultLlamaHost
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	if cfg.Adapter == nil {
		cfg.Adapter = NewLlamaSubprocessAdapter(cfg)
	}
	m := &Manager{
		cfg:       cfg,
		adapter:   cfg.Adapter,
		publisher: cfg.Publisher,
		log:       logger.With().Str("component", "manager").Logger(),
		now:       cfg.Clock,
		stopCh:    make(chan struct{}),
		state:     StateUnloaded,
	}
	m.epoch = m.now()
	m.startTime = m.epoch
	m.gen = newGenerationTracker(m.now)
	m.touch()
	return m
}
