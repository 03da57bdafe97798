package manager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// State represents lifecycle state of the model.
type State string

const (
	StateUnloaded   State = "unloaded"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateGenerating State = "generating"
)

// Manager owns the single model handle. All access to the handle happens
// under mu; see doc.go for the locking rules.
type Manager struct {
	cfg       ManagerConfig
	adapter   InferenceAdapter
	publisher EventPublisher
	log       zerolog.Logger
	now       func() time.Time
	epoch     time.Time
	startTime time.Time

	// mu guards handle, reaperStarted and closed.
	mu            sync.Mutex
	handle        Handle
	reaperStarted bool
	closed        bool

	// loaded mirrors handle != nil for lock-free readers.
	loaded atomic.Bool
	// lastActivity is nanoseconds since epoch of the last handle access.
	lastActivity atomic.Int64

	// infoMu guards the fields below; never held while calling the adapter.
	infoMu     sync.Mutex
	state      State
	lastErr    string
	loadsTotal uint64
	unloadsTot uint64

	gen *generationTracker

	stopCh   chan struct{}
	stopOnce sync.Once
	reaperWG sync.WaitGroup
}

// New constructs a Manager for the given model files with package defaults.
func New(modelPath, projectorPath string) *Manager {
	return NewWithConfig(ManagerConfig{ModelPath: modelPath, ProjectorPath: projectorPath})
}

// touch records an access to the handle.
func (m *Manager) touch() {
	m.lastActivity.Store(int64(m.now().Sub(m.epoch)))
}

// IdleFor returns how long the model has gone without being used.
func (m *Manager) IdleFor() time.Duration {
	d := m.now().Sub(m.epoch) - time.Duration(m.lastActivity.Load())
	if d < 0 {
		return 0
	}
	return d
}

// Loaded reports whether the model is resident. It never blocks.
func (m *Manager) Loaded() bool { return m.loaded.Load() }

// State returns the current lifecycle state. It never blocks on the model lock.
func (m *Manager) State() State {
	m.infoMu.Lock()
	defer m.infoMu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.infoMu.Lock()
	m.state = s
	m.infoMu.Unlock()
}

func (m *Manager) publish(name string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	m.publisher.Publish(Event{Name: name, ModelID: m.cfg.ModelPath, Fields: fields})
}
