package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/razim-manzoor/AI-Data-Analyst/config"
)

// Kind identifies a specialist agent.
type Kind string

const (
	KindRouter Kind = "router"
	KindSQL    Kind = "sql"
	KindChart  Kind = "chart"
)

// Kinds lists every agent kind, in probe order.
var Kinds = []Kind{KindRouter, KindSQL, KindChart}

// Handle is a cached, reusable agent handle. Construction of the underlying
// completion client is expensive, so handles are shared across turns.
type Handle struct {
	Kind        Kind
	Completer   Completer
	Fingerprint string
}

// CompleterFactory builds the completion client for one agent kind. Injected
// so tests can substitute fakes for the eino-backed default.
type CompleterFactory func(ctx context.Context, kind Kind, cfg config.Config) (Completer, error)

// Manager owns agent lifecycle: it lazily builds and caches one handle per
// (kind, configuration fingerprint), guaranteeing at most one construction
// per key even under concurrent first access.
type Manager struct {
	factory CompleterFactory
	logger  func(string)

	mu          sync.Mutex
	cfg         config.Config
	fingerprint string
	entries     map[string]*managerEntry
}

type managerEntry struct {
	once   sync.Once
	handle *Handle
	err    error
}

// NewManager creates a Manager. A nil factory uses the eino OpenAI-backed
// default.
func NewManager(cfg config.Config, factory CompleterFactory, logFunc func(string)) *Manager {
	if factory == nil {
		factory = defaultFactory
	}
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &Manager{
		factory:     factory,
		logger:      logFunc,
		cfg:         cfg,
		fingerprint: cfg.Fingerprint(),
		entries:     make(map[string]*managerEntry),
	}
}

func defaultFactory(ctx context.Context, kind Kind, cfg config.Config) (Completer, error) {
	chatModel, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewCompleter(chatModel, time.Duration(cfg.CompletionTimeoutSec)*time.Second), nil
}

// SetConfig swaps the model configuration. Handles built for the previous
// fingerprint become unreachable and are pruned.
func (m *Manager) SetConfig(cfg config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	newFp := cfg.Fingerprint()
	if newFp != m.fingerprint {
		m.logger(fmt.Sprintf("[MANAGER] Config fingerprint changed %s -> %s, invalidating handle cache", m.fingerprint, newFp))
		m.entries = make(map[string]*managerEntry)
	}
	m.cfg = cfg
	m.fingerprint = newFp
}

// Get returns the cached handle for the agent kind, building it on first
// access. Concurrent first calls for the same key construct exactly once.
func (m *Manager) Get(kind Kind) (*Handle, error) {
	m.mu.Lock()
	cfg := m.cfg
	fp := m.fingerprint
	key := string(kind) + "@" + fp
	entry, ok := m.entries[key]
	if !ok {
		entry = &managerEntry{}
		m.entries[key] = entry
	}
	m.mu.Unlock()

	entry.once.Do(func() {
		m.logger(fmt.Sprintf("[MANAGER] Building %s agent handle (fingerprint %s)", kind, fp))
		completer, err := m.factory(context.Background(), kind, cfg)
		if err != nil {
			entry.err = fmt.Errorf("failed to build %s agent: %w", kind, err)
			return
		}
		entry.handle = &Handle{Kind: kind, Completer: completer, Fingerprint: fp}
	})

	return entry.handle, entry.err
}

// CachedKinds reports which kinds currently have a built handle. Used by
// diagnostics and tests.
func (m *Manager) CachedKinds() []Kind {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kinds []Kind
	for _, k := range Kinds {
		if e, ok := m.entries[string(k)+"@"+m.fingerprint]; ok && e.handle != nil {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// HealthCheck probes each agent with a trivial prompt and reports per-agent
// reachability. It never returns an error; unreachable agents map to false.
func (m *Manager) HealthCheck(ctx context.Context) map[Kind]bool {
	status := make(map[Kind]bool, len(Kinds))
	for _, kind := range Kinds {
		status[kind] = m.probe(ctx, kind)
	}
	return status
}

func (m *Manager) probe(ctx context.Context, kind Kind) bool {
	handle, err := m.Get(kind)
	if err != nil {
		m.logger(fmt.Sprintf("[MANAGER] Health check: %s handle unavailable: %v", kind, err))
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err = handle.Completer.Complete(probeCtx, "You are a health check.", "Reply with OK.")
	if err != nil {
		m.logger(fmt.Sprintf("[MANAGER] Health check: %s unreachable: %v", kind, err))
		return false
	}
	return true
}
