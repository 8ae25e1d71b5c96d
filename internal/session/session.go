package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sessiond/pkg/types"
)

// State is the lifecycle state of a session.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateDestroyed     State = "destroyed"
)

// DefaultDrainTimeout bounds how long Destroy waits for in-flight work
// before tearing down anyway.
const DefaultDrainTimeout = 10 * time.Second

// Session owns one native model handle and serializes all work against it.
// The zero value is not usable; construct with New.
type Session struct {
	id           string
	runtime      Runtime
	alloc        *Allocator
	pipeline     *Pipeline
	publisher    EventPublisher
	log          zerolog.Logger
	drainTimeout time.Duration

	// genCh is the single in-flight slot. Inference and auxiliary handle
	// ops acquire it non-blocking; a held slot means TaskRunningError.
	genCh chan struct{}

	mu          sync.RWMutex
	cfg         Config
	state       State
	handle      Handle
	weightsRec  *ResourceRecord
	weightsPool Pool
	active      *request
	adapters    []loraAdapter
	templateSet bool
	cachePath   string
	cacheRec    *ResourceRecord
	history     []chatTurn
	created     time.Time
	lastUsed    time.Time
	tokensTotal uint64
}

type loraAdapter struct {
	name  string
	path  string
	scale float32
	rec   *ResourceRecord
}

type chatTurn struct {
	role string
	text string
}

// Option configures a Session at construction.
type Option func(*Session)

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithRuntime sets the native runtime. Defaults to the llama runtime of the
// current build.
func WithRuntime(rt Runtime) Option {
	return func(s *Session) { s.runtime = rt }
}

// WithAllocator attaches a shared allocator. Defaults to a private one.
func WithAllocator(a *Allocator) Option {
	return func(s *Session) { s.alloc = a }
}

// WithPublisher sets the event publisher. Defaults to a no-op.
func WithPublisher(p EventPublisher) Option {
	return func(s *Session) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets the logger. Defaults to a disabled logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithTransforms seeds the adapter pipeline in order.
func WithTransforms(ts ...Transform) Option {
	return func(s *Session) { s.pipeline = NewPipeline(ts...) }
}

// WithDrainTimeout bounds the Destroy drain wait.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.drainTimeout = d
		}
	}
}

// New builds an uninitialized session for cfg. Initialize must be called
// before any other operation.
func New(cfg Config, opts ...Option) *Session {
	s := &Session{
		id:           uuid.NewString(),
		cfg:          cfg,
		runtime:      NewLlamaRuntime(),
		publisher:    noopPublisher{},
		log:          zerolog.Nop(),
		pipeline:     NewPipeline(),
		drainTimeout: DefaultDrainTimeout,
		state:        StateUninitialized,
		genCh:        make(chan struct{}, 1),
		created:      time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.alloc == nil {
		s.alloc = NewAllocator(AllocatorConfig{Logger: s.log})
	}
	s.log = s.log.With().Str("session_id", s.id).Logger()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Ready reports whether the session holds a live handle.
func (s *Session) Ready() bool {
	return s.State() == StateReady
}

// Busy reports whether work is in flight.
func (s *Session) Busy() bool {
	return len(s.genCh) > 0
}

// Pipeline returns the session's adapter pipeline for stage management.
func (s *Session) Pipeline() *Pipeline {
	return s.pipeline
}

// Config returns a copy of the session configuration. After Initialize the
// copy reflects applied defaults.
func (s *Session) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Info snapshots the session for status surfaces.
func (s *Session) Info() types.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.adapters))
	for _, ad := range s.adapters {
		names = append(names, ad.name)
	}
	return types.SessionInfo{
		ID:              s.id,
		State:           string(s.state),
		ModelPath:       s.cfg.ModelPath,
		CreatedUnix:     s.created.Unix(),
		LastUsedUnix:    s.lastUsed.Unix(),
		Adapters:        names,
		TemplateSet:     s.templateSet,
		CacheLoaded:     s.cachePath != "",
		Busy:            len(s.genCh) > 0,
		MemoryBytes:     s.alloc.OwnerBytes(s.id),
		TokensGenerated: s.tokensTotal,
	}
}

func (s *Session) publish(name string, fields map[string]any) {
	s.publisher.Publish(Event{Name: name, SessionID: s.id, Fields: fields})
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}
