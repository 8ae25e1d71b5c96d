package session

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"

	"sessiond/internal/common/fsutil"
	"sessiond/pkg/types"
)

// defaultSessionTTL is the idle expiry applied when ManagerConfig.SessionTTL
// is unset.
const defaultSessionTTL = 30 * time.Minute

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Registry     []types.Model
	DefaultModel string
	Runtime      Runtime
	Allocator    *Allocator
	Publisher    EventPublisher
	Logger       zerolog.Logger
	// SessionTTL is the idle expiry for sessions. Zero uses the package
	// default; negative disables expiry.
	SessionTTL   time.Duration
	DrainTimeout time.Duration
	// Transforms seed every new session's adapter pipeline, in order.
	Transforms []Transform
}

// Manager owns the live sessions. Idle sessions are destroyed after their
// TTL; any session activity through the manager resets the clock.
type Manager struct {
	registry     []types.Model
	defaultModel string
	runtime      Runtime
	alloc        *Allocator
	publisher    EventPublisher
	log          zerolog.Logger
	drainTimeout time.Duration
	transforms   []Transform
	store        *ttlcache.Cache[string, *Session]
	startTime    time.Time
	closed       atomic.Bool
}

// NewManager constructs a Manager from cfg and starts its expiry loop.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		registry:     cfg.Registry,
		defaultModel: cfg.DefaultModel,
		runtime:      cfg.Runtime,
		alloc:        cfg.Allocator,
		publisher:    cfg.Publisher,
		log:          cfg.Logger,
		drainTimeout: cfg.DrainTimeout,
		transforms:   cfg.Transforms,
		startTime:    time.Now(),
	}
	if m.runtime == nil {
		m.runtime = NewLlamaRuntime()
	}
	if m.alloc == nil {
		m.alloc = NewAllocator(AllocatorConfig{Logger: m.log})
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if m.drainTimeout <= 0 {
		m.drainTimeout = DefaultDrainTimeout
	}

	ttl := cfg.SessionTTL
	switch {
	case ttl == 0:
		ttl = defaultSessionTTL
	case ttl < 0:
		ttl = ttlcache.NoTTL
	}
	m.store = ttlcache.New[string, *Session](
		ttlcache.WithTTL[string, *Session](ttl),
	)
	m.store.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		sess := item.Value()
		m.log.Info().Str("session_id", sess.ID()).Msg("destroying idle session")
		ctx, cancel := context.WithTimeout(context.Background(), m.drainTimeout+time.Second)
		defer cancel()
		_ = sess.Destroy(ctx)
	})
	go m.store.Start()
	return m
}

// CreateSession builds, initializes, and registers a session for req. The
// returned session is Ready. On any failure nothing is registered.
func (m *Manager) CreateSession(ctx context.Context, req types.CreateSessionRequest) (*Session, error) {
	cfg, err := m.buildConfig(req)
	if err != nil {
		return nil, err
	}
	sess := New(cfg,
		WithRuntime(m.runtime),
		WithAllocator(m.alloc),
		WithPublisher(m.publisher),
		WithLogger(m.log),
		WithDrainTimeout(m.drainTimeout),
		WithTransforms(m.transforms...),
	)
	if err := sess.Initialize(ctx); err != nil {
		return nil, err
	}
	m.store.Set(sess.ID(), sess, ttlcache.DefaultTTL)
	return sess, nil
}

// buildConfig resolves a wire request into a session Config. The option bag
// is parsed first; typed fields win over bag entries with the same meaning.
func (m *Manager) buildConfig(req types.CreateSessionRequest) (Config, error) {
	var cfg Config
	var err error
	if len(req.Options) > 0 {
		cfg, err = ConfigFromOptions(req.Options)
		if err != nil {
			return Config{}, err
		}
	}

	path := strings.TrimSpace(req.ModelPath)
	if path == "" {
		path = strings.TrimSpace(cfg.ModelPath)
	}
	model := strings.TrimSpace(req.Model)
	if path != "" && model != "" {
		return Config{}, errConfiguration("model and model_path are mutually exclusive")
	}
	if path == "" {
		if model == "" {
			model = m.defaultModel
		}
		if model == "" {
			return Config{}, errConfiguration("model or model_path is required")
		}
		mdl, ok := m.findModel(model)
		if !ok {
			return Config{}, errModelNotFound(model)
		}
		path = mdl.Path
	}
	expanded, err := fsutil.ExpandHome(path)
	if err != nil {
		return Config{}, errConfiguration("model path: %v", err)
	}
	if !fsutil.IsRegularFile(expanded) {
		return Config{}, errConfiguration("model file not found: %s", expanded)
	}
	cfg.ModelPath = expanded

	if req.MaxContextLen > 0 {
		cfg.MaxContextLen = req.MaxContextLen
	}
	if req.MaxNewTokens > 0 {
		cfg.MaxNewTokens = req.MaxNewTokens
	}
	if req.Temperature != nil {
		cfg.Temperature = float32(*req.Temperature)
		cfg.sampled = true
	}
	if req.TopP != nil {
		cfg.TopP = float32(*req.TopP)
		cfg.sampled = true
	}
	if req.TopK != nil {
		cfg.TopK = *req.TopK
		cfg.sampled = true
	}
	if req.EnabledCPUsNum > 0 {
		cfg.EnabledCPUsNum = req.EnabledCPUsNum
	}
	if req.EnabledCPUsMask != 0 {
		cfg.EnabledCPUsMask = req.EnabledCPUsMask
	}
	if req.BatchSize > 0 {
		cfg.BatchSize = req.BatchSize
	}
	if req.CrossAttention {
		cfg.CrossAttention = true
	}
	if req.UseAccelerator {
		cfg.UseAccelerator = true
	}
	return cfg, nil
}

func (m *Manager) findModel(id string) (types.Model, bool) {
	for _, mdl := range m.registry {
		if mdl.ID == id {
			return mdl, true
		}
	}
	return types.Model{}, false
}

// Get returns the session for id and resets its idle clock.
func (m *Manager) Get(id string) (*Session, error) {
	item := m.store.Get(id)
	if item == nil {
		return nil, errSessionNotFound(id)
	}
	return item.Value(), nil
}

// DestroySession destroys the session for id and removes it.
func (m *Manager) DestroySession(ctx context.Context, id string) error {
	item := m.store.Get(id)
	if item == nil {
		return errSessionNotFound(id)
	}
	sess := item.Value()
	if err := sess.Destroy(ctx); err != nil {
		return err
	}
	m.store.Delete(id)
	return nil
}

// List snapshots all live sessions, oldest first.
func (m *Manager) List() []types.SessionInfo {
	items := m.store.Items()
	out := make([]types.SessionInfo, 0, len(items))
	for _, item := range items {
		out = append(out, item.Value().Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedUnix != out[j].CreatedUnix {
			return out[i].CreatedUnix < out[j].CreatedUnix
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListModels returns a copy of the model registry.
func (m *Manager) ListModels() []types.Model {
	out := make([]types.Model, len(m.registry))
	copy(out, m.registry)
	return out
}

// Allocator exposes the shared allocator for status surfaces.
func (m *Manager) Allocator() *Allocator {
	return m.alloc
}

// Status reports sessions, pool accounting, and daemon vitals.
func (m *Manager) Status() types.StatusResponse {
	cpu := m.alloc.Stats(PoolCPU)
	accel := m.alloc.Stats(PoolAccelerator)
	return types.StatusResponse{
		Sessions: m.List(),
		Pools: []types.PoolStatus{
			{Pool: string(PoolCPU), CapacityBytes: cpu.Capacity, InUseBytes: cpu.InUse, PeakBytes: cpu.Peak, Records: cpu.Records},
			{Pool: string(PoolAccelerator), CapacityBytes: accel.Capacity, InUseBytes: accel.InUse, PeakBytes: accel.Peak, Records: accel.Records},
		},
		AcceleratorAvailable: m.alloc.AcceleratorAvailable(),
		UptimeSeconds:        int64(time.Since(m.startTime).Seconds()),
		ServerTimeUnix:       time.Now().Unix(),
	}
}

// Ready reports whether the manager accepts work. It flips false once Close
// begins.
func (m *Manager) Ready() bool {
	return !m.closed.Load()
}

// Close destroys every session and stops the expiry loop. Redundant calls
// are no-ops.
func (m *Manager) Close(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.store.Stop()
	for id, item := range m.store.Items() {
		_ = item.Value().Destroy(ctx)
		m.store.Delete(id)
	}
	return nil
}
