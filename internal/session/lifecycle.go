package session

import (
	"context"
	"time"

	"sessiond/internal/common/fsutil"
	"sessiond/internal/metrics"
)

// Initialize validates the configuration, reserves weight memory, and loads
// the model. On any failure the session returns to Uninitialized with no
// handle retained. Initialize on a Ready or Destroyed session fails with an
// invalid-handle error.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		st := s.state
		s.mu.Unlock()
		return errInvalidHandle("initialize", st)
	}
	s.state = StateInitializing
	cfg := s.cfg.withDefaults()
	s.mu.Unlock()

	if err := cfg.validate(); err != nil {
		s.revertToUninitialized()
		return err
	}

	pool := PoolCPU
	if cfg.UseAccelerator {
		if !s.alloc.AcceleratorAvailable() {
			s.revertToUninitialized()
			return errResource(PoolAccelerator, "accelerator not available")
		}
		pool = PoolAccelerator
	}
	rec, err := s.alloc.Allocate(pool, fsutil.FileSizeBytes(cfg.ModelPath), s.id)
	if err != nil {
		s.revertToUninitialized()
		return err
	}

	if err := ctx.Err(); err != nil {
		s.alloc.Release(rec)
		s.revertToUninitialized()
		return err
	}

	h, err := s.runtime.Open(HandleConfig{
		ModelPath:      cfg.ModelPath,
		ContextLen:     cfg.MaxContextLen,
		BatchSize:      cfg.BatchSize,
		Threads:        cfg.EnabledCPUsNum,
		CPUMask:        cfg.EnabledCPUsMask,
		CrossAttention: cfg.CrossAttention,
		UseAccelerator: cfg.UseAccelerator,
	})
	if err != nil {
		s.alloc.Release(rec)
		s.revertToUninitialized()
		metrics.RecordNativeError("open")
		return err
	}

	s.mu.Lock()
	if s.state == StateDestroyed {
		// Destroyed while loading: give everything back.
		s.mu.Unlock()
		_ = h.Close()
		s.alloc.Release(rec)
		return errInvalidHandle("initialize", StateDestroyed)
	}
	s.cfg = cfg
	s.handle = h
	s.weightsRec = rec
	s.weightsPool = pool
	s.state = StateReady
	s.lastUsed = time.Now()
	s.mu.Unlock()

	metrics.SessionsCreatedTotal.Inc()
	metrics.SessionsActive.Inc()
	s.log.Info().Str("model_path", cfg.ModelPath).Str("pool", string(pool)).Msg("session initialized")
	s.publish(EventModelLoaded, map[string]any{"model_path": cfg.ModelPath, "pool": string(pool)})
	s.publish(EventInitialized, nil)
	return nil
}

func (s *Session) revertToUninitialized() {
	s.mu.Lock()
	if s.state == StateInitializing {
		s.state = StateUninitialized
	}
	s.mu.Unlock()
}

// Destroy tears the session down: it flags any in-flight request to stop,
// drains, releases auxiliary state before the handle, and returns every
// resource record. Destroy is idempotent; repeat calls return nil without
// emitting anything. Cleanup failures are logged, never propagated.
func (s *Session) Destroy(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return nil
	}
	prior := s.state
	if s.active != nil {
		s.active.cancel.Store(true)
	}
	s.mu.Unlock()

	if prior == StateReady {
		s.drain(ctx)
	}

	s.mu.Lock()
	s.state = StateDestroyed
	h := s.handle
	s.handle = nil
	hadCache := s.cachePath != ""
	s.cachePath = ""
	s.cacheRec = nil
	s.adapters = nil
	s.templateSet = false
	s.history = nil
	s.weightsRec = nil
	s.mu.Unlock()

	if h != nil {
		if hadCache {
			if err := h.ReleasePromptCache(); err != nil {
				s.log.Warn().Err(err).Msg("prompt cache release failed during destroy")
			}
		}
		if err := h.Close(); err != nil {
			s.log.Warn().Err(err).Msg("handle close failed during destroy")
		}
	}
	s.alloc.ReleaseOwner(s.id)

	if prior == StateReady {
		metrics.SessionsActive.Dec()
		metrics.SessionsDestroyedTotal.Inc()
	}
	s.log.Info().Str("prior_state", string(prior)).Msg("session destroyed")
	if h != nil {
		s.publish(EventModelUnloaded, nil)
	}
	s.publish(EventDestroyed, nil)
	return nil
}

// drain waits for the in-flight slot to empty, up to the drain timeout or
// ctx cancellation. The in-flight request has already been flagged to stop.
func (s *Session) drain(ctx context.Context) {
	deadline := time.Now().Add(s.drainTimeout)
	for {
		if len(s.genCh) == 0 {
			return
		}
		if ctx != nil && ctx.Err() != nil {
			return
		}
		if time.Now().After(deadline) {
			s.log.Warn().Msg("drain timeout, tearing down with work in flight")
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}
