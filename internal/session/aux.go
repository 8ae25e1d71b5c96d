package session

import (
	"context"
	"strings"

	"sessiond/internal/common/fsutil"
	"sessiond/internal/metrics"
)

// beginAux acquires the single in-flight slot for an auxiliary handle op
// and returns the handle plus a release func. Auxiliary ops share the slot
// with inference so the handle is never touched concurrently.
func (s *Session) beginAux(op string) (Handle, func(), error) {
	select {
	case s.genCh <- struct{}{}:
	default:
		return nil, nil, errTaskRunning(s.id)
	}
	s.mu.Lock()
	if s.state != StateReady {
		st := s.state
		s.mu.Unlock()
		<-s.genCh
		return nil, nil, errInvalidHandle(op, st)
	}
	h := s.handle
	s.mu.Unlock()
	return h, func() { <-s.genCh }, nil
}

// LoadAdapter applies a LoRA adapter to the session's handle. Adapter names
// are unique per session; loading a name twice is rejected outright since
// the native layer has no per-adapter unload to make replacement safe.
func (s *Session) LoadAdapter(ctx context.Context, spec LoraSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return errConfiguration("adapter name is required")
	}
	if strings.TrimSpace(spec.Path) == "" {
		return errConfiguration("adapter path is required")
	}
	if spec.Scale < 0 {
		return errConfiguration("adapter scale must be >= 0, got %g", spec.Scale)
	}
	if spec.Scale == 0 {
		spec.Scale = 1
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	h, release, err := s.beginAux("load_adapter")
	if err != nil {
		return err
	}
	defer release()

	s.mu.RLock()
	pool := s.weightsPool
	for _, ad := range s.adapters {
		if ad.name == spec.Name {
			s.mu.RUnlock()
			return errConfiguration("adapter %q already loaded", spec.Name)
		}
	}
	s.mu.RUnlock()

	rec, err := s.alloc.Allocate(pool, fsutil.FileSizeBytes(spec.Path), s.id)
	if err != nil {
		return err
	}
	if err := h.LoadLora(spec); err != nil {
		s.alloc.Release(rec)
		metrics.RecordNativeError("load_lora")
		return err
	}

	s.mu.Lock()
	s.adapters = append(s.adapters, loraAdapter{name: spec.Name, path: spec.Path, scale: spec.Scale, rec: rec})
	s.mu.Unlock()
	s.touch()

	metrics.LoraLoadsTotal.Inc()
	s.log.Info().Str("adapter", spec.Name).Str("path", spec.Path).Msg("adapter loaded")
	s.publish(EventLoraLoaded, map[string]any{
		"name":  spec.Name,
		"path":  spec.Path,
		"scale": spec.Scale,
	})
	return nil
}

// Adapters returns the loaded adapter names in load order.
func (s *Session) Adapters() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.adapters))
	for _, ad := range s.adapters {
		names = append(names, ad.name)
	}
	return names
}

// SetChatTemplate installs the chat prompt template on the handle.
func (s *Session) SetChatTemplate(ctx context.Context, tmpl string) error {
	if strings.TrimSpace(tmpl) == "" {
		return errConfiguration("template is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	h, release, err := s.beginAux("set_template")
	if err != nil {
		return err
	}
	defer release()

	if err := h.SetChatTemplate(tmpl); err != nil {
		metrics.RecordNativeError("set_template")
		return err
	}
	s.mu.Lock()
	s.templateSet = true
	s.mu.Unlock()
	s.touch()
	s.log.Info().Msg("chat template set")
	return nil
}

// LoadPromptCache attaches a prompt cache snapshot, releasing any cache
// already attached first.
func (s *Session) LoadPromptCache(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return errConfiguration("cache path is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	h, release, err := s.beginAux("load_cache")
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	oldPath := s.cachePath
	oldRec := s.cacheRec
	s.cachePath = ""
	s.cacheRec = nil
	s.mu.Unlock()
	if oldPath != "" {
		if err := h.ReleasePromptCache(); err != nil {
			s.log.Warn().Err(err).Msg("stale prompt cache release failed")
		}
		s.alloc.Release(oldRec)
		metrics.RecordPromptCacheOp("clear")
		s.publish(EventCacheCleared, map[string]any{"path": oldPath})
	}

	rec, err := s.alloc.Allocate(PoolCPU, fsutil.FileSizeBytes(path), s.id)
	if err != nil {
		return err
	}
	if err := h.LoadPromptCache(path); err != nil {
		s.alloc.Release(rec)
		metrics.RecordNativeError("load_cache")
		return err
	}

	s.mu.Lock()
	s.cachePath = path
	s.cacheRec = rec
	s.mu.Unlock()
	s.touch()

	metrics.RecordPromptCacheOp("load")
	s.log.Info().Str("path", path).Msg("prompt cache loaded")
	s.publish(EventCacheLoaded, map[string]any{"path": path, "bytes": rec.Size()})
	return nil
}

// ReleasePromptCache detaches the current prompt cache. With no cache
// attached it returns nil without touching the handle.
func (s *Session) ReleasePromptCache(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h, release, err := s.beginAux("release_cache")
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	path := s.cachePath
	rec := s.cacheRec
	s.mu.Unlock()
	if path == "" {
		return nil
	}

	if err := h.ReleasePromptCache(); err != nil {
		metrics.RecordNativeError("release_cache")
		return err
	}
	s.mu.Lock()
	s.cachePath = ""
	s.cacheRec = nil
	s.mu.Unlock()
	s.alloc.Release(rec)
	s.touch()

	metrics.RecordPromptCacheOp("clear")
	s.log.Info().Str("path", path).Msg("prompt cache cleared")
	s.publish(EventCacheCleared, map[string]any{"path": path})
	return nil
}
