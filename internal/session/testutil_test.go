package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// createModelFile creates a file of approximately sizeMB megabytes and returns its path.
func createModelFile(t *testing.T, dir, name string, sizeMB int) string {
	t.Helper()
	if sizeMB <= 0 {
		sizeMB = 1
	}
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	defer f.Close()
	block := make([]byte, 1024*1024)
	for i := 0; i < sizeMB; i++ {
		if _, err := f.Write(block); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := f.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	return p
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

// fakeRuntime is a scriptable in-memory runtime used across tests.
type fakeRuntime struct {
	mu      sync.Mutex
	openErr error
	handle  *fakeHandle
	lastCfg HandleConfig
	opens   int
}

func (r *fakeRuntime) Open(cfg HandleConfig) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opens++
	r.lastCfg = cfg
	if r.openErr != nil {
		return nil, r.openErr
	}
	if r.handle != nil {
		return r.handle, nil
	}
	return &fakeHandle{tokens: []string{"ok"}}, nil
}

// fakeHandle scripts the native boundary. Generate emits tokens, honoring
// the callback protocol: a StreamStop return is acknowledged with an
// aborted terminal, otherwise a finish (or scripted error) terminal ends
// the stream.
type fakeHandle struct {
	mu         sync.Mutex
	tokens     []string
	perToken   time.Duration
	streamErr  bool
	errCode    int
	genErr     error
	loraErr    error
	cacheErr   error
	releaseErr error

	genStarted chan struct{}
	startOnce  sync.Once

	calls      []string
	loras      []LoraSpec
	template   string
	cachePath  string
	closes     int
	lastInput  Input
	lastParams GenParams
}

func (h *fakeHandle) record(op string) {
	h.mu.Lock()
	h.calls = append(h.calls, op)
	h.mu.Unlock()
}

func (h *fakeHandle) Generate(in Input, params GenParams, cb StreamCallback) error {
	h.record("generate")
	h.mu.Lock()
	h.lastInput = in
	h.lastParams = params
	h.mu.Unlock()
	if h.genStarted != nil {
		h.startOnce.Do(func() { close(h.genStarted) })
	}
	if h.genErr != nil {
		return h.genErr
	}
	for _, tok := range h.tokens {
		if h.perToken > 0 {
			time.Sleep(h.perToken)
		}
		if cb(StreamEvent{Kind: StreamToken, Token: tok}) == StreamStop {
			cb(StreamEvent{Kind: StreamAborted})
			return nil
		}
	}
	if h.streamErr {
		cb(StreamEvent{Kind: StreamError, Code: h.errCode})
		return nil
	}
	cb(StreamEvent{Kind: StreamFinish})
	return nil
}

func (h *fakeHandle) LoadLora(spec LoraSpec) error {
	h.record("load_lora")
	if h.loraErr != nil {
		return h.loraErr
	}
	h.mu.Lock()
	h.loras = append(h.loras, spec)
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) SetChatTemplate(tmpl string) error {
	h.record("set_template")
	h.mu.Lock()
	h.template = tmpl
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) LoadPromptCache(path string) error {
	h.record("load_cache")
	if h.cacheErr != nil {
		return h.cacheErr
	}
	h.mu.Lock()
	h.cachePath = path
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) ReleasePromptCache() error {
	h.record("release_cache")
	if h.releaseErr != nil {
		return h.releaseErr
	}
	h.mu.Lock()
	h.cachePath = ""
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) Close() error {
	h.record("close")
	h.mu.Lock()
	h.closes++
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) callLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.calls))
	copy(out, h.calls)
	return out
}

// newReadySession builds and initializes a session backed by h with a
// 1 GiB cpu pool and an in-memory publisher.
func newReadySession(t *testing.T, h *fakeHandle, opts ...Option) (*Session, *MemoryPublisher) {
	t.Helper()
	dir := t.TempDir()
	p := createModelFile(t, dir, "model.gguf", 1)
	pub := NewMemoryPublisher()
	base := []Option{
		WithRuntime(&fakeRuntime{handle: h}),
		WithAllocator(NewAllocator(AllocatorConfig{CPUBytes: 1 << 30})),
		WithPublisher(pub),
	}
	s := New(Config{ModelPath: p}, append(base, opts...)...)
	if err := s.Initialize(testCtx(t)); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return s, pub
}

// manyTokens returns n copies of tok for long-running generations.
func manyTokens(tok string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = tok
	}
	return out
}
