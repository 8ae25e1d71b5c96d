package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"sessiond/internal/session"
	"sessiond/pkg/types"
)

// stubRuntime satisfies session.Runtime without native code.
type stubRuntime struct {
	mu      sync.Mutex
	openErr error
	handle  *stubHandle
}

func (r *stubRuntime) Open(cfg session.HandleConfig) (session.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.openErr != nil {
		return nil, r.openErr
	}
	if r.handle != nil {
		return r.handle, nil
	}
	return &stubHandle{tokens: []string{"ok"}}, nil
}

// stubHandle scripts the native boundary for handler tests. Generate follows
// the stream protocol: tokens, then one terminal unit; a StreamStop return is
// acknowledged with an aborted terminal.
type stubHandle struct {
	mu        sync.Mutex
	tokens    []string
	perToken  time.Duration
	streamErr bool
	errCode   int
	loraErr   error
	cacheErr  error

	genStarted chan struct{}
	startOnce  sync.Once

	template  string
	cachePath string
}

func (h *stubHandle) Generate(in session.Input, params session.GenParams, cb session.StreamCallback) error {
	if h.genStarted != nil {
		h.startOnce.Do(func() { close(h.genStarted) })
	}
	for _, tok := range h.tokens {
		if h.perToken > 0 {
			time.Sleep(h.perToken)
		}
		if cb(session.StreamEvent{Kind: session.StreamToken, Token: tok}) == session.StreamStop {
			cb(session.StreamEvent{Kind: session.StreamAborted})
			return nil
		}
	}
	if h.streamErr {
		cb(session.StreamEvent{Kind: session.StreamError, Code: h.errCode})
		return nil
	}
	cb(session.StreamEvent{Kind: session.StreamFinish})
	return nil
}

func (h *stubHandle) LoadLora(spec session.LoraSpec) error {
	return h.loraErr
}

func (h *stubHandle) SetChatTemplate(tmpl string) error {
	h.mu.Lock()
	h.template = tmpl
	h.mu.Unlock()
	return nil
}

func (h *stubHandle) LoadPromptCache(path string) error {
	if h.cacheErr != nil {
		return h.cacheErr
	}
	h.mu.Lock()
	h.cachePath = path
	h.mu.Unlock()
	return nil
}

func (h *stubHandle) ReleasePromptCache() error {
	h.mu.Lock()
	h.cachePath = ""
	h.mu.Unlock()
	return nil
}

func (h *stubHandle) Close() error { return nil }

// writeBlob creates a file of approximately sizeMB megabytes.
func writeBlob(t *testing.T, dir, name string, sizeMB int) string {
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
	return p
}

// testEnv bundles a live test server with its backing manager and handle.
type testEnv struct {
	srv    *httptest.Server
	mgr    *session.Manager
	rt     *stubRuntime
	handle *stubHandle
}

// newTestEnv assembles a real manager over a stub runtime and serves the full
// mux on an httptest server. mutate may adjust the manager config before use.
func newTestEnv(t *testing.T, mutate func(*session.ManagerConfig)) *testEnv {
	t.Helper()
	dir := t.TempDir()
	path := writeBlob(t, dir, "tiny.gguf", 1)
	h := &stubHandle{tokens: []string{"hello", " world"}}
	rt := &stubRuntime{handle: h}
	cfg := session.ManagerConfig{
		Registry:   []types.Model{{ID: "tiny", Name: "tiny", Path: path}},
		Runtime:    rt,
		Allocator:  session.NewAllocator(session.AllocatorConfig{CPUBytes: 1 << 30}),
		SessionTTL: -1,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	mgr := session.NewManager(cfg)
	t.Cleanup(func() { mgr.Close(context.Background()) })
	srv := httptest.NewServer(NewMux(mgr))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, mgr: mgr, rt: rt, handle: h}
}

func (e *testEnv) url(path string) string { return e.srv.URL + path }

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return res
}

func doJSON(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return res
}

// createSession creates a session over HTTP and returns its info.
func createSession(t *testing.T, e *testEnv, body string) types.SessionInfo {
	t.Helper()
	res := postJSON(t, e.url("/sessions"), body)
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(res.Body)
		t.Fatalf("create session: status %d body %s", res.StatusCode, raw)
	}
	var info types.SessionInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		t.Fatalf("decode session info: %v", err)
	}
	return info
}

func decodeBody(t *testing.T, res *http.Response, dst any) {
	t.Helper()
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// readStream splits an NDJSON response into token chunks and the final line.
func readStream(t *testing.T, res *http.Response) ([]types.TokenChunk, types.InferFinal) {
	t.Helper()
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	var chunks []types.TokenChunk
	var final types.InferFinal
	sawFinal := false
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if line == "" {
			continue
		}
		if sawFinal {
			t.Fatalf("line after final: %s", line)
		}
		var probe struct {
			Done bool `json:"done"`
		}
		if err := json.Unmarshal([]byte(line), &probe); err != nil {
			t.Fatalf("bad stream line %q: %v", line, err)
		}
		if probe.Done {
			if err := json.Unmarshal([]byte(line), &final); err != nil {
				t.Fatalf("bad final line %q: %v", line, err)
			}
			sawFinal = true
			continue
		}
		var c types.TokenChunk
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			t.Fatalf("bad chunk line %q: %v", line, err)
		}
		chunks = append(chunks, c)
	}
	if !sawFinal {
		t.Fatalf("stream missing final line: %s", raw)
	}
	return chunks, final
}

func manyTokens(tok string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = tok
	}
	return out
}
