package e2e

import (
	"bytes"
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

	"sessiond/internal/httpapi"
	"sessiond/internal/registry"
	"sessiond/internal/session"
)

// scriptedRuntime stands in for the native library so daemon scenarios run
// anywhere. Every open hands out the shared scripted handle.
type scriptedRuntime struct {
	handle *scriptedHandle
}

func (r *scriptedRuntime) Open(cfg session.HandleConfig) (session.Handle, error) {
	return r.handle, nil
}

type scriptedHandle struct {
	mu       sync.Mutex
	tokens   []string
	perToken time.Duration

	genStarted chan struct{}
	startOnce  sync.Once
}

func (h *scriptedHandle) Generate(in session.Input, params session.GenParams, cb session.StreamCallback) error {
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
	cb(session.StreamEvent{Kind: session.StreamFinish})
	return nil
}

func (h *scriptedHandle) LoadLora(spec session.LoraSpec) error  { return nil }
func (h *scriptedHandle) SetChatTemplate(tmpl string) error     { return nil }
func (h *scriptedHandle) LoadPromptCache(path string) error     { return nil }
func (h *scriptedHandle) ReleasePromptCache() error             { return nil }
func (h *scriptedHandle) Close() error                          { return nil }

// populateModelsDir fills a temp directory with fixed-size model files and
// returns the directory path.
func populateModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	block := bytes.Repeat([]byte{0}, 1024*1024)
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), block, 0o644); err != nil {
			t.Fatalf("write model %s: %v", n, err)
		}
	}
	return dir
}

// daemon is a fully wired sessiond over a scripted runtime.
type daemon struct {
	srv    *httptest.Server
	mgr    *session.Manager
	handle *scriptedHandle
}

func (d *daemon) url(path string) string { return d.srv.URL + path }

// newDaemon scans modelsDir, builds the manager, and serves the full mux.
// mutate may adjust the config before the manager starts.
func newDaemon(t *testing.T, modelsDir string, mutate func(*session.ManagerConfig)) *daemon {
	t.Helper()
	models, err := registry.LoadDir(modelsDir)
	if err != nil {
		t.Fatalf("scan models: %v", err)
	}
	h := &scriptedHandle{tokens: []string{"drift", "wood", " shore"}}
	cfg := session.ManagerConfig{
		Registry:   models,
		Runtime:    &scriptedRuntime{handle: h},
		Allocator:  session.NewAllocator(session.AllocatorConfig{CPUBytes: 1 << 30}),
		SessionTTL: -1,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	mgr := session.NewManager(cfg)
	t.Cleanup(func() { mgr.Close(context.Background()) })
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(srv.Close)
	return &daemon{srv: srv, mgr: mgr, handle: h}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url, payload string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, body
}

func httpDo(t *testing.T, method, url, payload string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if payload != "" {
		rd = strings.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, body
}

// collectStream parses NDJSON output into its token texts and the final line.
func collectStream(t *testing.T, body []byte) ([]string, map[string]any) {
	t.Helper()
	var tokens []string
	var final map[string]any
	for _, ln := range strings.Split(string(body), "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(ln), &m); err != nil {
			t.Fatalf("bad stream line %q: %v", ln, err)
		}
		if done, _ := m["done"].(bool); done {
			final = m
			continue
		}
		if tok, ok := m["token"].(string); ok {
			tokens = append(tokens, tok)
		}
	}
	if final == nil {
		t.Fatalf("stream missing final line: %s", body)
	}
	return tokens, final
}
