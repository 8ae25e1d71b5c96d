package e2e

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"sessiond/internal/session"
	"sessiond/pkg/types"
)

func TestDaemonSessionLifecycle(t *testing.T) {
	dir := populateModelsDir(t, "alpha.gguf", "beta.gguf")
	d := newDaemon(t, dir, nil)

	// Discovery reflects the scanned directory.
	resp, body := httpGet(t, d.url("/models"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/models status=%d body=%s", resp.StatusCode, body)
	}
	var mr types.ModelsResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		t.Fatalf("/models json: %v body=%s", err, body)
	}
	if len(mr.Models) != 2 {
		t.Fatalf("models=%d, want 2", len(mr.Models))
	}

	resp, _ = httpGet(t, d.url("/readyz"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/readyz status=%d, want 200", resp.StatusCode)
	}

	// Create a session from a scanned registry id.
	resp, body = httpPostJSON(t, d.url("/sessions"), `{"model":"alpha.gguf","max_new_tokens":16}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", resp.StatusCode, body)
	}
	var info types.SessionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("create json: %v body=%s", err, body)
	}
	if info.State != "ready" || !strings.HasSuffix(info.ModelPath, "alpha.gguf") {
		t.Fatalf("session info=%+v", info)
	}

	// Inference streams the scripted tokens.
	resp, body = httpPostJSON(t, d.url("/sessions/"+info.ID+"/infer"), `{"prompt":"haiku"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("infer status=%d body=%s", resp.StatusCode, body)
	}
	tokens, final := collectStream(t, body)
	if strings.Join(tokens, "") != "driftwood shore" {
		t.Fatalf("tokens=%q", strings.Join(tokens, ""))
	}
	if fr, _ := final["finish_reason"].(string); fr != types.FinishCompleted {
		t.Fatalf("finish_reason=%v", final["finish_reason"])
	}
	if tc, _ := final["token_count"].(float64); int(tc) != 3 {
		t.Fatalf("token_count=%v", final["token_count"])
	}

	// Auxiliary surfaces: adapter, template, prompt cache.
	loraPath := filepath.Join(dir, "style.lora")
	if err := os.WriteFile(loraPath, []byte("lora-weights"), 0o644); err != nil {
		t.Fatalf("write lora: %v", err)
	}
	resp, body = httpPostJSON(t, d.url("/sessions/"+info.ID+"/lora"),
		`{"name":"style","path":`+quoteJSON(loraPath)+`,"scale":0.8}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lora status=%d body=%s", resp.StatusCode, body)
	}
	var after types.SessionInfo
	if err := json.Unmarshal(body, &after); err != nil {
		t.Fatalf("lora json: %v", err)
	}
	if len(after.Adapters) != 1 || after.Adapters[0] != "style" {
		t.Fatalf("adapters=%v", after.Adapters)
	}

	resp, _ = httpDo(t, http.MethodPut, d.url("/sessions/"+info.ID+"/template"),
		`{"template":"[INST] {prompt} [/INST]"}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("template status=%d, want 204", resp.StatusCode)
	}

	cachePath := filepath.Join(dir, "prompt.cache")
	if err := os.WriteFile(cachePath, []byte("cache-bytes"), 0o644); err != nil {
		t.Fatalf("write cache: %v", err)
	}
	resp, _ = httpPostJSON(t, d.url("/sessions/"+info.ID+"/cache"), `{"path":`+quoteJSON(cachePath)+`}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("cache load status=%d, want 204", resp.StatusCode)
	}

	resp, body = httpGet(t, d.url("/sessions/"+info.ID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status=%d", resp.StatusCode)
	}
	var cur types.SessionInfo
	if err := json.Unmarshal(body, &cur); err != nil {
		t.Fatalf("get json: %v", err)
	}
	if !cur.TemplateSet || !cur.CacheLoaded || cur.TokensGenerated != 3 {
		t.Fatalf("session state=%+v", cur)
	}

	resp, _ = httpDo(t, http.MethodDelete, d.url("/sessions/"+info.ID+"/cache"), "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("cache release status=%d, want 204", resp.StatusCode)
	}

	// Status reflects pool accounting while the session lives.
	resp, body = httpGet(t, d.url("/status"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status status=%d", resp.StatusCode)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("status json: %v", err)
	}
	if len(st.Sessions) != 1 || len(st.Pools) != 2 {
		t.Fatalf("status=%+v", st)
	}
	if st.Pools[0].Pool != "cpu" || st.Pools[0].InUseBytes <= 0 {
		t.Fatalf("cpu pool=%+v", st.Pools[0])
	}

	// Destroy releases everything.
	resp, _ = httpDo(t, http.MethodDelete, d.url("/sessions/"+info.ID), "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("destroy status=%d, want 204", resp.StatusCode)
	}
	resp, body = httpGet(t, d.url("/status"))
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("status json: %v", err)
	}
	if len(st.Sessions) != 0 || st.Pools[0].InUseBytes != 0 {
		t.Fatalf("post-destroy status=%+v", st)
	}
}

func TestDaemonBackpressure(t *testing.T) {
	dir := populateModelsDir(t, "alpha.gguf")
	d := newDaemon(t, dir, nil)
	d.handle.tokens = make([]string, 300)
	for i := range d.handle.tokens {
		d.handle.tokens[i] = "x"
	}
	d.handle.perToken = 5 * time.Millisecond
	d.handle.genStarted = make(chan struct{})

	resp, body := httpPostJSON(t, d.url("/sessions"), `{"model":"alpha.gguf"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", resp.StatusCode, body)
	}
	var info types.SessionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("create json: %v", err)
	}

	type result struct {
		status int
		body   []byte
		err    error
	}
	firstCh := make(chan result, 1)
	go func() {
		res, err := http.Post(d.url("/sessions/"+info.ID+"/infer"), "application/json",
			strings.NewReader(`{"prompt":"long"}`))
		if err != nil {
			firstCh <- result{err: err}
			return
		}
		raw, _ := io.ReadAll(res.Body)
		res.Body.Close()
		firstCh <- result{status: res.StatusCode, body: raw}
	}()
	<-d.handle.genStarted

	// The slot is taken; a second request is turned away immediately.
	resp, body = httpPostJSON(t, d.url("/sessions/"+info.ID+"/infer"), `{"prompt":"second"}`)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("busy status=%d body=%s, want 429", resp.StatusCode, body)
	}

	resp, _ = httpDo(t, http.MethodPost, d.url("/sessions/"+info.ID+"/abort"), "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("abort status=%d, want 202", resp.StatusCode)
	}

	select {
	case r := <-firstCh:
		if r.err != nil {
			t.Fatalf("first request: %v", r.err)
		}
		if r.status != http.StatusOK {
			t.Fatalf("first status=%d body=%s", r.status, r.body)
		}
		_, final := collectStream(t, r.body)
		if fr, _ := final["finish_reason"].(string); fr != types.FinishStopped {
			t.Fatalf("finish_reason=%v, want stopped", final["finish_reason"])
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("first request did not settle")
	}
}

func TestDaemonIdleExpiry(t *testing.T) {
	dir := populateModelsDir(t, "alpha.gguf")
	d := newDaemon(t, dir, func(cfg *session.ManagerConfig) {
		cfg.SessionTTL = 75 * time.Millisecond
	})

	resp, body := httpPostJSON(t, d.url("/sessions"), `{"model":"alpha.gguf"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", resp.StatusCode, body)
	}
	var info types.SessionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("create json: %v", err)
	}
	sess, err := d.mgr.Get(info.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, body = httpGet(t, d.url("/sessions"))
		var list types.SessionsResponse
		if err := json.Unmarshal(body, &list); err != nil {
			t.Fatalf("list json: %v", err)
		}
		if len(list.Sessions) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("idle session not expired; list=%s", body)
		}
		time.Sleep(25 * time.Millisecond)
	}
	if sess.State() != session.StateDestroyed {
		t.Fatalf("state=%v, want destroyed", sess.State())
	}
}

// quoteJSON escapes a string for embedding inside a JSON literal built by hand.
func quoteJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
