package session

import (
	"errors"
	"testing"
)

func TestLoadAdapterOrderScaleAndEvents(t *testing.T) {
	dir := t.TempDir()
	h := &fakeHandle{tokens: []string{"x"}}
	s, pub := newReadySession(t, h)
	weights := s.alloc.OwnerBytes(s.ID())

	a := createModelFile(t, dir, "style.bin", 1)
	b := createModelFile(t, dir, "tone.bin", 2)

	if err := s.LoadAdapter(testCtx(t), LoraSpec{Name: "style", Path: a}); err != nil {
		t.Fatalf("load style: %v", err)
	}
	if err := s.LoadAdapter(testCtx(t), LoraSpec{Name: "tone", Path: b, Scale: 0.5}); err != nil {
		t.Fatalf("load tone: %v", err)
	}

	names := s.Adapters()
	if len(names) != 2 || names[0] != "style" || names[1] != "tone" {
		t.Fatalf("unexpected adapter order: %v", names)
	}
	h.mu.Lock()
	loras := append([]LoraSpec(nil), h.loras...)
	h.mu.Unlock()
	if len(loras) != 2 {
		t.Fatalf("expected two native loads, got %d", len(loras))
	}
	// Zero scale defaults to 1 before reaching the handle.
	if loras[0].Scale != 1 || loras[1].Scale != 0.5 {
		t.Fatalf("unexpected scales: %+v", loras)
	}

	if got := s.alloc.OwnerBytes(s.ID()); got != weights+3*1024*1024 {
		t.Fatalf("adapter bytes not attributed: %d", got)
	}
	if pub.CountByName(EventLoraLoaded) != 2 {
		t.Fatalf("expected two lora events, got %v", pub.Names())
	}
	for _, evt := range pub.Events() {
		if evt.Name == EventLoraLoaded && evt.Fields["name"] == "style" {
			if evt.Fields["path"] != a || evt.Fields["scale"] != float32(1) {
				t.Fatalf("unexpected event fields: %+v", evt.Fields)
			}
		}
	}
}

func TestLoadAdapterDuplicateNameRejected(t *testing.T) {
	dir := t.TempDir()
	h := &fakeHandle{tokens: []string{"x"}}
	s, _ := newReadySession(t, h)
	p := createModelFile(t, dir, "style.bin", 1)

	if err := s.LoadAdapter(testCtx(t), LoraSpec{Name: "style", Path: p}); err != nil {
		t.Fatalf("first load: %v", err)
	}
	err := s.LoadAdapter(testCtx(t), LoraSpec{Name: "style", Path: p})
	if err == nil || !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	loads := 0
	for _, c := range h.callLog() {
		if c == "load_lora" {
			loads++
		}
	}
	if loads != 1 {
		t.Fatalf("duplicate must not reach the handle, saw %d loads", loads)
	}
	if names := s.Adapters(); len(names) != 1 {
		t.Fatalf("unexpected adapters: %v", names)
	}
}

func TestLoadAdapterNativeFailureReleasesReservation(t *testing.T) {
	dir := t.TempDir()
	h := &fakeHandle{tokens: []string{"x"}, loraErr: errNative("load_lora", 4, "incompatible adapter")}
	s, pub := newReadySession(t, h)
	weights := s.alloc.OwnerBytes(s.ID())
	p := createModelFile(t, dir, "bad.bin", 1)

	err := s.LoadAdapter(testCtx(t), LoraSpec{Name: "bad", Path: p})
	if err == nil || !IsNativeLibrary(err) {
		t.Fatalf("expected native library error, got %v", err)
	}
	if code, ok := NativeCode(err); !ok || code != 4 {
		t.Fatalf("expected native code 4, got %d ok=%v", code, ok)
	}
	if got := s.alloc.OwnerBytes(s.ID()); got != weights {
		t.Fatalf("failed load leaked bytes: %d != %d", got, weights)
	}
	if len(s.Adapters()) != 0 {
		t.Fatalf("failed adapter registered: %v", s.Adapters())
	}
	if pub.CountByName(EventLoraLoaded) != 0 {
		t.Fatalf("no lora event expected, got %v", pub.Names())
	}
}

func TestLoadAdapterValidation(t *testing.T) {
	s, _ := newReadySession(t, &fakeHandle{})
	cases := []LoraSpec{
		{Path: "/a.bin"},
		{Name: "a"},
		{Name: "a", Path: "/a.bin", Scale: -1},
	}
	for _, spec := range cases {
		if err := s.LoadAdapter(testCtx(t), spec); err == nil || !IsConfiguration(err) {
			t.Fatalf("spec %+v: expected configuration error, got %v", spec, err)
		}
	}
}

func TestAuxOpsRejectedWhileBusy(t *testing.T) {
	dir := t.TempDir()
	s, _ := newReadySession(t, &fakeHandle{tokens: []string{"x"}})
	p := createModelFile(t, dir, "style.bin", 1)

	s.genCh <- struct{}{}
	defer func() { <-s.genCh }()

	if err := s.LoadAdapter(testCtx(t), LoraSpec{Name: "style", Path: p}); !IsTaskRunning(err) {
		t.Fatalf("load adapter: expected task running, got %v", err)
	}
	if err := s.SetChatTemplate(testCtx(t), "### {prompt}"); !IsTaskRunning(err) {
		t.Fatalf("set template: expected task running, got %v", err)
	}
	if err := s.LoadPromptCache(testCtx(t), p); !IsTaskRunning(err) {
		t.Fatalf("load cache: expected task running, got %v", err)
	}
	if err := s.ReleasePromptCache(testCtx(t)); !IsTaskRunning(err) {
		t.Fatalf("release cache: expected task running, got %v", err)
	}
}

func TestSetChatTemplate(t *testing.T) {
	h := &fakeHandle{tokens: []string{"x"}}
	s, _ := newReadySession(t, h)

	if err := s.SetChatTemplate(testCtx(t), "  "); err == nil || !IsConfiguration(err) {
		t.Fatalf("expected configuration error for blank template, got %v", err)
	}
	if err := s.SetChatTemplate(testCtx(t), "### {prompt}"); err != nil {
		t.Fatalf("set template: %v", err)
	}
	h.mu.Lock()
	tmpl := h.template
	h.mu.Unlock()
	if tmpl != "### {prompt}" {
		t.Fatalf("template not forwarded: %q", tmpl)
	}
	if !s.Info().TemplateSet {
		t.Fatalf("template flag not set")
	}
}

func TestPromptCacheLoadReplaceRelease(t *testing.T) {
	dir := t.TempDir()
	h := &fakeHandle{tokens: []string{"x"}}
	s, pub := newReadySession(t, h)
	weights := s.alloc.OwnerBytes(s.ID())

	first := createModelFile(t, dir, "warm.cache", 1)
	second := createModelFile(t, dir, "warmer.cache", 2)

	if err := s.LoadPromptCache(testCtx(t), first); err != nil {
		t.Fatalf("load first: %v", err)
	}
	if got := s.alloc.OwnerBytes(s.ID()); got != weights+1024*1024 {
		t.Fatalf("first cache bytes: %d", got)
	}
	if !s.Info().CacheLoaded {
		t.Fatalf("cache flag not set")
	}

	// Loading a second cache releases the first before attaching.
	if err := s.LoadPromptCache(testCtx(t), second); err != nil {
		t.Fatalf("load second: %v", err)
	}
	if got := s.alloc.OwnerBytes(s.ID()); got != weights+2*1024*1024 {
		t.Fatalf("replace must not accumulate: %d", got)
	}
	wantCalls := []string{"load_cache", "release_cache", "load_cache"}
	var cacheCalls []string
	for _, c := range h.callLog() {
		if c == "load_cache" || c == "release_cache" {
			cacheCalls = append(cacheCalls, c)
		}
	}
	if len(cacheCalls) != len(wantCalls) {
		t.Fatalf("unexpected cache calls: %v", cacheCalls)
	}
	for i := range wantCalls {
		if cacheCalls[i] != wantCalls[i] {
			t.Fatalf("unexpected cache call order: %v", cacheCalls)
		}
	}
	if pub.CountByName(EventCacheLoaded) != 2 || pub.CountByName(EventCacheCleared) != 1 {
		t.Fatalf("unexpected cache events: %v", pub.Names())
	}

	if err := s.ReleasePromptCache(testCtx(t)); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := s.alloc.OwnerBytes(s.ID()); got != weights {
		t.Fatalf("release must free cache bytes: %d != %d", got, weights)
	}
	if s.Info().CacheLoaded {
		t.Fatalf("cache flag still set after release")
	}
}

func TestReleasePromptCacheSilentWhenNone(t *testing.T) {
	h := &fakeHandle{tokens: []string{"x"}}
	s, pub := newReadySession(t, h)

	if err := s.ReleasePromptCache(testCtx(t)); err != nil {
		t.Fatalf("release with no cache: %v", err)
	}
	for _, c := range h.callLog() {
		if c == "release_cache" {
			t.Fatalf("handle touched with no cache attached")
		}
	}
	if pub.CountByName(EventCacheCleared) != 0 {
		t.Fatalf("unexpected clear event: %v", pub.Names())
	}
}

func TestLoadPromptCacheNativeFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	h := &fakeHandle{tokens: []string{"x"}, cacheErr: errNative("load_cache", 9, "snapshot mismatch")}
	s, _ := newReadySession(t, h)
	weights := s.alloc.OwnerBytes(s.ID())
	p := createModelFile(t, dir, "warm.cache", 1)

	err := s.LoadPromptCache(testCtx(t), p)
	if err == nil || !IsNativeLibrary(err) {
		t.Fatalf("expected native library error, got %v", err)
	}
	if got := s.alloc.OwnerBytes(s.ID()); got != weights {
		t.Fatalf("failed load leaked bytes: %d != %d", got, weights)
	}
	if s.Info().CacheLoaded {
		t.Fatalf("cache flag set after failed load")
	}
}

func TestReleasePromptCacheNativeFailureKeepsState(t *testing.T) {
	dir := t.TempDir()
	h := &fakeHandle{tokens: []string{"x"}}
	s, _ := newReadySession(t, h)
	p := createModelFile(t, dir, "warm.cache", 1)

	if err := s.LoadPromptCache(testCtx(t), p); err != nil {
		t.Fatalf("load: %v", err)
	}
	before := s.alloc.OwnerBytes(s.ID())

	sentinel := errors.New("backend busy")
	h.mu.Lock()
	h.releaseErr = sentinel
	h.mu.Unlock()

	if err := s.ReleasePromptCache(testCtx(t)); !errors.Is(err, sentinel) {
		t.Fatalf("expected native failure surfaced, got %v", err)
	}
	// State and accounting stay intact so the caller can retry.
	if !s.Info().CacheLoaded {
		t.Fatalf("cache flag dropped despite failed release")
	}
	if got := s.alloc.OwnerBytes(s.ID()); got != before {
		t.Fatalf("bytes changed on failed release: %d != %d", got, before)
	}

	h.mu.Lock()
	h.releaseErr = nil
	h.mu.Unlock()
	if err := s.ReleasePromptCache(testCtx(t)); err != nil {
		t.Fatalf("retry release: %v", err)
	}
}
