//go:build !llama

package session

import (
	"strings"
	"testing"
)

func TestStubRuntimeFailsFast(t *testing.T) {
	if llamaBuilt {
		t.Fatalf("llamaBuilt must be false without the llama tag")
	}
	_, err := NewLlamaRuntime().Open(HandleConfig{ModelPath: "/m.gguf"})
	if err == nil || !IsNativeLibrary(err) {
		t.Fatalf("expected native library error, got %v", err)
	}
	if code, ok := NativeCode(err); !ok || code != codeUnavailable {
		t.Fatalf("expected unavailable code, got %d ok=%v", code, ok)
	}
	if !IsNativeUnavailable(err) {
		t.Fatalf("expected unavailable classification for %v", err)
	}
	if IsNativeUnavailable(errNative("open", 3, "real failure")) {
		t.Fatalf("real native codes must not classify as unavailable")
	}
	if !strings.Contains(err.Error(), "llama") {
		t.Fatalf("error should name the missing build tag: %v", err)
	}
}
