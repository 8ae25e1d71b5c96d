//go:build !llama

package session

// This file provides a no-CGO stub for the llama runtime. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds and CI CGO-free.
// The real runtime lives in runtime_llama.go (tagged 'llama').

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = false

// llamaRuntime is a stub that satisfies Runtime but refuses to open models
// without the 'llama' build tag. This avoids any mocked behavior in
// production binaries built without CGO support.
type llamaRuntime struct{}

// NewLlamaRuntime returns the stub runtime for builds without llama support.
func NewLlamaRuntime() Runtime {
	return llamaRuntime{}
}

func (llamaRuntime) Open(cfg HandleConfig) (Handle, error) {
	// Fail fast: llama runtime not available in this build.
	return nil, errNative("open", codeUnavailable, "llama support not built (missing 'llama' build tag)")
}
