//go:build llama

package session

import (
	"runtime"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// fullOffloadLayers is passed as the GPU layer count when a session asks for
// accelerator placement; llama.cpp clamps it to the model's layer count.
const fullOffloadLayers = 999

// llamaRuntime loads models in-process through go-llama.cpp.
type llamaRuntime struct{}

// NewLlamaRuntime returns the in-process llama.cpp runtime.
func NewLlamaRuntime() Runtime {
	return llamaRuntime{}
}

func (llamaRuntime) Open(cfg HandleConfig) (Handle, error) {
	if strings.TrimSpace(cfg.ModelPath) == "" {
		return nil, errNative("open", codeNone, "model path is empty")
	}
	m, err := llama.New(cfg.ModelPath, modelOptions(cfg, "")...)
	if err != nil {
		return nil, errNative("open", codeNone, "%v", err)
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &llamaHandle{model: m, cfg: cfg, threads: threads}, nil
}

func modelOptions(cfg HandleConfig, loraPath string) []llama.ModelOption {
	mo := []llama.ModelOption{
		llama.SetContext(cfg.ContextLen),
		llama.SetNBatch(cfg.BatchSize),
	}
	if cfg.UseAccelerator {
		mo = append(mo, llama.SetGPULayers(fullOffloadLayers))
	}
	if loraPath != "" {
		mo = append(mo, llama.SetLoraAdapter(loraPath))
	}
	return mo
}

// llamaHandle owns one loaded model. The session serializes access; the
// mutex only covers teardown racing a late call.
type llamaHandle struct {
	mu       sync.Mutex
	model    *llama.LLama
	cfg      HandleConfig
	threads  int
	closed   bool
	lora     string
	template string
	cache    string
}

func (h *llamaHandle) Generate(in Input, params GenParams, cb StreamCallback) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.model == nil {
		return errNative("generate", codeNone, "handle closed")
	}
	if len(in.Tokens) > 0 || len(in.Embedding) > 0 {
		cb(StreamEvent{Kind: StreamError, Code: codeNone})
		return errNative("generate", codeNone, "llama runtime accepts prompt input only")
	}

	prompt := h.applyTemplate(in.Prompt)

	stopped := false
	h.model.SetTokenCallback(func(tok string) bool {
		if cb(StreamEvent{Kind: StreamToken, Token: tok}) == StreamStop {
			stopped = true
			return false
		}
		return true
	})
	defer h.model.SetTokenCallback(nil)

	_, err := h.model.Predict(prompt, h.predictOptions(params)...)
	switch {
	case stopped:
		// A cut-off Predict may surface an error; the stop request wins.
		cb(StreamEvent{Kind: StreamAborted})
		return nil
	case err != nil:
		cb(StreamEvent{Kind: StreamError, Code: codeNone})
		return errNative("generate", codeNone, "%v", err)
	default:
		cb(StreamEvent{Kind: StreamFinish})
		return nil
	}
}

func (h *llamaHandle) predictOptions(params GenParams) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(maxInt(1, params.MaxNewTokens)),
		llama.SetThreads(h.threads),
		llama.SetTopP(params.TopP),
		llama.SetTopK(params.TopK),
		llama.SetTemperature(params.Temperature),
	}
	if params.Seed != 0 {
		po = append(po, llama.SetSeed(int(params.Seed)))
	}
	if len(params.Stop) > 0 {
		po = append(po, llama.SetStopWords(params.Stop...))
	}
	if h.cache != "" {
		po = append(po, llama.SetPathPromptCache(h.cache), llama.EnablePromptCacheAll)
	}
	return po
}

// applyTemplate formats prompt through the installed chat template. The
// template uses a {prompt} placeholder; without one it is prepended as a
// system preamble.
func (h *llamaHandle) applyTemplate(prompt string) string {
	if h.template == "" {
		return prompt
	}
	if strings.Contains(h.template, "{prompt}") {
		return strings.ReplaceAll(h.template, "{prompt}", prompt)
	}
	return h.template + "\n" + prompt
}

// LoadLora reloads the weights with the adapter attached; go-llama has no
// post-load apply. Only one adapter can be active per handle.
func (h *llamaHandle) LoadLora(spec LoraSpec) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.model == nil {
		return errNative("load_lora", codeNone, "handle closed")
	}
	if h.lora != "" {
		return errNative("load_lora", codeNone, "llama runtime supports one active adapter")
	}
	m, err := llama.New(h.cfg.ModelPath, modelOptions(h.cfg, spec.Path)...)
	if err != nil {
		return errNative("load_lora", codeNone, "%v", err)
	}
	old := h.model
	h.model = m
	h.lora = spec.Path
	if old != nil {
		old.Free()
	}
	return nil
}

func (h *llamaHandle) SetChatTemplate(tmpl string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errNative("set_template", codeNone, "handle closed")
	}
	h.template = tmpl
	return nil
}

func (h *llamaHandle) LoadPromptCache(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errNative("load_cache", codeNone, "handle closed")
	}
	h.cache = path
	return nil
}

func (h *llamaHandle) ReleasePromptCache() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errNative("release_cache", codeNone, "handle closed")
	}
	h.cache = ""
	return nil
}

func (h *llamaHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if h.model != nil {
		h.model.Free()
		h.model = nil
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
