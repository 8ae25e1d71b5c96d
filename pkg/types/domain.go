package types

// Model represents a discoverable or loadable model file on disk.
type Model struct {
	// Stable identifier for the model.
	// example: tinyllama-q4.gguf
	ID string `json:"id" example:"tinyllama-q4.gguf"`
	// Human-friendly name.
	// example: TinyLlama (Q4)
	Name string `json:"name" example:"TinyLlama (Q4)"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
	// Optional family (e.g., llama, mistral, phi).
	// example: llama
	Family string `json:"family,omitempty" example:"llama"`
}

// Finish reasons reported on the final line of an inference stream.
const (
	FinishCompleted = "completed"
	FinishStopped   = "stopped"
	FinishError     = "error"
	FinishTimeout   = "timeout"
)

// Inference modes.
const (
	ModeGenerate = "generate"
	ModeChat     = "chat"
)

// Perf carries per-request performance counters.
type Perf struct {
	// Prompt processing (prefill) duration in milliseconds.
	// example: 120
	PrefillMS int64 `json:"prefill_ms" example:"120"`
	// Token generation duration in milliseconds.
	// example: 950
	GenerateMS int64 `json:"generate_ms" example:"950"`
	// Generation throughput in tokens per second.
	// example: 42.5
	TokensPerSec float64 `json:"tokens_per_sec" example:"42.5"`
	// Bytes attributed to the session when the request finished.
	// example: 1073741824
	MemoryBytes int64 `json:"memory_bytes" example:"1073741824"`
}
