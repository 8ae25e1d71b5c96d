package types

// CreateSessionRequest is the payload for POST /sessions.
// Typed fields cover the recognized configuration surface; the Options map
// accepts the same keys in camelCase plus future ones, which are ignored
// when unrecognized.
type CreateSessionRequest struct {
	// Registry model id. Mutually exclusive with model_path.
	// example: tinyllama-q4.gguf
	Model string `json:"model,omitempty" example:"tinyllama-q4.gguf"`
	// Absolute model file path. Mutually exclusive with model.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	ModelPath string `json:"model_path,omitempty" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// Context window length in tokens.
	// example: 2048
	MaxContextLen int `json:"max_context_len,omitempty" example:"2048"`
	// Default cap on newly generated tokens per request.
	// example: 256
	MaxNewTokens int `json:"max_new_tokens,omitempty" example:"256"`
	// Sampling temperature (>= 0).
	// example: 0.8
	Temperature *float64 `json:"temperature,omitempty" example:"0.8"`
	// Nucleus sampling probability in [0,1].
	// example: 0.95
	TopP *float64 `json:"top_p,omitempty" example:"0.95"`
	// Top-K sampling cutoff (>= 0, 0 disables).
	// example: 40
	TopK *int `json:"top_k,omitempty" example:"40"`
	// Number of CPU cores the native runtime may use (0 = auto).
	// example: 4
	EnabledCPUsNum int `json:"enabled_cpus_num,omitempty" example:"4"`
	// CPU affinity mask for the native runtime (0 = unset).
	// example: 15
	EnabledCPUsMask uint64 `json:"enabled_cpus_mask,omitempty" example:"15"`
	// Prompt evaluation batch size.
	// example: 512
	BatchSize int `json:"batch_size,omitempty" example:"512"`
	// Enable cross-attention pathways for multimodal models.
	// example: false
	CrossAttention bool `json:"cross_attention,omitempty" example:"false"`
	// Place model weights on the accelerator pool.
	// example: false
	UseAccelerator bool `json:"use_accelerator,omitempty" example:"false"`
	// Forward-compatible option bag; unrecognized keys are ignored.
	Options map[string]any `json:"options,omitempty"`
}

// SessionInfo summarizes one session for list/status responses.
type SessionInfo struct {
	// Session identifier.
	// example: 6f1c0f0a-9b5e-4d57-8a2f-0f6c1f6f2b3a
	ID string `json:"id" example:"6f1c0f0a-9b5e-4d57-8a2f-0f6c1f6f2b3a"`
	// Lifecycle state: uninitialized, initializing, ready, destroyed.
	// example: ready
	State string `json:"state" example:"ready"`
	// Model file backing the session.
	ModelPath string `json:"model_path"`
	// Creation time (unix seconds).
	// example: 1700000000
	CreatedUnix int64 `json:"created_unix" example:"1700000000"`
	// Last activity time (unix seconds).
	// example: 1700000060
	LastUsedUnix int64 `json:"last_used_unix" example:"1700000060"`
	// Names of loaded LoRA adapters, in load order.
	Adapters []string `json:"adapters,omitempty"`
	// Whether a chat template is configured.
	// example: false
	TemplateSet bool `json:"template_set"`
	// Whether a prompt cache is active.
	// example: false
	CacheLoaded bool `json:"cache_loaded"`
	// Whether an inference request is currently in flight.
	// example: false
	Busy bool `json:"busy"`
	// Bytes currently attributed to the session across pools.
	// example: 1073741824
	MemoryBytes int64 `json:"memory_bytes"`
	// Tokens generated over the session lifetime.
	// example: 1234
	TokensGenerated uint64 `json:"tokens_generated"`
}

// SessionsResponse wraps GET /sessions.
type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// InferRequest is the payload for POST /sessions/{id}/infer.
// Exactly one of prompt, tokens, or embedding must be set.
type InferRequest struct {
	// Prompt text input.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt,omitempty" example:"Write a haiku about the ocean."`
	// Pre-tokenized input sequence.
	Tokens []int32 `json:"tokens,omitempty"`
	// Embedding vector input.
	Embedding []float32 `json:"embedding,omitempty"`
	// Inference mode: generate (one-shot) or chat (retained history).
	// example: generate
	Mode string `json:"mode,omitempty" example:"generate"`
	// Per-request override of the generated-token cap.
	// example: 64
	MaxNewTokens *int `json:"max_new_tokens,omitempty" example:"64"`
	// Per-request temperature override.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Per-request nucleus sampling override.
	// example: 0.9
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
	// Per-request top-K override.
	// example: 40
	TopK *int `json:"top_k,omitempty" example:"40"`
	// Stop sequences; generation halts when one is produced.
	// example: ["\n\n","END"]
	Stop []string `json:"stop,omitempty" example:"[\"\\n\\n\",\"END\"]"`
	// Random seed; 0 lets the runtime choose.
	// example: 42
	Seed int64 `json:"seed,omitempty" example:"42"`
	// Cooperative timeout for this request in milliseconds (0 = none).
	// example: 30000
	TimeoutMS int64 `json:"timeout_ms,omitempty" example:"30000"`
}

// TokenChunk is one NDJSON line of an inference stream.
type TokenChunk struct {
	// Generated token text.
	// example: Hello
	Token string `json:"token" example:"Hello"`
	// Zero-based token index within the request.
	// example: 0
	Index int `json:"index" example:"0"`
	// Progress toward the generated-token cap, in [0,1]; omitted when no cap.
	// example: 0.25
	Progress *float64 `json:"progress,omitempty" example:"0.25"`
}

// InferFinal is the terminal NDJSON line of an inference stream.
type InferFinal struct {
	// Always true on the final line.
	// example: true
	Done bool `json:"done" example:"true"`
	// Accumulated (decoded) output text.
	Content string `json:"content"`
	// Finish reason: completed, stopped, error, timeout.
	// example: completed
	FinishReason string `json:"finish_reason" example:"completed"`
	// Number of generated tokens.
	// example: 17
	TokenCount int `json:"token_count" example:"17"`
	// Performance counters for the request.
	Perf Perf `json:"perf"`
	// Error message when finish_reason is error.
	Error string `json:"error,omitempty"`
}

// LoraRequest is the payload for POST /sessions/{id}/lora.
type LoraRequest struct {
	// Unique adapter name within the session.
	// example: style-haiku
	Name string `json:"name" example:"style-haiku"`
	// Absolute path to the adapter file.
	// example: /home/user/adapters/haiku.bin
	Path string `json:"path" example:"/home/user/adapters/haiku.bin"`
	// Blend scale applied to the adapter (0 = runtime default).
	// example: 1.0
	Scale float64 `json:"scale,omitempty" example:"1.0"`
}

// TemplateRequest is the payload for PUT /sessions/{id}/template.
type TemplateRequest struct {
	// Chat template text applied to multi-turn prompts.
	Template string `json:"template"`
}

// CacheRequest is the payload for POST /sessions/{id}/cache.
type CacheRequest struct {
	// Absolute path to a prompt cache snapshot.
	// example: /home/user/caches/system-prompt.bin
	Path string `json:"path" example:"/home/user/caches/system-prompt.bin"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// PoolStatus reports one allocator pool for GET /status.
type PoolStatus struct {
	// Pool name: cpu or accelerator.
	// example: cpu
	Pool string `json:"pool" example:"cpu"`
	// Configured capacity in bytes (0 = unlimited).
	// example: 17179869184
	CapacityBytes int64 `json:"capacity_bytes" example:"17179869184"`
	// Bytes currently allocated.
	// example: 1073741824
	InUseBytes int64 `json:"in_use_bytes" example:"1073741824"`
	// High-water mark in bytes.
	// example: 2147483648
	PeakBytes int64 `json:"peak_bytes" example:"2147483648"`
	// Number of live allocation records.
	// example: 3
	Records int `json:"records" example:"3"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Live sessions.
	Sessions []SessionInfo `json:"sessions"`
	// Allocator pool statistics.
	Pools []PoolStatus `json:"pools"`
	// Whether the accelerator pool accepts allocations.
	// example: false
	AcceleratorAvailable bool `json:"accelerator_available"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
