package session

// Stream control codes returned by a StreamCallback. The return value is the
// only signal the orchestrator sends back into a running generation: zero
// lets the native layer continue, one asks it to stop at the next unit.
const (
	StreamContinue = 0
	StreamStop     = 1
)

// StreamKind discriminates the units a generation delivers.
type StreamKind int

const (
	// StreamToken carries one decoded text unit.
	StreamToken StreamKind = iota
	// StreamFinish reports natural completion (EOS or token budget).
	StreamFinish
	// StreamError reports a native failure; Code holds the native status.
	StreamError
	// StreamAborted acknowledges a cooperative stop requested through the
	// callback return value.
	StreamAborted
)

// StreamEvent is one unit delivered by the native layer during generation.
// Exactly one terminal unit (Finish, Error, or Aborted) ends a stream.
type StreamEvent struct {
	Kind  StreamKind
	Token string
	Code  int
}

// StreamCallback consumes stream units and returns StreamContinue or
// StreamStop. It is invoked on the generation goroutine; implementations
// must not call back into the owning session.
type StreamCallback func(evt StreamEvent) int

// Input is the inference input. Exactly one of Prompt, Tokens, or Embedding
// must be set; the orchestrator validates this before any native call.
type Input struct {
	Prompt    string
	Tokens    []int32
	Embedding []float32
}

// GenParams are the resolved generation parameters for one request.
type GenParams struct {
	MaxNewTokens int
	Temperature  float32
	TopP         float32
	TopK         int
	Stop         []string
	Seed         int64
}

// LoraSpec names a low-rank adapter to apply to a handle.
type LoraSpec struct {
	Name  string
	Path  string
	Scale float32
}

// HandleConfig is the subset of session configuration a runtime needs to
// load a model. CPUMask is an affinity hint; runtimes without affinity
// support ignore it.
type HandleConfig struct {
	ModelPath      string
	ContextLen     int
	BatchSize      int
	Threads        int
	CPUMask        uint64
	CrossAttention bool
	UseAccelerator bool
}

// Runtime abstracts the native inference library.
type Runtime interface {
	// Open loads the model described by cfg and returns a live handle.
	// No handle is retained on failure.
	Open(cfg HandleConfig) (Handle, error)
}

// Handle is an opaque reference to one loaded model instance. A handle is
// exclusively owned by its session; the session serializes all calls, so
// implementations need not be safe for concurrent use.
type Handle interface {
	// Generate runs one request, invoking cb once per stream unit until a
	// terminal unit is delivered or cb returns StreamStop. The error return
	// covers failures outside the stream protocol; stream-level failures
	// arrive as a StreamError unit.
	Generate(in Input, params GenParams, cb StreamCallback) error

	// LoadLora applies an adapter to the handle. There is no per-adapter
	// unload; adapter state is released with the handle.
	LoadLora(spec LoraSpec) error

	// SetChatTemplate installs the template used to format chat prompts.
	SetChatTemplate(tmpl string) error

	// LoadPromptCache attaches a prompt cache snapshot at path.
	LoadPromptCache(path string) error

	// ReleasePromptCache detaches the current prompt cache, if any.
	ReleasePromptCache() error

	// Close releases the native model. Close is idempotent.
	Close() error
}
