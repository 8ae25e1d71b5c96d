package session

import (
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

// Capability tags the payload shapes a transform accepts.
type Capability string

const (
	CapText      Capability = "text"
	CapTokens    Capability = "tokens"
	CapEmbedding Capability = "embedding"
	// CapAny accepts every payload shape.
	CapAny Capability = "any"
)

// Payload is the value flowing through the transform chain. Kind names the
// shape; only the matching field is meaningful.
type Payload struct {
	Kind      Capability
	Text      string
	Tokens    []int32
	Embedding []float32
}

// Transform is one pipeline stage. Encode runs on the way into the native
// layer, Decode on the way out. Implementations must be stateless across
// invocations: a stage may not depend on what another stage did last time.
type Transform interface {
	Name() string
	Capability() Capability
	Encode(p Payload) (Payload, error)
	Decode(p Payload) (Payload, error)
}

// Pipeline is an ordered transform chain. Encode applies stages in insertion
// order; Decode applies them in reverse, so the innermost wrapping is
// removed first.
type Pipeline struct {
	mu     sync.RWMutex
	stages []Transform
}

// NewPipeline returns a pipeline with the given stages in order.
func NewPipeline(stages ...Transform) *Pipeline {
	p := &Pipeline{}
	p.stages = append(p.stages, stages...)
	return p
}

// Add appends a stage.
func (p *Pipeline) Add(t Transform) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages = append(p.stages, t)
}

// Remove drops the stage with the given name. Returns false when no such
// stage is registered.
func (p *Pipeline) Remove(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, t := range p.stages {
		if t.Name() == name {
			p.stages = append(p.stages[:i], p.stages[i+1:]...)
			return true
		}
	}
	return false
}

// Names returns stage names in insertion order.
func (p *Pipeline) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.stages))
	for _, t := range p.stages {
		out = append(out, t.Name())
	}
	return out
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.stages)
}

// Encode runs the chain in insertion order. The first stage rejection
// aborts the run.
func (p *Pipeline) Encode(in Payload) (Payload, error) {
	p.mu.RLock()
	stages := p.stages
	p.mu.RUnlock()
	for _, t := range stages {
		var err error
		in, err = applyStage(t, in, t.Encode)
		if err != nil {
			return Payload{}, err
		}
	}
	return in, nil
}

// Decode runs the chain in reverse insertion order. The first stage
// rejection aborts the run.
func (p *Pipeline) Decode(in Payload) (Payload, error) {
	p.mu.RLock()
	stages := p.stages
	p.mu.RUnlock()
	for i := len(stages) - 1; i >= 0; i-- {
		t := stages[i]
		var err error
		in, err = applyStage(t, in, t.Decode)
		if err != nil {
			return Payload{}, err
		}
	}
	return in, nil
}

func applyStage(t Transform, in Payload, fn func(Payload) (Payload, error)) (Payload, error) {
	if cap := t.Capability(); cap != CapAny && cap != in.Kind {
		return Payload{}, errValidation(t.Name(), "cannot handle %s payload", in.Kind)
	}
	out, err := fn(in)
	if err != nil {
		if IsValidation(err) {
			return Payload{}, err
		}
		return Payload{}, errValidation(t.Name(), "%v", err)
	}
	return out, nil
}

// trimSpaceTransform normalizes leading and trailing whitespace on text
// payloads. Decode is the same normalization; trimming is not invertible.
type trimSpaceTransform struct{}

// NewTrimSpace returns the whitespace normalization stage.
func NewTrimSpace() Transform {
	return trimSpaceTransform{}
}

func (trimSpaceTransform) Name() string           { return "trimspace" }
func (trimSpaceTransform) Capability() Capability { return CapText }

func (trimSpaceTransform) Encode(p Payload) (Payload, error) {
	p.Text = strings.TrimSpace(p.Text)
	return p, nil
}

func (trimSpaceTransform) Decode(p Payload) (Payload, error) {
	p.Text = strings.TrimSpace(p.Text)
	return p, nil
}

// jsonEnvelope wraps text payloads for models fine-tuned on JSON I/O:
// Encode emits {"input": ...}, Decode expects {"output": ...} back.
type jsonEnvelope struct{}

// NewJSONEnvelope returns the JSON envelope stage.
func NewJSONEnvelope() Transform {
	return jsonEnvelope{}
}

func (jsonEnvelope) Name() string           { return "jsonenvelope" }
func (jsonEnvelope) Capability() Capability { return CapText }

type envelopeIn struct {
	Input string `json:"input"`
}

type envelopeOut struct {
	Output string `json:"output"`
}

func (jsonEnvelope) Encode(p Payload) (Payload, error) {
	raw, err := json.Marshal(envelopeIn{Input: p.Text})
	if err != nil {
		return Payload{}, err
	}
	p.Text = string(raw)
	return p, nil
}

func (jsonEnvelope) Decode(p Payload) (Payload, error) {
	var env envelopeOut
	if err := json.Unmarshal([]byte(p.Text), &env); err != nil {
		return Payload{}, errValidation("jsonenvelope", "output is not a JSON envelope: %v", err)
	}
	p.Text = env.Output
	return p, nil
}
