package session

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sessiond/internal/metrics"
	"sessiond/pkg/types"
)

// scratchBytesPerToken sizes the per-request evaluation scratch drawn from
// the cpu pool for the lifetime of one generation.
const scratchBytesPerToken = 4096

// Request is one inference call against a ready session.
type Request struct {
	// Input carries exactly one of prompt, tokens, or embedding.
	Input Input
	// Mode is types.ModeGenerate (default) or types.ModeChat. Chat mode
	// prepends retained conversation history and requires prompt input.
	Mode string
	// Options override session sampling defaults for this request only.
	Options GenOptions
	// OnToken, when set, receives each streamed token on the calling
	// goroutine before Infer returns.
	OnToken func(tok TokenUnit)
}

// GenOptions are per-request overrides; nil fields inherit the session
// configuration.
type GenOptions struct {
	MaxNewTokens *int
	Temperature  *float64
	TopP         *float64
	TopK         *int
	Stop         []string
	Seed         int64
}

// TokenUnit is one streamed generation unit. Progress is the fraction of
// the token target already produced, or negative when no target is set.
type TokenUnit struct {
	Text     string
	Index    int
	Progress float64
}

// Result is the settled outcome of one request. FinishReason is one of the
// types.Finish* values; Text reflects the decode pipeline output for
// resolved outcomes and the raw accumulation for errors.
type Result struct {
	Text         string
	TokenCount   int
	FinishReason string
	Perf         types.Perf
}

// request tracks one in-flight generation. cancel is the cooperative stop
// flag folded into the stream callback's return value; timedOut marks the
// stop as deadline-driven so the finish reason reads timeout, not stopped.
type request struct {
	id       string
	cancel   atomic.Bool
	timedOut atomic.Bool
}

// Abort flags the in-flight request to stop at its next stream unit. It is
// a no-op when nothing is running, and it never settles the request itself;
// the outcome is delivered through the pending Infer return.
func (s *Session) Abort() {
	s.mu.RLock()
	active := s.active
	s.mu.RUnlock()
	if active != nil {
		active.cancel.Store(true)
	}
}

// Infer runs one request to completion. A second call while one is in
// flight fails immediately with a task-running error; callers that want
// queueing must provide it themselves. The context deadline is folded into
// the cooperative stop flag, so expiry surfaces as finish reason timeout
// once the native layer yields.
func (s *Session) Infer(ctx context.Context, req Request) (*Result, error) {
	if st := s.State(); st != StateReady {
		return nil, errInvalidHandle("infer", st)
	}

	select {
	case s.genCh <- struct{}{}:
	default:
		return nil, errTaskRunning(s.id)
	}
	defer func() { <-s.genCh }()

	s.mu.Lock()
	if s.state != StateReady {
		st := s.state
		s.mu.Unlock()
		return nil, errInvalidHandle("infer", st)
	}
	h := s.handle
	active := &request{id: uuid.NewString()}
	s.active = active
	s.lastUsed = time.Now()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
	}()

	return s.run(ctx, h, req, active)
}

func (s *Session) run(ctx context.Context, h Handle, req Request, active *request) (*Result, error) {
	mode := req.Mode
	if mode == "" {
		mode = types.ModeGenerate
	}
	if mode != types.ModeGenerate && mode != types.ModeChat {
		return nil, errConfiguration("unknown mode %q", mode)
	}
	if err := validateInput(req.Input); err != nil {
		return nil, err
	}
	if mode == types.ModeChat && req.Input.Prompt == "" {
		return nil, errConfiguration("chat mode requires prompt input")
	}
	params, err := s.resolveOptions(req.Options)
	if err != nil {
		return nil, err
	}

	cfg := s.Config()
	scratch, err := s.alloc.Allocate(PoolCPU, int64(cfg.MaxContextLen)*scratchBytesPerToken, s.id)
	if err != nil {
		return nil, err
	}
	defer s.alloc.Release(scratch)

	// Encode through the adapter pipeline before any native work; a
	// rejection aborts with no native side effects.
	rawPrompt := req.Input.Prompt
	encoded, err := s.pipeline.Encode(payloadFromInput(req.Input))
	if err != nil {
		return nil, err
	}
	in := inputFromPayload(encoded)
	if mode == types.ModeChat {
		in.Prompt = s.renderHistory(in.Prompt)
	}

	start := time.Now()
	var firstToken time.Time
	acc := &accumulator{target: params.MaxNewTokens}
	var (
		terminalSeen bool
		terminalKind StreamKind
		nativeCode   int
	)

	s.publish(EventInferStart, map[string]any{"request_id": active.id, "mode": mode})

	cb := func(evt StreamEvent) int {
		switch evt.Kind {
		case StreamToken:
			if acc.count == 0 {
				firstToken = time.Now()
			}
			acc.append(evt.Token)
			unit := TokenUnit{Text: evt.Token, Index: acc.count - 1, Progress: acc.progress()}
			if req.OnToken != nil {
				req.OnToken(unit)
			}
			s.publish(EventInferToken, map[string]any{
				"request_id": active.id,
				"index":      unit.Index,
				"token":      unit.Text,
			})
			if unit.Progress >= 0 {
				s.publish(EventInferProgress, map[string]any{
					"request_id": active.id,
					"progress":   unit.Progress,
				})
			}
		case StreamFinish, StreamError, StreamAborted:
			if !terminalSeen {
				terminalSeen = true
				terminalKind = evt.Kind
				nativeCode = evt.Code
			}
		}
		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				active.timedOut.Store(true)
			}
			active.cancel.Store(true)
		}
		if active.cancel.Load() {
			return StreamStop
		}
		return StreamContinue
	}

	genErr := h.Generate(in, params, cb)

	reason := finishReason(terminalSeen, terminalKind, genErr, active)
	text := acc.text()

	var settleErr error
	if reason != types.FinishError {
		decoded, derr := s.pipeline.Decode(Payload{Kind: CapText, Text: text})
		if derr != nil {
			reason = types.FinishError
			settleErr = derr
		} else {
			text = decoded.Text
		}
	} else {
		settleErr = genErr
		if settleErr == nil {
			settleErr = errNative("generate", nativeCode, "native generation failed")
		}
		metrics.RecordNativeError("generate")
	}

	duration := time.Since(start)
	res := &Result{
		Text:         text,
		TokenCount:   acc.count,
		FinishReason: reason,
		Perf:         s.buildPerf(start, firstToken, duration, acc.count),
	}

	s.mu.Lock()
	s.tokensTotal += uint64(acc.count)
	if mode == types.ModeChat && reason == types.FinishCompleted {
		s.history = append(s.history,
			chatTurn{role: "user", text: rawPrompt},
			chatTurn{role: "assistant", text: text},
		)
	}
	s.mu.Unlock()

	switch reason {
	case types.FinishCompleted:
		s.publish(EventInferComplete, map[string]any{
			"request_id":  active.id,
			"tokens":      acc.count,
			"duration_ms": duration.Milliseconds(),
		})
	case types.FinishStopped, types.FinishTimeout:
		s.publish(EventInferAbort, map[string]any{
			"request_id": active.id,
			"reason":     reason,
			"tokens":     acc.count,
		})
	case types.FinishError:
		s.publish(EventInferError, map[string]any{
			"request_id": active.id,
			"error":      settleErr.Error(),
			"code":       nativeCode,
		})
	}
	metrics.RecordInference(reason, acc.count, duration)
	s.log.Debug().
		Str("request_id", active.id).
		Str("finish_reason", reason).
		Int("tokens", acc.count).
		Dur("duration", duration).
		Msg("inference settled")

	return res, settleErr
}

// finishReason derives the settled reason. A native error wins outright; a
// cooperative stop folds to stopped or timeout; everything else completed.
func finishReason(terminalSeen bool, terminalKind StreamKind, genErr error, active *request) string {
	switch {
	case genErr != nil, terminalSeen && terminalKind == StreamError:
		return types.FinishError
	case terminalSeen && terminalKind == StreamAborted, active.cancel.Load():
		if active.timedOut.Load() {
			return types.FinishTimeout
		}
		return types.FinishStopped
	default:
		return types.FinishCompleted
	}
}

func (s *Session) buildPerf(start, firstToken time.Time, duration time.Duration, tokens int) types.Perf {
	perf := types.Perf{MemoryBytes: s.alloc.OwnerBytes(s.id)}
	if tokens == 0 {
		perf.PrefillMS = duration.Milliseconds()
		return perf
	}
	perf.PrefillMS = firstToken.Sub(start).Milliseconds()
	genDur := duration - firstToken.Sub(start)
	perf.GenerateMS = genDur.Milliseconds()
	if secs := genDur.Seconds(); secs > 0 {
		perf.TokensPerSec = float64(tokens) / secs
	}
	return perf
}

// resolveOptions merges per-request overrides onto session defaults and
// validates the overrides.
func (s *Session) resolveOptions(o GenOptions) (GenParams, error) {
	cfg := s.Config()
	p := GenParams{
		MaxNewTokens: cfg.MaxNewTokens,
		Temperature:  cfg.Temperature,
		TopP:         cfg.TopP,
		TopK:         cfg.TopK,
		Stop:         o.Stop,
		Seed:         o.Seed,
	}
	if o.MaxNewTokens != nil {
		if *o.MaxNewTokens <= 0 {
			return GenParams{}, errConfiguration("maxNewTokens must be positive, got %d", *o.MaxNewTokens)
		}
		p.MaxNewTokens = *o.MaxNewTokens
	}
	if o.Temperature != nil {
		if *o.Temperature < 0 {
			return GenParams{}, errConfiguration("temperature must be >= 0, got %g", *o.Temperature)
		}
		p.Temperature = float32(*o.Temperature)
	}
	if o.TopP != nil {
		if *o.TopP < 0 || *o.TopP > 1 {
			return GenParams{}, errConfiguration("topP must be in [0,1], got %g", *o.TopP)
		}
		p.TopP = float32(*o.TopP)
	}
	if o.TopK != nil {
		if *o.TopK < 0 {
			return GenParams{}, errConfiguration("topK must be >= 0, got %d", *o.TopK)
		}
		p.TopK = *o.TopK
	}
	return p, nil
}

// validateInput enforces the exactly-one-variant rule.
func validateInput(in Input) error {
	n := 0
	if in.Prompt != "" {
		n++
	}
	if len(in.Tokens) > 0 {
		n++
	}
	if len(in.Embedding) > 0 {
		n++
	}
	if n != 1 {
		return errConfiguration("exactly one of prompt, tokens, or embedding must be set")
	}
	return nil
}

func payloadFromInput(in Input) Payload {
	switch {
	case len(in.Tokens) > 0:
		return Payload{Kind: CapTokens, Tokens: in.Tokens}
	case len(in.Embedding) > 0:
		return Payload{Kind: CapEmbedding, Embedding: in.Embedding}
	default:
		return Payload{Kind: CapText, Text: in.Prompt}
	}
}

func inputFromPayload(p Payload) Input {
	switch p.Kind {
	case CapTokens:
		return Input{Tokens: p.Tokens}
	case CapEmbedding:
		return Input{Embedding: p.Embedding}
	default:
		return Input{Prompt: p.Text}
	}
}

// renderHistory folds retained chat turns ahead of the current prompt.
func (s *Session) renderHistory(prompt string) string {
	s.mu.RLock()
	hist := s.history
	s.mu.RUnlock()
	if len(hist) == 0 {
		return prompt
	}
	var b strings.Builder
	for _, t := range hist {
		b.WriteString(t.role)
		b.WriteString(": ")
		b.WriteString(t.text)
		b.WriteString("\n")
	}
	b.WriteString("user: ")
	b.WriteString(prompt)
	return b.String()
}

// accumulator gathers streamed tokens and tracks progress against the
// request's token target.
type accumulator struct {
	b      strings.Builder
	count  int
	target int
}

func (a *accumulator) append(tok string) {
	a.b.WriteString(tok)
	a.count++
}

func (a *accumulator) text() string {
	return a.b.String()
}

// progress returns the completed fraction in [0,1], or -1 when no target is
// configured.
func (a *accumulator) progress() float64 {
	if a.target <= 0 {
		return -1
	}
	p := float64(a.count) / float64(a.target)
	if p > 1 {
		p = 1
	}
	return p
}
