package httpapi

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sessiond/internal/session"
	"sessiond/pkg/types"
)

// Service defines the methods required by the HTTP API layer. It is
// implemented by *session.Manager.
type Service interface {
	CreateSession(ctx context.Context, req types.CreateSessionRequest) (*session.Session, error)
	Get(id string) (*session.Session, error)
	DestroySession(ctx context.Context, id string) error
	List() []types.SessionInfo
	ListModels() []types.Model
	Status() types.StatusResponse
	Ready() bool
}

// NewMux builds the HTTP handler tree for svc.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", handleCreateSession(svc))
		r.Get("/", handleListSessions(svc))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handleGetSession(svc))
			r.Delete("/", handleDestroySession(svc))
			r.Post("/infer", handleInfer(svc))
			r.Post("/abort", handleAbort(svc))
			r.Post("/lora", handleLoadLora(svc))
			r.Put("/template", handleSetTemplate(svc))
			r.Post("/cache", handleLoadCache(svc))
			r.Delete("/cache", handleReleaseCache(svc))
		})
	})

	r.Get("/models", handleListModels(svc))
	r.Get("/status", handleStatus(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("draining"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// handleCreateSession creates and initializes a session.
//
// @Summary      Create a session
// @Description  Loads a model into a new session and returns it ready for inference.
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        request  body      types.CreateSessionRequest  true  "session configuration"
// @Success      201      {object}  types.SessionInfo
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /sessions [post]
func handleCreateSession(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateSessionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sess, err := svc.CreateSession(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess.Info())
	}
}

// handleListSessions lists live sessions.
//
// @Summary      List sessions
// @Tags         sessions
// @Produce      json
// @Success      200  {object}  types.SessionsResponse
// @Router       /sessions [get]
func handleListSessions(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.SessionsResponse{Sessions: svc.List()})
	}
}

// handleGetSession returns one session.
//
// @Summary      Inspect a session
// @Tags         sessions
// @Produce      json
// @Param        id   path      string  true  "session id"
// @Success      200  {object}  types.SessionInfo
// @Failure      404  {object}  types.ErrorResponse
// @Router       /sessions/{id} [get]
func handleGetSession(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(svc, w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, sess.Info())
	}
}

// handleDestroySession destroys a session and frees its resources.
//
// @Summary      Destroy a session
// @Tags         sessions
// @Param        id  path  string  true  "session id"
// @Success      204
// @Failure      404  {object}  types.ErrorResponse
// @Router       /sessions/{id} [delete]
func handleDestroySession(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.DestroySession(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleInfer streams one inference as NDJSON: zero or more token chunks
// followed by exactly one final line.
//
// @Summary      Run inference
// @Description  Streams NDJSON token chunks and a terminal line carrying the finish reason.
// @Tags         inference
// @Accept       json
// @Produce      json
// @Param        id       path      string             true  "session id"
// @Param        request  body      types.InferRequest true  "inference request"
// @Success      200      {object}  types.InferFinal
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Failure      409      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /sessions/{id}/infer [post]
func handleInfer(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.InferRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sess, ok := sessionFromRequest(svc, w, r)
		if !ok {
			return
		}

		// Join the server base context with the request context so shutdown
		// cancels streams too, then apply the effective timeout.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		timeout := time.Duration(req.TimeoutMS) * time.Millisecond
		if timeout <= 0 && inferTimeout > 0 {
			timeout = time.Duration(inferTimeout) * time.Second
		}
		if timeout > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(ctx, timeout)
			defer tcancel()
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		writer := io.Writer(w)
		lvl := requestLogLevel(r)
		if lvl >= LevelDebug {
			writer = io.MultiWriter(w, &streamLineWriter{})
		}
		enc := json.NewEncoder(writer)

		start := time.Now()
		wrote := false
		res, err := sess.Infer(ctx, session.Request{
			Input: session.Input{Prompt: req.Prompt, Tokens: req.Tokens, Embedding: req.Embedding},
			Mode:  req.Mode,
			Options: session.GenOptions{
				MaxNewTokens: req.MaxNewTokens,
				Temperature:  req.Temperature,
				TopP:         req.TopP,
				TopK:         req.TopK,
				Stop:         req.Stop,
				Seed:         req.Seed,
			},
			OnToken: func(u session.TokenUnit) {
				wrote = true
				chunk := types.TokenChunk{Token: u.Text, Index: u.Index}
				if u.Progress >= 0 {
					p := u.Progress
					chunk.Progress = &p
				}
				_ = enc.Encode(chunk)
				if flush != nil {
					flush()
				}
			},
		})
		if err != nil && !wrote {
			// Client disconnect needs no reply.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			writeError(w, err)
			logInferEnd(r, lvl, statusForError(err), start, err)
			return
		}

		final := types.InferFinal{Done: true}
		if res != nil {
			final.Content = res.Text
			final.TokenCount = res.TokenCount
			final.FinishReason = res.FinishReason
			final.Perf = res.Perf
		}
		if err != nil {
			final.Error = err.Error()
			if final.FinishReason == "" {
				final.FinishReason = types.FinishError
			}
		}
		_ = enc.Encode(final)
		if flush != nil {
			flush()
		}
		logInferEnd(r, lvl, http.StatusOK, start, err)
	}
}

// handleAbort flags the in-flight request to stop. The outcome arrives on the
// pending inference stream, not here.
//
// @Summary      Abort the in-flight request
// @Tags         inference
// @Produce      json
// @Param        id  path  string  true  "session id"
// @Success      202  {object}  map[string]string
// @Failure      404  {object}  types.ErrorResponse
// @Router       /sessions/{id}/abort [post]
func handleAbort(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(svc, w, r)
		if !ok {
			return
		}
		sess.Abort()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "aborting"})
	}
}

// handleLoadLora applies a LoRA adapter to the session.
//
// @Summary      Load a LoRA adapter
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        id       path      string             true  "session id"
// @Param        request  body      types.LoraRequest  true  "adapter spec"
// @Success      200      {object}  types.SessionInfo
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Router       /sessions/{id}/lora [post]
func handleLoadLora(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.LoraRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sess, ok := sessionFromRequest(svc, w, r)
		if !ok {
			return
		}
		spec := session.LoraSpec{Name: req.Name, Path: req.Path, Scale: float32(req.Scale)}
		if err := sess.LoadAdapter(r.Context(), spec); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess.Info())
	}
}

// handleSetTemplate installs the chat template used in chat mode.
//
// @Summary      Set the chat template
// @Tags         sessions
// @Accept       json
// @Param        id       path  string                 true  "session id"
// @Param        request  body  types.TemplateRequest  true  "template"
// @Success      204
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Router       /sessions/{id}/template [put]
func handleSetTemplate(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.TemplateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sess, ok := sessionFromRequest(svc, w, r)
		if !ok {
			return
		}
		if err := sess.SetChatTemplate(r.Context(), req.Template); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleLoadCache attaches a prompt cache snapshot, replacing any current one.
//
// @Summary      Load a prompt cache
// @Tags         sessions
// @Accept       json
// @Param        id       path  string              true  "session id"
// @Param        request  body  types.CacheRequest  true  "cache snapshot path"
// @Success      204
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /sessions/{id}/cache [post]
func handleLoadCache(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CacheRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sess, ok := sessionFromRequest(svc, w, r)
		if !ok {
			return
		}
		if err := sess.LoadPromptCache(r.Context(), req.Path); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleReleaseCache detaches the active prompt cache, if any.
//
// @Summary      Release the prompt cache
// @Tags         sessions
// @Param        id  path  string  true  "session id"
// @Success      204
// @Failure      404  {object}  types.ErrorResponse
// @Router       /sessions/{id}/cache [delete]
func handleReleaseCache(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(svc, w, r)
		if !ok {
			return
		}
		if err := sess.ReleasePromptCache(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleListModels lists registry models.
//
// @Summary      List models
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /models [get]
func handleListModels(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
	}
}

// handleStatus reports sessions, pool accounting, and daemon vitals.
//
// @Summary      Daemon status
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func handleStatus(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

// sessionFromRequest resolves the {id} path parameter to a live session,
// writing the error response on failure.
func sessionFromRequest(svc Service, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

// decodeJSON enforces the JSON content type and body cap, then decodes into
// dst. On failure the error response is already written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func logInferEnd(r *http.Request, lvl LogLevel, status int, start time.Time, err error) {
	if lvl < LevelInfo {
		return
	}
	if zlog != nil {
		z := zlog.Info().Int("status", status).Dur("dur", time.Since(start))
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		if err != nil {
			z = z.Err(err)
		}
		z.Msg("infer end")
		return
	}
	if err != nil {
		log.Printf("infer end status=%d dur=%s err=%v", status, time.Since(start), err)
		return
	}
	log.Printf("infer end status=%d dur=%s", status, time.Since(start))
}
