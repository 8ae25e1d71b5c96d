package session

import "fmt"

// Synthetic native status codes. Codes reported by the native layer itself
// are non-negative.
const (
	// codeNone marks a failure that carried no structured native code.
	codeNone = 0
	// codeUnavailable marks native support missing from this build.
	codeUnavailable = -1
)

// configurationError indicates invalid input rejected before any native call.
type configurationError struct {
	reason string
}

func (e configurationError) Error() string {
	return "invalid configuration: " + e.reason
}

func errConfiguration(format string, args ...any) error {
	return configurationError{reason: fmt.Sprintf(format, args...)}
}

// IsConfiguration returns true if err is a pre-flight configuration rejection.
func IsConfiguration(err error) bool {
	_, ok := err.(configurationError)
	return ok
}

// invalidHandleError indicates an operation against a session that is not
// ready (never initialized, still initializing, or already destroyed).
type invalidHandleError struct {
	op    string
	state State
}

func (e invalidHandleError) Error() string {
	return fmt.Sprintf("%s: session is %s, not ready", e.op, e.state)
}

func errInvalidHandle(op string, state State) error {
	return invalidHandleError{op: op, state: state}
}

// IsInvalidHandle returns true if err reports an operation on a non-ready
// session.
func IsInvalidHandle(err error) bool {
	_, ok := err.(invalidHandleError)
	return ok
}

// taskRunningError indicates a request was rejected because the session
// already has work in flight.
type taskRunningError struct {
	sessionID string
}

func (e taskRunningError) Error() string {
	return fmt.Sprintf("session %s: task already running", e.sessionID)
}

func errTaskRunning(sessionID string) error {
	return taskRunningError{sessionID: sessionID}
}

// IsTaskRunning returns true if err indicates the single in-flight slot was
// occupied.
func IsTaskRunning(err error) bool {
	_, ok := err.(taskRunningError)
	return ok
}

// resourceError indicates pool exhaustion or unavailable hardware.
type resourceError struct {
	pool   Pool
	reason string
}

func (e resourceError) Error() string {
	return fmt.Sprintf("resource %s: %s", e.pool, e.reason)
}

func errResource(pool Pool, format string, args ...any) error {
	return resourceError{pool: pool, reason: fmt.Sprintf(format, args...)}
}

// IsResource returns true if err is an allocation failure.
func IsResource(err error) bool {
	_, ok := err.(resourceError)
	return ok
}

// nativeLibraryError carries a failure reported by the native inference
// library, including its status code when one was surfaced.
type nativeLibraryError struct {
	op   string
	code int
	msg  string
}

func (e nativeLibraryError) Error() string {
	return fmt.Sprintf("native %s failed (code %d): %s", e.op, e.code, e.msg)
}

func errNative(op string, code int, format string, args ...any) error {
	return nativeLibraryError{op: op, code: code, msg: fmt.Sprintf(format, args...)}
}

// IsNativeLibrary returns true if err originated at the native boundary.
func IsNativeLibrary(err error) bool {
	_, ok := err.(nativeLibraryError)
	return ok
}

// IsNativeUnavailable returns true if err reports that native support is not
// compiled into this binary.
func IsNativeUnavailable(err error) bool {
	ne, ok := err.(nativeLibraryError)
	return ok && ne.code == codeUnavailable
}

// NativeCode extracts the native status code from err, if it carries one.
func NativeCode(err error) (int, bool) {
	ne, ok := err.(nativeLibraryError)
	if !ok {
		return 0, false
	}
	return ne.code, true
}

// validationError indicates a pipeline stage rejected a payload.
type validationError struct {
	stage  string
	reason string
}

func (e validationError) Error() string {
	return fmt.Sprintf("transform %s: %s", e.stage, e.reason)
}

func errValidation(stage, format string, args ...any) error {
	return validationError{stage: stage, reason: fmt.Sprintf(format, args...)}
}

// IsValidation returns true if err is a pipeline payload rejection.
func IsValidation(err error) bool {
	_, ok := err.(validationError)
	return ok
}

// sessionNotFoundError indicates an id that resolves to no live session.
type sessionNotFoundError struct {
	id string
}

func (e sessionNotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", e.id)
}

func errSessionNotFound(id string) error {
	return sessionNotFoundError{id: id}
}

// IsSessionNotFound returns true if err reports an unknown session id.
func IsSessionNotFound(err error) bool {
	_, ok := err.(sessionNotFoundError)
	return ok
}

// modelNotFoundError indicates a model id absent from the registry.
type modelNotFoundError struct {
	id string
}

func (e modelNotFoundError) Error() string {
	return fmt.Sprintf("model %s not found in registry", e.id)
}

func errModelNotFound(id string) error {
	return modelNotFoundError{id: id}
}

// IsModelNotFound returns true if err reports an unknown model id.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}
