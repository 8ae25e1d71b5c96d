// Package session provides lifecycle, admission, and inference coordination
// for native model sessions. It is structured into small files by concern:
//
//   - session.go: core Session type, constructor, options, snapshots.
//   - config.go: session Config, package defaults, validation, option-bag parsing.
//   - lifecycle.go: Initialize/Destroy state machine and teardown ordering.
//   - infer.go: inference orchestration, streaming, cancellation, finish reasons.
//   - aux.go: handle-scoped auxiliary ops (LoRA, chat template, prompt cache).
//   - pipeline.go: ordered encode/decode transform chain around raw inference.
//   - allocator.go: process-wide CPU/accelerator pool accounting.
//   - errors.go: error types and helpers (IsTaskRunning, IsInvalidHandle, ...).
//   - events.go: event names, EventPublisher, and the no-op default.
//   - runtime.go: the native boundary (Runtime/Handle) and stream protocol.
//   - manager.go: multi-session ownership, idle expiry, registry resolution.
//
// Build tags and runtimes:
//
//   - In-process llama (standard):
//     Uses go-llama.cpp. Enabled with `-tags=llama`.
//     Files: runtime_llama.go, runtime_llama_cgo.go (linker rpath hints).
//     A no-CGO stub compiles when the tag is not set: runtime_stub.go.
//
//   - Accelerator probe:
//     accel_probe.go reports hardware support when built with `-tags=accel`;
//     accel_probe_stub.go compiles otherwise. The allocator combines the
//     probe with the configured accelerator budget.
//
// External packages should treat this package as the session core and use
// public methods only (e.g., New, Initialize, Infer, Abort, Destroy,
// NewManager). Internal types are subject to change.
package session
