// Package manager owns the lifecycle of the single vision-language model used
// for captioning. It is structured into small files by concern:
//
//   - manager.go: core Manager type, lifecycle states, activity clock.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - errors.go: error types and helpers (IsModelLoad, IsGeneration, IsClosed).
//   - ensure.go: EnsureLoaded and the load path (preflight, adapter.Load).
//   - generate.go: Generate, the serialized inference entry point.
//   - unload.go: manual, idle and shutdown unloads; Shutdown.
//   - reaper.go: the idle reclamation loop.
//   - status_report.go: Status/Health reporting and the generation status record.
//   - metrics.go: prometheus collectors.
//   - adapter_iface.go: InferenceAdapter/Handle seam used by the manager.
//   - adapter_llama_subprocess.go: llama-server process runtime (the default adapter).
//   - adapter_llama_server.go: OpenAI-compatible chat wire types and SSE parsing.
//
// Concurrency: one mutex (Manager.mu) guards the handle and every transition
// that touches it. Requests and the reaper contend on it; the reaper only ever
// TryLocks, so it never waits behind a running generation. Status and Health
// read atomics and small info locks and never block on the model lock.
package manager
