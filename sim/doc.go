// Package sim drives the translating-droplet benchmark on top of an external
// two-phase flow engine.
//
// # Reading Guide
//
// Start with these files to understand the driver:
//   - scheduler.go: ordered (predicate, action) triggers and the Init → Running → Terminated loop
//   - simulator.go: wires the experiment's triggers and owns the per-run state
//   - engine.go: the Engine interface the driver consumes
//
// # Architecture
//
// The sim package owns the configuration, measurement and export harness; the
// flow solver lives behind Engine. Implementations live in sub-packages:
//   - sim/grid/: uniform-grid reference engine (registers NewEngineFunc in init())
//   - sim/report/: error-history chart
//   - sim/archive/: S3-compatible artifact upload
//
// All artifacts (metrics log, snapshots, checkpoints, manifest) are written
// through a go-billy filesystem so tests can run against memfs.
package sim
