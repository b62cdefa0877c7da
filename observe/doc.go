// Package observe provides observability primitives for guarded Blender
// bridge commands.
//
// It is a pure instrumentation library: no command execution, no transport,
// no I/O beyond exporter setup. The cache and ratelimit packages carry its
// Logger for state-transition events; the guard package wires the full
// tracer/metrics/logger middleware around bridge calls.
package observe
