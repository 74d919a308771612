// Package ocr defines the pluggable recognition engine abstraction: a small
// provider contract, a registry that probes which providers are usable on
// the current host, and an adapter that turns a rendered page bitmap plus an
// engine identifier into recognized text. Engines can be backed by local
// binaries, model servers, or operating system services without leaking
// provider-specific concerns into callers.
package ocr
