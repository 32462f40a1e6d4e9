// Package prediction calls the external completion model and parses its
// JSON prediction payloads. Parsing is isolated from transport so the
// tolerant decoder can be tested independently of the orchestrator.
package prediction
