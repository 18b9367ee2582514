// Package render executes generated scene source with an external rendering
// engine and guarantees termination with some deliverable.
//
// The Controller writes each attempt's source to a unique scratch file, runs
// the engine with a timeout, and counts an attempt as successful only when
// the engine exits cleanly and the artifact exists at its conventional path.
// Failures are classified into a fixed taxonomy (see Classify). After the
// attempt budget is spent, the constant FallbackSource is rendered once with
// a short timeout; that outcome is final.
//
// # Renderer tolerance
//
// Validators do not check coordinates or color names. That is safe because
// the scene templates clamp every position into the visible frame (see
// scene.ClampPosition) and generated source passes through the sanitizer,
// which maps unknown color names onto the engine's vocabulary. Anything that
// still slips through fails at render time and lands in the taxonomy here.
package render
