// Package pipeline coordinates one request from free text to a rendered
// artifact.
//
// A request is classified, resolved to a pattern, then takes either a fast
// path (one specialized IR stage, validated, rendered from a fixed scene
// template) or the generic path (pseudocode, animation IR, generated scene
// source). Every validated stage follows the same retry contract:
//
//   - attempts 1..N+1 run at temperature 0; each failed attempt's
//     validation errors are appended to the next prompt as feedback
//   - one final attempt runs at the escalation temperature
//   - if that attempt is also invalid the stage fails with a *StageError
//     carrying the last error list
//
// IR stages never substitute a fallback. Only the render controller does.
//
// A Coordinator holds no per-request state. Each Run builds its own run
// record, so concurrent requests share nothing but the injected
// collaborators.
package pipeline
