// Package harness runs end-to-end pipeline scenarios without a network or a
// renderer.
//
// A scenario scripts the generative service stage by stage and the render
// engine attempt by attempt, runs one request through the real coordinator
// and render controller, then evaluates assertions over the response and the
// attempt trace.
//
// # Scenario Format
//
//	name: bubble_sort_fast_path
//	description: "Sorting text takes the fast path and renders once"
//	input: "Show bubble sort on [5,2,8,1]"
//	replies:
//	  domain:
//	    - json: {domain: sorting}
//	  pattern:
//	    - json: {pattern: sequence}
//	  sorting_trace:
//	    - expand: {algorithm: bubble_sort, array: [5, 2, 8, 1]}
//	renders:
//	  - stderr: "NameError: name 'Foo' is not defined"
//	    exit_code: 1
//	assertions:
//	  - type: status
//	    equals: ok
//	  - type: final_array
//	    array: [1, 2, 5, 8]
//
// The last reply queued for a stage repeats once the queue is drained.
// Render outcomes beyond the scripted list succeed, as does the fallback
// unless fallback is scripted.
//
// # Assertion Types
//
//   - status, domain, pattern: compare the response field
//   - fallback: compare whether the fallback artifact was used
//   - stage_attempts: count generation calls for a stage
//   - temperatures: the sampling temperatures a stage was called with
//   - render_attempts: count engine invocations
//   - error_contains: some response error contains text
//   - source_contains: some non-fallback source sent to the engine contains text
//   - final_array: the sorting trace ends in array
//
// # Deterministic Testing
//
// Each run uses a fixed request ID, a step clock and a fresh scratch
// directory, so the attempt trace is identical across runs and can be
// compared against golden files.
package harness
