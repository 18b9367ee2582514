// Package ir provides the intermediate representation documents exchanged
// between generation stages, validators and scene builders.
//
// A generated document starts life as an untyped Document decoded from the
// generative service's text. Only after the structural validation layer has
// accepted it is it decoded into one of the typed views in this package.
//
// Key design constraints:
//   - ir imports nothing internal; every other package may import ir
//   - All JSON tags use snake_case, matching what generation prompts request
//   - Timed sequences use a non-decreasing `t` (actions/events) or `step`
//     (pseudocode operations, animation actions, sorting traces)
package ir
