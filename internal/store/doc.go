// Package store keeps an append-only sqlite history of pipeline runs.
//
// Each finished run is written once, in a single transaction, as:
//   - runs: one row per request with status, domain, pattern and usage
//   - attempts: every generation call, its prompt, output and errors
//   - renders: every engine invocation and its classified failure
//   - sources: scene source produced during the run
//
// Rows are never updated. Child rows are ordered by (run_id, idx) so that
// reading a run back reproduces the order the coordinator saw.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
