// Package repositories implements SQLite persistence for the batch run journal.
//
// Key Implementations:
//   - [RunRepository] : one row per directory synchronization, with status and counters
//   - [JobRepository] : one row per entry of a run, deleted together with the run
//   - [Journal] : the pair of repositories behind the orchestrator's history hooks and the history command
//
// Runs carry a sequence number from [NextSequence] so they can be referred to as #1, #2, ...
// independently of their UUIDs.
package repositories
