// Package models defines the value types shared by the synchronizer, the batch orchestrator and the run journal.
//
// The package contains two categories of types:
//
// 1. Processing values: immutable inputs and measurements passed between components
//   - [AudioTrack] : A measured file. Duration is derived from sample count and rate, never stored
//   - [AlignmentOffset] : Intro difference between two tracks and which one is longer
//   - [SyncOptions] / [SyncJob] : One validated content/timing/output triple
//   - [BatchRecord] : A work queue entry, or the shutdown sentinel
//   - [ProgressCounter] : Completed entries against a known total
//
// 2. Persistent Entities: Journal rows implementing [Model]
//   - [BatchRun] : One directory synchronization with its final counts
//   - [JobResult] : The outcome of one batch entry
//
// The Repository[T] interface defines standard CRUD operations for database access.
package models
