// Package tasks aligns audio files against timing references, one at a time or a whole tree at once.
//
// # Synchronizer
//
// [Synchronizer.Synchronize] walks one [models.SyncJob] through a fixed sequence of states:
//
//  1. Validate: both inputs must exist, nothing is executed otherwise
//  2. DetectStartOffset: compare the leading silence of content and timing
//  3. CorrectStart: trim the content intro, or delay it by a whole number of samples
//  4. VerifyStart: detect again; a non-zero residual fails the job in "samples" mode
//  5. MeasureLengths: count samples of the corrected file and the timing file
//  6. CorrectEnd: trim the tail, or pad it with silence
//  7. VerifyEnd: the final length must match the timing length to the sample
//  8. Commit: copy the result to the output path
//
// Intermediate files live in a per-job scratch directory that is removed on every exit path.
// The returned [SyncReport] records the corrections and the state a failed job stopped in.
//
// # Batches
//
// [Orchestrator.Run] mirrors a content tree onto timing and output trees. Every entry becomes a
// [models.BatchRecord] on an unbounded [WorkQueue] drained by a fixed number of workers.
// Each worker sends exactly one [JobOutcome] per record; the coordinator counts them, feeds the
// optional [Reporter] and [Journal], and joins the workers after the queue is closed.
//
// Entries without a timing match, or that are not regular files, are skipped and still count as
// completed. A panic or error in one job fails that job only.
//
// # Progress Reporting
//
// [ProgressUpdate] values are delivered on an optional channel with select/default, so a slow
// consumer never stalls a job.
package tasks
