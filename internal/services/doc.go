// Package services implements the audio collaborators used by the synchronizer on top of ffmpeg and ffprobe.
//
// # Analyzer
//
// [FFmpegAnalyzer] implements [Analyzer]:
//   - DetectOffset runs the silencedetect filter on both inputs and compares where their opening silence ends.
//     The result names the input with the longer intro and the absolute difference in seconds.
//   - Measure reads the sample rate from ffprobe's JSON stream listing, then decodes the first audio stream
//     to mono s16le on stdout and counts the bytes with a datacounter.WriterCounter. The sample count is exact
//     for the decoded stream; durations are always derived from it.
//
// # Editor
//
// [FFmpegEditor] implements [Editor] with one filter per call (atrim, adelay, apad) and always writes FLAC.
//
// # Error Handling
//
// Every command runs through [executor.Executor]. A failed command surfaces as a [shared.SubprocessError]
// wrapped with the file being processed; nothing is retried.
package services
