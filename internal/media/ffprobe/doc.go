// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//   - Format: container-level metadata (duration, size, bitrate)
//   - Prober: the probing seam consumed by the output validator and the
//     built-in agents; Binary is the exec-backed implementation
//
// Helper methods on Result provide stream lookup, duration and frame-rate
// parsing so callers never handle ffprobe's string encodings directly.
package ffprobe
