// Package supervisor launches external media tools and turns their
// diagnostic output into a stream of lines.
//
// A run is either a single producer or a producer/consumer pipeline joined by
// an OS pipe (ffmpeg decoding into qaac or lame). The producer's stderr is the
// diagnostic stream: Scanner splits it on carriage returns because the tools
// redraw one status line in place. Process.Next returns tagged reads (line,
// end of stream, failure) and Process.Close always tears the pipeline down,
// sending SIGTERM to every live stage and SIGKILL after the grace period.
//
// Failures carry the services error markers: a missing binary is
// ErrBinaryNotFound, other spawn errors ErrLaunchFailure, non-zero exits and
// truncated pipelines ErrAbnormalTermination, and cancellation ErrInterrupted.
package supervisor
