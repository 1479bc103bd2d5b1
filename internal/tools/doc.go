// Package tools knows how each external program is invoked and what its
// diagnostic output looks like.
//
// A Profile bundles the supervised launch (one binary, or an ffmpeg decoder
// piped into an encoder) with the progress patterns for that binary. Runner
// executes profiles through the stream bridge and reports progress to an
// observer.
package tools
