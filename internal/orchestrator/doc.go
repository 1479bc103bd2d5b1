// Package orchestrator runs a batch of normalization jobs strictly in order.
//
// Each job hashes its input, looks the content up in the result cache and
// only runs a loudness analysis on a miss. Transform jobs then encode the
// input with the cached gain; a failed or interrupted transform removes its
// partial output and aborts the rest of the batch.
package orchestrator
