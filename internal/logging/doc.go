// Package logging assembles structured slog loggers for the normalizer.
//
// It owns the console and JSON handlers, mirrors records into an optional log
// file, and exposes context-aware helpers so orchestration code can tag lines
// with the batch id, job position and stage automatically. NewNop supplies a
// silent logger for tests and for wiring code that cannot fail.
package logging
