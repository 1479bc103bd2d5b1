// Package main hosts the normalizer CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration, builds a job plan for the
// FLAC input named on the command line, checks the external tools, and hands
// the plan to the orchestrator. Progress is drawn as a terminal bar when
// stderr is interactive and logged otherwise; results are summarised in
// tables on stdout.
//
// Add behaviour to the internal packages first and surface it here through a
// command or flag.
package main
