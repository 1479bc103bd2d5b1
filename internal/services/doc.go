// Package services defines the error taxonomy and context helpers shared by
// the supervisor, cache and orchestration packages.
//
// Every failure that crosses a package boundary carries one of the sentinel
// markers declared here (binary not found, launch failure, abnormal
// termination, interrupted, cache I/O, protocol parse) so callers can branch
// with errors.Is instead of string matching. Wrap stamps the stage and
// operation onto the message, and ExitCode maps the markers onto process exit
// statuses for the command line.
package services
