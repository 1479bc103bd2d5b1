// Package progress turns a tool's diagnostic line stream into a monotonic
// progress signal and a set of final measurements.
//
// Each tool supplies a Matcher (usually a PatternSet) describing how its
// duration, elapsed time, metric and error lines look. Model applies the
// rounding and clamping rules; Watch drives a Model from a streambridge.
package progress
