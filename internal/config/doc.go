// Package config loads, normalizes, and validates normalizer configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment fallbacks for the tool binaries
// (NORMALIZER_FFMPEG, NORMALIZER_QAAC, NORMALIZER_LAME). A Config is built
// once at the entry point and passed explicitly to every component that needs
// it.
package config
