package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBinaryNotFound      = errors.New("binary not found")
	ErrLaunchFailure       = errors.New("launch failure")
	ErrAbnormalTermination = errors.New("abnormal termination")
	ErrInterrupted         = errors.New("interrupted")
	ErrCacheIO             = errors.New("cache io error")
	ErrProtocolParse       = errors.New("protocol parse error")
	ErrConfiguration       = errors.New("configuration error")
	ErrValidation          = errors.New("validation error")
)

// Exit codes reported by the command line front end.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitNotFound    = 127
	ExitInterrupted = 130
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker so callers can classify it with errors.Is. The
// marker should be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrAbnormalTermination
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ExitCode maps a batch error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsInterrupted(err):
		return ExitInterrupted
	case errors.Is(err, ErrBinaryNotFound):
		return ExitNotFound
	default:
		return ExitFailure
	}
}

// IsInterrupted reports whether err came from cooperative cancellation,
// either through an explicit interrupt or an expired context.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted) || errors.Is(err, context.Canceled)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
