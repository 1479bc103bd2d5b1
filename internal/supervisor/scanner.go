package supervisor

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
)

// DefaultDelimiters ends a line at a carriage return; progress-reporting tools
// redraw one terminal line instead of emitting newlines.
const DefaultDelimiters = "\r"

// ScannerOptions configures a Scanner.
type ScannerOptions struct {
	// Delimiters lists the bytes that terminate a line. Empty means DefaultDelimiters.
	Delimiters string
	// KeepTranscript retains every emitted line for later inspection.
	KeepTranscript bool
}

// Scanner reads a diagnostic stream one byte at a time and yields trimmed
// logical lines. Blank lines are skipped. Invalid UTF-8 runs become a single
// space. At end of stream Next returns io.EOF after flushing any unterminated
// final fragment.
type Scanner struct {
	r          *bufio.Reader
	delims     string
	keep       bool
	transcript []string
	pending    []byte
	err        error
}

// NewScanner wraps r.
func NewScanner(r io.Reader, opts ScannerOptions) *Scanner {
	delims := opts.Delimiters
	if delims == "" {
		delims = DefaultDelimiters
	}
	return &Scanner{
		r:      bufio.NewReaderSize(r, 4096),
		delims: delims,
		keep:   opts.KeepTranscript,
	}
}

// Next returns the next non-blank line, io.EOF at end of stream, or the
// underlying read error.
func (s *Scanner) Next() (string, error) {
	for s.err == nil {
		b, err := s.r.ReadByte()
		if err != nil {
			if errors.Is(err, os.ErrClosed) {
				err = io.EOF
			}
			s.err = err
			break
		}
		if strings.IndexByte(s.delims, b) < 0 {
			s.pending = append(s.pending, b)
			continue
		}
		if line := s.flush(); line != "" {
			return line, nil
		}
	}
	if line := s.flush(); line != "" {
		return line, nil
	}
	return "", s.err
}

// Transcript returns the retained lines, nil when retention is off.
func (s *Scanner) Transcript() []string {
	if !s.keep {
		return nil
	}
	out := make([]string, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Scanner) flush() string {
	if len(s.pending) == 0 {
		return ""
	}
	line := strings.TrimSpace(strings.ToValidUTF8(string(s.pending), " "))
	s.pending = s.pending[:0]
	if line != "" && s.keep {
		s.transcript = append(s.transcript, line)
	}
	return line
}
