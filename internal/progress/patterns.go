package progress

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"normalizer/internal/services"
)

// Matcher recognises the lines a tool emits. Each method reports whether the
// line matched; a matched but malformed value returns an error wrapping
// services.ErrProtocolParse.
type Matcher interface {
	MatchDuration(line string) (int, bool, error)
	MatchElapsed(line string) (int, bool, error)
	MatchMetrics(line string) (map[string]float64, error)
	MatchError(line string) bool
}

// PatternSet is a regexp-backed Matcher. Duration, Elapsed and each Metrics
// pattern must have exactly one capture group. Duration and elapsed captures
// may be either HH:MM:SS.cc timestamps or decimal seconds. Lines matching
// NotError never count as errors even when they contain ErrorMarker.
type PatternSet struct {
	Duration    *regexp.Regexp
	Elapsed     *regexp.Regexp
	Metrics     map[string]*regexp.Regexp
	ErrorMarker string
	NotError    *regexp.Regexp
}

var _ Matcher = PatternSet{}

func (p PatternSet) MatchDuration(line string) (int, bool, error) {
	return matchSeconds(p.Duration, line, "duration")
}

func (p PatternSet) MatchElapsed(line string) (int, bool, error) {
	return matchSeconds(p.Elapsed, line, "elapsed")
}

// MatchMetrics returns every metric found on line, rounded to one decimal.
// Values that fail to parse are omitted and reported through the error.
func (p PatternSet) MatchMetrics(line string) (map[string]float64, error) {
	var found map[string]float64
	var errs []error
	for name, re := range p.Metrics {
		token, ok := capture(re, line)
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(token, 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			errs = append(errs, parseError(name, token))
			continue
		}
		if found == nil {
			found = make(map[string]float64, len(p.Metrics))
		}
		found[name] = RoundTenth(value)
	}
	return found, errors.Join(errs...)
}

func (p PatternSet) MatchError(line string) bool {
	if p.ErrorMarker == "" || !strings.Contains(line, p.ErrorMarker) {
		return false
	}
	return p.NotError == nil || !p.NotError.MatchString(line)
}

func matchSeconds(re *regexp.Regexp, line, field string) (int, bool, error) {
	token, ok := capture(re, line)
	if !ok {
		return 0, false, nil
	}
	seconds, err := ParseSeconds(token)
	if err != nil {
		return 0, true, parseError(field, token)
	}
	return seconds, true, nil
}

func capture(re *regexp.Regexp, line string) (string, bool) {
	if re == nil {
		return "", false
	}
	m := re.FindStringSubmatch(line)
	if len(m) < 2 {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func parseError(field, token string) error {
	return services.Wrap(services.ErrProtocolParse, "progress", "match", fmt.Sprintf("%s value %q", field, token), nil)
}

// ParseSeconds converts a timestamp (HH:MM:SS.cc) or decimal seconds value to
// whole seconds. A fraction strictly greater than 50 centiseconds rounds up.
func ParseSeconds(token string) (int, error) {
	token = strings.TrimSpace(token)
	if strings.Contains(token, ":") {
		return parseTimestamp(token)
	}
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, err
	}
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("invalid seconds %q", token)
	}
	centis := int64(math.Round(value * 100))
	return roundCentis(int(centis/100), int(centis%100)), nil
}

func parseTimestamp(token string) (int, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", token)
	}
	hours, err := parseField(parts[0])
	if err != nil {
		return 0, err
	}
	minutes, err := parseField(parts[1])
	if err != nil {
		return 0, err
	}
	whole, frac, _ := strings.Cut(parts[2], ".")
	seconds, err := parseField(whole)
	if err != nil {
		return 0, err
	}
	centis := 0
	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		} else if len(frac) == 1 {
			frac += "0"
		}
		if centis, err = parseField(frac); err != nil {
			return 0, err
		}
	}
	return roundCentis(hours*3600+minutes*60+seconds, centis), nil
}

func parseField(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty timestamp field")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid timestamp field %q", s)
		}
	}
	return strconv.Atoi(s)
}

func roundCentis(seconds, centis int) int {
	if centis > 50 {
		seconds++
	}
	return seconds
}

// RoundTenth rounds v to one decimal place, halves away from zero.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
