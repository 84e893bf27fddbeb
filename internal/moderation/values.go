package moderation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/hako/durafmt"
)

// MaxReasonLength matches the embed field limit of the mod-log message.
const MaxReasonLength = 1024

// MaxTimeout is the longest timeout the platform accepts.
const MaxTimeout = 28 * 24 * time.Hour

// Reason is an optional free-text justification. The zero value means no
// reason was given.
type Reason struct {
	text    string
	present bool
}

// NewReason wraps a user supplied reason. Validation happens in Validate so
// that a bad value is reported by the pipeline's validation stage.
func NewReason(s string) Reason {
	return Reason{text: s, present: true}
}

// NoReason is the absent reason.
func NoReason() Reason { return Reason{} }

func (r Reason) IsSet() bool    { return r.present }
func (r Reason) String() string { return strings.TrimSpace(r.text) }

// Validate checks that a present reason is non-empty and fits the mod-log.
func (r Reason) Validate() error {
	if !r.present {
		return nil
	}
	text := strings.TrimSpace(r.text)
	if text == "" {
		return &ValidationError{Field: "reason", Message: "reason can't be empty", Err: ErrInvalidReason}
	}
	if utf8.RuneCountInString(text) > MaxReasonLength {
		return &ValidationError{
			Field:   "reason",
			Message: fmt.Sprintf("reason can't be longer than %d characters", MaxReasonLength),
			Err:     ErrInvalidReason,
		}
	}
	return nil
}

// Duration is a positive span parsed from a human string such as "1d12h",
// "30 minutes" or "2w".
type Duration struct {
	raw string
	d   time.Duration
}

// DurationOf wraps an already known span.
func DurationOf(d time.Duration) Duration {
	return Duration{raw: d.String(), d: d}
}

func (d Duration) Value() time.Duration { return d.d }
func (d Duration) Raw() string          { return d.raw }

// String renders the span for users, e.g. "1 day 12 hours".
func (d Duration) String() string {
	return HumanDuration(d.d)
}

// HumanDuration formats a span with its two most significant units.
func HumanDuration(d time.Duration) string {
	return durafmt.Parse(d).LimitFirstN(2).String()
}

var durationUnits = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
}

// ParseDuration parses a sequence of <number><unit> pairs, with optional
// whitespace between them. The result must be strictly positive.
func ParseDuration(s string) (Duration, error) {
	raw := strings.TrimSpace(s)
	in := strings.ToLower(raw)
	if in == "" {
		return Duration{}, &ValidationError{Field: "duration", Message: "duration can't be empty", Err: ErrInvalidDuration}
	}

	var total time.Duration
	for len(in) > 0 {
		in = strings.TrimLeftFunc(in, unicode.IsSpace)
		if in == "" {
			break
		}

		i := 0
		for i < len(in) && in[i] >= '0' && in[i] <= '9' {
			i++
		}
		if i == 0 {
			return Duration{}, invalidDuration(raw)
		}
		n, err := strconv.ParseInt(in[:i], 10, 64)
		if err != nil {
			return Duration{}, invalidDuration(raw)
		}
		in = strings.TrimLeftFunc(in[i:], unicode.IsSpace)

		j := 0
		for j < len(in) && unicode.IsLetter(rune(in[j])) {
			j++
		}
		unit, ok := durationUnits[in[:j]]
		if !ok {
			return Duration{}, invalidDuration(raw)
		}
		in = strings.TrimLeft(in[j:], " ,")

		if n > math.MaxInt64/int64(unit) {
			return Duration{}, invalidDuration(raw)
		}
		term := time.Duration(n) * unit
		if total > math.MaxInt64-term {
			return Duration{}, invalidDuration(raw)
		}
		total += term
	}

	if total <= 0 {
		return Duration{}, &ValidationError{Field: "duration", Message: "duration must be positive", Err: ErrInvalidDuration}
	}
	return Duration{raw: raw, d: total}, nil
}

func invalidDuration(raw string) error {
	return &ValidationError{
		Field:   "duration",
		Message: fmt.Sprintf("%q is not a valid duration, try something like 1d12h", raw),
		Err:     ErrInvalidDuration,
	}
}
