// Package cases implements bulk maintenance of moderation cases: deleting
// ranges, changing reasons and suggesting ranges while the user types.
package cases

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxRangeSize is the most cases a single bulk operation may touch.
const MaxRangeSize = 25

type rangeKind int

const (
	rangeSingle rangeKind = iota
	rangeClosed
	rangeOpen
	rangeLatest
)

// Range is a parsed case range:
//
//	123        one case
//	100-105    closed range
//	100-       from 100 to the newest case
//	latest     the newest case
//	latest~5   the 5 newest cases
type Range struct {
	kind  rangeKind
	start int64
	end   int64
	count int64
	input string
}

// RangeError reports an unusable case range.
type RangeError struct {
	Input   string
	Message string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid case range %q: %s", e.Input, e.Message)
}

func rangeErr(input, format string, args ...any) error {
	return &RangeError{Input: input, Message: fmt.Sprintf(format, args...)}
}

// ParseRange parses s. Closed ranges larger than MaxRangeSize are rejected
// here; the size of open ranges is only known once resolved.
func ParseRange(s string) (Range, error) {
	input := strings.TrimSpace(s)
	in := strings.ToLower(strings.ReplaceAll(input, " ", ""))
	if in == "" {
		return Range{}, rangeErr(input, "empty")
	}

	if rest, ok := strings.CutPrefix(in, "latest"); ok {
		if rest == "" {
			return Range{kind: rangeLatest, count: 1, input: input}, nil
		}
		n, ok := strings.CutPrefix(rest, "~")
		if !ok {
			return Range{}, rangeErr(input, "expected latest or latest~N")
		}
		count, err := strconv.ParseInt(n, 10, 64)
		if err != nil || count < 1 {
			return Range{}, rangeErr(input, "N in latest~N must be a positive number")
		}
		if count > MaxRangeSize {
			return Range{}, rangeErr(input, "at most %d cases can be changed at once", MaxRangeSize)
		}
		return Range{kind: rangeLatest, count: count, input: input}, nil
	}

	from, to, isRange := strings.Cut(in, "-")
	start, err := parseCaseID(from)
	if err != nil {
		return Range{}, rangeErr(input, "%v", err)
	}
	if !isRange {
		return Range{kind: rangeSingle, start: start, end: start, input: input}, nil
	}
	if to == "" {
		return Range{kind: rangeOpen, start: start, input: input}, nil
	}

	end, err := parseCaseID(to)
	if err != nil {
		return Range{}, rangeErr(input, "%v", err)
	}
	if end < start {
		return Range{}, rangeErr(input, "range end is before its start")
	}
	if end-start+1 > MaxRangeSize {
		return Range{}, rangeErr(input, "at most %d cases can be changed at once", MaxRangeSize)
	}
	return Range{kind: rangeClosed, start: start, end: end, input: input}, nil
}

func parseCaseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a case number", s)
	}
	if id < 1 {
		return 0, fmt.Errorf("case numbers start at 1")
	}
	return id, nil
}

// Resolve returns the inclusive bounds of the range given the guild's
// newest case number.
func (r Range) Resolve(maxID int64) (start, end int64, err error) {
	if maxID < 1 {
		return 0, 0, rangeErr(r.input, "this server has no cases")
	}

	switch r.kind {
	case rangeSingle, rangeClosed:
		start, end = r.start, r.end
	case rangeOpen:
		start, end = r.start, maxID
		if start > maxID {
			return 0, 0, rangeErr(r.input, "case #%d does not exist yet, the latest is #%d", start, maxID)
		}
	case rangeLatest:
		end = maxID
		start = max(maxID-r.count+1, 1)
	}

	if end-start+1 > MaxRangeSize {
		return 0, 0, rangeErr(r.input, "at most %d cases can be changed at once", MaxRangeSize)
	}
	return start, end, nil
}

// String returns the range as the user wrote it.
func (r Range) String() string { return r.input }
