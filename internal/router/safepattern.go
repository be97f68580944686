package router

import (
	"errors"
	"fmt"
	"regexp"
	"regexp/syntax"
)

// maxPatternLength bounds user-authored patterns. Longer patterns are
// rejected outright rather than analyzed.
const maxPatternLength = 512

// maxRepeatCount bounds explicit {n,m} repetition so a counted repeat cannot
// stand in for an unbounded one.
const maxRepeatCount = 100

var (
	// ErrPatternTooLong is returned for patterns exceeding maxPatternLength.
	ErrPatternTooLong = errors.New("pattern exceeds maximum length")
	// ErrUnsafePattern is returned for patterns with nested unbounded
	// repetition, the shape behind catastrophic backtracking.
	ErrUnsafePattern = errors.New("pattern has catastrophic backtracking risk")
)

// ValidatePattern statically rejects regular expressions that are
// syntactically invalid or carry worst-case exponential backtracking shapes
// such as (a+)+ or (a*)*. Go's own engine runs in linear time, but stored
// patterns are also evaluated client-side in the web UI, whose engine
// backtracks, so the gate is conservative and engine-independent.
func ValidatePattern(pattern string) error {
	if len(pattern) > maxPatternLength {
		return fmt.Errorf("%w (%d > %d)", ErrPatternTooLong, len(pattern), maxPatternLength)
	}

	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}

	if hasNestedRepeat(re, false) {
		return ErrUnsafePattern
	}
	return nil
}

// hasNestedRepeat walks the parsed expression tree looking for an unbounded
// repetition inside another repetition.
func hasNestedRepeat(re *syntax.Regexp, inRepeat bool) bool {
	repeat := false
	switch re.Op {
	case syntax.OpStar, syntax.OpPlus:
		repeat = true
	case syntax.OpRepeat:
		if re.Max < 0 || re.Max > maxRepeatCount {
			repeat = true
		}
	}

	if repeat && inRepeat {
		return true
	}

	for _, sub := range re.Sub {
		if hasNestedRepeat(sub, inRepeat || repeat) {
			return true
		}
	}
	return false
}

// CompileSafe validates a pattern and compiles it. Unsafe or invalid
// patterns yield an error, never a panic.
func CompileSafe(pattern string) (*regexp.Regexp, error) {
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return re, nil
}
