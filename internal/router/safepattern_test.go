package router

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		wantErr error
	}{
		{"literal", "anime", nil},
		{"anchored alternation", "^(horror|thriller)$", nil},
		{"single star", "a*b", nil},
		{"single plus", "colou?rs?", nil},
		{"bounded repeat", "(ab){1,5}", nil},
		{"empty pattern", "", nil},
		{"nested plus", "(a+)+$", ErrUnsafePattern},
		{"nested star", "(a*)*", ErrUnsafePattern},
		{"star in plus", "(a*)+", ErrUnsafePattern},
		{"deeply nested", "((a+)b)*", ErrUnsafePattern},
		{"unbounded counted repeat nested", "(a{2,})+", ErrUnsafePattern},
		{"huge counted repeat nested", "(a{1,500})+", ErrUnsafePattern},
		{"bounded counted repeat nested", "(a{1,5}b)+", nil},
		{"too long", strings.Repeat("a", 513), ErrPatternTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePattern(tt.pattern)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidatePattern(%q) = %v, want nil", tt.pattern, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePattern(%q) = %v, want %v", tt.pattern, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePatternInvalidSyntax(t *testing.T) {
	if err := ValidatePattern("(unclosed"); err == nil {
		t.Error("expected error for invalid syntax")
	}
}

func TestCompileSafe(t *testing.T) {
	re, err := CompileSafe("(?i)^doc")
	if err != nil {
		t.Fatalf("CompileSafe: %v", err)
	}
	if !re.MatchString("Documentary") {
		t.Error("compiled pattern does not match")
	}

	if _, err := CompileSafe("(a+)+$"); !errors.Is(err, ErrUnsafePattern) {
		t.Errorf("CompileSafe(unsafe) = %v, want ErrUnsafePattern", err)
	}
	if _, err := CompileSafe("["); err == nil {
		t.Error("expected error for invalid pattern")
	}
}
