package evaluators

import (
	"math"
	"testing"
)

func TestToNumber(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  float64
		ok    bool
	}{
		{"float", 7.5, 7.5, true},
		{"int", 2020, 2020, true},
		{"numeric string", "8", 8, true},
		{"word", "eight", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toNumber(tt.value)
			if ok != tt.ok || got != tt.want {
				t.Errorf("toNumber(%v) = %v, %v; want %v, %v", tt.value, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestToNumberSlice(t *testing.T) {
	got, ok := toNumberSlice([]any{float64(1), "2", 3})
	if !ok || len(got) != 3 || got[1] != 2 {
		t.Errorf("toNumberSlice = %v, %v", got, ok)
	}

	if _, ok := toNumberSlice([]any{float64(1), "two"}); ok {
		t.Error("mixed slice with junk coerced")
	}
	if _, ok := toNumberSlice("not a slice"); ok {
		t.Error("scalar coerced to slice")
	}
}

func TestToStringSlice(t *testing.T) {
	got, ok := toStringSlice([]any{"anime", float64(7)})
	if !ok || len(got) != 2 || got[1] != "7" {
		t.Errorf("toStringSlice = %v, %v", got, ok)
	}
	if _, ok := toStringSlice(42); ok {
		t.Error("scalar coerced to string slice")
	}
}

func TestToRange(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		wantMin float64
		wantMax float64
		ok      bool
	}{
		{"closed", map[string]any{"min": float64(2), "max": float64(8)}, 2, 8, true},
		{"min only", map[string]any{"min": float64(2010)}, 2010, math.Inf(1), true},
		{"max only", map[string]any{"max": float64(3)}, math.Inf(-1), 3, true},
		{"empty map", map[string]any{}, math.Inf(-1), math.Inf(1), true},
		{"nil bound ignored", map[string]any{"min": nil, "max": float64(5)}, math.Inf(-1), 5, true},
		{"junk bound", map[string]any{"min": "low"}, 0, 0, false},
		{"not a map", []any{1, 2}, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toRange(tt.value)
			if ok != tt.ok {
				t.Fatalf("toRange(%v) ok = %v, want %v", tt.value, ok, tt.ok)
			}
			if ok && (got.Min != tt.wantMin || got.Max != tt.wantMax) {
				t.Errorf("toRange(%v) = [%v, %v], want [%v, %v]",
					tt.value, got.Min, got.Max, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestRangeContains(t *testing.T) {
	r := numberRange{Min: 2, Max: 8}
	for n, want := range map[float64]bool{1.9: false, 2: true, 5: true, 8: true, 8.1: false} {
		if got := r.contains(n); got != want {
			t.Errorf("contains(%v) = %v, want %v", n, got, want)
		}
	}
}
