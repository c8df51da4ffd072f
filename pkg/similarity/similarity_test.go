package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected int
	}{
		{name: "identical", a: "martinez", b: "martinez", expected: 0},
		{name: "both empty", a: "", b: "", expected: 0},
		{name: "one empty", a: "", b: "smith", expected: 5},
		{name: "single substitution", a: "smith", b: "smyth", expected: 1},
		{name: "insertion", a: "jon", b: "john", expected: 1},
		{name: "deletion", a: "thompson", b: "thomson", expected: 1},
		{name: "insertion in middle", a: "maria", b: "mairia", expected: 1},
		{name: "completely different", a: "abc", b: "xyz", expected: 3},
		{name: "rune aware", a: "josé", b: "jose", expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Distance(tt.a, tt.b))
			assert.Equal(t, tt.expected, Distance(tt.b, tt.a), "distance should be symmetric")
		})
	}
}

func TestRatio(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{name: "identical", a: "garcia", b: "garcia", expected: 1.0},
		{name: "both empty", a: "", b: "", expected: 1.0},
		{name: "one empty", a: "garcia", b: "", expected: 0.0},
		{name: "close names", a: "smith", b: "smyth", expected: 0.8},
		{name: "no overlap", a: "ab", b: "xy", expected: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Ratio(tt.a, tt.b), 0.0001)
		})
	}
}

func TestRatioBounds(t *testing.T) {
	pairs := [][2]string{
		{"a", "abcdefgh"},
		{"elizabeth", "liz"},
		{"所沢", "東京"},
	}
	for _, p := range pairs {
		r := Ratio(p[0], p[1])
		assert.GreaterOrEqual(t, r, 0.0)
		assert.LessOrEqual(t, r, 1.0)
	}
}
