package pcc

import (
	"testing"

	"pcc-go/internal/model"
)

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a    model.TreeSignature
		b    model.TreeSignature
		want float64
	}{
		{
			name: "both empty",
			a:    model.TreeSignature{},
			b:    model.TreeSignature{},
			want: 1.0,
		},
		{
			name: "one empty",
			a:    model.TreeSignature{"a.md": 1},
			b:    model.TreeSignature{},
			want: 0.0,
		},
		{
			name: "identical paths",
			a:    model.TreeSignature{"a.md": 1, "b.md": 2},
			b:    model.TreeSignature{"a.md": 10, "b.md": 20},
			want: 1.0,
		},
		{
			name: "disjoint",
			a:    model.TreeSignature{"a.md": 1},
			b:    model.TreeSignature{"b.md": 1},
			want: 0.0,
		},
		{
			name: "half overlap",
			a:    model.TreeSignature{"a.md": 1, "b.md": 1, "c.md": 1},
			b:    model.TreeSignature{"a.md": 1, "b.md": 1, "d.md": 1},
			want: 0.5, // 2 shared / 4 union
		},
		{
			name: "19 of 20 shared",
			a:    sigN(20, 0),
			b:    sigN(20, 1), // drops one path, adds one other
			want: 19.0 / 21.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Jaccard(tt.a, tt.b); !almostEqual(got, tt.want) {
				t.Errorf("Jaccard() = %v, want %v", got, tt.want)
			}
			// Jaccard is symmetric.
			if got := Jaccard(tt.b, tt.a); !almostEqual(got, tt.want) {
				t.Errorf("Jaccard() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeightedJaccard(t *testing.T) {
	a := model.TreeSignature{"a.md": 100, "b.md": 200}

	tests := []struct {
		name string
		b    model.TreeSignature
		want float64
	}{
		{
			name: "sizes match",
			b:    model.TreeSignature{"a.md": 100, "b.md": 200},
			want: 1.0,
		},
		{
			name: "one size differs",
			b:    model.TreeSignature{"a.md": 100, "b.md": 999},
			want: 0.75, // (1.0 + 0.5) / 2
		},
		{
			name: "all sizes differ",
			b:    model.TreeSignature{"a.md": 1, "b.md": 2},
			want: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeightedJaccard(a, tt.b); !almostEqual(got, tt.want) {
				t.Errorf("WeightedJaccard() = %v, want %v", got, tt.want)
			}
		})
	}
}

// sigN builds a signature of n paths, shifted by offset so different offsets
// overlap in all but |offset| paths.
func sigN(n, offset int) model.TreeSignature {
	sig := make(model.TreeSignature, n)
	for i := 0; i < n; i++ {
		sig[pathN(i+offset)] = int64(100 + i)
	}
	return sig
}

func pathN(i int) string {
	return "docs/file-" + string(rune('a'+i%26)) + string(rune('0'+i/26)) + ".md"
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
