package rag

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
		ok   bool
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1, true},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1, true},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0, true},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1, true},
		{"zero_left", []float32{0, 0}, []float32{1, 1}, 0, false},
		{"zero_right", []float32{1, 1}, []float32{0, 0}, 0, false},
		{"length_mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0, false},
		{"empty", nil, nil, 0, false},
	}
	for _, cse := range cases {
		t.Run(cse.name, func(t *testing.T) {
			got, ok := Cosine(cse.a, cse.b)
			if ok != cse.ok {
				t.Fatalf("ok = %v, want %v", ok, cse.ok)
			}
			if math.Abs(got-cse.want) > 1e-9 {
				t.Fatalf("score = %v, want %v", got, cse.want)
			}
		})
	}
}

func TestSortScoredTieBreak(t *testing.T) {
	results := []ScoredPassage{
		{Passage: passage("psg-b"), Score: 0.9},
		{Passage: passage("psg-a"), Score: 0.9 + 1e-12},
		{Passage: passage("psg-c"), Score: 0.5},
		{Passage: passage("psg-d"), Score: 0.95},
	}
	sortScored(results)

	want := []string{"psg-d", "psg-a", "psg-b", "psg-c"}
	for i, id := range want {
		if results[i].Passage.ID != id {
			t.Fatalf("position %d: got %s, want %s", i, results[i].Passage.ID, id)
		}
	}
}
