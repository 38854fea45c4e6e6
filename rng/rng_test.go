package rng

import "testing"

func TestNewIsDeterministic(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 10; i++ {
		if a.Intn(1000) != b.Intn(1000) {
			t.Fatal("same seed should produce the same sequence")
		}
	}
}

func TestFixedWrapsAndScales(t *testing.T) {
	f := NewFixed(0.0, 0.5, 0.99)
	if got := f.Intn(10); got != 0 {
		t.Errorf("Intn(10) = %d, want 0", got)
	}
	if got := f.Intn(10); got != 5 {
		t.Errorf("Intn(10) = %d, want 5", got)
	}
	if got := f.Intn(10); got != 9 {
		t.Errorf("Intn(10) = %d, want 9", got)
	}
	if got := f.Float64(); got != 0.0 {
		t.Errorf("expected wrap to first value, got %v", got)
	}
}

func TestWeightedIndex(t *testing.T) {
	tests := []struct {
		name    string
		roll    float64
		weights []float64
		want    int
	}{
		{"first bucket", 0.01, []float64{5, 25, 70}, 0},
		{"second bucket", 0.10, []float64{5, 25, 70}, 1},
		{"third bucket", 0.50, []float64{5, 25, 70}, 2},
		{"skips zero weight", 0.0, []float64{0, 1}, 1},
		{"all zero", 0.5, []float64{0, 0}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedIndex(NewFixed(tt.roll), tt.weights)
			if got != tt.want {
				t.Errorf("WeightedIndex(%v) = %d, want %d", tt.weights, got, tt.want)
			}
		})
	}
}
