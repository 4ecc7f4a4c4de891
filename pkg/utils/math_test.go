package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	tests := []struct {
		name   string
		in     []float32
		want   []float32
		scaled bool
	}{
		{"3-4-5", []float32{3, 4}, []float32{0.6, 0.8}, true},
		{"negative", []float32{0, -2, 0}, []float32{0, -1, 0}, true},
		{"zero", []float32{0, 0}, []float32{0, 0}, false},
		{"empty", nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeL2(tt.in); got != tt.scaled {
				t.Errorf("NormalizeL2 returned %v, want %v", got, tt.scaled)
			}
			for i := range tt.want {
				if math.Abs(float64(tt.in[i]-tt.want[i])) > 1e-6 {
					t.Fatalf("got %v, want %v", tt.in, tt.want)
				}
			}
		})
	}
}
