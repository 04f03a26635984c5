package attribution

import "testing"

func TestComputeRegularity(t *testing.T) {
	tests := []struct {
		name  string
		times []int64
		want  float64
	}{
		{"too few", []int64{1, 2}, 0},
		{"perfectly periodic", []int64{0, 600, 1200, 1800}, 1},
		{"same instant", []int64{5, 5, 5}, 0},
		{"irregular", []int64{0, 10, 1000, 1010}, 0.42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeRegularity(tt.times)
			if got != tt.want {
				t.Errorf("computeRegularity(%v) = %v, want %v", tt.times, got, tt.want)
			}
		})
	}
}
