package math

import (
	"testing"
)

func TestMaximum(t *testing.T) {
	tests := []struct {
		name     string
		a, b     float64
		expected float64
	}{
		{"First number is greater", 10, 5, 10},
		{"Second number is greater", 3, 8, 8},
		{"Numbers are equal", 5, 5, 5},
		{"Negative numbers", -5, -2, -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Maximum(tt.a, tt.b); got != tt.expected {
				t.Errorf("Maximum() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMinimum(t *testing.T) {
	tests := []struct {
		name     string
		a, b     float64
		expected float64
	}{
		{"First number is smaller", 3, 10, 3},
		{"Second number is smaller", 8, 2, 2},
		{"Numbers are equal", 5, 5, 5},
		{"Negative numbers", -5, -10, -10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Minimum(tt.a, tt.b); got != tt.expected {
				t.Errorf("Minimum() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		expected float64
	}{
		{"below lower bound", -3.5, 0},
		{"above upper bound", 12, 10},
		{"inside bounds", 7.5, 7.5},
		{"on the bound", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.value, 0, 10); got != tt.expected {
				t.Errorf("Clamp() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMeanAndFraction(t *testing.T) {
	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %v, want 0", got)
	}
	if got := Mean([]float64{6, 8, 10}); got != 8 {
		t.Errorf("Mean() = %v, want 8", got)
	}
	if got := Fraction(1, 0); got != 0 {
		t.Errorf("Fraction(1, 0) = %v, want 0", got)
	}
	if got := Fraction(2, 4); got != 0.5 {
		t.Errorf("Fraction(2, 4) = %v, want 0.5", got)
	}
}
