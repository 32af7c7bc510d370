package starfit

import (
	"errors"
	"math"
	"testing"
)

func TestRobustMeanStdEmpty(t *testing.T) {
	_, _, err := RobustMeanStd(nil)
	if !errors.Is(err, ErrNoSample) {
		t.Fatalf("expected ErrNoSample, got %v", err)
	}
}

func TestRobustMeanStdSingle(t *testing.T) {
	loc, scale, err := RobustMeanStd([]float64{42.5})
	if err != nil {
		t.Fatal(err)
	}
	if loc != 42.5 || scale != 0 {
		t.Fatalf("single sample: got (%v, %v), want (42.5, 0)", loc, scale)
	}
}

func TestRobustMeanStdConstant(t *testing.T) {
	sample := []float64{5, 5, 5, 5, 5, 5}
	loc, scale, err := RobustMeanStd(sample)
	if err != nil {
		t.Fatal(err)
	}
	if loc != 5 || scale != 0 {
		t.Fatalf("constant sample: got (%v, %v), want (5, 0)", loc, scale)
	}
}

func TestRobustMeanStdOutlier(t *testing.T) {
	// Tight cluster around 10 plus one gross outlier. A plain mean would
	// land near 57; the robust location must stay with the cluster.
	sample := make([]float64, 0, 21)
	for i := -10; i < 10; i++ {
		sample = append(sample, 10+0.01*float64(i))
	}
	sample = append(sample, 1000)

	loc, scale, err := RobustMeanStd(sample)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(loc-10) > 0.1 {
		t.Errorf("location %v pulled away from the cluster at 10", loc)
	}
	if scale > 0.5 {
		t.Errorf("scale %v inflated by the outlier", scale)
	}
}

func TestMedianFloat64InPlace(t *testing.T) {
	cases := []struct {
		in   []float64
		want float64
	}{
		{[]float64{3, 1, 2}, 2},
		{[]float64{4, 1, 3, 2}, 2.5},
		{[]float64{7}, 7},
	}
	for _, c := range cases {
		if got := medianFloat64InPlace(c.in); got != c.want {
			t.Errorf("median(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
