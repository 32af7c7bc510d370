package starfit

import (
	"math"
	"testing"
)

func TestMedian9(t *testing.T) {
	cases := []struct {
		in   [9]float64
		want float64
	}{
		{[9]float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, 5},
		{[9]float64{9, 8, 7, 6, 5, 4, 3, 2, 1}, 5},
		{[9]float64{3, 1, 4, 1, 5, 9, 2, 6, 5}, 4},
		{[9]float64{0, 0, 0, 0, 0, 0, 0, 0, 100}, 0},
	}
	for _, c := range cases {
		if got := median9(c.in); got != c.want {
			t.Errorf("median9(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestMedian9ZeroOnePatterns(t *testing.T) {
	// Exhaustive 0/1 inputs. By the zero-one principle this validates the
	// exchange network for every ordering of nine values.
	for mask := 0; mask < 1<<9; mask++ {
		var n [9]float64
		ones := 0
		for i := 0; i < 9; i++ {
			if mask&(1<<i) != 0 {
				n[i] = 1
				ones++
			}
		}
		want := 0.0
		if ones >= 5 {
			want = 1
		}
		if got := median9(n); got != want {
			t.Fatalf("median9(%09b) = %v, want %v", mask, got, want)
		}
	}
}

func TestInitialGuess(t *testing.T) {
	truth := []float64{0.1, 0.8, 11.3, 10.7, 9, 9}
	w := renderWindow(21, 21, truth, false)

	p, ok := initialGuess(w)
	if !ok {
		t.Fatal("initial guess failed on a clean synthetic star")
	}
	if math.Abs(p[pX0]-truth[pX0]) > 1.5 || math.Abs(p[pY0]-truth[pY0]) > 1.5 {
		t.Errorf("center seed (%v, %v) too far from (%v, %v)", p[pX0], p[pY0], truth[pX0], truth[pY0])
	}
	if p[pA] <= 0 {
		t.Errorf("amplitude seed %v not positive", p[pA])
	}
	if p[pSX] < truth[pSX]/3 || p[pSX] > truth[pSX]*3 {
		t.Errorf("spread seed %v not within a factor 3 of %v", p[pSX], truth[pSX])
	}
	if math.Abs(p[pB]-truth[pB]) > 0.1 {
		t.Errorf("background seed %v, want near %v", p[pB], truth[pB])
	}
}

func TestInitialGuessFlatWindow(t *testing.T) {
	w := &Window{Data: make([]float64, 49), Width: 7, Height: 7}
	for i := range w.Data {
		w.Data[i] = 0.3
	}
	if _, ok := initialGuess(w); ok {
		t.Error("expected failure on a flat window with no peak")
	}
}

// Analytic Jacobians checked against central finite differences.
func TestGaussJacobianFiniteDiff(t *testing.T) {
	points := [][2]float64{{3, 4}, {5.5, 5}, {8, 2.5}}

	check := func(t *testing.T, p []float64, rotated bool) {
		np := len(p)
		row := make([]float64, np)
		for _, pt := range points {
			gaussJacobian(p, pt[0], pt[1], row)
			for i := 0; i < np; i++ {
				h := 1e-6 * math.Max(1, math.Abs(p[i]))
				pp := append([]float64(nil), p...)
				pm := append([]float64(nil), p...)
				pp[i] += h
				pm[i] -= h
				fd := (gaussEval(pp, pt[0], pt[1], rotated) - gaussEval(pm, pt[0], pt[1], rotated)) / (2 * h)
				if math.Abs(row[i]-fd) > 1e-4*(1+math.Abs(fd)) {
					t.Errorf("param %d at (%v,%v): analytic %v, numeric %v", i, pt[0], pt[1], row[i], fd)
				}
			}
		}
	}

	t.Run("plain", func(t *testing.T) {
		check(t, []float64{0.1, 0.8, 5.2, 4.8, 7, 5}, false)
	})
	t.Run("rotated", func(t *testing.T) {
		check(t, []float64{0.1, 0.8, 5.2, 4.8, 7, 5, 0.4}, true)
	})
}
