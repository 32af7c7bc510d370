package starfit

import (
	"errors"
	"image"
	"math"
	"math/rand"
	"testing"
)

func TestCalcStatsRamp(t *testing.T) {
	c := NewChannel(256, 256)
	n := len(c.Data)
	for i := range c.Data {
		c.Data[i] = float32(i) / float32(n)
	}

	s := CalcStats(c, nil)
	if math.Abs(s.Mean-0.5) > 0.01 {
		t.Errorf("mean = %v, want 0.5", s.Mean)
	}
	if math.Abs(s.Median-0.5) > 0.01 {
		t.Errorf("median = %v, want 0.5", s.Median)
	}
	// Uniform [0,1) has stddev 1/sqrt(12).
	if math.Abs(s.StdDev-0.2887) > 0.01 {
		t.Errorf("stddev = %v, want ~0.2887", s.StdDev)
	}
	if math.Abs(s.MAD-0.25) > 0.01 {
		t.Errorf("MAD = %v, want ~0.25", s.MAD)
	}
}

func TestCalcStatsRegion(t *testing.T) {
	c := NewChannel(100, 100)
	for y := 0; y < 100; y++ {
		v := float32(0.2)
		if y >= 50 {
			v = 0.8
		}
		for x := 0; x < 100; x++ {
			c.Data[y*100+x] = v
		}
	}

	top := image.Rect(0, 0, 100, 50)
	s := CalcStats(c, &top)
	if math.Abs(s.Median-0.2) > 0.01 {
		t.Errorf("top-half median = %v, want 0.2", s.Median)
	}

	bottom := image.Rect(0, 50, 100, 100)
	s = CalcStats(c, &bottom)
	if math.Abs(s.Median-0.8) > 0.01 {
		t.Errorf("bottom-half median = %v, want 0.8", s.Median)
	}
}

func TestKappaSigmaNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	c := NewChannel(128, 128)
	for i := range c.Data {
		c.Data[i] = float32(0.3 + 0.02*rng.NormFloat64())
	}
	// A few bright outliers the clipping must discard.
	for i := 0; i < 50; i++ {
		c.Data[rng.Intn(len(c.Data))] = 0.95
	}

	sigma := KappaSigmaNoise(c, 4.0, 1e-5, 5)
	if sigma < 0.01 || sigma > 0.03 {
		t.Errorf("noise sigma = %v, want ~0.02", sigma)
	}
}

func TestHistogramStatsEmpty(t *testing.T) {
	_, _, err := HistogramStats{}.Stats(nil)
	if !errors.Is(err, ErrNoSample) {
		t.Fatalf("expected ErrNoSample, got %v", err)
	}
}

func TestHistogramStatsRegion(t *testing.T) {
	// Quiet top half, noisy bottom half: both the median and the noise
	// sigma must follow the requested region.
	rng := rand.New(rand.NewSource(11))
	c := NewChannel(128, 128)
	for y := 0; y < 128; y++ {
		base, noise := 0.2, 0.005
		if y >= 64 {
			base, noise = 0.6, 0.05
		}
		for x := 0; x < 128; x++ {
			c.Data[y*128+x] = float32(base + noise*rng.NormFloat64())
		}
	}
	p := HistogramStats{Channel: c}

	top := image.Rect(0, 0, 128, 64)
	median, sigma, err := p.Stats(&top)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(median-0.2) > 0.01 {
		t.Errorf("top median = %v, want 0.2", median)
	}
	if sigma < 0.003 || sigma > 0.01 {
		t.Errorf("top noise sigma = %v, want ~0.005", sigma)
	}

	bottom := image.Rect(0, 64, 128, 128)
	median, sigma, err = p.Stats(&bottom)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(median-0.6) > 0.01 {
		t.Errorf("bottom median = %v, want 0.6", median)
	}
	if sigma < 0.03 || sigma > 0.07 {
		t.Errorf("bottom noise sigma = %v, want ~0.05", sigma)
	}
}

func TestHistogramStatsProvider(t *testing.T) {
	c := flatChannel(64, 64, 0.25)
	var p StatsProvider = HistogramStats{Channel: c}
	median, sigma, err := p.Stats(nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(median-0.25) > 0.01 {
		t.Errorf("median = %v, want 0.25", median)
	}
	if sigma < 0 {
		t.Errorf("negative noise sigma %v", sigma)
	}
}
