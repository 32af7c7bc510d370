package starfit

import (
	"math"
	"testing"
)

func TestHotPixelFilter(t *testing.T) {
	c := flatChannel(32, 32, 0.2)
	c.Set(15, 10, 0.9)

	out := HotPixelFilter(c)
	if v := out.At(15, 10); math.Abs(v-0.2) > 1e-6 {
		t.Errorf("hot pixel survived the median filter: %v", v)
	}
	if v := c.At(15, 10); math.Abs(v-0.9) > 1e-6 {
		t.Error("input channel was modified")
	}
}

func TestGaussianSmoothConstant(t *testing.T) {
	c := flatChannel(32, 32, 0.3)
	out := GaussianSmooth(c, 5)
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			if math.Abs(out.At(x, y)-0.3) > 1e-4 {
				t.Fatalf("constant image changed at (%d,%d): %v", x, y, out.At(x, y))
			}
		}
	}
}

func TestGaussianSmoothBadKernel(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for an even kernel size")
		}
	}()
	GaussianSmooth(flatChannel(8, 8, 0.1), 4)
}

func TestNoiseFilterKeepsCompactSources(t *testing.T) {
	c := flatChannel(96, 96, 0.1)
	addStar(c, 48, 48, 0.5, 8, 8)

	out := NoiseFilter(c, 4)
	if out.Width != c.Width || out.Height != c.Height {
		t.Fatalf("geometry changed: %dx%d", out.Width, out.Height)
	}
	center := out.At(48, 48)
	corner := out.At(5, 5)
	if center <= corner {
		t.Errorf("star did not survive filtering: center %v vs corner %v", center, corner)
	}
	for _, v := range out.Data {
		if v < 0 {
			t.Fatal("negative pixel after background subtraction clamp")
		}
	}
}

func TestNoiseFilterZeroLayers(t *testing.T) {
	c := flatChannel(16, 16, 0.2)
	out := NoiseFilter(c, 0)
	if out == c {
		t.Fatal("zero layers must return a copy, not the input")
	}
	for i := range out.Data {
		if out.Data[i] != c.Data[i] {
			t.Fatal("zero-layer filter altered pixel data")
		}
	}
}

func TestB3SplineFilterNormalized(t *testing.T) {
	for layer := 0; layer < 3; layer++ {
		f := b3SplineFilter(layer)
		var sum float32
		for _, v := range f.DataFloat32() {
			sum += v
		}
		f.Close()
		if math.Abs(float64(sum)-1) > 1e-6 {
			t.Errorf("layer %d kernel sums to %v, want 1", layer, sum)
		}
	}
}
