package starfit

import (
	"errors"
	"image"
	"math"
	"testing"
)

func TestFitWindowPlainRecovers(t *testing.T) {
	truth := []float64{0.05, 0.7, 10.6, 11.4, 10, 7}
	w := renderWindow(21, 21, truth, false)

	star, err := FitWindow(w, FitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if star.Rotated {
		t.Error("plain fit reported as rotated")
	}
	if math.Abs(star.B-truth[pB]) > 0.01 {
		t.Errorf("B = %v, want %v", star.B, truth[pB])
	}
	if math.Abs(star.A-truth[pA]) > 0.01 {
		t.Errorf("A = %v, want %v", star.A, truth[pA])
	}
	if math.Abs(star.X0-truth[pX0]) > 0.02 || math.Abs(star.Y0-truth[pY0]) > 0.02 {
		t.Errorf("center (%v, %v), want (%v, %v)", star.X0, star.Y0, truth[pX0], truth[pY0])
	}
	if math.Abs(star.SX-truth[pSX])/truth[pSX] > 0.02 {
		t.Errorf("SX = %v, want %v", star.SX, truth[pSX])
	}
	if math.Abs(star.SY-truth[pSY])/truth[pSY] > 0.02 {
		t.Errorf("SY = %v, want %v", star.SY, truth[pSY])
	}
	if star.SX < star.SY {
		t.Errorf("canonical order violated: SX=%v < SY=%v", star.SX, star.SY)
	}
	if star.RMSE > 1e-3 {
		t.Errorf("RMSE %v too large for noise-free data", star.RMSE)
	}

	wantFWHM := math.Sqrt(truth[pSX]/2) * fwhmFactor
	if math.Abs(star.FWHMX-wantFWHM)/wantFWHM > 0.02 {
		t.Errorf("FWHMX = %v, want %v", star.FWHMX, wantFWHM)
	}
}

func TestFitWindowPositionOffset(t *testing.T) {
	// Absolute positions come from the window origin plus the 1-indexed
	// local center.
	c := flatChannel(64, 64, 0.05)
	addStar(c, 40, 30, 0.6, 8, 8)

	w := c.Window(image.Rect(40-10, 30-10, 40+10, 30+10))
	star, err := FitWindow(w, FitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(star.XPos-40) > 0.1 || math.Abs(star.YPos-30) > 0.1 {
		t.Errorf("absolute position (%v, %v), want (40, 30)", star.XPos, star.YPos)
	}
}

func TestLMSolveInfeasible(t *testing.T) {
	w := &Window{Data: make([]float64, 6), Width: 3, Height: 2}
	p0 := []float64{0, 1, 1, 1, 1, 1}
	if _, err := lmSolve(w, p0); !errors.Is(err, ErrInfeasible) {
		t.Fatalf("expected ErrInfeasible for n <= p, got %v", err)
	}
}

func TestFitWindowRotatedRecovers(t *testing.T) {
	angle := 25.0 * math.Pi / 180
	truth := []float64{0.05, 0.8, 11, 11, 16, 4, angle}
	w := renderWindow(21, 21, truth, true)

	star, err := FitWindow(w, FitOptions{WithRotation: true})
	if err != nil {
		t.Fatal(err)
	}
	if !star.Rotated {
		t.Fatal("rotation refit did not run on a clearly elliptical star")
	}
	if star.SX < star.SY {
		t.Errorf("canonical order violated: SX=%v < SY=%v", star.SX, star.SY)
	}
	if math.Abs(star.Angle-25) > 1.5 {
		t.Errorf("angle = %v deg, want 25", star.Angle)
	}
	wantX := math.Sqrt(truth[pSX]/2) * fwhmFactor
	wantY := math.Sqrt(truth[pSY]/2) * fwhmFactor
	if math.Abs(star.FWHMX-wantX)/wantX > 0.05 {
		t.Errorf("FWHMX = %v, want %v", star.FWHMX, wantX)
	}
	if math.Abs(star.FWHMY-wantY)/wantY > 0.05 {
		t.Errorf("FWHMY = %v, want %v", star.FWHMY, wantY)
	}
	if star.Angle <= -90 || star.Angle > 90 {
		t.Errorf("angle %v outside (-90, +90]", star.Angle)
	}
}

func TestFitWindowCircularSkipsRotation(t *testing.T) {
	truth := []float64{0.05, 0.7, 11, 11, 6, 6}
	w := renderWindow(21, 21, truth, false)

	star, err := FitWindow(w, FitOptions{WithRotation: true})
	if err != nil {
		t.Fatal(err)
	}
	if star.Rotated {
		t.Error("rotation refit ran on a circular star")
	}
	if star.Angle != 0 {
		t.Errorf("angle = %v for an unrotated fit, want 0", star.Angle)
	}
}

func TestNormalizeAngle(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{45, 45},
		{100, 10},
		{185, 5},
		{-95, -5},
		{90, 90},
		{-90, 0},
		{0, 0},
	}
	for _, c := range cases {
		if got := normalizeAngle(c.in); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("normalizeAngle(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	star := &FittedStar{
		SX: 3, SY: 8,
		FWHMX: fwhmFromSpread(3), FWHMY: fwhmFromSpread(8),
		Rotated: true, Angle: 30,
		RelErr: RelError{SX: 0.01, SY: 0.02},
	}
	canonicalize(star)
	if star.SX != 8 || star.SY != 3 {
		t.Fatalf("swap failed: SX=%v SY=%v", star.SX, star.SY)
	}
	if star.Angle != -60 {
		t.Errorf("angle after swap = %v, want -60", star.Angle)
	}
	if star.RelErr.SX != 0.02 || star.RelErr.SY != 0.01 {
		t.Errorf("uncertainties not swapped with the axes")
	}

	before := *star
	canonicalize(star)
	if *star != before {
		t.Error("canonicalize is not idempotent")
	}
}

func TestFitOne(t *testing.T) {
	c := flatChannel(80, 80, 0.05)
	addStar(c, 35, 42, 0.6, 12, 6)

	cfg := NewFindStarConfig()
	star := FitOne(c, 36, 41, cfg, FitOptions{})
	if star == nil {
		t.Fatal("no star found near a clean synthetic source")
	}
	if math.Abs(star.XPos-35) > 0.5 || math.Abs(star.YPos-42) > 0.5 {
		t.Errorf("position (%v, %v), want (35, 42)", star.XPos, star.YPos)
	}
	if !star.Rotated && math.Abs(star.SX-star.SY) >= epsAxis {
		t.Error("manual pick should fit rotation for an elliptical star")
	}

	if s := FitOne(c, 5, 70, cfg, FitOptions{}); s != nil {
		t.Errorf("found a star %v in empty background", s)
	}
}
