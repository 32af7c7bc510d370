package starfit

import "math"

// Parameter vector layout for the Gaussian model. The rotation fit appends
// pAngle; the plain fit uses the first six entries only.
const (
	pB = iota
	pA
	pX0
	pY0
	pSX
	pSY
	pAngle

	nParamsPlain = 6
	nParamsRot   = 7
)

// epsAxis is the minimum spread difference below which the rotation fit is
// skipped: near-circular profiles make the angle diverge. Heuristic
// threshold, kept as a tunable.
const epsAxis = 0.001

// gaussEval evaluates the elliptical Gaussian
//
//	I(x,y) = B + A*exp(-((x-x0)^2/SX + (y-y0)^2/SY))
//
// at pixel center (x, y), with coordinates rotated by the angle parameter
// when rotated is true. The spread parameters absorb the usual 2*sigma^2,
// so FWHM = sqrt(S/2)*2*sqrt(2*ln2).
func gaussEval(p []float64, x, y float64, rotated bool) float64 {
	dx := x - p[pX0]
	dy := y - p[pY0]
	if rotated {
		cosA, sinA := math.Cos(p[pAngle]), math.Sin(p[pAngle])
		dx, dy = dx*cosA+dy*sinA, -dx*sinA+dy*cosA
	}
	return p[pB] + p[pA]*math.Exp(-(dx*dx/p[pSX]+dy*dy/p[pSY]))
}

// gaussJacobian writes the analytic partial derivatives of the model at
// (x, y) into row. len(row) selects the variant: 6 for the plain fit, 7
// with the rotation term.
func gaussJacobian(p []float64, x, y float64, row []float64) {
	rotated := len(row) == nParamsRot
	dx := x - p[pX0]
	dy := y - p[pY0]
	var cosA, sinA float64
	if rotated {
		cosA, sinA = math.Cos(p[pAngle]), math.Sin(p[pAngle])
		dx, dy = dx*cosA+dy*sinA, -dx*sinA+dy*cosA
	}
	sx, sy := p[pSX], p[pSY]
	e := math.Exp(-(dx*dx/sx + dy*dy/sy))
	ae := p[pA] * e

	row[pB] = 1
	row[pA] = e
	if !rotated {
		row[pX0] = ae * 2 * dx / sx
		row[pY0] = ae * 2 * dy / sy
	} else {
		row[pX0] = ae * (2*dx*cosA/sx - 2*dy*sinA/sy)
		row[pY0] = ae * (2*dx*sinA/sx + 2*dy*cosA/sy)
		row[pAngle] = 2 * ae * dx * dy * (1/sy - 1/sx)
	}
	row[pSX] = ae * dx * dx / (sx * sx)
	row[pSY] = ae * dy * dy / (sy * sy)
}

// initialGuess derives the starting parameter vector from the window
// alone, so no externally supplied seed is required. A 3x3 median filter
// suppresses single hot pixels before the peak search; the spread seed
// comes from walking outward from the peak to the half-maximum crossings
// on each axis.
func initialGuess(w *Window) ([]float64, bool) {
	f := medianFilter3x3(w)
	peak, px, py := f.max()
	bg := w.median()
	if peak <= bg {
		return nil, false
	}

	// Walk while 2*(pixel - background) > (peak - background), stopping
	// at the window bounds. The crossings span the width at half maximum.
	left := px
	for left > 0 && 2*(f.At(left-1, py)-bg) > peak-bg {
		left--
	}
	right := px
	for right < f.Width-1 && 2*(f.At(right+1, py)-bg) > peak-bg {
		right++
	}
	top := py
	for top > 0 && 2*(f.At(px, top-1)-bg) > peak-bg {
		top--
	}
	bottom := py
	for bottom < f.Height-1 && 2*(f.At(px, bottom+1)-bg) > peak-bg {
		bottom++
	}

	wx := float64(right - left + 1)
	wy := float64(bottom - top + 1)
	ln2x4 := 4 * math.Ln2

	p := make([]float64, nParamsPlain)
	p[pB] = bg
	p[pA] = peak - bg
	// Model coordinates are 1-indexed pixel centers.
	p[pX0] = float64(left+right)/2 + 1
	p[pY0] = float64(top+bottom)/2 + 1
	p[pSX] = wx * wx / ln2x4
	p[pSY] = wy * wy / ln2x4
	return p, true
}

// medianFilter3x3 returns a median-filtered copy of the window, with the
// border handled by clamping. 19-exchange median network for the 9-pixel
// neighborhood.
func medianFilter3x3(w *Window) *Window {
	out := &Window{
		Data:   make([]float64, len(w.Data)),
		Width:  w.Width,
		Height: w.Height,
		X0:     w.X0,
		Y0:     w.Y0,
	}
	clamp := func(v, hi int) int {
		if v < 0 {
			return 0
		}
		if v > hi {
			return hi
		}
		return v
	}
	var n [9]float64
	for y := 0; y < w.Height; y++ {
		for x := 0; x < w.Width; x++ {
			k := 0
			for dy := -1; dy <= 1; dy++ {
				yy := clamp(y+dy, w.Height-1)
				for dx := -1; dx <= 1; dx++ {
					n[k] = w.At(clamp(x+dx, w.Width-1), yy)
					k++
				}
			}
			out.Data[y*w.Width+x] = median9(n)
		}
	}
	return out
}

func median9(n [9]float64) float64 {
	swap := func(i, j int) {
		if n[i] > n[j] {
			n[i], n[j] = n[j], n[i]
		}
	}
	swap(1, 2)
	swap(4, 5)
	swap(7, 8)
	swap(0, 1)
	swap(3, 4)
	swap(6, 7)
	swap(1, 2)
	swap(4, 5)
	swap(7, 8)
	swap(0, 3)
	swap(5, 8)
	swap(4, 7)
	swap(3, 6)
	swap(1, 4)
	swap(2, 5)
	swap(4, 7)
	swap(4, 2)
	swap(6, 4)
	swap(4, 2)
	return n[4]
}
