package starfit

import (
	"image"
	"math"
)

// FitOptions selects the optional stages of a PSF fit.
type FitOptions struct {
	// WithRotation requests the 7-parameter refit when the axis spreads
	// differ by at least epsAxis.
	WithRotation bool
	// Photometry enables aperture photometry when both the config and
	// the source channel are supplied.
	Photometry *PhotometryConfig
	// Channel is the full source channel, needed for the sky annulus
	// which extends past the fit window. May be nil when photometry is
	// not requested.
	Channel *Channel
	// Optics enables arc-second FWHM conversion when known.
	Optics *Optics
	Layer  int
}

// FitWindow fits the Gaussian PSF model to a pixel window and returns a
// canonicalized star, or an error classifying why the candidate was
// discarded. The plain fit always runs first; it seeds the rotation refit
// and covers the near-circular case where angle fitting would diverge. A
// failed rotation refit discards the candidate entirely rather than
// silently falling back to the plain result.
func FitWindow(w *Window, opts FitOptions) (*FittedStar, error) {
	if w == nil || len(w.Data) == 0 {
		return nil, ErrInfeasible
	}
	p0, ok := initialGuess(w)
	if !ok {
		return nil, ErrImplausible
	}

	out, err := lmSolve(w, p0)
	if err != nil {
		return nil, err
	}

	rotated := false
	if opts.WithRotation && math.Abs(out.params[pSX]-out.params[pSY]) >= epsAxis {
		seed := make([]float64, nParamsRot)
		copy(seed, out.params)
		seed[pAngle] = 0
		rotOut, err := lmSolve(w, seed)
		if err != nil {
			return nil, err
		}
		out = rotOut
		rotated = true
	}

	star := starFromFit(out, rotated)
	canonicalize(star)
	if !plausibleFWHM(star.FWHMX) || !plausibleFWHM(star.FWHMY) {
		return nil, ErrImplausible
	}

	star.Layer = opts.Layer
	star.XPos = float64(w.X0) + star.X0 - 1
	star.YPos = float64(w.Y0) + star.Y0 - 1

	if s, ok := opts.Optics.Sampling(); ok {
		star.FWHMXArcsec = star.FWHMX * s
		star.FWHMYArcsec = star.FWHMY * s
	}

	if opts.Photometry != nil && opts.Channel != nil {
		phot, err := MeasurePhotometry(opts.Channel, star.XPos, star.YPos, star.SX, opts.Photometry)
		if err == nil {
			star.Phot = phot
			star.Mag = phot.Mag
		} else {
			star.Mag = fallbackMagnitude(w, star.B)
		}
	} else {
		star.Mag = fallbackMagnitude(w, star.B)
	}
	return star, nil
}

// FitOne fits a single star around a user-picked position, with rotation
// fitting enabled. Returns nil when no plausible star is found there.
func FitOne(c *Channel, x, y int, cfg *FindStarConfig, opts FitOptions) *FittedStar {
	r := cfg.Radius
	w := c.Window(image.Rect(x-r, y-r, x+r, y+r))
	if w == nil {
		return nil
	}
	opts.WithRotation = true
	if opts.Channel == nil {
		opts.Channel = c
	}
	star, err := FitWindow(w, opts)
	if err != nil {
		return nil
	}
	return star
}

func starFromFit(out *fitOutcome, rotated bool) *FittedStar {
	p := out.params
	star := &FittedStar{
		B:       p[pB],
		A:       p[pA],
		X0:      p[pX0],
		Y0:      p[pY0],
		SX:      p[pSX],
		SY:      p[pSY],
		Rotated: rotated,
		RMSE:    out.rmse,
		RelErr: RelError{
			B:  out.relErr[pB],
			A:  out.relErr[pA],
			X0: out.relErr[pX0],
			Y0: out.relErr[pY0],
			SX: out.relErr[pSX],
			SY: out.relErr[pSY],
		},
	}
	if rotated {
		star.Angle = normalizeAngle(p[pAngle] * 180 / math.Pi)
		star.RelErr.Angle = out.relErr[pAngle]
	}
	star.FWHMX = fwhmFromSpread(star.SX)
	star.FWHMY = fwhmFromSpread(star.SY)
	return star
}

func fwhmFromSpread(s float64) float64 {
	return math.Sqrt(s/2) * fwhmFactor
}

// normalizeAngle folds an angle in degrees into (-90, +90] by 90-degree
// steps. An elliptical Gaussian's major axis is 180-degree periodic, halved
// because the SX/SY axis swap is handled separately in canonicalize.
func normalizeAngle(deg float64) float64 {
	for deg > 90 {
		deg -= 90
	}
	for deg <= -90 {
		deg += 90
	}
	return deg
}

// canonicalize enforces SX >= SY, swapping the spread parameters, FWHM
// values and uncertainties, and correcting the angle by -/+90 degrees when
// a rotation was fit. Running it on an already-canonical star is a no-op.
func canonicalize(s *FittedStar) {
	if s.SX >= s.SY {
		return
	}
	s.SX, s.SY = s.SY, s.SX
	s.FWHMX, s.FWHMY = s.FWHMY, s.FWHMX
	s.FWHMXArcsec, s.FWHMYArcsec = s.FWHMYArcsec, s.FWHMXArcsec
	s.RelErr.SX, s.RelErr.SY = s.RelErr.SY, s.RelErr.SX
	if s.Rotated {
		if s.Angle > 0 {
			s.Angle -= 90
		} else {
			s.Angle += 90
		}
	}
}

func plausibleFWHM(fwhm float64) bool {
	return fwhm > 0 && !math.IsNaN(fwhm) && !math.IsInf(fwhm, 0)
}

// fallbackMagnitude is the coarse whole-window flux estimate used when
// photometry is unavailable: biased, but cheap enough for detection passes.
func fallbackMagnitude(w *Window, background float64) float64 {
	var sum float64
	for _, v := range w.Data {
		sum += v - background
	}
	return -2.5 * math.Log10(sum+1)
}
