package starfit

import "math"

const (
	minSkySamples = 5
	// magErrFactor is 2.5/ln(10), converting a relative flux error to
	// magnitudes.
	magErrFactor = 1.0857
	// magErrMax is the clamp reported for unmeasurable magnitudes.
	magErrMax = 9.999
)

// MeasurePhotometry computes the aperture magnitude and its uncertainty
// for a fitted star centered at (xc, yc) in image coordinates, with major
// spread sx. The aperture radius is half the major FWHM plus half a pixel
// for partial coverage; the sky background comes from a Hampel-robust
// estimate over the annulus between the configured inner and outer radii.
//
// The whole bounding box is scanned once: full weight inside
// (r_ap - 0.5), a linear edge ramp out to r_ap, sky samples between the
// annulus radii. Only pixels inside the sensor's valid range are counted;
// sampling any out-of-range pixel clears the Valid flag.
func MeasurePhotometry(c *Channel, xc, yc, sx float64, cfg *PhotometryConfig) (*Photometry, error) {
	rAp := fwhmFromSpread(sx)/2 + 0.5
	if rAp >= cfg.InnerRadius {
		// An oversized star has no clean sky annulus.
		return nil, ErrDegenerateAperture
	}

	inner2 := cfg.InnerRadius * cfg.InnerRadius
	outer2 := cfg.OuterRadius * cfg.OuterRadius
	rApFull2 := (rAp - 0.5) * (rAp - 0.5)
	rAp2 := rAp * rAp

	x0 := int(math.Floor(xc - cfg.OuterRadius))
	x1 := int(math.Ceil(xc + cfg.OuterRadius))
	y0 := int(math.Floor(yc - cfg.OuterRadius))
	y1 := int(math.Ceil(yc + cfg.OuterRadius))
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 >= c.Width {
		x1 = c.Width - 1
	}
	if y1 >= c.Height {
		y1 = c.Height - 1
	}

	var apSum, area float64
	sky := make([]float64, 0, 256)
	valid := true

	for y := y0; y <= y1; y++ {
		dy := float64(y) - yc
		for x := x0; x <= x1; x++ {
			dx := float64(x) - xc
			r2 := dx*dx + dy*dy
			if r2 >= outer2 {
				continue
			}
			v := c.At(x, y)
			if v < c.MinValid || v > c.MaxValid {
				valid = false
				continue
			}
			switch {
			case r2 < rApFull2:
				apSum += v
				area++
			case r2 < rAp2:
				f := rAp - math.Sqrt(r2) + 0.5
				apSum += f * v
				area += f
			case r2 >= inner2:
				sky = append(sky, v)
			}
		}
	}

	if area < 1 {
		return nil, ErrDegenerateAperture
	}
	if len(sky) < minSkySamples {
		return nil, ErrNoSkySample
	}

	skyMean, skyStd, err := RobustMeanStd(sky)
	if err != nil {
		return nil, err
	}

	signal := apSum - area*skyMean
	if signal <= 0 {
		return nil, ErrDegenerateAperture
	}

	skyVar := skyStd * skyStd
	noise2 := area*skyVar + signal/cfg.Gain + area*area*skyVar/float64(len(sky))
	magErr := magErrFactor * math.Sqrt(noise2) / signal
	if magErr > magErrMax {
		magErr = magErrMax
	}

	return &Photometry{
		Mag:    -2.5 * math.Log10(signal),
		MagErr: magErr,
		SNR:    signal / math.Sqrt(noise2),
		Valid:  valid,
	}, nil
}
