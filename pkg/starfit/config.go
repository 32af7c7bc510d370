package starfit

// FindStarConfig holds the detection and fitting parameters. It is passed
// explicitly into every entry point; the engine reads no ambient state.
type FindStarConfig struct {
	// Radius of the local-maximum search box, in pixels. Also sets the
	// half-size of the pixel window handed to the solver.
	Radius int
	// Sigma is the detection significance threshold in units of the
	// background noise sigma.
	Sigma float64
	// Roundness is the minimum acceptable minor/major FWHM ratio.
	Roundness float64
	// AdjustRadius shrinks Radius toward half the expected stellar FWHM
	// when the optical sampling is known.
	AdjustRadius bool
	// MaxStars caps the number of fitted stars kept; 0 means no cap.
	// Candidates are pre-sorted by brightness so the brightest survive.
	MaxStars int
}

func NewFindStarConfig() *FindStarConfig {
	return &FindStarConfig{
		Radius:       10,
		Sigma:        1.0,
		Roundness:    0.5,
		AdjustRadius: true,
		MaxStars:     2000,
	}
}

// PhotometryConfig holds the aperture photometry parameters.
type PhotometryConfig struct {
	// InnerRadius and OuterRadius bound the sky annulus, in pixels.
	InnerRadius float64
	OuterRadius float64
	// Gain of the detector in electrons per ADU, for the shot-noise term.
	Gain float64
}

func NewPhotometryConfig() *PhotometryConfig {
	return &PhotometryConfig{
		InnerRadius: 20,
		OuterRadius: 30,
		Gain:        2.3,
	}
}

// Optics describes the acquisition setup, used for FWHM arc-second
// conversion and optional search-radius auto-scaling.
type Optics struct {
	FocalLength float64 // mm
	PixelSize   float64 // micrometers, after binning is applied below
	Binning     int
}

// arcsecPerRadian/1000 folded in: 206.265 converts um/mm to arcsec.
const arcsecFactor = 206.265

// Sampling returns the image scale in arc-seconds per pixel, or false when
// the focal length or pixel pitch is unknown.
func (o *Optics) Sampling() (float64, bool) {
	if o == nil || o.FocalLength <= 0 || o.PixelSize <= 0 {
		return 0, false
	}
	bin := o.Binning
	if bin < 1 {
		bin = 1
	}
	return o.PixelSize * float64(bin) / o.FocalLength * arcsecFactor, true
}
