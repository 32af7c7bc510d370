package starfit

import (
	"fmt"
	"math"
	"sort"
)

// fwhmFactor converts a Gaussian sigma to full width at half maximum.
var fwhmFactor = 2.0 * math.Sqrt(2.0*math.Log(2.0))

// RelError holds per-parameter relative uncertainties from the fit
// covariance (absolute error divided by the fitted value). Angle is only
// meaningful when the owning star was fit with rotation.
type RelError struct {
	B     float64
	A     float64
	X0    float64
	Y0    float64
	SX    float64
	SY    float64
	Angle float64
}

// FittedStar is a star characterized by a fitted elliptical Gaussian
// profile. Center coordinates X0/Y0 are window-local and 1-indexed (the
// model is evaluated at pixel centers); XPos/YPos are absolute image
// coordinates. SX >= SY always holds after canonicalization.
type FittedStar struct {
	B  float64 // local background level
	A  float64 // peak amplitude above background
	X0 float64
	Y0 float64
	SX float64 // variance-like spread along the major axis
	SY float64

	// Rotated reports which fit variant produced this star. Angle is the
	// major-axis rotation in degrees, normalized into (-90, +90], and is
	// zero when Rotated is false.
	Rotated bool
	Angle   float64

	FWHMX float64 // pixels
	FWHMY float64
	// Arc-second FWHM values; zero when optical sampling is unknown.
	FWHMXArcsec float64
	FWHMYArcsec float64

	RMSE   float64
	RelErr RelError

	XPos  float64
	YPos  float64
	Layer int

	// Mag is the aperture magnitude when Phot is set, otherwise the
	// coarse whole-window estimate.
	Mag  float64
	Phot *Photometry
}

func (s *FittedStar) String() string {
	return fmt.Sprintf("{Pos=(%.2f,%.2f) A=%.4g B=%.4g FWHM=(%.2f,%.2f) angle=%.1f mag=%.3f rmse=%.3g}",
		s.XPos, s.YPos, s.A, s.B, s.FWHMX, s.FWHMY, s.Angle, s.Mag, s.RMSE)
}

// Roundness returns the minor/major FWHM ratio; 1 is perfectly circular.
func (s *FittedStar) Roundness() float64 {
	if s.FWHMX == 0 {
		return 0
	}
	return s.FWHMY / s.FWHMX
}

// Photometry carries the aperture photometry result attached to a star.
// Valid is true only if every sampled pixel was inside the sensor's
// representable range.
type Photometry struct {
	Mag    float64
	MagErr float64
	SNR    float64
	Valid  bool
}

// Candidate is a suspected star position prior to fitting. Brightness is
// the local high-neighborhood mean used only for ranking.
type Candidate struct {
	X          int
	Y          int
	Brightness float64
}

// Catalog is an ordered, growable list of fitted stars. Removal shifts
// instead of swapping so a magnitude-sorted catalog stays sorted until the
// next explicit sort.
type Catalog struct {
	stars []*FittedStar
}

func NewCatalog() *Catalog { return &Catalog{} }

func (c *Catalog) Len() int             { return len(c.stars) }
func (c *Catalog) At(i int) *FittedStar { return c.stars[i] }

// Stars returns the backing slice; callers must not reorder it.
func (c *Catalog) Stars() []*FittedStar { return c.stars }

func (c *Catalog) Add(s *FittedStar) { c.stars = append(c.stars, s) }

// Remove deletes the star at index i, preserving the order of the rest.
func (c *Catalog) Remove(i int) {
	if i < 0 || i >= len(c.stars) {
		return
	}
	copy(c.stars[i:], c.stars[i+1:])
	c.stars[len(c.stars)-1] = nil
	c.stars = c.stars[:len(c.stars)-1]
}

func (c *Catalog) Clear() { c.stars = nil }

// SortByMag orders the catalog by ascending magnitude (brightest first).
// The sort is stable so equal-magnitude stars keep their detection order.
func (c *Catalog) SortByMag() {
	sort.SliceStable(c.stars, func(i, j int) bool {
		return c.stars[i].Mag < c.stars[j].Mag
	})
}

// FindStarMetrics counts per-class rejections during catalog building.
// Failures are local to one candidate; the counts exist for aggregate
// logging by the caller.
type FindStarMetrics struct {
	Candidates   int
	Fitted       int
	SolverFailed int
	Implausible  int
	TooSpread    int
	NotRound     int
	CapReached   bool
}

func (m *FindStarMetrics) String() string {
	return fmt.Sprintf("{candidates=%d fitted=%d solver_failed=%d implausible=%d too_spread=%d not_round=%d}",
		m.Candidates, m.Fitted, m.SolverFailed, m.Implausible, m.TooSpread, m.NotRound)
}
