package starfit

import "errors"

// Failure classes for a single candidate or star. None of them is retried
// automatically and none aborts a batch; the catalog builder counts them in
// FindStarMetrics and moves on.
var (
	// ErrInfeasible: fewer pixels than free parameters; fatal to the
	// candidate, the iteration is never attempted.
	ErrInfeasible = errors.New("starfit: not enough pixels for the fit")
	// ErrDiverged: the iterative step failed internally or produced a
	// non-finite result.
	ErrDiverged = errors.New("starfit: solver diverged")
	// ErrImplausible: the fit converged but violates sanity bounds.
	ErrImplausible = errors.New("starfit: implausible fit result")
	// ErrNoSkySample: too few valid pixels in the sky annulus. The star
	// fit itself stays valid; only its photometry is missing.
	ErrNoSkySample = errors.New("starfit: insufficient sky samples")
	// ErrDegenerateAperture: the aperture is oversized, empty, or yields
	// no positive net signal.
	ErrDegenerateAperture = errors.New("starfit: degenerate aperture")
	// ErrNoSample: an estimator was handed an empty sample.
	ErrNoSample = errors.New("starfit: empty sample")
)
