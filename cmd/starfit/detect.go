package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	sf "starfit/pkg/starfit"
)

func newDetectCmd() *cobra.Command {
	var (
		radius      int
		sigma       float64
		roundness   float64
		adjust      bool
		maxStars    int
		noiseLayers int
		hotPixels   bool

		photometry bool
		inner      float64
		outer      float64
		gain       float64

		focal     float64
		pixelSize float64
		binning   int

		overlayPath string
	)

	cmd := &cobra.Command{
		Use:   "detect <input-file>",
		Short: "Detect stars in a frame and fit their PSF profiles",
		Long: `Detect candidate stars in a frame, fit the elliptical Gaussian PSF
model to each and print a catalog summary with a 3x3 field analysis.

Examples:
  # Basic detection on a FITS frame (optics read from the header)
  starfit detect light_0001.fits

  # Aperture photometry with a custom sky annulus
  starfit detect light_0001.fits --photometry --inner 15 --outer 25

  # Annotated overlay of the fitted catalog
  starfit detect m31.png --overlay m31_stars.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			src, optics, err := loadChannel(args[0])
			if err != nil {
				return err
			}
			if focal > 0 && pixelSize > 0 {
				optics = &sf.Optics{FocalLength: focal, PixelSize: pixelSize, Binning: binning}
			}
			if s, ok := optics.Sampling(); ok {
				slog.Info("optical sampling known", "arcsec_per_px", fmt.Sprintf("%.3f", s))
			}

			cfg := sf.NewFindStarConfig()
			cfg.Radius = radius
			cfg.Sigma = sigma
			cfg.Roundness = roundness
			cfg.AdjustRadius = adjust
			cfg.MaxStars = maxStars

			if hotPixels {
				src = sf.HotPixelFilter(src)
			}

			start := time.Now()
			filtered := sf.NoiseFilter(src, noiseLayers)
			median, noise, err := sf.HistogramStats{Channel: filtered}.Stats(nil)
			if err != nil {
				return fmt.Errorf("computing frame statistics: %w", err)
			}
			slog.Debug("frame statistics",
				"median", fmt.Sprintf("%.5f", median),
				"noise_sigma", fmt.Sprintf("%.6f", noise),
			)

			cat, metrics := sf.FindStars(ctx, src, filtered, median, noise, cfg, optics)
			slog.Info("detection finished",
				"candidates", metrics.Candidates,
				"fitted", metrics.Fitted,
				"solver_failed", metrics.SolverFailed,
				"implausible", metrics.Implausible,
				"too_spread", metrics.TooSpread,
				"not_round", metrics.NotRound,
				"cap_reached", metrics.CapReached,
			)

			if photometry {
				photCfg := &sf.PhotometryConfig{InnerRadius: inner, OuterRadius: outer, Gain: gain}
				applyPhotometry(src, cat, photCfg)
			}

			printSummary(cat, src.Width, src.Height, time.Since(start))
			printField(cat, src.Width, src.Height)

			if overlayPath != "" {
				if err := sf.RenderOverlay(src, cat, overlayPath); err != nil {
					return fmt.Errorf("writing overlay: %w", err)
				}
				slog.Info("overlay written", "path", overlayPath)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&radius, "radius", "r", 10, "half-size of the search box in pixels")
	cmd.Flags().Float64VarP(&sigma, "sigma", "s", 1.0, "detection threshold in noise sigma units")
	cmd.Flags().Float64Var(&roundness, "roundness", 0.5, "minimum minor/major FWHM ratio")
	cmd.Flags().BoolVar(&adjust, "adjust", true, "auto-scale the radius from the optical sampling")
	cmd.Flags().IntVar(&maxStars, "max-stars", 2000, "cap on fitted stars kept (0 = unlimited)")
	cmd.Flags().IntVar(&noiseLayers, "noise-layers", 4, "wavelet layers for the detection noise filter")
	cmd.Flags().BoolVar(&hotPixels, "hot-pixels", false, "median-filter isolated hot pixels before fitting")

	cmd.Flags().BoolVarP(&photometry, "photometry", "p", false, "measure aperture photometry for every fitted star")
	cmd.Flags().Float64Var(&inner, "inner", 20, "inner sky annulus radius in pixels")
	cmd.Flags().Float64Var(&outer, "outer", 30, "outer sky annulus radius in pixels")
	cmd.Flags().Float64Var(&gain, "gain", 2.3, "detector gain in e-/ADU for the shot-noise term")

	cmd.Flags().Float64Var(&focal, "focal", 0, "focal length in mm (overrides FITS header)")
	cmd.Flags().Float64Var(&pixelSize, "pixel-size", 0, "pixel pitch in um (overrides FITS header)")
	cmd.Flags().IntVar(&binning, "binning", 1, "sensor binning factor")

	cmd.Flags().StringVarP(&overlayPath, "overlay", "o", "", "write an annotated JPEG of the catalog")

	return cmd
}

// loadChannel reads a frame as a normalized detection channel. FITS files
// also yield the acquisition optics from the header; other formats do not.
func loadChannel(path string) (*sf.Channel, *sf.Optics, error) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".fits") || strings.HasSuffix(lower, ".fit") {
		img, err := sf.ReadFITS(path)
		if err != nil {
			return nil, nil, fmt.Errorf("reading FITS: %w", err)
		}
		slog.Info("FITS loaded",
			"width", img.Width, "height", img.Height,
			"bit_depth", img.BitDepth, "bayer", img.Header.BayerPattern(),
		)
		return img.Channel(), img.Header.Optics(), nil
	}
	ch, err := loadImageChannel(path)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("image loaded", "width", ch.Width, "height", ch.Height)
	return ch, nil, nil
}

// applyPhotometry replaces each star's coarse magnitude with an aperture
// measurement where possible, then restores the ascending magnitude order.
func applyPhotometry(src *sf.Channel, cat *sf.Catalog, cfg *sf.PhotometryConfig) {
	measured, failed, invalid := 0, 0, 0
	for _, s := range cat.Stars() {
		phot, err := sf.MeasurePhotometry(src, s.XPos, s.YPos, s.SX, cfg)
		if err != nil {
			failed++
			continue
		}
		s.Phot = phot
		s.Mag = phot.Mag
		measured++
		if !phot.Valid {
			invalid++
		}
	}
	cat.SortByMag()
	slog.Info("photometry finished",
		"measured", measured, "failed", failed, "out_of_range", invalid,
	)
}

func printSummary(cat *sf.Catalog, width, height int, elapsed time.Duration) {
	fmt.Println()
	fmt.Printf("=== Star Detection Results (%.1fs) ===\n", elapsed.Seconds())
	fmt.Printf("  Image size:      %d x %d\n", width, height)
	fmt.Printf("  Stars fitted:    %d\n", cat.Len())

	if cat.Len() == 0 {
		fmt.Println("==============================")
		return
	}

	stars := cat.Stars()
	fwhmPx := make([]float64, len(stars))
	round := make([]float64, len(stars))
	var fwhmAs []float64
	for i, s := range stars {
		fwhmPx[i] = (s.FWHMX + s.FWHMY) / 2
		round[i] = s.Roundness()
		if s.FWHMXArcsec > 0 {
			fwhmAs = append(fwhmAs, (s.FWHMXArcsec+s.FWHMYArcsec)/2)
		}
	}
	pxMedian, pxMAD := medianMAD(fwhmPx)
	rMedian, rMAD := medianMAD(round)
	fmt.Printf("  FWHM (median):   %.3f +/- %.3f px\n", pxMedian, pxMAD)
	if len(fwhmAs) > 0 {
		asMedian, asMAD := medianMAD(fwhmAs)
		fmt.Printf("  FWHM (arcsec):   %.3f +/- %.3f\"\n", asMedian, asMAD)
	}
	fmt.Printf("  Roundness:       %.3f +/- %.3f\n", rMedian, rMAD)

	best := stars[0]
	fmt.Printf("  Brightest:       mag %.3f at (%.1f, %.1f)\n", best.Mag, best.XPos, best.YPos)
	fmt.Println("==============================")
}

func printField(cat *sf.Catalog, width, height int) {
	field := sf.AnalyzeField(cat, width, height)
	if field == nil {
		return
	}
	fmt.Println()
	fmt.Println("=== Field Analysis (3x3) ===")
	zoneOrder := []sf.ZonePosition{
		sf.ZoneTopLeft, sf.ZoneTop, sf.ZoneTopRight,
		sf.ZoneLeft, sf.ZoneCenter, sf.ZoneRight,
		sf.ZoneBottomLeft, sf.ZoneBottom, sf.ZoneBottomRight,
	}
	for i, pos := range zoneOrder {
		z := field.Zones[pos]
		fmt.Printf("  %-8s FWHM=%.3f  n=%d\n", z.Label, z.MedianFWHM, z.StarCount)
		if (i+1)%3 == 0 && i < 8 {
			fmt.Println("  ---")
		}
	}
	fmt.Printf("\n  Tilt:     %.1f%% (best: %s, worst: %s)\n", field.TiltPct, field.BestCorner, field.WorstCorner)
	fmt.Printf("  Off-axis: %.1f%%\n", field.OffAxisPct)
	if !field.Reliable {
		fmt.Println("  [LOW STAR COUNT - UNRELIABLE]")
	}
	fmt.Println("==============================")
}

func medianMAD(values []float64) (float64, float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	var median float64
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	deviations := make([]float64, n)
	for i := range sorted {
		deviations[i] = math.Abs(sorted[i] - median)
	}
	sort.Float64s(deviations)

	var mad float64
	if n%2 == 0 {
		mad = (deviations[n/2-1] + deviations[n/2]) / 2
	} else {
		mad = deviations[n/2]
	}
	return median, 1.4826 * mad
}
