package starfit

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// RenderOverlay writes a JPEG of the channel with every cataloged star
// annotated: an ellipse matched to the fitted FWHM and orientation, plus
// the magnitude for the brightest entries.
func RenderOverlay(c *Channel, cat *Catalog, outputPath string) error {
	img := renderOverlayImage(c, cat)
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating overlay file: %w", err)
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
}

const maxLabeledStars = 50

func renderOverlayImage(c *Channel, cat *Catalog) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))

	// Background: autostretched grayscale so faint frames stay visible.
	lo, hi := stretchRange(c)
	span := hi - lo
	if span <= 0 {
		span = 1
	}
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			v := (c.At(x, y) - lo) / span
			if v < 0 {
				v = 0
			}
			if v > 1 {
				v = 1
			}
			g := uint8(math.Sqrt(v) * 255)
			img.SetRGBA(x, y, color.RGBA{g, g, g, 255})
		}
	}

	ellipseColor := color.RGBA{80, 220, 80, 255}
	textColor := color.RGBA{255, 220, 60, 255}
	face := basicfont.Face7x13
	for i, s := range cat.Stars() {
		cx, cy := s.XPos, s.YPos
		drawEllipse(img, cx, cy, s.FWHMX, s.FWHMY, s.Angle, ellipseColor)
		if i < maxLabeledStars {
			drawText(img, face, fmt.Sprintf("%.1f", s.Mag),
				int(cx)+int(s.FWHMX)+3, int(cy)+4, textColor)
		}
	}
	return img
}

// stretchRange picks the display black and white points from the channel
// statistics: median for the floor, and the brighter of median+8*MAD or
// the peak for the ceiling.
func stretchRange(c *Channel) (float64, float64) {
	st := CalcStats(c, nil)
	lo := st.Median
	hi := st.Median + 8*st.MAD*madToSigma
	if hi <= lo {
		hi = lo + 1e-6
	}
	return lo, hi
}

// drawEllipse traces an ellipse with semi-axes matched to the FWHM,
// rotated by angle degrees.
func drawEllipse(img *image.RGBA, cx, cy, fwhmX, fwhmY, angleDeg float64, c color.RGBA) {
	a := math.Max(fwhmX, 2)
	b := math.Max(fwhmY, 2)
	rad := angleDeg * math.Pi / 180
	cosA, sinA := math.Cos(rad), math.Sin(rad)
	steps := int(8 * math.Max(a, b))
	if steps < 24 {
		steps = 24
	}
	for i := 0; i < steps; i++ {
		t := 2 * math.Pi * float64(i) / float64(steps)
		ex := a * math.Cos(t)
		ey := b * math.Sin(t)
		x := int(cx + ex*cosA - ey*sinA)
		y := int(cy + ex*sinA + ey*cosA)
		if image.Pt(x, y).In(img.Bounds()) {
			img.SetRGBA(x, y, c)
		}
	}
}

func drawText(img *image.RGBA, face font.Face, s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
