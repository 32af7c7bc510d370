package starfit

import (
	"image"
	"math"
)

// Channel is a single-channel pixel raster with the sensor's representable
// range attached. Values are stored as float32 normalized to [0, 1] by the
// loaders in this package, but the engine only assumes MinValid/MaxValid.
type Channel struct {
	Data   []float32
	Width  int
	Height int

	// MinValid and MaxValid bound the sensor's representable range;
	// pixels outside it are ignored by photometry.
	MinValid float64
	MaxValid float64
	// Saturation is the clipping level; the detector skips pixels at or
	// above it.
	Saturation float64
	// Layer is the source layer index of this channel in a multi-channel
	// image; it is copied onto every fitted star.
	Layer int
}

// NewChannel allocates a zeroed channel with a [0, 1] valid range.
func NewChannel(width, height int) *Channel {
	return &Channel{
		Data:       make([]float32, width*height),
		Width:      width,
		Height:     height,
		MinValid:   0,
		MaxValid:   1,
		Saturation: 1,
	}
}

// ChannelFromPixels converts raw integer pixels to a normalized channel.
// The saturation level is the largest representable integer value.
func ChannelFromPixels(pixels []uint16, bpp, width, height int) *Channel {
	c := NewChannel(width, height)
	scale := float32(uint32(1) << uint(bpp))
	for i, p := range pixels {
		c.Data[i] = float32(p) / scale
	}
	c.Saturation = float64(uint32(1)<<uint(bpp)-1) / float64(scale)
	return c
}

// ChannelFromMat wraps a Mat's pixel data in a channel, copying the data so
// the Mat can be closed independently.
func ChannelFromMat(m Mat) *Channel {
	c := NewChannel(m.Cols(), m.Rows())
	copy(c.Data, m.DataFloat32()[:m.Rows()*m.Cols()])
	return c
}

// ToMat copies the channel into a newly allocated Mat.
func (c *Channel) ToMat() Mat {
	m := NewMatWithSize(c.Height, c.Width)
	copy(m.DataFloat32()[:c.Height*c.Width], c.Data)
	return m
}

func (c *Channel) At(x, y int) float64 {
	return float64(c.Data[y*c.Width+x])
}

func (c *Channel) Set(x, y int, v float64) {
	c.Data[y*c.Width+x] = float32(v)
}

func (c *Channel) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.Width, c.Height)
}

// Clone returns a deep copy sharing no pixel storage.
func (c *Channel) Clone() *Channel {
	out := *c
	out.Data = make([]float32, len(c.Data))
	copy(out.Data, c.Data)
	return &out
}

// Window is a dense float64 copy of a rectangular region of a channel,
// handed read-only to the solver. X0/Y0 locate the window origin in image
// coordinates.
type Window struct {
	Data   []float64
	Width  int
	Height int
	X0     int
	Y0     int
}

// Window extracts the given rectangle, clipped to the channel bounds.
// Returns nil when the clipped rectangle is empty.
func (c *Channel) Window(r image.Rectangle) *Window {
	r = r.Intersect(c.Bounds())
	if r.Empty() {
		return nil
	}
	w := &Window{
		Data:   make([]float64, r.Dx()*r.Dy()),
		Width:  r.Dx(),
		Height: r.Dy(),
		X0:     r.Min.X,
		Y0:     r.Min.Y,
	}
	for y := 0; y < w.Height; y++ {
		src := (r.Min.Y+y)*c.Width + r.Min.X
		for x := 0; x < w.Width; x++ {
			w.Data[y*w.Width+x] = float64(c.Data[src+x])
		}
	}
	return w
}

func (w *Window) At(x, y int) float64 { return w.Data[y*w.Width+x] }

// median returns the median of the window pixels.
func (w *Window) median() float64 {
	tmp := make([]float64, len(w.Data))
	copy(tmp, w.Data)
	return medianFloat64InPlace(tmp)
}

// max returns the maximum pixel value and its position.
func (w *Window) max() (float64, int, int) {
	best := math.Inf(-1)
	bx, by := 0, 0
	for y := 0; y < w.Height; y++ {
		for x := 0; x < w.Width; x++ {
			if v := w.At(x, y); v > best {
				best, bx, by = v, x, y
			}
		}
	}
	return best, bx, by
}

// StatsProvider supplies global image statistics for a channel region. The
// detector consumes the background median and noise sigma from it; a nil
// region means the whole channel.
type StatsProvider interface {
	Stats(region *image.Rectangle) (median, sigma float64, err error)
}
