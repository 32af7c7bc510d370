package starfit

import "math"

// renderWindow evaluates the Gaussian model over a fresh w x h window at
// 1-indexed pixel centers.
func renderWindow(w, h int, p []float64, rotated bool) *Window {
	win := &Window{Data: make([]float64, w*h), Width: w, Height: h}
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			win.Data[i] = gaussEval(p, float64(x)+1, float64(y)+1, rotated)
			i++
		}
	}
	return win
}

// addStar adds an axis-aligned Gaussian profile to a channel, centered at
// image coordinates (xc, yc) with the model's variance-like spreads.
func addStar(c *Channel, xc, yc, amp, sx, sy float64) {
	for y := 0; y < c.Height; y++ {
		dy := float64(y) - yc
		for x := 0; x < c.Width; x++ {
			dx := float64(x) - xc
			c.Set(x, y, c.At(x, y)+amp*math.Exp(-(dx*dx/sx+dy*dy/sy)))
		}
	}
}

func flatChannel(w, h int, level float64) *Channel {
	c := NewChannel(w, h)
	for i := range c.Data {
		c.Data[i] = float32(level)
	}
	return c
}
