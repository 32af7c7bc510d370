package starfit

// DebayerRGGB bilinearly interpolates a raw RGGB Bayer-pattern frame and
// collapses it to a normalized luminance channel, (R+G+B)/3 per pixel.
// Star detection only needs luminance; full color reconstruction is the
// caller's business.
//
// RGGB layout (row-major, 0-indexed): even row/even col = R, even row/odd
// col = G, odd row/even col = G, odd row/odd col = B.
func DebayerRGGB(pixels []uint16, bpp, width, height int) *Channel {
	scale := float64(uint32(1) << uint(bpp))
	data := make([]float64, len(pixels))
	for i, p := range pixels {
		data[i] = float64(p) / scale
	}

	clampX := func(x int) int {
		if x < 0 {
			return 0
		}
		if x >= width {
			return width - 1
		}
		return x
	}
	clampY := func(y int) int {
		if y < 0 {
			return 0
		}
		if y >= height {
			return height - 1
		}
		return y
	}
	px := func(x, y int) float64 {
		return data[clampY(y)*width+clampX(x)]
	}

	c := NewChannel(width, height)
	c.Saturation = float64(uint32(1)<<uint(bpp)-1) / scale
	for y := 0; y < height; y++ {
		evenRow := y%2 == 0
		for x := 0; x < width; x++ {
			evenCol := x%2 == 0
			var r, g, b float64
			switch {
			case evenRow && evenCol: // red site
				r = px(x, y)
				g = (px(x-1, y) + px(x+1, y) + px(x, y-1) + px(x, y+1)) / 4
				b = (px(x-1, y-1) + px(x+1, y-1) + px(x-1, y+1) + px(x+1, y+1)) / 4
			case evenRow && !evenCol: // green on red row
				r = (px(x-1, y) + px(x+1, y)) / 2
				g = px(x, y)
				b = (px(x, y-1) + px(x, y+1)) / 2
			case !evenRow && evenCol: // green on blue row
				r = (px(x, y-1) + px(x, y+1)) / 2
				g = px(x, y)
				b = (px(x-1, y) + px(x+1, y)) / 2
			default: // blue site
				r = (px(x-1, y-1) + px(x+1, y-1) + px(x-1, y+1) + px(x+1, y+1)) / 4
				g = (px(x-1, y) + px(x+1, y) + px(x, y-1) + px(x, y+1)) / 4
				b = px(x, y)
			}
			c.Data[y*width+x] = float32((r + g + b) / 3)
		}
	}
	return c
}
