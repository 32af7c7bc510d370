package starfit

// Full-frame filtering helpers used to prepare the noise-filtered copy the
// candidate detector consumes. The detector itself treats that copy as a
// black box; these helpers exist so a caller without its own wavelet
// pipeline can produce one.

// GaussianSmooth returns a Gaussian-blurred copy of the channel. The
// kernel size must be odd and >= 3.
func GaussianSmooth(c *Channel, kernelSize int) *Channel {
	if kernelSize < 3 || kernelSize%2 == 0 {
		panic("starfit: kernel size must be a positive odd number >= 3")
	}
	src := c.ToMat()
	defer src.Close()
	kernel := gaussianKernel1D(kernelSize, 0.159758*float64(kernelSize))
	defer kernel.Close()
	dst := NewMatWithSize(c.Height, c.Width)
	defer dst.Close()
	sepFilter2DReflect(src, &dst, kernel, kernel)

	out := ChannelFromMat(dst)
	out.MinValid, out.MaxValid, out.Saturation = c.MinValid, c.MaxValid, c.Saturation
	out.Layer = c.Layer
	return out
}

// HotPixelFilter returns a copy of the channel with a 3x3 median filter
// applied, suppressing isolated hot pixels.
func HotPixelFilter(c *Channel) *Channel {
	src := c.ToMat()
	defer src.Close()
	dst := NewMatWithSize(c.Height, c.Width)
	defer dst.Close()
	medianBlur(src, &dst, 3)

	out := ChannelFromMat(dst)
	out.MinValid, out.MaxValid, out.Saturation = c.MinValid, c.MaxValid, c.Saturation
	out.Layer = c.Layer
	return out
}

// b3SplineFilter builds the a-trous B3 spline scaling kernel for the given
// dyadic layer: taps 1/16, 1/4, 3/8, 1/4, 1/16 spaced 2^layer apart.
func b3SplineFilter(dyadicLayer int) Mat {
	size := (1 << uint(dyadicLayer+2)) + 1
	filter := NewMatWithSize(size, 1)
	data := filter.DataFloat32()
	data[0] = 0.0625
	data[size-1] = 0.0625
	data[1<<uint(dyadicLayer)] = 0.25
	data[size-(1<<uint(dyadicLayer))-1] = 0.25
	data[size>>1] = 0.375
	return filter
}

// NoiseFilter produces the detector input: the channel with large-scale
// structure removed by subtracting the residual of numLayers a-trous
// B3-spline wavelet layers, then smoothed with a Gaussian matched to the
// layer count. Large nebulosity ends up in the residual, so subtracting it
// leaves compact sources standing out of a flattened background.
func NoiseFilter(c *Channel, numLayers int) *Channel {
	if numLayers < 1 {
		return c.Clone()
	}
	work := c.ToMat()
	defer work.Close()

	residual := NewMatWithSize(c.Height, c.Width)
	defer residual.Close()
	prev := work
	for i := 0; i < numLayers; i++ {
		filter := b3SplineFilter(i)
		sepFilter2DReflect(prev, &residual, filter, filter)
		filter.Close()
		prev = residual
	}

	out := NewChannel(c.Width, c.Height)
	out.MinValid, out.MaxValid, out.Saturation = c.MinValid, c.MaxValid, c.Saturation
	out.Layer = c.Layer
	workData := work.DataFloat32()
	resData := residual.DataFloat32()
	for i := range out.Data {
		v := workData[i] - resData[i]
		if v < 0 {
			v = 0
		}
		out.Data[i] = v
	}
	return GaussianSmooth(out, 2*numLayers+1)
}
