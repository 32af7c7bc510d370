package starfit

import (
	"image"
	"math"
)

// ChannelStats holds global statistics of one channel region.
type ChannelStats struct {
	Median float64
	MAD    float64
	Mean   float64
	StdDev float64
}

const statsBuckets = 1 << 16

// CalcStats computes the median, MAD, mean and standard deviation of a
// channel region using a fixed-bucket histogram, so large frames need no
// sort. Values are bucketed over [0, MaxValid]. A nil rect means the whole
// channel.
func CalcStats(c *Channel, rect *image.Rectangle) ChannelStats {
	var s ChannelStats

	startX, startY := 0, 0
	width, height := c.Width, c.Height
	if rect != nil {
		r := rect.Intersect(c.Bounds())
		startX, startY = r.Min.X, r.Min.Y
		width, height = r.Dx(), r.Dy()
	}
	numPixels := int64(width) * int64(height)
	if numPixels == 0 {
		return s
	}

	scale := c.MaxValid
	if scale <= 0 {
		scale = 1
	}
	bucketOf := func(v float64) int {
		idx := int(v / scale * statsBuckets)
		if idx < 0 {
			idx = 0
		}
		if idx >= statsBuckets {
			idx = statsBuckets - 1
		}
		return idx
	}
	bucketValue := func(i int) float64 {
		return float64(i) / statsBuckets * scale
	}

	histogram := make([]uint32, statsBuckets)
	var sum float64
	for row := 0; row < height; row++ {
		off := (startY+row)*c.Width + startX
		for col := 0; col < width; col++ {
			v := float64(c.Data[off+col])
			histogram[bucketOf(v)]++
			sum += v
		}
	}
	s.Mean = sum / float64(numPixels)

	// Median with linear interpolation inside the hit bucket.
	target := float64(numPixels) / 2
	var count uint32
	medianBucket := 0
	for i, h := range histogram {
		count += h
		if float64(count) >= target {
			ratio := (float64(count) - target) / math.Max(float64(h), 1)
			s.Median = bucketValue(i) + (bucketValue(i+1)-bucketValue(i))*ratio
			medianBucket = i
			break
		}
	}

	// MAD by walking outward from the median bucket until half the
	// pixels are covered.
	up, down := medianBucket, medianBucket-1
	count = 0
	for count < uint32(target) && (up < statsBuckets || down >= 0) {
		upDist, downDist := math.MaxFloat64, math.MaxFloat64
		if up < statsBuckets {
			upDist = math.Abs(bucketValue(up) - s.Median)
		}
		if down >= 0 {
			downDist = math.Abs(bucketValue(down) - s.Median)
		}
		var chosen int
		if upDist <= downDist {
			chosen = up
			up++
		} else {
			chosen = down
			down--
		}
		count += histogram[chosen]
		if float64(count) >= target {
			s.MAD = math.Abs(bucketValue(chosen) - s.Median)
			break
		}
	}

	var sse float64
	for i, h := range histogram {
		if h == 0 {
			continue
		}
		d := bucketValue(i) - s.Mean
		sse += float64(h) * d * d
	}
	if numPixels > 1 {
		s.StdDev = math.Sqrt(sse / float64(numPixels-1))
	}
	return s
}

// KappaSigmaNoise estimates the background noise sigma of a channel by
// iteratively clipping pixels above mean + k*sigma and re-measuring, until
// the sigma stabilizes or maxIterations is reached.
func KappaSigmaNoise(c *Channel, clippingMultiplier, allowedError float64, maxIterations int) float64 {
	threshold := math.MaxFloat64
	lastSigma := 1.0

	for iter := 0; iter < maxIterations; iter++ {
		var sum float64
		var count int64
		for _, v := range c.Data {
			fv := float64(v)
			if fv > 0 && fv < threshold {
				sum += fv
				count++
			}
		}
		if count == 0 {
			return lastSigma
		}
		mean := sum / float64(count)
		var sse float64
		for _, v := range c.Data {
			fv := float64(v)
			if fv > 0 && fv < threshold {
				d := fv - mean
				sse += d * d
			}
		}
		sigma := math.Sqrt(sse / float64(count))

		if iter > 0 && math.Abs(sigma-lastSigma) <= allowedError {
			return sigma
		}
		threshold = mean + clippingMultiplier*sigma
		lastSigma = sigma
	}
	return lastSigma
}

// HistogramStats is the default StatsProvider: histogram median for the
// background level and a kappa-sigma clipped estimate for the noise.
type HistogramStats struct {
	Channel *Channel
}

func (h HistogramStats) Stats(region *image.Rectangle) (median, sigma float64, err error) {
	if h.Channel == nil || len(h.Channel.Data) == 0 {
		return 0, 0, ErrNoSample
	}
	// Both statistics must describe the same pixels, so the noise estimate
	// runs over the region too.
	c := regionChannel(h.Channel, region)
	if len(c.Data) == 0 {
		return 0, 0, ErrNoSample
	}
	st := CalcStats(c, nil)
	sigma = KappaSigmaNoise(c, 4.0, 1e-5, 5)
	return st.Median, sigma, nil
}

// regionChannel copies the region into a standalone channel with the same
// metadata. A nil region returns the channel unchanged.
func regionChannel(c *Channel, region *image.Rectangle) *Channel {
	if region == nil {
		return c
	}
	r := region.Intersect(c.Bounds())
	out := *c
	out.Width, out.Height = r.Dx(), r.Dy()
	out.Data = make([]float32, r.Dx()*r.Dy())
	for y := 0; y < out.Height; y++ {
		src := (r.Min.Y+y)*c.Width + r.Min.X
		copy(out.Data[y*out.Width:(y+1)*out.Width], c.Data[src:src+out.Width])
	}
	return &out
}
