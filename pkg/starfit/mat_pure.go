//go:build purego || js

package starfit

import "math"

// Mat is a pure Go float32 raster used by the full-frame filtering
// helpers. The default build wraps OpenCV instead; this backend keeps the
// package usable without cgo.
type Mat struct {
	data []float32
	rows int
	cols int
}

func NewMatWithSize(rows, cols int) Mat {
	return Mat{data: make([]float32, rows*cols), rows: rows, cols: cols}
}

func (m Mat) Rows() int   { return m.rows }
func (m Mat) Cols() int   { return m.cols }
func (m Mat) Empty() bool { return len(m.data) == 0 }

func (m Mat) Clone() Mat {
	out := NewMatWithSize(m.rows, m.cols)
	copy(out.data, m.data)
	return out
}

func (m *Mat) Close() {
	m.data = nil
	m.rows, m.cols = 0, 0
}

func (m Mat) DataFloat32() []float32 { return m.data }

func reflectIndex(idx, size int) int {
	if idx < 0 {
		idx = -idx
	}
	for idx >= size {
		idx = 2*size - 2 - idx
		if idx < 0 {
			idx = -idx
		}
	}
	return idx
}

// sepFilter2DReflect applies a separable filter with reflected borders.
func sepFilter2DReflect(src Mat, dst *Mat, kernelX, kernelY Mat) {
	rows, cols := src.rows, src.cols
	kx := kernelX.data
	ky := kernelY.data
	kxHalf := len(kx) / 2
	kyHalf := len(ky) / 2

	if dst.rows != rows || dst.cols != cols || dst.data == nil {
		*dst = NewMatWithSize(rows, cols)
	}
	tmp := make([]float32, rows*cols)

	for r := 0; r < rows; r++ {
		off := r * cols
		for c := 0; c < cols; c++ {
			var sum float32
			for k := range kx {
				cc := reflectIndex(c+k-kxHalf, cols)
				sum += src.data[off+cc] * kx[k]
			}
			tmp[off+c] = sum
		}
	}
	for r := 0; r < rows; r++ {
		off := r * cols
		for c := 0; c < cols; c++ {
			var sum float32
			for k := range ky {
				rr := reflectIndex(r+k-kyHalf, rows)
				sum += tmp[rr*cols+c] * ky[k]
			}
			dst.data[off+c] = sum
		}
	}
}

func gaussianKernel1D(size int, sigma float64) Mat {
	m := NewMatWithSize(size, 1)
	half := size / 2
	sum := 0.0
	for i := 0; i < size; i++ {
		x := float64(i - half)
		v := math.Exp(-x * x / (2 * sigma * sigma))
		m.data[i] = float32(v)
		sum += v
	}
	for i := range m.data {
		m.data[i] = float32(float64(m.data[i]) / sum)
	}
	return m
}

// medianBlur replaces each pixel with the median of its ksize x ksize
// neighborhood, clamping at the borders.
func medianBlur(src Mat, dst *Mat, ksize int) {
	rows, cols := src.rows, src.cols
	if dst.rows != rows || dst.cols != cols || dst.data == nil {
		*dst = NewMatWithSize(rows, cols)
	}
	half := ksize / 2
	clamp := func(v, hi int) int {
		if v < 0 {
			return 0
		}
		if v > hi {
			return hi
		}
		return v
	}
	var n9 [9]float64
	neighbors := make([]float64, ksize*ksize)
	result := make([]float32, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if ksize == 3 {
				k := 0
				for dr := -1; dr <= 1; dr++ {
					rr := clamp(r+dr, rows-1)
					for dc := -1; dc <= 1; dc++ {
						n9[k] = float64(src.data[rr*cols+clamp(c+dc, cols-1)])
						k++
					}
				}
				result[r*cols+c] = float32(median9(n9))
				continue
			}
			k := 0
			for dr := -half; dr <= half; dr++ {
				rr := clamp(r+dr, rows-1)
				for dc := -half; dc <= half; dc++ {
					neighbors[k] = float64(src.data[rr*cols+clamp(c+dc, cols-1)])
					k++
				}
			}
			result[r*cols+c] = float32(medianFloat64InPlace(neighbors[:k]))
		}
	}
	copy(dst.data, result)
}
