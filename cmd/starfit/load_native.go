//go:build !purego && !js

package main

import (
	"fmt"

	"gocv.io/x/gocv"

	sf "starfit/pkg/starfit"
)

func loadImageChannel(path string) (*sf.Channel, error) {
	src := gocv.IMRead(path, gocv.IMReadUnchanged)
	if src.Empty() {
		return nil, fmt.Errorf("could not load image: %s", path)
	}
	defer src.Close()

	gray := src
	if src.Channels() > 1 {
		gray = gocv.NewMat()
		defer gray.Close()
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	}

	// 8-bit sources are stretched so both depths land in uint16 range.
	scale := float32(1)
	if gray.Type() == gocv.MatTypeCV8UC1 {
		scale = 257
	}
	u16 := gocv.NewMat()
	defer u16.Close()
	gray.ConvertToWithParams(&u16, gocv.MatTypeCV16U, scale, 0)

	w, h := u16.Cols(), u16.Rows()
	data, err := u16.DataPtrUint16()
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	pixels := make([]uint16, w*h)
	copy(pixels, data)
	return sf.ChannelFromPixels(pixels, 16, w, h), nil
}
