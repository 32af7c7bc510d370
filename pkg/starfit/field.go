package starfit

import "math"

const (
	fieldEdgeFraction     = 0.25
	minStarsPerZone       = 3
	minTotalStarsForField = 20
)

// ZonePosition identifies a zone in the 3x3 field grid.
type ZonePosition int

const (
	ZoneTopLeft ZonePosition = iota
	ZoneTop
	ZoneTopRight
	ZoneLeft
	ZoneCenter
	ZoneRight
	ZoneBottomLeft
	ZoneBottom
	ZoneBottomRight
)

var zoneLabels = map[ZonePosition]string{
	ZoneTopLeft:     "TL",
	ZoneTop:         "T",
	ZoneTopRight:    "TR",
	ZoneLeft:        "L",
	ZoneCenter:      "Center",
	ZoneRight:       "R",
	ZoneBottomLeft:  "BL",
	ZoneBottom:      "B",
	ZoneBottomRight: "BR",
}

var cornerPositions = []ZonePosition{ZoneTopLeft, ZoneTopRight, ZoneBottomLeft, ZoneBottomRight}

// ZoneData holds per-zone catalog statistics.
type ZoneData struct {
	Label      string
	MedianFWHM float64
	StarCount  int
}

// FieldAnalysis summarizes PSF quality across a 3x3 grid of the frame.
type FieldAnalysis struct {
	Zones       map[ZonePosition]ZoneData
	TiltPct     float64
	OffAxisPct  float64
	BestCorner  string
	WorstCorner string
	Reliable    bool
}

// AnalyzeField buckets a fitted catalog into a 3x3 grid and compares the
// corner median FWHM against the center, yielding tilt and off-axis
// percentages. Returns nil for an empty catalog.
func AnalyzeField(cat *Catalog, width, height int) *FieldAnalysis {
	if cat == nil || cat.Len() == 0 {
		return nil
	}

	xLo := float64(width) * fieldEdgeFraction
	xHi := float64(width) * (1.0 - fieldEdgeFraction)
	yLo := float64(height) * fieldEdgeFraction
	yHi := float64(height) * (1.0 - fieldEdgeFraction)

	zoneFWHM := make(map[ZonePosition][]float64)
	for _, s := range cat.Stars() {
		pos := classifyZone(s.XPos, s.YPos, xLo, xHi, yLo, yHi)
		zoneFWHM[pos] = append(zoneFWHM[pos], (s.FWHMX+s.FWHMY)/2)
	}

	zones := make(map[ZonePosition]ZoneData)
	for pos, label := range zoneLabels {
		vals := zoneFWHM[pos]
		zd := ZoneData{Label: label, StarCount: len(vals)}
		if len(vals) > 0 {
			zd.MedianFWHM = medianFloat64InPlace(vals)
		}
		zones[pos] = zd
	}

	result := &FieldAnalysis{Zones: zones}
	center := zones[ZoneCenter].MedianFWHM
	if center <= 0 {
		return result
	}

	var bestCorner, worstCorner ZonePosition
	best := math.MaxFloat64
	worst := 0.0
	validCorners := 0
	for _, pos := range cornerPositions {
		z := zones[pos]
		if z.StarCount < minStarsPerZone {
			continue
		}
		validCorners++
		if z.MedianFWHM < best {
			best = z.MedianFWHM
			bestCorner = pos
		}
		if z.MedianFWHM > worst {
			worst = z.MedianFWHM
			worstCorner = pos
		}
	}
	if validCorners >= 2 && worst > 0 {
		result.TiltPct = (worst - best) / center * 100
		result.BestCorner = zoneLabels[bestCorner]
		result.WorstCorner = zoneLabels[worstCorner]
	}

	var offAxisSum float64
	offAxisCount := 0
	for pos, z := range zones {
		if pos == ZoneCenter || z.StarCount < minStarsPerZone {
			continue
		}
		offAxisSum += z.MedianFWHM
		offAxisCount++
	}
	if offAxisCount > 0 {
		result.OffAxisPct = (offAxisSum/float64(offAxisCount) - center) / center * 100
	}

	result.Reliable = cat.Len() >= minTotalStarsForField &&
		validCorners >= 4 &&
		zones[ZoneCenter].StarCount >= minStarsPerZone
	return result
}

func classifyZone(x, y, xLo, xHi, yLo, yHi float64) ZonePosition {
	var col, row int
	switch {
	case x < xLo:
		col = 0
	case x < xHi:
		col = 1
	default:
		col = 2
	}
	switch {
	case y < yLo:
		row = 0
	case y < yHi:
		row = 1
	default:
		row = 2
	}
	grid := [3][3]ZonePosition{
		{ZoneTopLeft, ZoneTop, ZoneTopRight},
		{ZoneLeft, ZoneCenter, ZoneRight},
		{ZoneBottomLeft, ZoneBottom, ZoneBottomRight},
	}
	return grid[row][col]
}
