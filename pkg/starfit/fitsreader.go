package starfit

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// FITSHeader holds the parsed header cards of the primary HDU.
type FITSHeader struct {
	cards map[string]string
}

func (h *FITSHeader) GetString(key string) string {
	return h.cards[strings.ToUpper(key)]
}

func (h *FITSHeader) GetFloat(key string) (float64, bool) {
	v, ok := h.cards[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (h *FITSHeader) GetInt(key string) (int, bool) {
	v, ok := h.cards[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return i, true
}

// Optics extracts the acquisition metadata used for arc-second conversion
// and radius auto-scaling. Missing keys leave zero values; Sampling
// reports whether enough is known.
func (h *FITSHeader) Optics() *Optics {
	o := &Optics{Binning: 1}
	if v, ok := h.GetFloat("FOCALLEN"); ok {
		o.FocalLength = v
	}
	if v, ok := h.GetFloat("XPIXSZ"); ok {
		o.PixelSize = v
	}
	if v, ok := h.GetInt("XBINNING"); ok && v >= 1 {
		o.Binning = v
	}
	return o
}

// BayerPattern returns the CFA pattern string ("RGGB", ...) or "" for a
// mono sensor.
func (h *FITSHeader) BayerPattern() string {
	return strings.TrimSpace(h.GetString("BAYERPAT"))
}

// FITSImage is a decoded primary HDU: pixels scaled into uint16 range plus
// the header.
type FITSImage struct {
	Pixels   []uint16
	Width    int
	Height   int
	BitDepth int
	Header   *FITSHeader
}

// Channel converts the image into a normalized detection channel,
// debayering to luminance when the header declares an RGGB sensor.
func (f *FITSImage) Channel() *Channel {
	if f.Header.BayerPattern() == "RGGB" {
		return DebayerRGGB(f.Pixels, f.BitDepth, f.Width, f.Height)
	}
	return ChannelFromPixels(f.Pixels, f.BitDepth, f.Width, f.Height)
}

// ReadFITS decodes the primary HDU of a FITS file. Supported BITPIX
// values: 8, 16, 32 and -32; everything is rescaled with BZERO/BSCALE and
// clamped into the uint16 range.
func ReadFITS(path string) (*FITSImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening FITS file: %w", err)
	}
	defer f.Close()
	return decodeFITS(f)
}

const fitsCardLen = 80
const fitsCardsPerBlock = 36

func decodeFITS(r io.Reader) (*FITSImage, error) {
	header := &FITSHeader{cards: make(map[string]string)}
	var bitpix, naxis, width, height int
	bzero, bscale := 0.0, 1.0

	card := make([]byte, fitsCardLen)
	done := false
	for !done {
		for i := 0; i < fitsCardsPerBlock; i++ {
			if _, err := io.ReadFull(r, card); err != nil {
				return nil, fmt.Errorf("reading FITS header card: %w", err)
			}
			keyword := strings.TrimSpace(string(card[:8]))
			if keyword == "END" {
				done = true
				if rest := fitsCardsPerBlock - 1 - i; rest > 0 {
					if _, err := io.CopyN(io.Discard, r, int64(rest*fitsCardLen)); err != nil {
						return nil, fmt.Errorf("skipping FITS header padding: %w", err)
					}
				}
				break
			}
			if len(card) <= 10 || card[8] != '=' || card[9] != ' ' {
				continue
			}
			raw := strings.TrimSpace(strings.SplitN(string(card[10:]), "/", 2)[0])
			if keyword == "" || raw == "" {
				continue
			}
			header.cards[strings.ToUpper(keyword)] = unquoteFITSValue(raw)

			switch keyword {
			case "BITPIX":
				bitpix, _ = strconv.Atoi(raw)
			case "NAXIS":
				naxis, _ = strconv.Atoi(raw)
			case "NAXIS1":
				width, _ = strconv.Atoi(raw)
			case "NAXIS2":
				height, _ = strconv.Atoi(raw)
			case "BZERO":
				bzero, _ = strconv.ParseFloat(raw, 64)
			case "BSCALE":
				bscale, _ = strconv.ParseFloat(raw, 64)
			}
		}
	}

	if naxis < 2 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid FITS geometry: NAXIS=%d NAXIS1=%d NAXIS2=%d", naxis, width, height)
	}

	n := width * height
	pixels := make([]uint16, n)
	store := func(i int, physical float64) {
		if physical < 0 {
			physical = 0
		} else if physical > 65535 {
			physical = 65535
		}
		pixels[i] = uint16(physical)
	}

	switch bitpix {
	case 8:
		raw := make([]byte, n)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("reading 8-bit FITS data: %w", err)
		}
		for i, b := range raw {
			store(i, float64(b)*bscale+bzero)
		}
	case 16:
		raw := make([]byte, 2*n)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("reading 16-bit FITS data: %w", err)
		}
		for i := 0; i < n; i++ {
			v := int16(binary.BigEndian.Uint16(raw[2*i:]))
			store(i, float64(v)*bscale+bzero)
		}
	case 32:
		raw := make([]byte, 4*n)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("reading 32-bit FITS data: %w", err)
		}
		for i := 0; i < n; i++ {
			v := int32(binary.BigEndian.Uint32(raw[4*i:]))
			store(i, float64(v)*bscale+bzero)
		}
	case -32:
		raw := make([]byte, 4*n)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("reading float FITS data: %w", err)
		}
		for i := 0; i < n; i++ {
			v := math.Float32frombits(binary.BigEndian.Uint32(raw[4*i:]))
			store(i, float64(v)*bscale+bzero)
		}
	default:
		return nil, fmt.Errorf("unsupported BITPIX %d", bitpix)
	}

	depth := 16
	if bitpix == 8 {
		depth = 8
	}
	return &FITSImage{
		Pixels:   pixels,
		Width:    width,
		Height:   height,
		BitDepth: depth,
		Header:   header,
	}, nil
}

func unquoteFITSValue(raw string) string {
	switch {
	case raw == "T":
		return "True"
	case raw == "F":
		return "False"
	case strings.HasPrefix(raw, "'"):
		if end := strings.LastIndex(raw[1:], "'"); end >= 0 {
			return strings.TrimRight(raw[1:1+end], " ")
		}
		return strings.Trim(raw, "' ")
	}
	return raw
}
