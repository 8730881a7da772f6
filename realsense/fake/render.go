package fake

import (
	"encoding/binary"
	"time"

	"go.viam.com/rscapture/realsense"
)

// depthBase is the depth value of the top-left pixel of the first frame.
const depthBase = 500

// renderFrame draws frame number n of a stream. Color frames are a gradient that shifts by one
// pixel per frame; depth frames are a ramp of millimetre values.
func renderFrame(req realsense.StreamRequest, n uint64, ts time.Time) *realsense.VideoFrame {
	bpp := req.Format.BytesPerPixel()
	f := &realsense.VideoFrame{
		Stream:    req.Stream,
		Format:    req.Format,
		Width:     req.Width,
		Height:    req.Height,
		Stride:    req.Width * bpp,
		Number:    n,
		Timestamp: ts,
		Data:      make([]byte, req.Width*req.Height*bpp),
	}
	for y := 0; y < req.Height; y++ {
		row := f.Data[y*f.Stride:]
		for x := 0; x < req.Width; x++ {
			switch req.Format {
			case realsense.FormatZ16:
				binary.LittleEndian.PutUint16(row[x*2:], DepthAt(x, y, n))
			case realsense.FormatBGR8:
				bgr := ColorAt(x, y, n)
				copy(row[x*3:x*3+3], bgr[:])
			case realsense.FormatRGB8:
				bgr := ColorAt(x, y, n)
				row[x*3+0], row[x*3+1], row[x*3+2] = bgr[2], bgr[1], bgr[0]
			case realsense.FormatAny, realsense.FormatY8:
			}
		}
	}
	return f
}

// DepthAt returns the depth value the fake device renders at (x, y) in frame n.
func DepthAt(x, y int, n uint64) uint16 {
	return uint16(depthBase + x + y + int(n%1000))
}

// ColorAt returns the BGR triple the fake device renders at (x, y) in frame n.
func ColorAt(x, y int, n uint64) [3]byte {
	shift := int(n % 256)
	return [3]byte{uint8(x + shift), uint8(y + shift), uint8(x + y)}
}
