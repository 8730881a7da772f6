package capture

import (
	"image"
	"time"

	"go.viam.com/rscapture/realsense"
)

// Frame is a caller-owned pixel buffer in row-major order with no row padding. Color frames have
// three 1-byte channels in BGR order; depth frames one 2-byte little-endian channel.
type Frame struct {
	Rows      int
	Cols      int
	Channels  int
	ElemSize  int
	Format    realsense.Format
	Number    uint64
	Timestamp time.Time
	Data      []byte
}

// Step returns the number of bytes in one row.
func (f *Frame) Step() int {
	return f.Cols * f.Channels * f.ElemSize
}

// Image converts the frame into an *image.RGBA for color or *image.Gray16 for depth.
func (f *Frame) Image() (image.Image, error) {
	return f.videoFrame().Image()
}

func (f *Frame) videoFrame() *realsense.VideoFrame {
	return &realsense.VideoFrame{
		Format:    f.Format,
		Width:     f.Cols,
		Height:    f.Rows,
		Stride:    f.Step(),
		Number:    f.Number,
		Timestamp: f.Timestamp,
		Data:      f.Data,
	}
}

// newFrame copies an SDK frame into a new Frame, dropping any row padding.
func newFrame(vf *realsense.VideoFrame) (*Frame, error) {
	if err := vf.Validate(); err != nil {
		return nil, err
	}
	f := &Frame{
		Rows:      vf.Height,
		Cols:      vf.Width,
		Channels:  vf.Format.Channels(),
		ElemSize:  vf.BytesPerPixel() / vf.Format.Channels(),
		Format:    vf.Format,
		Number:    vf.Number,
		Timestamp: vf.Timestamp,
	}
	step := f.Step()
	f.Data = make([]byte, step*f.Rows)
	for y := 0; y < f.Rows; y++ {
		copy(f.Data[y*step:(y+1)*step], vf.Data[y*vf.Stride:])
	}
	return f, nil
}
