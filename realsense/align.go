package realsense

import (
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// align is the built-in align processor. Frames of the target stream pass through untouched;
// every other video frame is resampled onto the target frame's pixel grid. There is no
// intrinsics-based reprojection: devices handled here are expected to deliver co-registered
// streams that only differ in resolution.
type align struct {
	to Stream
}

// NewAlign returns an align processor targeting the viewpoint of the given stream.
func NewAlign(to Stream) Aligner {
	return &align{to: to}
}

func (a *align) Process(fs *FrameSet) (*FrameSet, error) {
	if fs == nil {
		return nil, errors.New("cannot align a nil frame set")
	}
	target := fs.FirstOrDefault(a.to)
	out := &FrameSet{Frames: make([]*VideoFrame, 0, len(fs.Frames)), Timestamp: fs.Timestamp}
	for _, f := range fs.Frames {
		if f == nil {
			continue
		}
		if target == nil || f == target || (f.Width == target.Width && f.Height == target.Height) {
			out.Frames = append(out.Frames, f)
			continue
		}
		aligned, err := resampleFrame(f, target.Width, target.Height)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot align %s frame to %s", f.Stream, a.to)
		}
		out.Frames = append(out.Frames, aligned)
	}
	return out, nil
}

// resampleFrame scales a frame with nearest-neighbour sampling so depth samples are never blended.
func resampleFrame(f *VideoFrame, width, height int) (*VideoFrame, error) {
	img, err := f.Image()
	if err != nil {
		return nil, err
	}
	scaled := resize.Resize(uint(width), uint(height), img, resize.NearestNeighbor)
	out, err := FrameFromImage(f.Stream, f.Format, scaled)
	if err != nil {
		return nil, err
	}
	out.Number = f.Number
	out.Timestamp = f.Timestamp
	return out, nil
}
