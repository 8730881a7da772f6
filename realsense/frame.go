package realsense

import (
	"encoding/binary"
	"image"
	"image/color"
	"time"

	"github.com/pkg/errors"
)

// VideoFrame is a single image produced by one stream. Data is row-major with Stride bytes per
// row. Frames handed out by a pipeline must not be mutated by callers.
type VideoFrame struct {
	Stream    Stream
	Format    Format
	Width     int
	Height    int
	Stride    int
	Number    uint64
	Timestamp time.Time
	Data      []byte
}

// BytesPerPixel returns the pixel size of the frame's format.
func (f *VideoFrame) BytesPerPixel() int {
	return f.Format.BytesPerPixel()
}

// Validate checks that the frame's buffer is large enough for its geometry.
func (f *VideoFrame) Validate() error {
	bpp := f.BytesPerPixel()
	if bpp == 0 {
		return errors.Errorf("frame has no concrete format (%s)", f.Format)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return errors.Errorf("frame has invalid dimensions %dx%d", f.Width, f.Height)
	}
	if f.Stride < f.Width*bpp {
		return errors.Errorf("frame stride %d too small for width %d of %s", f.Stride, f.Width, f.Format)
	}
	if len(f.Data) < f.Stride*(f.Height-1)+f.Width*bpp {
		return errors.Errorf("frame data too short: %d bytes for %dx%d %s", len(f.Data), f.Width, f.Height, f.Format)
	}
	return nil
}

// Image converts the frame into an image. Depth frames become *image.Gray16, color frames
// *image.RGBA and Y8 frames *image.Gray.
func (f *VideoFrame) Image() (image.Image, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	bounds := image.Rect(0, 0, f.Width, f.Height)
	switch f.Format {
	case FormatZ16:
		img := image.NewGray16(bounds)
		for y := 0; y < f.Height; y++ {
			row := f.Data[y*f.Stride:]
			for x := 0; x < f.Width; x++ {
				img.SetGray16(x, y, color.Gray16{Y: binary.LittleEndian.Uint16(row[x*2:])})
			}
		}
		return img, nil
	case FormatBGR8, FormatRGB8:
		rIdx, bIdx := 2, 0
		if f.Format == FormatRGB8 {
			rIdx, bIdx = 0, 2
		}
		img := image.NewRGBA(bounds)
		for y := 0; y < f.Height; y++ {
			row := f.Data[y*f.Stride:]
			out := img.Pix[y*img.Stride:]
			for x := 0; x < f.Width; x++ {
				px := row[x*3 : x*3+3]
				out[x*4+0] = px[rIdx]
				out[x*4+1] = px[1]
				out[x*4+2] = px[bIdx]
				out[x*4+3] = 0xff
			}
		}
		return img, nil
	case FormatY8:
		img := image.NewGray(bounds)
		for y := 0; y < f.Height; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+f.Width], f.Data[y*f.Stride:])
		}
		return img, nil
	default:
		return nil, errors.Errorf("cannot convert %s frame to an image", f.Format)
	}
}

// FrameSet is one synchronized bundle of frames captured at the same instant.
type FrameSet struct {
	Frames    []*VideoFrame
	Timestamp time.Time
}

// FirstOrDefault returns the first frame of the given stream, or nil when the set has none.
func (fs *FrameSet) FirstOrDefault(stream Stream) *VideoFrame {
	if fs == nil {
		return nil
	}
	for _, f := range fs.Frames {
		if f != nil && (stream == StreamAny || f.Stream == stream) {
			return f
		}
	}
	return nil
}

// ColorFrame returns the color frame of the set, or nil.
func (fs *FrameSet) ColorFrame() *VideoFrame {
	return fs.FirstOrDefault(StreamColor)
}

// DepthFrame returns the depth frame of the set, or nil.
func (fs *FrameSet) DepthFrame() *VideoFrame {
	return fs.FirstOrDefault(StreamDepth)
}

// Size returns the number of frames in the set.
func (fs *FrameSet) Size() int {
	if fs == nil {
		return 0
	}
	return len(fs.Frames)
}

// FrameFromImage builds a frame of the given stream and format from an image. Z16 frames take
// their samples from the image's 16-bit gray value; BGR8/RGB8 frames from its 8-bit color.
func FrameFromImage(stream Stream, format Format, img image.Image) (*VideoFrame, error) {
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return nil, errors.Errorf("cannot build a frame of format %s", format)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	f := &VideoFrame{
		Stream: stream,
		Format: format,
		Width:  width,
		Height: height,
		Stride: width * bpp,
		Data:   make([]byte, width*height*bpp),
	}
	switch format {
	case FormatZ16:
		if gray, ok := img.(*image.Gray16); ok {
			for y := 0; y < height; y++ {
				in := gray.Pix[gray.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
				out := f.Data[y*f.Stride:]
				for x := 0; x < width; x++ {
					// image.Gray16 stores big-endian samples.
					out[x*2] = in[x*2+1]
					out[x*2+1] = in[x*2]
				}
			}
			return f, nil
		}
		for y := 0; y < height; y++ {
			out := f.Data[y*f.Stride:]
			for x := 0; x < width; x++ {
				g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
				binary.LittleEndian.PutUint16(out[x*2:], g.Y)
			}
		}
	case FormatBGR8, FormatRGB8:
		rIdx, bIdx := 2, 0
		if format == FormatRGB8 {
			rIdx, bIdx = 0, 2
		}
		rgba, isRGBA := img.(*image.RGBA)
		for y := 0; y < height; y++ {
			out := f.Data[y*f.Stride:]
			for x := 0; x < width; x++ {
				var r, g, b uint8
				if isRGBA {
					px := rgba.Pix[rgba.PixOffset(bounds.Min.X+x, bounds.Min.Y+y):]
					r, g, b = px[0], px[1], px[2]
				} else {
					c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
					r, g, b = c.R, c.G, c.B
				}
				out[x*3+rIdx] = r
				out[x*3+1] = g
				out[x*3+bIdx] = b
			}
		}
	case FormatY8:
		for y := 0; y < height; y++ {
			out := f.Data[y*f.Stride:]
			for x := 0; x < width; x++ {
				out[x] = color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray).Y
			}
		}
	}
	return f, nil
}
