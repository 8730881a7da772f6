// Package realsense describes the surface of the depth-camera SDK that capture sessions drive:
// stream/device requests, pipelines, frame sets, sensors with live options, and the align
// processor. Backends (see the fake and uvc subpackages) implement it.
package realsense

import "fmt"

// Stream identifies one sensor stream of a device.
type Stream int

// The streams a device can produce.
const (
	StreamAny Stream = iota
	StreamDepth
	StreamColor
	StreamInfrared
)

func (s Stream) String() string {
	switch s {
	case StreamAny:
		return "any"
	case StreamDepth:
		return "depth"
	case StreamColor:
		return "color"
	case StreamInfrared:
		return "infrared"
	default:
		return fmt.Sprintf("stream(%d)", int(s))
	}
}

// Format is the pixel layout of a video frame.
type Format int

// Supported pixel formats.
const (
	FormatAny Format = iota
	// FormatZ16 is one little-endian uint16 depth sample per pixel.
	FormatZ16
	// FormatBGR8 is three bytes per pixel, blue first.
	FormatBGR8
	// FormatRGB8 is three bytes per pixel, red first.
	FormatRGB8
	// FormatY8 is one byte of luminance per pixel.
	FormatY8
)

func (f Format) String() string {
	switch f {
	case FormatAny:
		return "any"
	case FormatZ16:
		return "z16"
	case FormatBGR8:
		return "bgr8"
	case FormatRGB8:
		return "rgb8"
	case FormatY8:
		return "y8"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// BytesPerPixel returns the size of one pixel in the format, or 0 for FormatAny.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatZ16:
		return 2
	case FormatBGR8, FormatRGB8:
		return 3
	case FormatY8:
		return 1
	default:
		return 0
	}
}

// Channels returns the number of samples per pixel.
func (f Format) Channels() int {
	switch f {
	case FormatBGR8, FormatRGB8:
		return 3
	case FormatZ16, FormatY8:
		return 1
	default:
		return 0
	}
}
