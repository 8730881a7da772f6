package realsense

import (
	"fmt"
	"sort"
)

// StreamRequest is one stream enabled on a Config.
type StreamRequest struct {
	Stream Stream
	Width  int
	Height int
	Format Format
	FPS    int
}

func (r StreamRequest) String() string {
	return fmt.Sprintf("%s %dx%d %s@%d", r.Stream, r.Width, r.Height, r.Format, r.FPS)
}

// Config collects the device and stream requests a pipeline is started with. Mutating a Config
// after the pipeline has been started with it has no effect on the running pipeline.
type Config struct {
	serial  string
	streams map[Stream]StreamRequest
}

// NewConfig returns an empty Config.
func NewConfig() *Config {
	return &Config{streams: map[Stream]StreamRequest{}}
}

// EnableDevice restricts the pipeline to the device with the given serial number.
func (c *Config) EnableDevice(serial string) {
	c.serial = serial
}

// EnableStream requests a stream. Enabling a stream that is already enabled replaces the
// earlier request.
func (c *Config) EnableStream(stream Stream, width, height int, format Format, fps int) {
	c.streams[stream] = StreamRequest{
		Stream: stream,
		Width:  width,
		Height: height,
		Format: format,
		FPS:    fps,
	}
}

// DisableStream removes a stream request.
func (c *Config) DisableStream(stream Stream) {
	delete(c.streams, stream)
}

// Serial returns the requested device serial; empty means any device.
func (c *Config) Serial() string {
	return c.serial
}

// Stream returns the request for a stream, if any.
func (c *Config) Stream(stream Stream) (StreamRequest, bool) {
	req, ok := c.streams[stream]
	return req, ok
}

// Streams returns all stream requests ordered by stream.
func (c *Config) Streams() []StreamRequest {
	reqs := make([]StreamRequest, 0, len(c.streams))
	for _, req := range c.streams {
		reqs = append(reqs, req)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].Stream < reqs[j].Stream })
	return reqs
}

// Clone returns a copy of the config that does not share state with c.
func (c *Config) Clone() *Config {
	clone := NewConfig()
	clone.serial = c.serial
	for k, v := range c.streams {
		clone.streams[k] = v
	}
	return clone
}
