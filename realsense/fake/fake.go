// Package fake implements a synthetic depth camera backend which produces deterministic color and
// depth frames at the requested resolution and frame rate.
package fake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/rscapture/realsense"
)

const (
	// BackendName is the name the fake backend is registered under.
	BackendName = "fake"
	// DefaultSerial is the serial number of the device the registered backend exposes.
	DefaultSerial = "000000000000"

	deviceName = "Intel RealSense D435 (fake)"
)

func init() {
	realsense.RegisterBackend(BackendName, NewBackend(clock.New(), DefaultSerial))
}

// Backend is a set of fake devices. Sensor options are kept per device, so values written
// through one pipeline are visible to later pipelines on the same device.
type Backend struct {
	clock   clock.Clock
	devices map[string]*Device
	serials []string
}

// NewBackend returns a backend exposing one fake device per serial number. Frames are paced
// with the given clock.
func NewBackend(clk clock.Clock, serials ...string) *Backend {
	b := &Backend{clock: clk, devices: map[string]*Device{}}
	for _, serial := range serials {
		b.devices[serial] = &Device{serial: serial, sensor: newSensor()}
		b.serials = append(b.serials, serial)
	}
	sort.Strings(b.serials)
	return b
}

// NewPipeline returns an unstarted pipeline over the backend's devices.
func (b *Backend) NewPipeline() realsense.Pipeline {
	return &Pipeline{backend: b, clock: b.clock}
}

// Device returns the fake device with the given serial number.
func (b *Backend) Device(serial string) (*Device, bool) {
	d, ok := b.devices[serial]
	return d, ok
}

func (b *Backend) findDevice(serial string) (*Device, error) {
	if serial == "" {
		if len(b.serials) == 0 {
			return nil, realsense.ErrDeviceNotFound
		}
		return b.devices[b.serials[0]], nil
	}
	d, ok := b.devices[serial]
	if !ok {
		return nil, errors.Wrapf(realsense.ErrDeviceNotFound, "serial %q", serial)
	}
	return d, nil
}

// Device is a fake camera.
type Device struct {
	serial string
	sensor *Sensor
}

// Name returns the product name of the device.
func (d *Device) Name() string {
	return deviceName
}

// Serial returns the serial number of the device.
func (d *Device) Serial() string {
	return d.serial
}

// FirstColorSensor returns the RGB sensor of the device.
func (d *Device) FirstColorSensor() (realsense.Sensor, error) {
	return d.sensor, nil
}

// Sensor returns the concrete RGB sensor of the device.
func (d *Device) Sensor() *Sensor {
	return d.sensor
}

type profile struct {
	device  *Device
	streams []realsense.StreamRequest
}

func (p *profile) Device() realsense.Device {
	return p.device
}

func (p *profile) Streams() []realsense.StreamRequest {
	return p.streams
}

// Pipeline streams synthetic frames from a fake device.
type Pipeline struct {
	backend *Backend
	clock   clock.Clock

	mu      sync.Mutex
	started bool
	stopped chan struct{}
	profile *profile
	period  time.Duration
	next    time.Time

	frameNumber atomic.Uint64
	waits       atomic.Int64
}

// Start validates the config against the fake device and starts streaming.
func (p *Pipeline) Start(ctx context.Context, cfg *realsense.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return realsense.ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	streams := cfg.Streams()
	if len(streams) == 0 {
		return realsense.ErrNoStreams
	}
	maxFPS := 0
	for _, req := range streams {
		if err := validateRequest(req); err != nil {
			return err
		}
		if req.FPS > maxFPS {
			maxFPS = req.FPS
		}
	}
	device, err := p.backend.findDevice(cfg.Serial())
	if err != nil {
		return err
	}

	p.profile = &profile{device: device, streams: streams}
	p.period = time.Second / time.Duration(maxFPS)
	p.next = p.clock.Now()
	p.stopped = make(chan struct{})
	p.started = true
	return nil
}

func validateRequest(req realsense.StreamRequest) error {
	if req.Width <= 0 || req.Height <= 0 || req.FPS <= 0 {
		return errors.Errorf("unsupported stream request %s", req)
	}
	switch req.Stream {
	case realsense.StreamColor:
		if req.Format != realsense.FormatBGR8 && req.Format != realsense.FormatRGB8 {
			return errors.Errorf("color stream does not support format %s", req.Format)
		}
	case realsense.StreamDepth:
		if req.Format != realsense.FormatZ16 {
			return errors.Errorf("depth stream does not support format %s", req.Format)
		}
	case realsense.StreamAny, realsense.StreamInfrared:
		return errors.Errorf("fake device has no %s stream", req.Stream)
	}
	return nil
}

// IsStarted reports whether the pipeline is streaming.
func (p *Pipeline) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// ActiveProfile returns the device and streams the pipeline was started with.
func (p *Pipeline) ActiveProfile() (realsense.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil, realsense.ErrNotStarted
	}
	return p.profile, nil
}

// WaitForFrames returns the next frame set once its frame period has elapsed on the pipeline's
// clock.
func (p *Pipeline) WaitForFrames(ctx context.Context) (*realsense.FrameSet, error) {
	p.waits.Inc()
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil, realsense.ErrNotStarted
	}
	stopped := p.stopped
	wait := p.next.Sub(p.clock.Now())
	p.mu.Unlock()

	if wait > 0 {
		timer := p.clock.Timer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-stopped:
			return nil, realsense.ErrNotStarted
		case <-timer.C:
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil, realsense.ErrNotStarted
	}
	now := p.clock.Now()
	if p.next.Before(now) {
		p.next = now
	}
	p.next = p.next.Add(p.period)

	number := p.frameNumber.Inc()
	fs := &realsense.FrameSet{Timestamp: now}
	for _, req := range p.profile.streams {
		fs.Frames = append(fs.Frames, renderFrame(req, number, now))
	}
	return fs, nil
}

// Stop ends streaming. Any pending WaitForFrames returns ErrNotStarted.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return realsense.ErrNotStarted
	}
	p.started = false
	close(p.stopped)
	return nil
}

// FramesDelivered returns the number of frame sets the pipeline has produced.
func (p *Pipeline) FramesDelivered() uint64 {
	return p.frameNumber.Load()
}

// WaitCalls returns the number of WaitForFrames calls made on the pipeline.
func (p *Pipeline) WaitCalls() int64 {
	return p.waits.Load()
}
