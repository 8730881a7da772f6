package inject

import (
	"go.viam.com/rscapture/realsense"
)

// Sensor is an injected sensor.
type Sensor struct {
	realsense.Sensor
	SupportsFunc    func(opt realsense.Option) bool
	GetOptionFunc   func(opt realsense.Option) (float32, error)
	SetOptionFunc   func(opt realsense.Option, value float32) error
	OptionRangeFunc func(opt realsense.Option) (realsense.OptionRange, error)
}

// Supports calls the injected Supports or the real version.
func (s *Sensor) Supports(opt realsense.Option) bool {
	if s.SupportsFunc == nil {
		return s.Sensor.Supports(opt)
	}
	return s.SupportsFunc(opt)
}

// GetOption calls the injected GetOption or the real version.
func (s *Sensor) GetOption(opt realsense.Option) (float32, error) {
	if s.GetOptionFunc == nil {
		return s.Sensor.GetOption(opt)
	}
	return s.GetOptionFunc(opt)
}

// SetOption calls the injected SetOption or the real version.
func (s *Sensor) SetOption(opt realsense.Option, value float32) error {
	if s.SetOptionFunc == nil {
		return s.Sensor.SetOption(opt, value)
	}
	return s.SetOptionFunc(opt, value)
}

// OptionRange calls the injected OptionRange or the real version.
func (s *Sensor) OptionRange(opt realsense.Option) (realsense.OptionRange, error) {
	if s.OptionRangeFunc == nil {
		return s.Sensor.OptionRange(opt)
	}
	return s.OptionRangeFunc(opt)
}

// Device is an injected device.
type Device struct {
	realsense.Device
	NameFunc             func() string
	SerialFunc           func() string
	FirstColorSensorFunc func() (realsense.Sensor, error)
}

// Name calls the injected Name or the real version.
func (d *Device) Name() string {
	if d.NameFunc == nil {
		return d.Device.Name()
	}
	return d.NameFunc()
}

// Serial calls the injected Serial or the real version.
func (d *Device) Serial() string {
	if d.SerialFunc == nil {
		return d.Device.Serial()
	}
	return d.SerialFunc()
}

// FirstColorSensor calls the injected FirstColorSensor or the real version.
func (d *Device) FirstColorSensor() (realsense.Sensor, error) {
	if d.FirstColorSensorFunc == nil {
		return d.Device.FirstColorSensor()
	}
	return d.FirstColorSensorFunc()
}

// Profile is an injected stream profile.
type Profile struct {
	realsense.Profile
	DeviceFunc  func() realsense.Device
	StreamsFunc func() []realsense.StreamRequest
}

// Device calls the injected Device or the real version.
func (p *Profile) Device() realsense.Device {
	if p.DeviceFunc == nil {
		return p.Profile.Device()
	}
	return p.DeviceFunc()
}

// Streams calls the injected Streams or the real version.
func (p *Profile) Streams() []realsense.StreamRequest {
	if p.StreamsFunc == nil {
		return p.Profile.Streams()
	}
	return p.StreamsFunc()
}

// Aligner is an injected aligner.
type Aligner struct {
	realsense.Aligner
	ProcessFunc func(fs *realsense.FrameSet) (*realsense.FrameSet, error)
}

// Process calls the injected Process or the real version.
func (a *Aligner) Process(fs *realsense.FrameSet) (*realsense.FrameSet, error) {
	if a.ProcessFunc == nil {
		return a.Aligner.Process(fs)
	}
	return a.ProcessFunc(fs)
}
