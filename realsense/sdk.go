package realsense

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Pipeline is a streaming session with one device.
type Pipeline interface {
	// Start opens the device selected by the config and begins streaming the requested streams.
	Start(ctx context.Context, cfg *Config) error
	// IsStarted reports whether the pipeline is streaming.
	IsStarted() bool
	// WaitForFrames blocks until the next frame set is available or ctx is done.
	WaitForFrames(ctx context.Context) (*FrameSet, error)
	// ActiveProfile returns the profile the pipeline was started with.
	ActiveProfile() (Profile, error)
	// Stop ends streaming and releases the device.
	Stop() error
}

// Profile is the resolved device and streams of a started pipeline.
type Profile interface {
	Device() Device
	Streams() []StreamRequest
}

// Device is a physical camera.
type Device interface {
	Name() string
	Serial() string
	// FirstColorSensor returns the sensor that produces the color stream.
	FirstColorSensor() (Sensor, error)
}

// Sensor exposes the live options of one sensor of a device.
type Sensor interface {
	Supports(opt Option) bool
	GetOption(opt Option) (float32, error)
	SetOption(opt Option, value float32) error
	OptionRange(opt Option) (OptionRange, error)
}

// Aligner reprojects the frames of a frame set into the viewpoint of one stream.
type Aligner interface {
	Process(fs *FrameSet) (*FrameSet, error)
}

// Backend creates pipelines for one family of devices.
type Backend interface {
	NewPipeline() Pipeline
}

// BackendFunc adapts a function to a Backend.
type BackendFunc func() Pipeline

// NewPipeline calls f.
func (f BackendFunc) NewPipeline() Pipeline {
	return f()
}

var (
	backendsMu sync.RWMutex
	backends   = map[string]Backend{}
)

// RegisterBackend registers a backend under a name. It panics if the name is taken, as
// registration happens from init functions.
func RegisterBackend(name string, backend Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, ok := backends[name]; ok {
		panic(errors.Errorf("realsense backend %q already registered", name))
	}
	backends[name] = backend
}

// LookupBackend returns the backend registered under name.
func LookupBackend(name string) (Backend, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	backend, ok := backends[name]
	if !ok {
		return nil, errors.Errorf("no realsense backend named %q (registered: %v)", name, registeredBackendsLocked())
	}
	return backend, nil
}

// RegisteredBackends returns the sorted names of all registered backends.
func RegisteredBackends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	return registeredBackendsLocked()
}

func registeredBackendsLocked() []string {
	names := lo.Keys(backends)
	sort.Strings(names)
	return names
}
