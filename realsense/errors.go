package realsense

import "github.com/pkg/errors"

var (
	// ErrNotStarted is returned by pipeline calls that need a started pipeline.
	ErrNotStarted = errors.New("pipeline not started")
	// ErrAlreadyStarted is returned when starting a pipeline twice.
	ErrAlreadyStarted = errors.New("pipeline already started")
	// ErrDeviceNotFound is returned when no connected device matches the config.
	ErrDeviceNotFound = errors.New("no device connected matching the requested serial number")
	// ErrNoStreams is returned when a pipeline is started with a config that enables nothing.
	ErrNoStreams = errors.New("config does not enable any stream")
	// ErrOptionNotSupported is returned by sensors for options they do not expose.
	ErrOptionNotSupported = errors.New("option not supported by sensor")
	// ErrNoColorSensor is returned when a device has no color sensor.
	ErrNoColorSensor = errors.New("device has no color sensor")
)

// NewOptionNotSupportedError wraps ErrOptionNotSupported with the offending option.
func NewOptionNotSupportedError(opt Option) error {
	return errors.Wrapf(ErrOptionNotSupported, "option %q", opt)
}

// NewOptionOutOfRangeError is returned when writing a value outside an option's range.
func NewOptionOutOfRangeError(opt Option, value float32, r OptionRange) error {
	return errors.Errorf("value %v for option %q out of range [%v, %v]", value, opt, r.Min, r.Max)
}
