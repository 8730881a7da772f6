package fake

import (
	"sync"

	"go.viam.com/rscapture/realsense"
)

// Ranges of the RGB sensor options, taken from a D435.
var optionRanges = map[realsense.Option]realsense.OptionRange{
	realsense.OptionBacklightCompensation:  {Min: 0, Max: 1, Step: 1, Default: 0},
	realsense.OptionBrightness:             {Min: -64, Max: 64, Step: 1, Default: 0},
	realsense.OptionContrast:               {Min: 0, Max: 100, Step: 1, Default: 50},
	realsense.OptionExposure:               {Min: 1, Max: 10000, Step: 1, Default: 156},
	realsense.OptionGain:                   {Min: 0, Max: 128, Step: 1, Default: 64},
	realsense.OptionGamma:                  {Min: 100, Max: 500, Step: 1, Default: 300},
	realsense.OptionHue:                    {Min: -180, Max: 180, Step: 1, Default: 0},
	realsense.OptionSaturation:             {Min: 0, Max: 100, Step: 1, Default: 64},
	realsense.OptionSharpness:              {Min: 0, Max: 100, Step: 1, Default: 50},
	realsense.OptionWhiteBalance:           {Min: 2800, Max: 6500, Step: 10, Default: 4600},
	realsense.OptionEnableAutoExposure:     {Min: 0, Max: 1, Step: 1, Default: 1},
	realsense.OptionEnableAutoWhiteBalance: {Min: 0, Max: 1, Step: 1, Default: 1},
}

// Sensor is an in-memory RGB sensor. Options start at their defaults and only change when
// written.
type Sensor struct {
	mu     sync.Mutex
	values map[realsense.Option]float32
}

func newSensor() *Sensor {
	s := &Sensor{values: make(map[realsense.Option]float32, len(optionRanges))}
	for opt, r := range optionRanges {
		s.values[opt] = r.Default
	}
	return s
}

// Supports reports whether the sensor exposes the option.
func (s *Sensor) Supports(opt realsense.Option) bool {
	_, ok := optionRanges[opt]
	return ok
}

// GetOption returns the current value of an option.
func (s *Sensor) GetOption(opt realsense.Option) (float32, error) {
	if !s.Supports(opt) {
		return 0, realsense.NewOptionNotSupportedError(opt)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[opt], nil
}

// SetOption writes an option after checking it against the option's range.
func (s *Sensor) SetOption(opt realsense.Option, value float32) error {
	r, err := s.OptionRange(opt)
	if err != nil {
		return err
	}
	if !r.Contains(value) {
		return realsense.NewOptionOutOfRangeError(opt, value, r)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[opt] = value
	return nil
}

// OptionRange returns the accepted values of an option.
func (s *Sensor) OptionRange(opt realsense.Option) (realsense.OptionRange, error) {
	r, ok := optionRanges[opt]
	if !ok {
		return realsense.OptionRange{}, realsense.NewOptionNotSupportedError(opt)
	}
	return r, nil
}
