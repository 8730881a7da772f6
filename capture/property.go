package capture

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/rscapture/realsense"
)

// Property identifies a capture property. Values are the generic video-capture property ids, so
// callers holding those ids can convert them directly.
type Property int

// The supported properties.
const (
	FrameWidth        Property = 3
	FrameHeight       Property = 4
	FPS               Property = 5
	Exposure          Property = 15
	WhiteBalanceBlueU Property = 17
	AutoExposure      Property = 21
	AutoWB            Property = 44
)

var propertyNames = map[Property]string{
	FrameWidth:        "width",
	FrameHeight:       "height",
	FPS:               "fps",
	Exposure:          "exposure",
	WhiteBalanceBlueU: "wb_blue",
	AutoExposure:      "auto_exposure",
	AutoWB:            "auto_wb",
}

func (p Property) String() string {
	if name, ok := propertyNames[p]; ok {
		return name
	}
	return "property(" + strconv.Itoa(int(p)) + ")"
}

// ParseProperty accepts a property name ("width", "auto_exposure", ...) or a numeric id.
// Numeric ids are returned even when unsupported so Get and Set can report them.
func ParseProperty(s string) (Property, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for p, n := range propertyNames {
		if n == name {
			return p, nil
		}
	}
	id, err := strconv.Atoi(name)
	if err != nil {
		return 0, errors.Errorf("unknown property %q", s)
	}
	return Property(id), nil
}

// propertyAccessor reads and writes one property of a running session. Callers hold the session
// lock.
type propertyAccessor struct {
	get func(s *Session) (float64, error)
	set func(s *Session, value float64) error
}

func geometryAccessor(field func(s *Session) *int) propertyAccessor {
	return propertyAccessor{
		get: func(s *Session) (float64, error) {
			return float64(*field(s)), nil
		},
		set: func(s *Session, value float64) error {
			if math.IsNaN(value) || math.IsInf(value, 0) || value < math.MinInt32 || value > math.MaxInt32 {
				return errors.Errorf("%v is not a representable integer", value)
			}
			*field(s) = int(value)
			s.redeclareColorStream()
			return nil
		},
	}
}

// optionAccessor forwards to a sensor option. Options the sensor does not expose, and values
// outside the option's range, fail without writing to the sensor.
func optionAccessor(opt realsense.Option, boolean bool) propertyAccessor {
	return propertyAccessor{
		get: func(s *Session) (float64, error) {
			if !s.sensor.Supports(opt) {
				return 0, realsense.NewOptionNotSupportedError(opt)
			}
			v, err := s.sensor.GetOption(opt)
			if err != nil {
				return 0, err
			}
			return float64(v), nil
		},
		set: func(s *Session, value float64) error {
			v := float32(value)
			if boolean {
				v = 0
				if value != 0 {
					v = 1
				}
			}
			if !s.sensor.Supports(opt) {
				return realsense.NewOptionNotSupportedError(opt)
			}
			r, err := s.sensor.OptionRange(opt)
			if err != nil {
				return err
			}
			if !r.Contains(v) {
				return realsense.NewOptionOutOfRangeError(opt, v, r)
			}
			return s.sensor.SetOption(opt, v)
		},
	}
}

var properties = map[Property]propertyAccessor{
	FrameWidth:        geometryAccessor(func(s *Session) *int { return &s.width }),
	FrameHeight:       geometryAccessor(func(s *Session) *int { return &s.height }),
	FPS:               geometryAccessor(func(s *Session) *int { return &s.fps }),
	AutoExposure:      optionAccessor(realsense.OptionEnableAutoExposure, true),
	Exposure:          optionAccessor(realsense.OptionExposure, false),
	AutoWB:            optionAccessor(realsense.OptionEnableAutoWhiteBalance, true),
	WhiteBalanceBlueU: optionAccessor(realsense.OptionWhiteBalance, false),
}

// SupportedProperties returns every property Get and Set accept, in ascending id order.
func SupportedProperties() []Property {
	props := lo.Keys(properties)
	sort.Slice(props, func(i, j int) bool { return props[i] < props[j] })
	return props
}
