package realsense

import "fmt"

// Option is a live-adjustable control exposed by a sensor.
type Option int

// Known sensor options.
const (
	OptionBacklightCompensation Option = iota
	OptionBrightness
	OptionContrast
	OptionExposure
	OptionGain
	OptionGamma
	OptionHue
	OptionSaturation
	OptionSharpness
	OptionWhiteBalance
	OptionEnableAutoExposure
	OptionEnableAutoWhiteBalance
)

var optionNames = map[Option]string{
	OptionBacklightCompensation:  "backlight_compensation",
	OptionBrightness:             "brightness",
	OptionContrast:               "contrast",
	OptionExposure:               "exposure",
	OptionGain:                   "gain",
	OptionGamma:                  "gamma",
	OptionHue:                    "hue",
	OptionSaturation:             "saturation",
	OptionSharpness:              "sharpness",
	OptionWhiteBalance:           "white_balance",
	OptionEnableAutoExposure:     "enable_auto_exposure",
	OptionEnableAutoWhiteBalance: "enable_auto_white_balance",
}

func (o Option) String() string {
	if name, ok := optionNames[o]; ok {
		return name
	}
	return fmt.Sprintf("option(%d)", int(o))
}

// OptionRange describes the accepted values of an option.
type OptionRange struct {
	Min     float32
	Max     float32
	Step    float32
	Default float32
}

// Contains reports whether v lies within the range.
func (r OptionRange) Contains(v float32) bool {
	return v >= r.Min && v <= r.Max
}
