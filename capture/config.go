package capture

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// Default stream geometry used when a config leaves it unset.
const (
	DefaultWidth   = 640
	DefaultHeight  = 480
	DefaultFPS     = 30
	DefaultBackend = "uvc"
)

// Config describes a capture session.
type Config struct {
	Backend       string `json:"backend,omitempty"`
	Serial        string `json:"serial_number,omitempty"`
	Width         int    `json:"width_px,omitempty"`
	Height        int    `json:"height_px,omitempty"`
	FPS           int    `json:"frame_rate,omitempty"`
	Depth         bool   `json:"depth,omitempty"`
	ReadTimeoutMs int    `json:"read_timeout_ms,omitempty"`
}

// Validate checks that the config attributes are usable for a capture session.
func (conf *Config) Validate(path string) ([]string, error) {
	if conf.Width < 0 {
		return nil, goutils.NewConfigValidationError(path, errors.Errorf("got illegal negative width_px (%d)", conf.Width))
	}
	if conf.Height < 0 {
		return nil, goutils.NewConfigValidationError(path, errors.Errorf("got illegal negative height_px (%d)", conf.Height))
	}
	if conf.FPS < 0 {
		return nil, goutils.NewConfigValidationError(path, errors.Errorf("got illegal negative frame_rate (%d)", conf.FPS))
	}
	if conf.ReadTimeoutMs < 0 {
		return nil, goutils.NewConfigValidationError(path,
			errors.Errorf("got illegal negative read_timeout_ms (%d)", conf.ReadTimeoutMs))
	}
	if (conf.Width == 0) != (conf.Height == 0) {
		return nil, goutils.NewConfigValidationError(path,
			errors.New("width_px and height_px must be set together"))
	}
	return nil, nil
}

// WithDefaults returns a copy of the config with unset fields filled in.
func (conf Config) WithDefaults() Config {
	if conf.Backend == "" {
		conf.Backend = DefaultBackend
	}
	if conf.Width == 0 {
		conf.Width = DefaultWidth
	}
	if conf.Height == 0 {
		conf.Height = DefaultHeight
	}
	if conf.FPS == 0 {
		conf.FPS = DefaultFPS
	}
	return conf
}

// ReadTimeout returns the configured bound on a single Read, or 0 for none.
func (conf *Config) ReadTimeout() time.Duration {
	return time.Duration(conf.ReadTimeoutMs) * time.Millisecond
}

// FromAttributes decodes a config from a generic attribute map, as found in JSON documents.
func FromAttributes(attrs map[string]interface{}) (*Config, error) {
	var conf Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &conf,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrap(err, "cannot decode capture config")
	}
	return &conf, nil
}

// ReadConfigFile reads a JSON config file, substituting environment variables first, and
// validates it.
func ReadConfigFile(path string) (*Config, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var attrs map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(buf))
	decoder.UseNumber()
	if err := decoder.Decode(&attrs); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config file %q", path)
	}
	conf, err := FromAttributes(attrs)
	if err != nil {
		return nil, err
	}
	if _, err := conf.Validate(path); err != nil {
		return nil, err
	}
	return conf, nil
}
