// Package capture adapts a realsense pipeline to the read/set/get/release/isOpened shape of a
// generic video capture.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/rscapture/logging"
	"go.viam.com/rscapture/realsense"
	"go.viam.com/rscapture/utils"
)

var (
	// ErrNotRunning is reported by operations on a released session.
	ErrNotRunning = errors.New("capture session is not running")
	// ErrNoColorFrame is reported by Read when the aligned frame set has no color frame.
	ErrNoColorFrame = errors.New("frame set has no color frame")
	// ErrUnsupportedProperty is reported by Get and Set for properties outside the dispatch table.
	ErrUnsupportedProperty = errors.New("property not supported")
)

// Session is an open capture session over one realsense pipeline. Read blocks until the device
// delivers a frame; concurrent Reads must be serialized by the caller. Release may be called from
// any goroutine and unblocks a pending Read.
type Session struct {
	id          string
	backendName string
	readTimeout time.Duration
	logger      logging.Logger

	mu       sync.Mutex
	pipeline realsense.Pipeline
	config   *realsense.Config
	align    realsense.Aligner
	sensor   realsense.Sensor
	device   realsense.Device
	serial   string
	width    int
	height   int
	fps      int
	depth    bool
	running  bool
}

// Open validates conf, looks its backend up in the realsense registry and opens a session on it.
func Open(ctx context.Context, conf Config, logger logging.Logger) (*Session, error) {
	if _, err := conf.Validate(""); err != nil {
		return nil, err
	}
	if conf.Backend == "" {
		conf.Backend = utils.GetBackend(DefaultBackend)
	}
	backend, err := realsense.LookupBackend(conf.Backend)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, backend, conf, logger)
	if err != nil {
		return nil, err
	}
	s.backendName = conf.Backend
	return s, nil
}

// New starts a pipeline from backend streaming either color (BGR8) or depth (Z16) at the
// configured geometry, and returns a running session. If anything fails after the pipeline
// started, the pipeline is stopped before returning.
func New(ctx context.Context, backend realsense.Backend, conf Config, logger logging.Logger) (*Session, error) {
	if _, err := conf.Validate(""); err != nil {
		return nil, err
	}
	conf = conf.WithDefaults()

	id := uuid.NewString()
	logger = logger.WithFields("session_id", id)

	cfg := realsense.NewConfig()
	if conf.Serial != "" {
		cfg.EnableDevice(conf.Serial)
	}
	if conf.Depth {
		cfg.EnableStream(realsense.StreamDepth, conf.Width, conf.Height, realsense.FormatZ16, conf.FPS)
	} else {
		cfg.EnableStream(realsense.StreamColor, conf.Width, conf.Height, realsense.FormatBGR8, conf.FPS)
	}

	pipeline := backend.NewPipeline()
	if err := pipeline.Start(ctx, cfg); err != nil {
		return nil, errors.Wrap(err, "cannot start pipeline")
	}
	guard := utils.NewGuard(func() {
		if err := pipeline.Stop(); err != nil {
			logger.Warnw("cannot stop pipeline after failed construction", "error", err)
		}
	})
	defer guard.OnFail()

	if !pipeline.IsStarted() {
		return nil, errors.New("pipeline could not be started")
	}
	profile, err := pipeline.ActiveProfile()
	if err != nil {
		return nil, errors.Wrap(err, "cannot get active profile")
	}
	device := profile.Device()
	if device == nil {
		return nil, errors.New("active profile has no device")
	}
	sensor, err := device.FirstColorSensor()
	if err != nil {
		return nil, errors.Wrap(err, "cannot get color sensor")
	}
	if sensor == nil {
		return nil, realsense.ErrNoColorSensor
	}

	s := &Session{
		id:          id,
		readTimeout: utils.GetReadTimeout(conf.ReadTimeout(), logger),
		logger:      logger,
		pipeline:    pipeline,
		config:      cfg,
		align:       realsense.NewAlign(realsense.StreamColor),
		sensor:      sensor,
		device:      device,
		serial:      conf.Serial,
		width:       conf.Width,
		height:      conf.Height,
		fps:         conf.FPS,
		depth:       conf.Depth,
		running:     true,
	}
	guard.Success()
	logger.Debugw("capture session opened",
		"device", device.Name(), "serial", device.Serial(), "stream", s.streamKind().String(),
		"width", s.width, "height", s.height, "fps", s.fps)
	return s, nil
}

func (s *Session) streamKind() realsense.Stream {
	if s.depth {
		return realsense.StreamDepth
	}
	return realsense.StreamColor
}

// IsOpened reports whether the session is running.
func (s *Session) IsOpened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Read waits for the next frame set, aligns it to the color stream and returns a copy of the
// color frame. Reading a released session fails without touching the pipeline. Errors and panics
// from the pipeline or the align processor are logged and returned as a failed result.
func (s *Session) Read(ctx context.Context) Result[*Frame] {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return failed[*Frame](ErrNotRunning)
	}
	pipeline, align := s.pipeline, s.align
	s.mu.Unlock()

	if s.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.readTimeout)
		defer cancel()
	}

	var colorFrame *realsense.VideoFrame
	err := protect(func() error {
		fs, err := pipeline.WaitForFrames(ctx)
		if err != nil {
			return errors.Wrap(err, "cannot wait for frames")
		}
		aligned, err := align.Process(fs)
		if err != nil {
			return errors.Wrap(err, "cannot align frames")
		}
		colorFrame = aligned.ColorFrame()
		return nil
	})
	if err != nil {
		if !s.IsOpened() {
			// Released while waiting.
			return failed[*Frame](ErrNotRunning)
		}
		s.logger.CErrorw(ctx, "read failed", "error", err)
		return failed[*Frame](err)
	}
	if colorFrame == nil {
		return failed[*Frame](ErrNoColorFrame)
	}
	frame, err := newFrame(colorFrame)
	if err != nil {
		err = errors.Wrap(err, "cannot copy color frame")
		s.logger.CErrorw(ctx, "read failed", "error", err)
		return failed[*Frame](err)
	}
	return succeeded(frame)
}

// Release stops the pipeline. Only the first call has an effect; later calls return nil.
func (s *Session) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	if err := s.pipeline.Stop(); err != nil {
		return errors.Wrap(err, "cannot stop pipeline")
	}
	s.logger.Debug("capture session released")
	return nil
}

// Set writes a property. Width, height and fps only update the cached value and the stream
// declared in the session's config; the running pipeline keeps its geometry.
func (s *Session) Set(prop Property, value float64) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return Status{Err: ErrNotRunning}
	}
	accessor, ok := properties[prop]
	if !ok {
		err := errors.Wrapf(ErrUnsupportedProperty, "cannot set %s", prop)
		s.logger.Errorw("property not supported", "property", int(prop))
		return Status{Err: err}
	}
	if err := protect(func() error { return accessor.set(s, value) }); err != nil {
		s.logger.Errorw("cannot set property", "property", prop.String(), "value", value, "error", err)
		return Status{Err: err}
	}
	return Status{}
}

// Get reads a property. Width, height and fps return the cached values; sensor options are read
// from the device.
func (s *Session) Get(prop Property) Result[float64] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return failed[float64](ErrNotRunning)
	}
	accessor, ok := properties[prop]
	if !ok {
		err := errors.Wrapf(ErrUnsupportedProperty, "cannot get %s", prop)
		s.logger.Errorw("property not supported", "property", int(prop))
		return failed[float64](err)
	}
	var value float64
	err := protect(func() error {
		var err error
		value, err = accessor.get(s)
		return err
	})
	if err != nil {
		s.logger.Errorw("cannot get property", "property", prop.String(), "error", err)
		return failed[float64](err)
	}
	return succeeded(value)
}

func (s *Session) redeclareColorStream() {
	s.config.EnableStream(realsense.StreamColor, s.width, s.height, realsense.FormatBGR8, s.fps)
}

// Description is a snapshot of a session's identity and cached stream settings.
type Description struct {
	ID          string
	Backend     string
	DeviceName  string
	Serial      string
	Stream      realsense.Stream
	Width       int
	Height      int
	FPS         int
	ReadTimeout time.Duration
	Running     bool
}

// Describe returns a snapshot of the session. Serial is the serial of the opened device, which
// may differ from the configured filter when none was given.
func (s *Session) Describe() Description {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := Description{
		ID:          s.id,
		Backend:     s.backendName,
		Serial:      s.serial,
		Stream:      s.streamKind(),
		Width:       s.width,
		Height:      s.height,
		FPS:         s.fps,
		ReadTimeout: s.readTimeout,
		Running:     s.running,
	}
	if err := protect(func() error {
		d.DeviceName = s.device.Name()
		if serial := s.device.Serial(); serial != "" {
			d.Serial = serial
		}
		return nil
	}); err != nil {
		s.logger.Debugw("cannot describe device", "error", err)
	}
	return d
}

// protect runs fn, converting a panic into an error.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rErr, ok := r.(error); ok {
				err = errors.Wrap(rErr, "recovered from panic")
				return
			}
			err = errors.Errorf("recovered from panic: %v", r)
		}
	}()
	return fn()
}
