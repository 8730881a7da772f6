package capture

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"

	"go.viam.com/rscapture/logging"
	"go.viam.com/rscapture/realsense"
	"go.viam.com/rscapture/realsense/fake"
	"go.viam.com/rscapture/testutils/inject"
)

// injectedSDK is a pipeline double over a recorded sensor. Frame sets returned by WaitForFrames
// come from next.
type injectedSDK struct {
	backend  *inject.Backend
	pipeline *inject.Pipeline
	sensor   *inject.Sensor

	next func(ctx context.Context) (*realsense.FrameSet, error)

	startCfg    *realsense.Config
	starts      int
	stops       int
	waits       int
	sensorCalls int
	options     map[realsense.Option]float32
	ranges      map[realsense.Option]realsense.OptionRange
}

func newInjectedSDK() *injectedSDK {
	sdk := &injectedSDK{options: map[realsense.Option]float32{
		realsense.OptionEnableAutoExposure:     1,
		realsense.OptionExposure:               156,
		realsense.OptionEnableAutoWhiteBalance: 1,
		realsense.OptionWhiteBalance:           4600,
	}}
	sdk.ranges = map[realsense.Option]realsense.OptionRange{
		realsense.OptionEnableAutoExposure:     {Min: 0, Max: 1, Step: 1, Default: 1},
		realsense.OptionExposure:               {Min: 1, Max: 10000, Step: 1, Default: 156},
		realsense.OptionEnableAutoWhiteBalance: {Min: 0, Max: 1, Step: 1, Default: 1},
		realsense.OptionWhiteBalance:           {Min: 2800, Max: 6500, Step: 10, Default: 4600},
	}
	started := false

	sdk.sensor = &inject.Sensor{}
	sdk.sensor.SupportsFunc = func(opt realsense.Option) bool {
		_, ok := sdk.options[opt]
		return ok
	}
	sdk.sensor.OptionRangeFunc = func(opt realsense.Option) (realsense.OptionRange, error) {
		r, ok := sdk.ranges[opt]
		if !ok {
			return realsense.OptionRange{}, realsense.NewOptionNotSupportedError(opt)
		}
		return r, nil
	}
	sdk.sensor.GetOptionFunc = func(opt realsense.Option) (float32, error) {
		sdk.sensorCalls++
		v, ok := sdk.options[opt]
		if !ok {
			return 0, realsense.NewOptionNotSupportedError(opt)
		}
		return v, nil
	}
	sdk.sensor.SetOptionFunc = func(opt realsense.Option, value float32) error {
		sdk.sensorCalls++
		if _, ok := sdk.options[opt]; !ok {
			return realsense.NewOptionNotSupportedError(opt)
		}
		sdk.options[opt] = value
		return nil
	}

	device := &inject.Device{
		NameFunc:             func() string { return "injected" },
		SerialFunc:           func() string { return "123456789012" },
		FirstColorSensorFunc: func() (realsense.Sensor, error) { return sdk.sensor, nil },
	}
	sdk.pipeline = &inject.Pipeline{
		StartFunc: func(ctx context.Context, cfg *realsense.Config) error {
			sdk.starts++
			sdk.startCfg = cfg.Clone()
			started = true
			return nil
		},
		IsStartedFunc: func() bool { return started },
		WaitForFramesFunc: func(ctx context.Context) (*realsense.FrameSet, error) {
			sdk.waits++
			return sdk.next(ctx)
		},
		ActiveProfileFunc: func() (realsense.Profile, error) {
			return &inject.Profile{
				DeviceFunc:  func() realsense.Device { return device },
				StreamsFunc: func() []realsense.StreamRequest { return sdk.startCfg.Streams() },
			}, nil
		},
		StopFunc: func() error {
			sdk.stops++
			started = false
			return nil
		},
	}
	sdk.backend = &inject.Backend{NewPipelineFunc: func() realsense.Pipeline { return sdk.pipeline }}
	sdk.next = func(ctx context.Context) (*realsense.FrameSet, error) {
		return &realsense.FrameSet{}, nil
	}
	return sdk
}

func colorFrame(width, height, padding int, number uint64) *realsense.VideoFrame {
	stride := width*3 + padding
	data := make([]byte, stride*height)
	//nolint:gosec
	rand.New(rand.NewSource(int64(number))).Read(data)
	return &realsense.VideoFrame{
		Stream: realsense.StreamColor,
		Format: realsense.FormatBGR8,
		Width:  width,
		Height: height,
		Stride: stride,
		Number: number,
		Data:   data,
	}
}

func TestNewFailsWithoutRunningPipeline(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("start error", func(t *testing.T) {
		sdk := newInjectedSDK()
		sdk.pipeline.StartFunc = func(ctx context.Context, cfg *realsense.Config) error {
			return errors.New("usb busy")
		}
		s, err := New(context.Background(), sdk.backend, Config{}, logger)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "usb busy")
		test.That(t, s, test.ShouldBeNil)
		test.That(t, sdk.stops, test.ShouldEqual, 0)
	})

	t.Run("not started after start", func(t *testing.T) {
		sdk := newInjectedSDK()
		sdk.pipeline.IsStartedFunc = func() bool { return false }
		s, err := New(context.Background(), sdk.backend, Config{}, logger)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, s, test.ShouldBeNil)
		test.That(t, sdk.stops, test.ShouldEqual, 1)
	})

	t.Run("no active profile", func(t *testing.T) {
		sdk := newInjectedSDK()
		sdk.pipeline.ActiveProfileFunc = func() (realsense.Profile, error) {
			return nil, realsense.ErrNotStarted
		}
		s, err := New(context.Background(), sdk.backend, Config{}, logger)
		test.That(t, errors.Is(err, realsense.ErrNotStarted), test.ShouldBeTrue)
		test.That(t, s, test.ShouldBeNil)
		test.That(t, sdk.stops, test.ShouldEqual, 1)
	})

	t.Run("no color sensor", func(t *testing.T) {
		sdk := newInjectedSDK()
		sdk.pipeline.ActiveProfileFunc = func() (realsense.Profile, error) {
			return &inject.Profile{DeviceFunc: func() realsense.Device {
				return &inject.Device{FirstColorSensorFunc: func() (realsense.Sensor, error) {
					return nil, realsense.ErrNoColorSensor
				}}
			}}, nil
		}
		s, err := New(context.Background(), sdk.backend, Config{}, logger)
		test.That(t, errors.Is(err, realsense.ErrNoColorSensor), test.ShouldBeTrue)
		test.That(t, s, test.ShouldBeNil)
		test.That(t, sdk.stops, test.ShouldEqual, 1)
	})

	t.Run("invalid config", func(t *testing.T) {
		sdk := newInjectedSDK()
		s, err := New(context.Background(), sdk.backend, Config{Width: -1, Height: 480}, logger)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, s, test.ShouldBeNil)
		test.That(t, sdk.starts, test.ShouldEqual, 0)
	})
}

func TestNewDeclaresSingleStream(t *testing.T) {
	logger := logging.NewTestLogger(t)

	sdk := newInjectedSDK()
	s, err := New(context.Background(), sdk.backend, Config{Serial: "123456789012"}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sdk.startCfg.Serial(), test.ShouldEqual, "123456789012")
	test.That(t, sdk.startCfg.Streams(), test.ShouldResemble, []realsense.StreamRequest{
		{Stream: realsense.StreamColor, Width: 640, Height: 480, Format: realsense.FormatBGR8, FPS: 30},
	})
	test.That(t, s.Release(), test.ShouldBeNil)

	sdk = newInjectedSDK()
	s, err = New(context.Background(), sdk.backend, Config{Width: 848, Height: 480, FPS: 15, Depth: true}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sdk.startCfg.Serial(), test.ShouldEqual, "")
	test.That(t, sdk.startCfg.Streams(), test.ShouldResemble, []realsense.StreamRequest{
		{Stream: realsense.StreamDepth, Width: 848, Height: 480, Format: realsense.FormatZ16, FPS: 15},
	})
	d := s.Describe()
	test.That(t, d.Stream, test.ShouldEqual, realsense.StreamDepth)
	test.That(t, d.Serial, test.ShouldEqual, "123456789012")
	test.That(t, d.DeviceName, test.ShouldEqual, "injected")
	test.That(t, d.Running, test.ShouldBeTrue)
	test.That(t, s.Release(), test.ShouldBeNil)
}

func TestReleaseLifecycle(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	sdk := newInjectedSDK()
	sdk.next = func(ctx context.Context) (*realsense.FrameSet, error) {
		return &realsense.FrameSet{Frames: []*realsense.VideoFrame{colorFrame(640, 480, 0, 1)}}, nil
	}

	s, err := New(context.Background(), sdk.backend, Config{}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.IsOpened(), test.ShouldBeTrue)
	test.That(t, s.Read(context.Background()).OK(), test.ShouldBeTrue)
	test.That(t, sdk.waits, test.ShouldEqual, 1)

	test.That(t, s.Release(), test.ShouldBeNil)
	test.That(t, s.IsOpened(), test.ShouldBeFalse)
	test.That(t, sdk.stops, test.ShouldEqual, 1)

	res := s.Read(context.Background())
	frame, ok := res.Unpack()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, frame, test.ShouldBeNil)
	test.That(t, res.Err, test.ShouldBeError, ErrNotRunning)
	test.That(t, sdk.waits, test.ShouldEqual, 1)

	test.That(t, s.Set(Exposure, 100).Err, test.ShouldBeError, ErrNotRunning)
	test.That(t, s.Get(FrameWidth).Err, test.ShouldBeError, ErrNotRunning)
	test.That(t, sdk.sensorCalls, test.ShouldEqual, 0)

	test.That(t, s.Release(), test.ShouldBeNil)
	test.That(t, sdk.stops, test.ShouldEqual, 1)
	test.That(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len(), test.ShouldEqual, 0)
}

func TestReadWithoutColorFrame(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	sdk := newInjectedSDK()
	sdk.next = func(ctx context.Context) (*realsense.FrameSet, error) {
		return &realsense.FrameSet{Frames: []*realsense.VideoFrame{{
			Stream: realsense.StreamDepth,
			Format: realsense.FormatZ16,
			Width:  2,
			Height: 2,
			Stride: 4,
			Data:   make([]byte, 8),
		}}}, nil
	}

	s, err := New(context.Background(), sdk.backend, Config{}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, s.Release(), test.ShouldBeNil)
	}()

	frame, ok := s.Read(context.Background()).Unpack()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, frame, test.ShouldBeNil)
	test.That(t, s.Read(context.Background()).Err, test.ShouldBeError, ErrNoColorFrame)
	test.That(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len(), test.ShouldEqual, 0)
}

func TestReadCopiesColorFrame(t *testing.T) {
	logger := logging.NewTestLogger(t)
	for _, padding := range []int{0, 16} {
		sdk := newInjectedSDK()
		src := colorFrame(640, 480, padding, 42)
		sdk.next = func(ctx context.Context) (*realsense.FrameSet, error) {
			return &realsense.FrameSet{Frames: []*realsense.VideoFrame{src}}, nil
		}

		s, err := New(context.Background(), sdk.backend, Config{}, logger)
		test.That(t, err, test.ShouldBeNil)

		frame, ok := s.Read(context.Background()).Unpack()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, frame.Rows, test.ShouldEqual, 480)
		test.That(t, frame.Cols, test.ShouldEqual, 640)
		test.That(t, frame.Channels, test.ShouldEqual, 3)
		test.That(t, frame.ElemSize, test.ShouldEqual, 1)
		test.That(t, frame.Number, test.ShouldEqual, uint64(42))
		test.That(t, len(frame.Data), test.ShouldEqual, 640*480*3)
		for y := 0; y < src.Height; y++ {
			want := src.Data[y*src.Stride : y*src.Stride+src.Width*3]
			got := frame.Data[y*frame.Step() : (y+1)*frame.Step()]
			test.That(t, got, test.ShouldResemble, want)
		}

		// The frame is owned by the caller.
		frame.Data[0]++
		test.That(t, frame.Data[0], test.ShouldNotEqual, src.Data[0])
		test.That(t, s.Release(), test.ShouldBeNil)
	}
}

func TestSetGeometryDoesNotRestart(t *testing.T) {
	logger := logging.NewTestLogger(t)
	sdk := newInjectedSDK()
	s, err := New(context.Background(), sdk.backend, Config{Depth: true}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, s.Release(), test.ShouldBeNil)
	}()

	test.That(t, s.Set(FrameWidth, 1280).OK(), test.ShouldBeTrue)
	test.That(t, s.Set(FrameHeight, 720.9).OK(), test.ShouldBeTrue)
	test.That(t, s.Set(FPS, 6).OK(), test.ShouldBeTrue)

	width, ok := s.Get(FrameWidth).Unpack()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, width, test.ShouldEqual, 1280.0)
	height, ok := s.Get(FrameHeight).Unpack()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, height, test.ShouldEqual, 720.0)
	fps, ok := s.Get(FPS).Unpack()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, fps, test.ShouldEqual, 6.0)

	// The color stream is re-declared in the session config even in depth mode, but the
	// pipeline is neither stopped nor started again.
	req, ok := s.config.Stream(realsense.StreamColor)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, req, test.ShouldResemble,
		realsense.StreamRequest{Stream: realsense.StreamColor, Width: 1280, Height: 720, Format: realsense.FormatBGR8, FPS: 6})
	test.That(t, sdk.starts, test.ShouldEqual, 1)
	test.That(t, sdk.stops, test.ShouldEqual, 0)
	test.That(t, sdk.startCfg.Streams(), test.ShouldHaveLength, 1)
	test.That(t, sdk.sensorCalls, test.ShouldEqual, 0)
}

func TestSensorOptionDispatch(t *testing.T) {
	logger := logging.NewTestLogger(t)
	sdk := newInjectedSDK()
	s, err := New(context.Background(), sdk.backend, Config{}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, s.Release(), test.ShouldBeNil)
	}()

	test.That(t, s.Set(AutoExposure, 0.5).OK(), test.ShouldBeTrue)
	test.That(t, sdk.options[realsense.OptionEnableAutoExposure], test.ShouldEqual, float32(1))
	test.That(t, s.Set(AutoExposure, 0).OK(), test.ShouldBeTrue)
	test.That(t, sdk.options[realsense.OptionEnableAutoExposure], test.ShouldEqual, float32(0))
	test.That(t, s.Set(Exposure, 120).OK(), test.ShouldBeTrue)
	test.That(t, sdk.options[realsense.OptionExposure], test.ShouldEqual, float32(120))
	test.That(t, s.Set(AutoWB, -3).OK(), test.ShouldBeTrue)
	test.That(t, sdk.options[realsense.OptionEnableAutoWhiteBalance], test.ShouldEqual, float32(1))
	test.That(t, s.Set(WhiteBalanceBlueU, 5200).OK(), test.ShouldBeTrue)
	test.That(t, sdk.options[realsense.OptionWhiteBalance], test.ShouldEqual, float32(5200))

	for prop, want := range map[Property]float64{
		AutoExposure:      0,
		Exposure:          120,
		AutoWB:            1,
		WhiteBalanceBlueU: 5200,
	} {
		v, ok := s.Get(prop).Unpack()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, v, test.ShouldEqual, want)
	}
}

func TestUnsupportedPropertyLeavesSensorAlone(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	sdk := newInjectedSDK()
	s, err := New(context.Background(), sdk.backend, Config{}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, s.Release(), test.ShouldBeNil)
	}()

	for _, prop := range []Property{Property(0), Property(10), Property(99)} {
		status := s.Set(prop, 1)
		test.That(t, status.OK(), test.ShouldBeFalse)
		test.That(t, errors.Is(status.Err, ErrUnsupportedProperty), test.ShouldBeTrue)
		test.That(t, logs.TakeAll(), test.ShouldHaveLength, 1)

		v, ok := s.Get(prop).Unpack()
		test.That(t, ok, test.ShouldBeFalse)
		test.That(t, v, test.ShouldEqual, 0.0)
		entries := logs.TakeAll()
		test.That(t, entries, test.ShouldHaveLength, 1)
		test.That(t, entries[0].Level, test.ShouldEqual, zapcore.ErrorLevel)
	}
	test.That(t, sdk.sensorCalls, test.ShouldEqual, 0)
}

func TestSetGeometryRejectsNonIntegers(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	sdk := newInjectedSDK()
	s, err := New(context.Background(), sdk.backend, Config{Width: 320, Height: 240, FPS: 15}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, s.Release(), test.ShouldBeNil)
	}()
	logs.TakeAll()

	for _, value := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e300, -1e300} {
		for _, prop := range []Property{FrameWidth, FrameHeight, FPS} {
			status := s.Set(prop, value)
			test.That(t, status.OK(), test.ShouldBeFalse)
			test.That(t, logs.TakeAll(), test.ShouldHaveLength, 1)
		}
	}

	for prop, want := range map[Property]float64{FrameWidth: 320, FrameHeight: 240, FPS: 15} {
		v, ok := s.Get(prop).Unpack()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, v, test.ShouldEqual, want)
	}
	req, ok := s.config.Stream(realsense.StreamColor)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, req.Width, test.ShouldEqual, 320)
	test.That(t, req.Height, test.ShouldEqual, 240)
	test.That(t, req.FPS, test.ShouldEqual, 15)
}

func TestOptionChecksBeforeSensorWrite(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	sdk := newInjectedSDK()
	s, err := New(context.Background(), sdk.backend, Config{}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, s.Release(), test.ShouldBeNil)
	}()
	logs.TakeAll()

	delete(sdk.options, realsense.OptionExposure)
	status := s.Set(Exposure, 100)
	test.That(t, status.OK(), test.ShouldBeFalse)
	test.That(t, errors.Is(status.Err, realsense.ErrOptionNotSupported), test.ShouldBeTrue)
	test.That(t, logs.TakeAll(), test.ShouldHaveLength, 1)
	_, ok := s.Get(Exposure).Unpack()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, logs.TakeAll(), test.ShouldHaveLength, 1)

	status = s.Set(WhiteBalanceBlueU, 100000)
	test.That(t, status.OK(), test.ShouldBeFalse)
	test.That(t, status.Err.Error(), test.ShouldContainSubstring, "out of range")
	test.That(t, logs.TakeAll(), test.ShouldHaveLength, 1)
	test.That(t, s.Set(WhiteBalanceBlueU, math.NaN()).OK(), test.ShouldBeFalse)
	test.That(t, sdk.options[realsense.OptionWhiteBalance], test.ShouldEqual, float32(4600))

	test.That(t, sdk.sensorCalls, test.ShouldEqual, 0)
}

func TestFaultsAreSoftAndLoggedOnce(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	sdk := newInjectedSDK()
	s, err := New(context.Background(), sdk.backend, Config{}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, s.Release(), test.ShouldBeNil)
	}()
	logs.TakeAll()

	expectOneError := func(t *testing.T) {
		t.Helper()
		entries := logs.TakeAll()
		test.That(t, entries, test.ShouldHaveLength, 1)
		test.That(t, entries[0].Level, test.ShouldEqual, zapcore.ErrorLevel)
	}

	sdk.next = func(ctx context.Context) (*realsense.FrameSet, error) {
		return nil, errors.New("frame didn't arrive within 5000")
	}
	res := s.Read(context.Background())
	test.That(t, res.OK(), test.ShouldBeFalse)
	test.That(t, res.Err.Error(), test.ShouldContainSubstring, "frame didn't arrive")
	expectOneError(t)

	sdk.next = func(ctx context.Context) (*realsense.FrameSet, error) {
		panic("device disconnected")
	}
	res = s.Read(context.Background())
	test.That(t, res.OK(), test.ShouldBeFalse)
	test.That(t, res.Err.Error(), test.ShouldContainSubstring, "device disconnected")
	expectOneError(t)

	sdk.next = func(ctx context.Context) (*realsense.FrameSet, error) {
		return &realsense.FrameSet{Frames: []*realsense.VideoFrame{colorFrame(4, 4, 0, 1)}}, nil
	}
	s.align = &inject.Aligner{ProcessFunc: func(fs *realsense.FrameSet) (*realsense.FrameSet, error) {
		panic(errors.New("align failed"))
	}}
	res = s.Read(context.Background())
	test.That(t, res.OK(), test.ShouldBeFalse)
	test.That(t, res.Err.Error(), test.ShouldContainSubstring, "align failed")
	expectOneError(t)
	s.align = realsense.NewAlign(realsense.StreamColor)

	sdk.sensor.SetOptionFunc = func(opt realsense.Option, value float32) error {
		panic("set_option failed")
	}
	status := s.Set(Exposure, 10)
	test.That(t, status.OK(), test.ShouldBeFalse)
	expectOneError(t)

	sdk.sensor.GetOptionFunc = func(opt realsense.Option) (float32, error) {
		return 0, realsense.NewOptionNotSupportedError(opt)
	}
	v, ok := s.Get(WhiteBalanceBlueU).Unpack()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, v, test.ShouldEqual, 0.0)
	expectOneError(t)

	// The session keeps working after faults.
	test.That(t, s.IsOpened(), test.ShouldBeTrue)
	test.That(t, s.Read(context.Background()).OK(), test.ShouldBeTrue)
	test.That(t, logs.Len(), test.ShouldEqual, 0)
}

func TestReleaseUnblocksRead(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	sdk := newInjectedSDK()
	stopped := make(chan struct{})
	waiting := make(chan struct{})
	sdk.next = func(ctx context.Context) (*realsense.FrameSet, error) {
		close(waiting)
		<-stopped
		return nil, realsense.ErrNotStarted
	}
	stop := sdk.pipeline.StopFunc
	sdk.pipeline.StopFunc = func() error {
		close(stopped)
		return stop()
	}

	s, err := New(context.Background(), sdk.backend, Config{}, logger)
	test.That(t, err, test.ShouldBeNil)

	resCh := make(chan Result[*Frame], 1)
	go func() {
		resCh <- s.Read(context.Background())
	}()
	<-waiting
	test.That(t, s.Release(), test.ShouldBeNil)
	res := <-resCh
	test.That(t, res.Err, test.ShouldBeError, ErrNotRunning)
	test.That(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len(), test.ShouldEqual, 0)
}

func TestReadTimeout(t *testing.T) {
	t.Setenv("RSCAPTURE_READ_TIMEOUT", "")
	logger, logs := logging.NewObservedTestLogger(t)
	sdk := newInjectedSDK()
	sdk.next = func(ctx context.Context) (*realsense.FrameSet, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	s, err := New(context.Background(), sdk.backend, Config{ReadTimeoutMs: 10}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, s.Release(), test.ShouldBeNil)
	}()
	test.That(t, s.Describe().ReadTimeout, test.ShouldEqual, 10*time.Millisecond)

	res := s.Read(context.Background())
	test.That(t, errors.Is(res.Err, context.DeadlineExceeded), test.ShouldBeTrue)
	test.That(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len(), test.ShouldEqual, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res = s.Read(ctx)
	test.That(t, errors.Is(res.Err, context.Canceled), test.ShouldBeTrue)
}

func TestOpenFakeBackend(t *testing.T) {
	logger := logging.NewTestLogger(t)

	_, err := Open(context.Background(), Config{Backend: "nope"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, fake.BackendName)

	_, err = Open(context.Background(), Config{Backend: fake.BackendName, Serial: "999"}, logger)
	test.That(t, errors.Is(err, realsense.ErrDeviceNotFound), test.ShouldBeTrue)

	s, err := Open(context.Background(), Config{Backend: fake.BackendName, Width: 64, Height: 48, FPS: 60}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.IsOpened(), test.ShouldBeTrue)

	d := s.Describe()
	test.That(t, d.Backend, test.ShouldEqual, fake.BackendName)
	test.That(t, d.Serial, test.ShouldEqual, fake.DefaultSerial)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var last uint64
	for i := 0; i < 3; i++ {
		frame, ok := s.Read(ctx).Unpack()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, frame.Rows, test.ShouldEqual, 48)
		test.That(t, frame.Cols, test.ShouldEqual, 64)
		test.That(t, frame.Number, test.ShouldBeGreaterThan, last)
		last = frame.Number
		want := fake.ColorAt(5, 7, frame.Number)
		off := 7*frame.Step() + 5*3
		test.That(t, frame.Data[off:off+3], test.ShouldResemble, want[:])
	}

	test.That(t, s.Set(Exposure, 300).OK(), test.ShouldBeTrue)
	v, ok := s.Get(Exposure).Unpack()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, 300.0)
	test.That(t, s.Set(Exposure, -5).OK(), test.ShouldBeFalse)
	test.That(t, s.Set(Exposure, 156).OK(), test.ShouldBeTrue)

	test.That(t, s.Release(), test.ShouldBeNil)
	test.That(t, s.IsOpened(), test.ShouldBeFalse)
}

func TestOpenFakeBackendDepthMode(t *testing.T) {
	logger := logging.NewTestLogger(t)
	s, err := Open(context.Background(), Config{Backend: fake.BackendName, Width: 8, Height: 8, FPS: 60, Depth: true}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, s.Release(), test.ShouldBeNil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Depth mode streams only depth, and Read extracts the color frame.
	res := s.Read(ctx)
	test.That(t, res.Err, test.ShouldBeError, ErrNoColorFrame)
}
