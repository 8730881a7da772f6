// Package uvc implements the realsense backend over the UVC video nodes a RealSense device exposes,
// read through pion/mediadevices. Depth arrives as Z16, color in whatever format the node
// offers and is converted to BGR8.
package uvc

import (
	"context"
	"image"
	"sync"
	"time"

	driverutils "github.com/pion/mediadevices/pkg/driver"
	mediadevicescamera "github.com/pion/mediadevices/pkg/driver/camera"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"golang.org/x/image/draw"

	"go.viam.com/rscapture/logging"
	"go.viam.com/rscapture/realsense"
)

// BackendName is the name the UVC backend is registered under.
const BackendName = "uvc"

func init() {
	realsense.RegisterBackend(BackendName, NewBackend(logging.Global().Sublogger(BackendName)))
}

// Backend opens RealSense video nodes found by mediadevices.
type Backend struct {
	getDrivers func() []driverutils.Driver
	serials    serialResolver
	logger     logging.Logger
}

// NewBackend returns a backend over the video recorders known to mediadevices.
func NewBackend(logger logging.Logger) *Backend {
	return &Backend{
		getDrivers: func() []driverutils.Driver {
			mediadevicescamera.Initialize()
			return driverutils.GetManager().Query(driverutils.FilterVideoRecorder())
		},
		serials: serialResolver{sysfsRoot: defaultSysfsRoot},
		logger:  logger,
	}
}

// NewPipeline returns an unstarted pipeline.
func (b *Backend) NewPipeline() realsense.Pipeline {
	return &Pipeline{getDrivers: b.getDrivers, serials: b.serials, logger: b.logger}
}

type readResult struct {
	frame *realsense.VideoFrame
	err   error
}

// streamReader is one opened video node feeding one stream. A single goroutine reads the node
// and hands results over through a one-slot channel.
type streamReader struct {
	req     realsense.StreamRequest
	driver  driverutils.Driver
	reader  video.Reader
	results chan readResult
}

func newStreamReader(req realsense.StreamRequest, d driverutils.Driver, reader video.Reader) *streamReader {
	return &streamReader{req: req, driver: d, reader: reader, results: make(chan readResult, 1)}
}

// run reads frames until ctx is done.
func (sr *streamReader) run(ctx context.Context) {
	for ctx.Err() == nil {
		f, err := readFrame(sr)
		if !sr.deliver(ctx, readResult{frame: f, err: err}) {
			return
		}
	}
}

// deliver hands a result to the next WaitForFrames. An unclaimed frame is replaced by a newer
// one; errors block until claimed so a failing node is not read in a tight loop.
func (sr *streamReader) deliver(ctx context.Context, res readResult) bool {
	if ctx.Err() != nil {
		return false
	}
	if res.err != nil {
		select {
		case sr.results <- res:
			return true
		case <-ctx.Done():
			return false
		}
	}
	for {
		select {
		case sr.results <- res:
			return true
		case <-ctx.Done():
			return false
		default:
		}
		select {
		case <-sr.results:
		default:
		}
	}
}

// Pipeline streams from the video nodes of one device.
type Pipeline struct {
	getDrivers func() []driverutils.Driver
	serials    serialResolver
	logger     logging.Logger

	mu          sync.Mutex
	started     bool
	readers     []*streamReader
	profile     *profile
	frameNumber uint64
	cancelReads context.CancelFunc
	stopped     chan struct{}

	activeReaders sync.WaitGroup
}

// Start opens one video node per requested stream.
func (p *Pipeline) Start(ctx context.Context, cfg *realsense.Config) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return realsense.ErrAlreadyStarted
	}
	streams := cfg.Streams()
	if len(streams) == 0 {
		return realsense.ErrNoStreams
	}

	var opened []*streamReader
	defer func() {
		if err != nil {
			for _, sr := range opened {
				err = multierr.Combine(err, sr.driver.Close())
			}
		}
	}()

	drivers := p.getDrivers()
	var label string
	for _, req := range streams {
		if err := ctx.Err(); err != nil {
			return err
		}
		sr, err := openStream(drivers, p.serials, cfg.Serial(), req, p.logger)
		if err != nil {
			return errors.Wrapf(err, "cannot open %s stream", req.Stream)
		}
		opened = append(opened, sr)
		if label == "" {
			label = sr.driver.Info().Label
		}
	}

	serial := cfg.Serial()
	if serial == "" {
		serial = p.serials.serial(label)
	}
	p.readers = opened
	p.profile = &profile{
		device:  &device{name: videoNode(label), serial: serial},
		streams: streams,
	}

	readCtx, cancel := context.WithCancel(context.Background())
	p.cancelReads = cancel
	p.stopped = make(chan struct{})
	for _, sr := range opened {
		p.activeReaders.Add(1)
		goutils.ManagedGo(func() { sr.run(readCtx) }, p.activeReaders.Done)
	}
	p.started = true
	return nil
}

// openStream opens the first video node of the requested device that can produce req.
func openStream(
	drivers []driverutils.Driver,
	serials serialResolver,
	serial string,
	req realsense.StreamRequest,
	logger logging.Logger,
) (*streamReader, error) {
	var candidates int
	for _, d := range drivers {
		label := d.Info().Label
		if serial != "" && serials.serial(label) != serial {
			continue
		}
		recorder, ok := d.(driverutils.VideoRecorder)
		if !ok {
			continue
		}
		candidates++
		media, ok := matchProperties(d, req, logger)
		if !ok {
			continue
		}
		reader, err := recorder.VideoRecord(media)
		if err != nil {
			logger.Debugw("cannot record from video node", "label", label, "error", err)
			goutils.UncheckedError(d.Close())
			continue
		}
		logger.Debugw("opened video node", "label", label, "stream", req.Stream.String(),
			"width", media.Width, "height", media.Height, "format", media.FrameFormat)
		return newStreamReader(req, d, reader), nil
	}
	if candidates == 0 {
		if serial != "" {
			return nil, errors.Wrapf(realsense.ErrDeviceNotFound, "serial %q", serial)
		}
		return nil, realsense.ErrDeviceNotFound
	}
	return nil, errors.Errorf("no video node supports %s", req)
}

// matchProperties opens the driver and picks the first of its properties that satisfies the
// request. The driver is left open on success and closed otherwise.
func matchProperties(d driverutils.Driver, req realsense.StreamRequest, logger logging.Logger) (prop.Media, bool) {
	if d.Status() == driverutils.StateClosed {
		if err := d.Open(); err != nil {
			logger.Debugw("cannot open video node", "label", d.Info().Label, "error", err)
			return prop.Media{}, false
		}
	}
	for _, p := range d.Properties() {
		if p.Video.Width != req.Width || p.Video.Height != req.Height {
			continue
		}
		if p.Video.FrameRate > 0 && int(p.Video.FrameRate+0.5) != req.FPS {
			continue
		}
		isDepth := p.Video.FrameFormat == frame.FormatZ16
		if isDepth != (req.Stream == realsense.StreamDepth) {
			continue
		}
		media := p
		media.Video.FrameRate = float32(req.FPS)
		return media, true
	}
	goutils.UncheckedError(d.Close())
	return prop.Media{}, false
}

// IsStarted reports whether the pipeline is streaming.
func (p *Pipeline) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// ActiveProfile returns the opened device and streams.
func (p *Pipeline) ActiveProfile() (realsense.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil, realsense.ErrNotStarted
	}
	return p.profile, nil
}

// WaitForFrames returns the next frame of every opened stream.
func (p *Pipeline) WaitForFrames(ctx context.Context) (*realsense.FrameSet, error) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil, realsense.ErrNotStarted
	}
	readers := p.readers
	stopped := p.stopped
	p.mu.Unlock()

	frames := make([]*realsense.VideoFrame, 0, len(readers))
	for _, sr := range readers {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-stopped:
			return nil, realsense.ErrNotStarted
		case res := <-sr.results:
			if res.err != nil {
				return nil, res.err
			}
			frames = append(frames, res.frame)
		}
	}

	p.mu.Lock()
	p.frameNumber++
	number := p.frameNumber
	p.mu.Unlock()
	fs := &realsense.FrameSet{Timestamp: time.Now(), Frames: frames}
	for _, f := range frames {
		f.Number = number
		f.Timestamp = fs.Timestamp
	}
	return fs, nil
}

func readFrame(sr *streamReader) (*realsense.VideoFrame, error) {
	img, release, err := sr.reader.Read()
	if release != nil {
		defer release()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s frame", sr.req.Stream)
	}
	return imageToFrame(sr.req, img)
}

// imageToFrame copies a decoded image into a frame of the requested stream. The copy is needed
// because mediadevices reuses the image buffer once release is called.
func imageToFrame(req realsense.StreamRequest, img image.Image) (*realsense.VideoFrame, error) {
	if req.Stream == realsense.StreamDepth {
		return realsense.FrameFromImage(req.Stream, realsense.FormatZ16, img)
	}
	rgba, ok := img.(*image.RGBA)
	if !ok {
		bounds := img.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	format := req.Format
	if format != realsense.FormatRGB8 {
		format = realsense.FormatBGR8
	}
	return realsense.FrameFromImage(req.Stream, format, rgba)
}

// Stop closes every opened video node and waits for the stream readers to exit. Pending
// WaitForFrames calls return ErrNotStarted.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return realsense.ErrNotStarted
	}
	p.started = false
	readers := p.readers
	p.readers = nil
	p.cancelReads()
	close(p.stopped)
	p.mu.Unlock()

	var errs error
	for _, sr := range readers {
		errs = multierr.Combine(errs, sr.driver.Close())
	}
	p.activeReaders.Wait()
	return errs
}

type profile struct {
	device  *device
	streams []realsense.StreamRequest
}

func (p *profile) Device() realsense.Device {
	return p.device
}

func (p *profile) Streams() []realsense.StreamRequest {
	return p.streams
}

type device struct {
	name   string
	serial string
}

func (d *device) Name() string {
	return d.name
}

func (d *device) Serial() string {
	return d.serial
}

func (d *device) FirstColorSensor() (realsense.Sensor, error) {
	return sensor{}, nil
}

// sensor stands in for the RGB sensor. The UVC path has no access to the SDK's option
// controls, so every option is reported unsupported.
type sensor struct{}

func (sensor) Supports(realsense.Option) bool {
	return false
}

func (sensor) GetOption(opt realsense.Option) (float32, error) {
	return 0, realsense.NewOptionNotSupportedError(opt)
}

func (sensor) SetOption(opt realsense.Option, _ float32) error {
	return realsense.NewOptionNotSupportedError(opt)
}

func (sensor) OptionRange(opt realsense.Option) (realsense.OptionRange, error) {
	return realsense.OptionRange{}, realsense.NewOptionNotSupportedError(opt)
}
