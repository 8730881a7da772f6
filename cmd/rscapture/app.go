package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/rscapture/capture"
	"go.viam.com/rscapture/logging"
	"go.viam.com/rscapture/realsense"
	"go.viam.com/rscapture/realsense/uvc"
	"go.viam.com/rscapture/utils"
)

const (
	flagConfig      = "config"
	flagBackend     = "backend"
	flagSerial      = "serial"
	flagWidth       = "width"
	flagHeight      = "height"
	flagFPS         = "fps"
	flagDepth       = "depth"
	flagReadTimeout = "read-timeout"
	flagDebug       = "debug"
	flagLogFile     = "log-file"

	flagCount  = "count"
	flagOut    = "out"
	flagFormat = "format"
)

func newApp(logger logging.Logger) *cli.App {
	var logFile *logging.FileAppender
	return &cli.App{
		Name:            "rscapture",
		Usage:           "capture frames from RealSense depth cameras",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load capture configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:    flagBackend,
				Usage:   "capture backend (" + strings.Join(realsense.RegisteredBackends(), ", ") + ")",
				EnvVars: []string{utils.BackendEnvVar},
			},
			&cli.StringFlag{
				Name:  flagSerial,
				Usage: "serial number of the device to open",
			},
			&cli.IntFlag{
				Name:  flagWidth,
				Usage: "stream width in pixels",
			},
			&cli.IntFlag{
				Name:  flagHeight,
				Usage: "stream height in pixels",
			},
			&cli.IntFlag{
				Name:  flagFPS,
				Usage: "stream frame rate",
			},
			&cli.BoolFlag{
				Name:  flagDepth,
				Usage: "stream depth instead of color",
			},
			&cli.DurationFlag{
				Name:  flagReadTimeout,
				Usage: "bound on a single frame read (0 waits forever)",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to `FILE`, rotated by size",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger.SetLevel(logging.DEBUG)
			}
			if path := c.String(flagLogFile); path != "" {
				logFile = logging.NewFileAppender(path)
				logger.AddAppender(logFile)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if logFile == nil {
				return nil
			}
			return logFile.Close()
		},
		Commands: []*cli.Command{
			{
				Name:   "discover",
				Usage:  "list RealSense video nodes visible to the uvc backend",
				Action: func(c *cli.Context) error { return discoverAction(c, logger) },
			},
			{
				Name:   "backends",
				Usage:  "list registered capture backends",
				Action: backendsAction,
			},
			{
				Name:  "grab",
				Usage: "read frames and write them to image files",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  flagCount,
						Value: 1,
						Usage: "number of frames to write",
					},
					&cli.StringFlag{
						Name:  flagOut,
						Value: ".",
						Usage: "output `DIR`",
					},
					&cli.StringFlag{
						Name:  flagFormat,
						Value: "png",
						Usage: "image format (png, jpeg, bmp, tiff, gif, ppm, qoi)",
					},
				},
				Action: func(c *cli.Context) error { return grabAction(c, logger) },
			},
			{
				Name:      "get",
				Usage:     "read capture properties",
				ArgsUsage: "PROPERTY...",
				Action:    func(c *cli.Context) error { return getAction(c, logger) },
			},
			{
				Name:      "set",
				Usage:     "write capture properties",
				ArgsUsage: "PROPERTY=VALUE...",
				Action:    func(c *cli.Context) error { return setAction(c, logger) },
			},
		},
	}
}

// sessionConfig builds the capture config from the config file, if any, overridden by flags.
func sessionConfig(c *cli.Context) (capture.Config, error) {
	var conf capture.Config
	if path := c.String(flagConfig); path != "" {
		fromFile, err := capture.ReadConfigFile(path)
		if err != nil {
			return capture.Config{}, err
		}
		conf = *fromFile
	}
	if c.IsSet(flagBackend) {
		conf.Backend = c.String(flagBackend)
	}
	if c.IsSet(flagSerial) {
		conf.Serial = c.String(flagSerial)
	}
	if c.IsSet(flagWidth) {
		conf.Width = c.Int(flagWidth)
	}
	if c.IsSet(flagHeight) {
		conf.Height = c.Int(flagHeight)
	}
	if c.IsSet(flagFPS) {
		conf.FPS = c.Int(flagFPS)
	}
	if c.IsSet(flagDepth) {
		conf.Depth = c.Bool(flagDepth)
	}
	if c.IsSet(flagReadTimeout) {
		conf.ReadTimeoutMs = int(c.Duration(flagReadTimeout) / time.Millisecond)
	}
	return conf, nil
}

func openSession(c *cli.Context, logger logging.Logger) (*capture.Session, error) {
	conf, err := sessionConfig(c)
	if err != nil {
		return nil, err
	}
	return capture.Open(c.Context, conf, logger)
}

func discoverAction(c *cli.Context, logger logging.Logger) error {
	webcams, err := uvc.NewBackend(logger.Sublogger(uvc.BackendName)).Discover(c.Context)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"#", "Label", "Serial", "Status", "Modes"})
	for i, wc := range webcams.GetWebcams() {
		modes := make([]string, 0, len(wc.GetProperties()))
		for _, p := range wc.GetProperties() {
			modes = append(modes, fmt.Sprintf("%dx%d@%.0f %s", p.GetWidthPx(), p.GetHeightPx(), p.GetFrameRate(), p.GetFrameFormat()))
		}
		t.AppendRow(table.Row{i + 1, wc.GetLabel(), wc.GetId(), wc.GetStatus(), strings.Join(modes, "\n")})
	}
	t.Render()
	return nil
}

func backendsAction(c *cli.Context) error {
	for _, name := range realsense.RegisteredBackends() {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

func grabAction(c *cli.Context, logger logging.Logger) (err error) {
	mimeType, ok := utils.MimeTypeFromFormat(c.String(flagFormat))
	if !ok {
		return errors.Errorf("unknown image format %q", c.String(flagFormat))
	}
	ext, _ := utils.ExtensionForMimeType(mimeType)
	out := c.String(flagOut)
	if err := os.MkdirAll(out, 0o750); err != nil {
		return err
	}

	session, err := openSession(c, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, session.Release())
	}()

	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"#", "Frame", "Size", "File", "Bytes"})
	var intervals stats.Float64Data
	var last time.Time
	for i := 0; i < c.Int(flagCount); i++ {
		res := session.Read(c.Context)
		frame, ok := res.Unpack()
		if !ok {
			return errors.Wrapf(res.Err, "cannot read frame %d", i+1)
		}
		if !last.IsZero() {
			intervals = append(intervals, float64(frame.Timestamp.Sub(last))/float64(time.Millisecond))
		}
		last = frame.Timestamp

		path := filepath.Join(out, fmt.Sprintf("frame_%06d%s", frame.Number, ext))
		if err := frame.WriteFile(path); err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{
			i + 1, frame.Number, fmt.Sprintf("%dx%d", frame.Cols, frame.Rows), path, units.HumanSize(float64(info.Size())),
		})
	}
	t.Render()
	if len(intervals) > 0 {
		mean, err := stats.Mean(intervals)
		if err != nil {
			return err
		}
		maxInterval, err := stats.Max(intervals)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "frame interval: mean %.1fms, max %.1fms\n", mean, maxInterval)
	}
	return nil
}

func getAction(c *cli.Context, logger logging.Logger) (err error) {
	props, err := parseProperties(c.Args().Slice())
	if err != nil {
		return err
	}
	session, err := openSession(c, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, session.Release())
	}()

	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"Property", "ID", "Value"})
	var errs error
	for _, prop := range props {
		res := session.Get(prop)
		value, ok := res.Unpack()
		if !ok {
			errs = multierr.Combine(errs, res.Err)
			t.AppendRow(table.Row{prop.String(), int(prop), color.RedString("error: %v", res.Err)})
			continue
		}
		t.AppendRow(table.Row{prop.String(), int(prop), cast.ToString(value)})
	}
	t.Render()
	return errs
}

func setAction(c *cli.Context, logger logging.Logger) (err error) {
	assignments, err := parseAssignments(c.Args().Slice())
	if err != nil {
		return err
	}
	session, err := openSession(c, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, session.Release())
	}()

	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"Property", "ID", "Value", "Result"})
	var errs error
	for _, a := range assignments {
		result := "ok"
		if status := session.Set(a.prop, a.value); !status.OK() {
			errs = multierr.Combine(errs, status.Err)
			result = color.RedString("error: %v", status.Err)
		}
		t.AppendRow(table.Row{a.prop.String(), int(a.prop), cast.ToString(a.value), result})
	}
	t.Render()
	return errs
}

func parseProperties(args []string) ([]capture.Property, error) {
	if len(args) == 0 {
		names := make([]string, 0, len(capture.SupportedProperties()))
		for _, p := range capture.SupportedProperties() {
			names = append(names, p.String())
		}
		return nil, errors.Errorf("no properties given, expected one or more of %s", strings.Join(names, ", "))
	}
	props := make([]capture.Property, 0, len(args))
	for _, arg := range args {
		prop, err := capture.ParseProperty(arg)
		if err != nil {
			return nil, err
		}
		props = append(props, prop)
	}
	return props, nil
}

type assignment struct {
	prop  capture.Property
	value float64
}

// parseAssignments parses PROPERTY=VALUE arguments. Values may be numbers or booleans.
func parseAssignments(args []string) ([]assignment, error) {
	if len(args) == 0 {
		return nil, errors.New("no assignments given, expected PROPERTY=VALUE")
	}
	assignments := make([]assignment, 0, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, errors.Errorf("expected PROPERTY=VALUE, got %q", arg)
		}
		prop, err := capture.ParseProperty(name)
		if err != nil {
			return nil, err
		}
		value, err := cast.ToFloat64E(strings.TrimSpace(raw))
		if err != nil {
			b, boolErr := cast.ToBoolE(strings.TrimSpace(raw))
			if boolErr != nil {
				return nil, errors.Wrapf(err, "invalid value for %s", name)
			}
			value = cast.ToFloat64(b)
		}
		assignments = append(assignments, assignment{prop: prop, value: value})
	}
	return assignments, nil
}
