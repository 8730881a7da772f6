// Package main is a command line tool for RealSense capture sessions: list devices, grab frames
// to files and read or write capture properties.
package main

import (
	"context"

	"go.viam.com/utils"

	"go.viam.com/rscapture/logging"
	// registers the capture backends.
	_ "go.viam.com/rscapture/realsense/fake"
	_ "go.viam.com/rscapture/realsense/uvc"
	rsutils "go.viam.com/rscapture/utils"
)

var logger = logging.NewLogger("rscapture")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	if rsutils.DebugEnabled() {
		logger.SetLevel(logging.DEBUG)
	}
	return newApp(logger).RunContext(ctx, args)
}
