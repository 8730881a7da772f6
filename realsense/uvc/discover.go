package uvc

import (
	"context"

	driverutils "github.com/pion/mediadevices/pkg/driver"
	"github.com/pion/mediadevices/pkg/prop"
	pb "go.viam.com/api/component/camera/v1"

	"go.viam.com/rscapture/logging"
)

// getDriverProperties returns the media properties of a driver, opening it temporarily if needed.
func getDriverProperties(d driverutils.Driver) (_ []prop.Media, err error) {
	if d.Status() == driverutils.StateClosed {
		errOpen := d.Open()
		if errOpen != nil {
			return nil, errOpen
		}
		defer func() {
			if errClose := d.Close(); errClose != nil {
				err = errClose
			}
		}()
	}
	return d.Properties(), err
}

// Discover lists the video nodes the backend can open. The id of each webcam is the serial number
// of the device owning the node, or the node path when the serial cannot be resolved.
func (b *Backend) Discover(ctx context.Context) (*pb.Webcams, error) {
	return discover(ctx, b.getDrivers, b.serials, b.logger)
}

func discover(
	ctx context.Context,
	getDrivers func() []driverutils.Driver,
	serials serialResolver,
	logger logging.Logger,
) (*pb.Webcams, error) {
	var webcams []*pb.Webcam
	for _, d := range getDrivers() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		driverInfo := d.Info()
		props, err := getDriverProperties(d)
		if err != nil {
			logger.CDebugw(ctx, "cannot access driver properties, skipping discovery...", "driver", driverInfo.Label, "error", err)
			continue
		}
		if len(props) == 0 {
			logger.CDebugw(ctx, "no properties detected for driver, skipping discovery...", "driver", driverInfo.Label)
			continue
		}

		node := videoNode(driverInfo.Label)
		id := serials.serial(driverInfo.Label)
		if id == "" {
			id = node
		}
		wc := &pb.Webcam{
			Name:       driverInfo.Name,
			Id:         id,
			Label:      node,
			Status:     string(d.Status()),
			Properties: make([]*pb.Property, 0, len(props)),
		}
		for _, p := range props {
			wc.Properties = append(wc.Properties, &pb.Property{
				WidthPx:     int32(p.Video.Width),
				HeightPx:    int32(p.Video.Height),
				FrameRate:   p.Video.FrameRate,
				FrameFormat: string(p.Video.FrameFormat),
			})
		}
		webcams = append(webcams, wc)
	}
	return &pb.Webcams{Webcams: webcams}, nil
}
