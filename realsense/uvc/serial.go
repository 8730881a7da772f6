package uvc

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	mediadevicescamera "github.com/pion/mediadevices/pkg/driver/camera"
)

const defaultSysfsRoot = "/sys"

var (
	// videoNodePattern matches the video node part of a label, with or without /dev.
	videoNodePattern = regexp.MustCompile(`^(?:/dev/)?(video\d+)$`)
	// byIDSerialPattern matches /dev/v4l/by-id names, e.g.
	// "usb-Intel_R__RealSense_TM__Depth_Camera_435_012345678901-video-index0".
	byIDSerialPattern = regexp.MustCompile(`_([0-9A-Za-z]{8,})-video-index\d+$`)
)

// serialResolver maps a mediadevices label to the USB serial number of the device behind it.
// The serial is read from sysfs through the label's video node. Labels carrying a
// /dev/v4l/by-id name fall back to the serial embedded in that name.
type serialResolver struct {
	sysfsRoot string
}

func (r serialResolver) serial(label string) string {
	parts := strings.Split(label, mediadevicescamera.LabelSeparator)
	for _, part := range parts {
		m := videoNodePattern.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		if serial := r.sysfsSerial(m[1]); serial != "" {
			return serial
		}
	}
	for _, part := range parts {
		if m := byIDSerialPattern.FindStringSubmatch(filepath.Base(part)); m != nil {
			return m[1]
		}
	}
	return ""
}

// sysfsSerial reads the serial of the USB device owning a video node. The node's device link
// points at the USB interface; the serial file lives on the interface's parent.
func (r serialResolver) sysfsSerial(node string) string {
	iface, err := filepath.EvalSymlinks(filepath.Join(r.sysfsRoot, "class", "video4linux", node, "device"))
	if err != nil {
		return ""
	}
	for _, dir := range []string{iface, filepath.Dir(iface)} {
		//nolint:gosec
		data, err := os.ReadFile(filepath.Join(dir, "serial"))
		if err != nil {
			continue
		}
		if serial := strings.TrimSpace(string(data)); serial != "" {
			return serial
		}
	}
	return ""
}

// videoNode returns the /dev/videoN path of a label, or the label's first part when it names no
// video node.
func videoNode(label string) string {
	parts := strings.Split(label, mediadevicescamera.LabelSeparator)
	for _, part := range parts {
		if m := videoNodePattern.FindStringSubmatch(part); m != nil {
			return "/dev/" + m[1]
		}
	}
	return parts[0]
}
