package capture

import (
	"bufio"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	"go.uber.org/multierr"

	"go.viam.com/rscapture/utils"
)

var imagingFormats = map[string]imaging.Format{
	utils.MimeTypeJPEG: imaging.JPEG,
	utils.MimeTypePNG:  imaging.PNG,
	utils.MimeTypeBMP:  imaging.BMP,
	utils.MimeTypeTIFF: imaging.TIFF,
	utils.MimeTypeGIF:  imaging.GIF,
}

// EncodeImage writes img to w in the format named by mimeType.
func EncodeImage(w io.Writer, img image.Image, mimeType string) error {
	if format, ok := imagingFormats[mimeType]; ok {
		return imaging.Encode(w, img, format)
	}
	switch mimeType {
	case utils.MimeTypePPM:
		return ppm.Encode(w, img)
	case utils.MimeTypeQOI:
		return qoi.Encode(w, img)
	default:
		return errors.Errorf("do not know how to encode %q", mimeType)
	}
}

// Encode writes the frame to w in the format named by mimeType.
func (f *Frame) Encode(w io.Writer, mimeType string) error {
	img, err := f.Image()
	if err != nil {
		return err
	}
	return EncodeImage(w, img, mimeType)
}

// WriteFile encodes the frame into the file at path, picking the format from the extension.
func (f *Frame) WriteFile(path string) (err error) {
	mimeType, ok := utils.MimeTypeFromFormat(path)
	if !ok {
		return errors.Errorf("cannot infer image format from %q", path)
	}
	//nolint:gosec
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, file.Close())
	}()
	w := bufio.NewWriter(file)
	if err := f.Encode(w, mimeType); err != nil {
		return errors.Wrapf(err, "cannot encode frame %d", f.Number)
	}
	return w.Flush()
}
