package utils

import (
	"path/filepath"
	"strings"
)

const (
	// MimeTypeJPEG is regular jpgs.
	MimeTypeJPEG = "image/jpeg"

	// MimeTypePNG is regular pngs.
	MimeTypePNG = "image/png"

	// MimeTypeBMP is uncompressed windows bitmaps.
	MimeTypeBMP = "image/bmp"

	// MimeTypeTIFF is tiff images.
	MimeTypeTIFF = "image/tiff"

	// MimeTypeGIF is gif images.
	MimeTypeGIF = "image/gif"

	// MimeTypePPM is netpbm portable pixmaps.
	MimeTypePPM = "image/x-portable-pixmap"

	// MimeTypeQOI is for .qoi "Quite OK Image" for lossless, fast encoding/decoding.
	MimeTypeQOI = "image/qoi"
)

var formatMimeTypes = map[string]string{
	"jpeg": MimeTypeJPEG,
	"jpg":  MimeTypeJPEG,
	"png":  MimeTypePNG,
	"bmp":  MimeTypeBMP,
	"tiff": MimeTypeTIFF,
	"tif":  MimeTypeTIFF,
	"gif":  MimeTypeGIF,
	"ppm":  MimeTypePPM,
	"qoi":  MimeTypeQOI,
}

var mimeTypeExtensions = map[string]string{
	MimeTypeJPEG: ".jpg",
	MimeTypePNG:  ".png",
	MimeTypeBMP:  ".bmp",
	MimeTypeTIFF: ".tiff",
	MimeTypeGIF:  ".gif",
	MimeTypePPM:  ".ppm",
	MimeTypeQOI:  ".qoi",
}

// MimeTypeFromFormat returns the mime type for a short format name ("png", "jpg") or a file
// path ending in such an extension.
func MimeTypeFromFormat(format string) (string, bool) {
	name := strings.ToLower(format)
	if ext := filepath.Ext(name); ext != "" {
		name = ext
	}
	mimeType, ok := formatMimeTypes[strings.TrimPrefix(name, ".")]
	return mimeType, ok
}

// ExtensionForMimeType returns the file extension, with its leading dot, for a mime type.
func ExtensionForMimeType(mimeType string) (string, bool) {
	ext, ok := mimeTypeExtensions[mimeType]
	return ext, ok
}
