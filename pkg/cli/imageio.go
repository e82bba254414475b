package cli

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/anthonynsimon/bild/imgio"
	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Fepozopo/halftone/pkg/stdimg"
)

// jpegQuality is the quality of every JPEG written by the CLI.
const jpegQuality = 92

// LoadImage decodes the image at path and returns it with its format name.
// JPEG files are rotated upright according to their EXIF orientation.
func LoadImage(path string) (image.Image, string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	img, format, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, "", fmt.Errorf("decoding %s: %w", path, err)
	}
	if format == "jpeg" {
		if o, err := exifOrientation(b); err == nil && o != 1 {
			log.WithFields(log.Fields{"path": path, "orientation": o}).Debug("auto-orient")
			img = stdimg.AutoOrient(img, o)
		}
	}
	return img, format, nil
}

func gifEncoder(w io.Writer, img image.Image) error {
	return gif.Encode(w, img, nil)
}

// encoderFor picks the encoder from the file extension. Unknown extensions
// are written as PNG.
func encoderFor(path string) (imgio.Encoder, string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return imgio.JPEGEncoder(jpegQuality), "jpeg"
	case ".bmp":
		return imgio.BMPEncoder(), "bmp"
	case ".gif":
		return gifEncoder, "gif"
	default:
		return imgio.PNGEncoder(), "png"
	}
}

// SaveImage writes img to path in the format given by its extension.
func SaveImage(path string, img image.Image) error {
	if img == nil {
		return fmt.Errorf("nothing to save to %s", path)
	}
	enc, format := encoderFor(path)
	if err := imgio.Save(path, img, enc); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	log.WithFields(log.Fields{"path": path, "format": format}).Debug("image saved")
	return nil
}

// ImageInfo returns a one-line description of img.
func ImageInfo(img image.Image, format string) string {
	if img == nil {
		return "no image"
	}
	if format == "" {
		format = "unknown"
	}
	b := img.Bounds()
	return fmt.Sprintf("Format: %s, Width: %d, Height: %d", strings.ToUpper(format), b.Dx(), b.Dy())
}
