package cli

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	log "github.com/sirupsen/logrus"
)

// Terminal preview of rendered images.
//
// Backends, in the order they are tried:
//   - inline: the iTerm2 OSC 1337 file sequence (iTerm2, WezTerm, Warp, VSCode...)
//   - kitty: the kitty graphics protocol, chunked base64 inside ESC _G ... ESC \
//   - sixel: piped to img2sixel
//   - chafa: piped to chafa, block symbols for any terminal
//
// PREVIEW_BACKEND forces a backend first. PREVIEW_DEBUG=1 logs the
// detection at info level instead of debug.

var errNoPreview = errors.New("no preview protocol matched")

func debugf(format string, args ...any) {
	entry := log.WithField("component", "preview")
	if v := os.Getenv("PREVIEW_DEBUG"); v == "1" || v == "true" {
		entry.Infof(format, args...)
		return
	}
	entry.Debugf(format, args...)
}

func isKitty() bool {
	if os.Getenv("KITTY_WINDOW_ID") != "" || os.Getenv("KONSOLE_VERSION") != "" {
		return true
	}
	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "kitty") || strings.Contains(term, "ghost")
}

func isInlineImageCapable() bool {
	switch os.Getenv("TERM_PROGRAM") {
	case "iTerm.app", "WezTerm", "Warp", "Hyper", "vscode", "VSCode", "Tabby", "Bobcat":
		return true
	}
	if os.Getenv("ITERM_SESSION_ID") != "" {
		return true
	}
	term := strings.ToLower(os.Getenv("TERM"))
	for _, s := range []string{"wez", "warp", "tabby", "vscode"} {
		if strings.Contains(term, s) {
			return true
		}
	}
	return false
}

func isSixelCapable() bool {
	if os.Getenv("SIXEL_PREVIEW") == "1" || os.Getenv("WT_SESSION") != "" {
		return true
	}
	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "foot") || strings.HasPrefix(term, "st-") || term == "st" || term == "linux"
}

func hasChafa() bool {
	if os.Getenv("NO_CHAFA") == "1" {
		return false
	}
	if os.Getenv("CHAFAPREVIEW") == "1" {
		return true
	}
	_, err := exec.LookPath("chafa")
	return err == nil
}

// PreviewSize is the placement of a preview in terminal cells.
type PreviewSize struct {
	Cols        int
	Rows        int
	PixelWidth  int
	PixelHeight int
}

const (
	cellWidth  = 8
	cellHeight = 16
	minCols    = 6
	minRows    = 3
	maxCols    = 80
	maxRows    = 40
)

// computePreviewSize fits the image into at most maxCols x maxRows cells,
// keeping its aspect ratio and never enlarging it.
func computePreviewSize(img image.Image) PreviewSize {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w <= 0 || h <= 0 {
		return PreviewSize{minCols, minRows, minCols * cellWidth, minRows * cellHeight}
	}
	scale := math.Min(1, math.Min(
		float64(maxCols*cellWidth)/float64(w),
		float64(maxRows*cellHeight)/float64(h),
	))
	cols := int(math.Round(float64(w) * scale / cellWidth))
	rows := int(math.Round(float64(h) * scale / cellHeight))
	cols = max(minCols, min(maxCols, cols))
	rows = max(minRows, min(maxRows, rows))
	return PreviewSize{
		Cols:        cols,
		Rows:        rows,
		PixelWidth:  cols * cellWidth,
		PixelHeight: rows * cellHeight,
	}
}

// postImageNewlines is how many lines to advance after an image so the
// next output lands below it.
func postImageNewlines(rows int) int {
	switch {
	case rows <= 2:
		return 1
	case rows <= 6:
		return 2
	case rows <= 20:
		return 3
	default:
		return 4
	}
}

// PreviewSupported reports whether some preview backend is likely to work.
func PreviewSupported() bool {
	ok := isKitty() || isInlineImageCapable() || isSixelCapable() || hasChafa()
	debugf("supported=%v kitty=%v inline=%v sixel=%v chafa=%v",
		ok, isKitty(), isInlineImageCapable(), isSixelCapable(), hasChafa())
	return ok
}

// PreviewImage writes a terminal preview of img to w. format selects the
// payload encoding ("png" or "jpeg"); kitty always receives PNG. Images
// larger than the preview area are downscaled first.
func PreviewImage(w io.Writer, img image.Image, format string) error {
	if img == nil {
		return fmt.Errorf("nil image")
	}
	size := computePreviewSize(img)
	b := img.Bounds()
	if b.Dx() > size.PixelWidth || b.Dy() > size.PixelHeight {
		scale := math.Min(float64(size.PixelWidth)/float64(b.Dx()), float64(size.PixelHeight)/float64(b.Dy()))
		tw := max(1, int(math.Round(float64(b.Dx())*scale)))
		th := max(1, int(math.Round(float64(b.Dy())*scale)))
		img = transform.Resize(img, tw, th, transform.Box)
		debugf("downscaled %dx%d to %dx%d", b.Dx(), b.Dy(), tw, th)
	}

	f := strings.ToLower(format)
	backend := strings.ToLower(os.Getenv("PREVIEW_BACKEND"))
	if backend == "kitty" || (backend == "" && isKitty()) {
		f = "png"
	}
	var buf bytes.Buffer
	if f == "jpeg" || f == "jpg" {
		f = "jpeg"
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return fmt.Errorf("jpeg encode failed: %w", err)
		}
	} else {
		f = "png"
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("png encode failed: %w", err)
		}
	}
	return previewBytes(w, buf.Bytes(), f, size)
}

type previewBackend struct {
	name   string
	detect func() bool
	send   func(w io.Writer, data []byte, format string, size PreviewSize) error
}

var previewBackends = []previewBackend{
	{"inline", isInlineImageCapable, sendInlineImage},
	{"kitty", isKitty, sendKittyImage},
	{"sixel", isSixelCapable, sendSixelImage},
	{"chafa", hasChafa, sendChafaImage},
}

// previewBytes tries the forced backend, then every detected backend in
// order, and returns the first failure when none succeeds.
func previewBytes(w io.Writer, data []byte, format string, size PreviewSize) error {
	if len(data) == 0 {
		return fmt.Errorf("empty image blob")
	}
	forced := strings.ToLower(os.Getenv("PREVIEW_BACKEND"))
	switch forced {
	case "iterm", "wezterm":
		forced = "inline"
	}

	var firstErr error
	tried := map[string]bool{}
	try := func(b previewBackend) bool {
		tried[b.name] = true
		debugf("trying %s backend", b.name)
		err := b.send(w, data, format, size)
		if err == nil {
			return true
		}
		debugf("%s backend failed: %v", b.name, err)
		if firstErr == nil {
			firstErr = fmt.Errorf("%s preview failed: %w", b.name, err)
		}
		return false
	}

	if forced != "" {
		for _, b := range previewBackends {
			if b.name == forced && try(b) {
				return nil
			}
		}
	}
	for _, b := range previewBackends {
		if tried[b.name] || !b.detect() {
			continue
		}
		if try(b) {
			return nil
		}
	}
	if firstErr != nil {
		return firstErr
	}
	return errNoPreview
}

func newlines(w io.Writer, n int) error {
	_, err := io.WriteString(w, strings.Repeat("\n", n))
	return err
}

// sendKittyImage transmits a PNG with the kitty graphics protocol in base64
// chunks of at most 4096 bytes. The first chunk carries the placement in
// cells; q=2 suppresses terminal responses.
func sendKittyImage(w io.Writer, data []byte, _ string, size PreviewSize) error {
	const chunkSize = 4096
	enc := base64.StdEncoding.EncodeToString(data)
	for pos := 0; pos < len(enc); pos += chunkSize {
		end := min(pos+chunkSize, len(enc))
		more := "1"
		if end == len(enc) {
			more = "0"
		}
		var seq string
		if pos == 0 {
			seq = fmt.Sprintf("\x1b_Ga=T,f=100,t=d,q=2,c=%d,r=%d,m=%s;%s\x1b\\", size.Cols, size.Rows, more, enc[pos:end])
		} else {
			seq = "\x1b_Gm=" + more + ";" + enc[pos:end] + "\x1b\\"
		}
		if _, err := io.WriteString(w, seq); err != nil {
			return err
		}
	}
	return newlines(w, postImageNewlines(size.Rows))
}

func inlineSequence(data []byte, format string, size PreviewSize) string {
	name := "preview.png"
	if format == "jpeg" {
		name = "preview.jpg"
	}
	meta := fmt.Sprintf("size=%d;", len(data))
	if size.PixelWidth > 0 && size.PixelHeight > 0 {
		meta += fmt.Sprintf("width=%dpx;height=%dpx;", size.PixelWidth, size.PixelHeight)
	}
	return "\x1b]1337;File=name=" + name + ";inline=1;" + meta + ":" +
		base64.StdEncoding.EncodeToString(data) + "\a"
}

// sendInlineImage emits the iTerm2 inline image OSC 1337 sequence.
func sendInlineImage(w io.Writer, data []byte, format string, size PreviewSize) error {
	if _, err := io.WriteString(w, inlineSequence(data, format, size)); err != nil {
		return err
	}
	return newlines(w, postImageNewlines(0))
}

// sendSixelImage pipes the payload to img2sixel.
func sendSixelImage(w io.Writer, data []byte, _ string, _ PreviewSize) error {
	if _, err := exec.LookPath("img2sixel"); err != nil {
		return fmt.Errorf("img2sixel not found in PATH: %w", err)
	}
	cmd := exec.Command("img2sixel", "-")
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = w
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("img2sixel failed: %w", err)
	}
	return newlines(w, postImageNewlines(0))
}

// sendChafaImage renders the payload with chafa block symbols. CHAFA_FILL
// and CHAFA_SYMBOLS override the defaults.
func sendChafaImage(w io.Writer, data []byte, _ string, size PreviewSize) error {
	if os.Getenv("NO_CHAFA") == "1" {
		return fmt.Errorf("chafa usage disabled via NO_CHAFA=1")
	}
	if _, err := exec.LookPath("chafa"); err != nil {
		return fmt.Errorf("chafa not found in PATH: %w", err)
	}
	fill, symbols := "block", "block"
	if v := os.Getenv("CHAFA_FILL"); v != "" {
		fill = v
	}
	if v := os.Getenv("CHAFA_SYMBOLS"); v != "" {
		symbols = v
	}
	cmd := exec.Command("chafa",
		"--fill="+fill, "--symbols="+symbols,
		"-s", fmt.Sprintf("%dx%d", size.Cols, size.Rows), "-")
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = w
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("chafa failed: %w", err)
	}
	return newlines(w, postImageNewlines(size.Rows))
}
