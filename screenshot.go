package willowmap

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/hajimehoshi/ebiten/v2"
)

const defaultScreenshotDir = "screenshots"

// ScreenshotFormat selects the encoding of captured frames.
type ScreenshotFormat string

const (
	ScreenshotPNG  ScreenshotFormat = "png"
	ScreenshotWebP ScreenshotFormat = "webp"
)

// Screenshot queues a labeled capture of the next drawn frame. The frame is
// written in the configured format to the screenshot directory with a
// timestamped name.
func (m *Map) Screenshot(label string) {
	m.shots = append(m.shots, label)
}

// SetScreenshotDir changes where screenshots are written.
func (m *Map) SetScreenshotDir(dir string) {
	m.shotDir = dir
}

// SetScreenshotFormat changes the encoding of captured frames. Unknown formats
// fall back to PNG.
func (m *Map) SetScreenshotFormat(f ScreenshotFormat) {
	m.shotFormat = f
}

// flushScreenshots captures screen once for every queued label.
func (m *Map) flushScreenshots(screen *ebiten.Image) {
	if len(m.shots) == 0 {
		return
	}
	defer func() { m.shots = m.shots[:0] }()

	dir := m.shotDir
	if dir == "" {
		dir = defaultScreenshotDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.logger.Error().Err(err).Str("dir", dir).Msg("screenshot directory unavailable")
		return
	}

	img := readFrame(screen)
	stamp := time.Now().Format("20060102_150405")
	for _, label := range m.shots {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s", stamp, sanitizeLabel(label)))
		var err error
		if m.shotFormat == ScreenshotWebP {
			path += ".webp"
			err = writeWebP(path, img)
		} else {
			path += ".png"
			err = writePNG(path, img)
		}
		if err != nil {
			m.logger.Error().Err(err).Msg("screenshot failed")
			continue
		}
		m.logger.Info().Str("path", path).Msg("screenshot written")
	}
}

// readFrame copies screen into a straight-alpha image.
func readFrame(screen *ebiten.Image) *image.NRGBA {
	bounds := screen.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, 4*w*h)
	screen.ReadPixels(pixels)

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(pixels); i += 4 {
		r, g, b, a := pixels[i], pixels[i+1], pixels[i+2], pixels[i+3]
		if a > 0 && a < 255 {
			r = uint8(min(int(r)*255/int(a), 255))
			g = uint8(min(int(g)*255/int(a), 255))
			b = uint8(min(int(b)*255/int(a), 255))
		}
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = a
	}
	return img
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("willowmap: create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("willowmap: encode %s: %w", path, err)
	}
	return f.Close()
}

// writeWebP encodes img losslessly.
func writeWebP(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("willowmap: create %s: %w", path, err)
	}
	if err := webp.Encode(f, img, &webp.Options{Lossless: true}); err != nil {
		f.Close()
		return fmt.Errorf("willowmap: encode %s: %w", path, err)
	}
	return f.Close()
}

// sanitizeLabel keeps file names portable.
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
