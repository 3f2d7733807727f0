package willowmap

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"paris", "paris"},
		{"after-click", "after-click"},
		{"zoom.05", "zoom.05"},
		{"has spaces", "has_spaces"},
		{"path/to/thing", "path_to_thing"},
		{"special!@#", "special___"},
		{"", "unlabeled"},
		{"   ", "unlabeled"},
	}
	for _, tt := range tests {
		if got := sanitizeLabel(tt.in); got != tt.want {
			t.Errorf("sanitizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScreenshotQueue(t *testing.T) {
	m := newTestMap(t)
	m.Screenshot("a")
	m.Screenshot("b")
	if len(m.shots) != 2 || m.shots[0] != "a" || m.shots[1] != "b" {
		t.Errorf("queue = %v, want [a b]", m.shots)
	}
	m.SetScreenshotDir("out")
	if m.shotDir != "out" {
		t.Errorf("shotDir = %q", m.shotDir)
	}
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	if err := writePNG(path, img); err != nil {
		t.Fatalf("writePNG: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 4 || cfg.Height != 3 {
		t.Errorf("size = %dx%d, want 4x3", cfg.Width, cfg.Height)
	}

	if err := writePNG(filepath.Join(t.TempDir(), "missing", "x.png"), img); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestWriteWebP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.webp")
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	if err := writeWebP(path, img); err != nil {
		t.Fatalf("writeWebP: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if format != "webp" || cfg.Width != 4 || cfg.Height != 3 {
		t.Errorf("got %s %dx%d, want webp 4x3", format, cfg.Width, cfg.Height)
	}
}
