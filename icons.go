package willowmap

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
	"github.com/zyedidia/generic/mapset"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// DefaultIconColor is used for markers without a color and for unknown colors.
const DefaultIconColor = "red"

// DefaultIconURLTemplate points at the leaflet-color-markers icon set. {color}
// is replaced by the color key.
const DefaultIconURLTemplate = "https://raw.githubusercontent.com/pointhi/leaflet-color-markers/master/img/marker-icon-{color}.png"

// IconColors is the fixed set of marker colors fetched by Load.
var IconColors = []string{"red", "gold", "grey", "blue", "green"}

// Marker icon dimensions in pixels.
const (
	IconWidth  = 25
	IconHeight = 41
)

// IconCacheOption customizes an IconCache.
type IconCacheOption func(*IconCache)

// WithHTTPClient sets the client used to fetch icons.
func WithHTTPClient(c *http.Client) IconCacheOption {
	return func(ic *IconCache) {
		ic.client = c
	}
}

// WithURLTemplate sets the icon source. Sources not starting with "http" are
// read from the local filesystem.
func WithURLTemplate(tmpl string) IconCacheOption {
	return func(ic *IconCache) {
		ic.urlTemplate = tmpl
	}
}

// WithIconColors replaces the set of colors fetched by Load.
func WithIconColors(colors ...string) IconCacheOption {
	return func(ic *IconCache) {
		ic.colors = append([]string(nil), colors...)
	}
}

// WithIconLogger sets the cache's logger.
func WithIconLogger(l zerolog.Logger) IconCacheOption {
	return func(ic *IconCache) {
		ic.logger = l
	}
}

// IconCache loads marker icons once and shares them between layers. Load runs
// in the background; the game loop polls IsReady.
type IconCache struct {
	client      *http.Client
	urlTemplate string
	colors      []string
	logger      zerolog.Logger

	once  sync.Once
	ready chan struct{}

	mu      sync.Mutex
	decoded map[string]image.Image
	icons   map[string]*ebiten.Image
	errs    []error
}

// NewIconCache returns an empty cache. Nothing is fetched until Load.
func NewIconCache(opts ...IconCacheOption) *IconCache {
	ic := &IconCache{
		client:      &http.Client{Timeout: 30 * time.Second},
		urlTemplate: DefaultIconURLTemplate,
		colors:      IconColors,
		logger:      zerolog.Nop(),
		ready:       make(chan struct{}),
		decoded:     make(map[string]image.Image),
		icons:       make(map[string]*ebiten.Image),
	}
	for _, opt := range opts {
		opt(ic)
	}
	return ic
}

// NewIconCacheFromImages returns a cache that is already ready and holds
// images. Load on it is a no-op.
func NewIconCacheFromImages(images map[string]*ebiten.Image, opts ...IconCacheOption) *IconCache {
	ic := NewIconCache(opts...)
	for c, img := range images {
		ic.icons[c] = img
	}
	ic.once.Do(func() {
		close(ic.ready)
	})
	return ic
}

var (
	defaultIconsOnce sync.Once
	defaultIcons     *IconCache
)

// DefaultIconCache returns the process-wide cache used by layers created
// without one.
func DefaultIconCache() *IconCache {
	defaultIconsOnce.Do(func() {
		defaultIcons = NewIconCache()
	})
	return defaultIcons
}

// Load starts fetching every color not already present. Only the first call
// has any effect; it never blocks.
func (ic *IconCache) Load(ctx context.Context) {
	ic.once.Do(func() {
		go ic.load(ctx)
	})
}

// Ready is closed once loading has finished, successfully or not.
func (ic *IconCache) Ready() <-chan struct{} {
	return ic.ready
}

// IsReady reports whether loading has finished.
func (ic *IconCache) IsReady() bool {
	select {
	case <-ic.ready:
		return true
	default:
		return false
	}
}

// Has reports whether an icon for color is available.
func (ic *IconCache) Has(color string) bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if _, ok := ic.icons[color]; ok {
		return true
	}
	_, ok := ic.decoded[color]
	return ok
}

// Icon returns the icon for color. Decoded images are uploaded to the GPU on
// first use, so call it from the game goroutine.
func (ic *IconCache) Icon(color string) (*ebiten.Image, error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if img, ok := ic.icons[color]; ok {
		return img, nil
	}
	src, ok := ic.decoded[color]
	if !ok {
		return nil, &UnknownIconColorError{Color: color}
	}
	img := ebiten.NewImageFromImage(src)
	ic.icons[color] = img
	delete(ic.decoded, color)
	return img, nil
}

// Put registers img under color.
func (ic *IconCache) Put(color string, img *ebiten.Image) {
	ic.mu.Lock()
	ic.icons[color] = img
	delete(ic.decoded, color)
	ic.mu.Unlock()
}

// Colors returns the available color keys, sorted.
func (ic *IconCache) Colors() []string {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	set := mapset.New[string]()
	for c := range ic.icons {
		set.Put(c)
	}
	for c := range ic.decoded {
		set.Put(c)
	}
	out := make([]string, 0, set.Size())
	set.Each(func(c string) {
		out = append(out, c)
	})
	sort.Strings(out)
	return out
}

// Errors returns one AssetLoadFailedError per color that failed to load.
func (ic *IconCache) Errors() []error {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return append([]error(nil), ic.errs...)
}

// IconURL expands the template for color.
func (ic *IconCache) IconURL(color string) string {
	return strings.ReplaceAll(ic.urlTemplate, "{color}", color)
}

func (ic *IconCache) load(ctx context.Context) {
	defer close(ic.ready)

	start := time.Now()
	var g errgroup.Group
	for _, color := range ic.colors {
		if ic.Has(color) {
			continue
		}
		g.Go(func() error {
			url := ic.IconURL(color)
			img, err := ic.fetch(ctx, url)
			ic.mu.Lock()
			defer ic.mu.Unlock()
			if err != nil {
				err = &AssetLoadFailedError{Color: color, URL: url, Err: err}
				ic.errs = append(ic.errs, err)
				return err
			}
			ic.decoded[color] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		ic.logger.Warn().Err(err).Int("failed", len(ic.Errors())).Msg("icon loading finished with errors")
		return
	}
	ic.logger.Debug().Dur("took", time.Since(start)).Int("colors", len(ic.colors)).Msg("icons loaded")
}

func (ic *IconCache) fetch(ctx context.Context, source string) (image.Image, error) {
	var reader io.Reader

	if strings.HasPrefix(source, "http") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := ic.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("download failed: %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(body)
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		reader = f
	}

	img, format, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	ic.logger.Trace().Str("source", source).Str("format", format).Msg("icon decoded")
	return img, nil
}
