package willowmap

import (
	"image/color"
	"math"

	"github.com/golang/geo/s2"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/rs/zerolog"
	"github.com/tanema/gween/ease"
)

const (
	defaultMaxZoom = 18

	overlayPaneZ = 0
	popupPaneZ   = 100

	wheelZoomStep = 0.25
)

// MapConfig configures a new Map.
type MapConfig struct {
	Width, Height int

	Center s2.LatLng
	Zoom   float64
	// MinZoom and MaxZoom clamp every view change. Both zero means [0, 18].
	MinZoom, MaxZoom float64

	// CRS defaults to WebMercator.
	CRS CRS

	Background Color
	// Graticule draws lat/lng grid lines in place of tiles.
	Graticule bool
}

// MapOption customizes a Map.
type MapOption func(*Map)

// WithMapLogger sets the logger used by the map and its scene.
func WithMapLogger(l zerolog.Logger) MapOption {
	return func(m *Map) {
		m.logger = l
	}
}

// Layer is anything the map advances once per frame.
type Layer interface {
	Update()
}

type viewHandler struct {
	id uint32
	fn func(*Map)
}

// ViewHandle removes a view-change callback.
type ViewHandle struct {
	id uint32
	m  *Map
}

// Remove unregisters the callback. Safe to call more than once.
func (h ViewHandle) Remove() {
	if h.m == nil {
		return
	}
	hs := h.m.viewHandlers
	for i := range hs {
		if hs[i].id == h.id {
			h.m.viewHandlers = append(hs[:i:i], hs[i+1:]...)
			return
		}
	}
}

// Map is an interactive slippy map view. It owns a scene whose world space is
// layer pixels at the reference zoom fixed when the map was created.
type Map struct {
	cfg     MapConfig
	crs     CRS
	refZoom float64
	zoom    float64

	scene       *Scene
	camera      *Camera
	overlayPane *Node
	popupPane   *Node

	popups    []*Popup
	lastPopup *Popup

	viewHandlers []viewHandler
	nextViewID   uint32
	layers       []Layer

	script     *ScriptRunner
	shots      []string
	shotDir    string
	shotFormat ScreenshotFormat

	logger zerolog.Logger
}

// NewMap creates a map showing cfg.Center at cfg.Zoom.
func NewMap(cfg MapConfig, opts ...MapOption) *Map {
	if cfg.CRS == nil {
		cfg.CRS = WebMercator
	}
	if cfg.MinZoom == 0 && cfg.MaxZoom == 0 {
		cfg.MaxZoom = defaultMaxZoom
	}

	m := &Map{
		cfg:    cfg,
		crs:    cfg.CRS,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.zoom = m.clampZoom(cfg.Zoom)
	m.refZoom = m.zoom

	m.camera = newCamera(Rect{Width: float64(cfg.Width), Height: float64(cfg.Height)})
	m.scene = NewScene()
	m.scene.SetCamera(m.camera)
	m.scene.SetLogger(m.logger)

	m.overlayPane = NewContainer("overlay-pane")
	m.overlayPane.Interactable = true
	m.overlayPane.SetZIndex(overlayPaneZ)
	m.popupPane = NewContainer("popup-pane")
	m.popupPane.Interactable = true
	m.popupPane.SetZIndex(popupPaneZ)
	m.scene.Root().AddChild(m.overlayPane)
	m.scene.Root().AddChild(m.popupPane)

	p := m.LatLngToLayerPoint(cfg.Center)
	m.camera.X, m.camera.Y = p.X, p.Y
	m.camera.Zoom = ZoomScale(m.zoom, m.refZoom)
	m.camera.MarkDirty()

	// Dragging anywhere pans; a click on empty map closes click-closable popups.
	m.scene.SetDragDeadZone(2)
	m.scene.OnDrag(func(ctx DragContext) {
		m.PanBy(-ctx.ScreenDeltaX, -ctx.ScreenDeltaY)
	})
	m.scene.OnClick(func(ctx PointerContext) {
		if ctx.Node == nil {
			m.closePopupsOnClick()
		}
	})

	return m
}

// Scene returns the map's scene graph.
func (m *Map) Scene() *Scene {
	return m.scene
}

// Camera returns the map camera. Its Zoom is the current scale factor.
func (m *Map) Camera() *Camera {
	return m.camera
}

// CRS returns the map projection.
func (m *Map) CRS() CRS {
	return m.crs
}

// Zoom returns the current zoom level.
func (m *Map) Zoom() float64 {
	return m.zoom
}

// ReferenceZoom returns the zoom level layer points are expressed in.
func (m *Map) ReferenceZoom() float64 {
	return m.refZoom
}

// Scale returns the factor between layer pixels and screen pixels,
// 2^(zoom-reference).
func (m *Map) Scale() float64 {
	return m.camera.Zoom
}

// Center returns the geographic center of the view.
func (m *Map) Center() s2.LatLng {
	return m.LayerPointToLatLng(Vec2{m.camera.X, m.camera.Y})
}

// Size returns the viewport size in pixels.
func (m *Map) Size() (w, h int) {
	return m.cfg.Width, m.cfg.Height
}

// Resize changes the viewport size, keeping the center.
func (m *Map) Resize(w, h int) {
	if w == m.cfg.Width && h == m.cfg.Height {
		return
	}
	m.cfg.Width, m.cfg.Height = w, h
	m.camera.Viewport = Rect{Width: float64(w), Height: float64(h)}
	m.camera.MarkDirty()
	m.viewChanged()
}

// --- Coordinates ---

// LatLngToLayerPoint projects ll into layer pixels at the reference zoom.
func (m *Map) LatLngToLayerPoint(ll s2.LatLng) Vec2 {
	return m.crs.Project(ll, m.refZoom)
}

// LayerPointToLatLng is the inverse of LatLngToLayerPoint.
func (m *Map) LayerPointToLatLng(p Vec2) s2.LatLng {
	return m.crs.Unproject(p, m.refZoom)
}

// LatLngToScreen returns the screen position of ll in the current view.
func (m *Map) LatLngToScreen(ll s2.LatLng) Vec2 {
	p := m.LatLngToLayerPoint(ll)
	x, y := m.camera.WorldToScreen(p.X, p.Y)
	return Vec2{x, y}
}

// ScreenToLatLng returns the geographic position under a screen point.
func (m *Map) ScreenToLatLng(sx, sy float64) s2.LatLng {
	x, y := m.camera.ScreenToWorld(sx, sy)
	return m.LayerPointToLatLng(Vec2{x, y})
}

// Distance returns the great-circle distance between a and b in meters.
func (m *Map) Distance(a, b s2.LatLng) float64 {
	return Distance(a, b)
}

// --- View changes ---

// OnViewChange registers fn to run after every pan or zoom.
func (m *Map) OnViewChange(fn func(*Map)) ViewHandle {
	m.nextViewID++
	m.viewHandlers = append(m.viewHandlers, viewHandler{id: m.nextViewID, fn: fn})
	return ViewHandle{id: m.nextViewID, m: m}
}

// SetView moves the map to center at zoom immediately.
func (m *Map) SetView(center s2.LatLng, zoom float64) {
	m.camera.StopAnimation()
	m.zoom = m.clampZoom(zoom)
	p := m.LatLngToLayerPoint(center)
	m.camera.X, m.camera.Y = p.X, p.Y
	m.camera.Zoom = ZoomScale(m.zoom, m.refZoom)
	m.camera.MarkDirty()
	m.viewChanged()
}

// SetZoom changes the zoom level around the current center.
func (m *Map) SetZoom(zoom float64) {
	m.SetView(m.Center(), zoom)
}

// PanBy moves the view by (dx, dy) screen pixels.
func (m *Map) PanBy(dx, dy float64) {
	if dx == 0 && dy == 0 {
		return
	}
	m.camera.StopAnimation()
	m.camera.X += dx / m.camera.Zoom
	m.camera.Y += dy / m.camera.Zoom
	m.camera.MarkDirty()
	m.viewChanged()
}

// ZoomAround changes the zoom by delta keeping the point under (sx, sy) fixed.
func (m *Map) ZoomAround(sx, sy, delta float64) {
	zoom := m.clampZoom(m.zoom + delta)
	if zoom == m.zoom {
		return
	}
	m.camera.StopAnimation()
	wx, wy := m.camera.ScreenToWorld(sx, sy)
	scale := ZoomScale(zoom, m.refZoom)
	cx := m.camera.Viewport.X + m.camera.Viewport.Width/2
	cy := m.camera.Viewport.Y + m.camera.Viewport.Height/2

	m.zoom = zoom
	m.camera.Zoom = scale
	m.camera.X = wx - (sx-cx)/scale
	m.camera.Y = wy - (sy-cy)/scale
	m.camera.MarkDirty()
	m.viewChanged()
}

// FlyTo animates the view to center at zoom over seconds.
func (m *Map) FlyTo(center s2.LatLng, zoom float64, seconds float32) {
	p := m.LatLngToLayerPoint(center)
	m.camera.AnimateTo(p.X, p.Y, ZoomScale(m.clampZoom(zoom), m.refZoom), seconds, ease.InOutQuad)
	if seconds <= 0 {
		m.syncZoom()
		m.viewChanged()
	}
}

func (m *Map) clampZoom(z float64) float64 {
	return math.Max(m.cfg.MinZoom, math.Min(m.cfg.MaxZoom, z))
}

// syncZoom derives the zoom level from the camera scale after an animation
// step.
func (m *Map) syncZoom() {
	m.zoom = m.refZoom + math.Log2(m.camera.Zoom)
}

// viewChanged keeps popups at constant screen size and notifies listeners.
func (m *Map) viewChanged() {
	inv := 1 / m.camera.Zoom
	for _, p := range m.popups {
		p.node.SetScale(inv, inv)
	}
	for _, h := range append([]viewHandler(nil), m.viewHandlers...) {
		h.fn(m)
	}
}

// --- Layers ---

// AddLayer registers l to be updated every frame. Adding twice is a no-op.
func (m *Map) AddLayer(l Layer) {
	if m.HasLayer(l) {
		return
	}
	m.layers = append(m.layers, l)
}

// RemoveLayer unregisters l.
func (m *Map) RemoveLayer(l Layer) {
	for i, x := range m.layers {
		if x == l {
			m.layers = append(m.layers[:i:i], m.layers[i+1:]...)
			return
		}
	}
}

// HasLayer reports whether l is registered.
func (m *Map) HasLayer(l Layer) bool {
	for _, x := range m.layers {
		if x == l {
			return true
		}
	}
	return false
}

// newOverlayContainer creates a container in the overlay pane.
func (m *Map) newOverlayContainer(name string) *Node {
	c := NewContainer(name)
	c.Interactable = true
	m.overlayPane.AddChild(c)
	return c
}

// --- Frame loop ---

// Update handles wheel zoom, pointer input, camera animation and layers.
// Call once per tick.
func (m *Map) Update() {
	if _, wy := ebiten.Wheel(); wy != 0 {
		cx, cy := ebiten.CursorPosition()
		m.ZoomAround(float64(cx), float64(cy), wy*wheelZoomStep)
	}
	m.update(float32(1.0 / float64(ebiten.TPS())))
}

func (m *Map) update(dt float32) {
	if m.script != nil {
		m.script.step(m)
	}
	if m.scene.update(dt) {
		m.syncZoom()
		m.viewChanged()
	}
	for _, l := range append([]Layer(nil), m.layers...) {
		l.Update()
	}
}

// Draw renders background, overlays and popups.
func (m *Map) Draw(screen *ebiten.Image) {
	if m.cfg.Background.A > 0 {
		screen.Fill(m.cfg.Background.RGBA())
	}
	if m.cfg.Graticule {
		m.drawGraticule(screen)
	}
	for _, p := range m.popups {
		p.paint()
	}
	m.scene.Draw(screen)
	m.flushScreenshots(screen)
}

var graticuleColor = color.RGBA{R: 70, G: 80, B: 96, A: 255}

// graticuleStep picks a grid spacing in degrees for the current zoom.
func graticuleStep(zoom float64) float64 {
	switch {
	case zoom < 3:
		return 30
	case zoom < 5:
		return 10
	case zoom < 7:
		return 5
	case zoom < 9:
		return 1
	default:
		return 0.25
	}
}

func (m *Map) drawGraticule(screen *ebiten.Image) {
	step := graticuleStep(m.zoom)
	nw := m.ScreenToLatLng(0, 0)
	se := m.ScreenToLatLng(float64(m.cfg.Width), float64(m.cfg.Height))

	top := math.Min(MaxLatitude, nw.Lat.Degrees())
	bottom := math.Max(-MaxLatitude, se.Lat.Degrees())
	left := math.Max(-180, nw.Lng.Degrees())
	right := math.Min(180, se.Lng.Degrees())

	for lng := math.Ceil(left/step) * step; lng <= right; lng += step {
		a := m.LatLngToScreen(s2.LatLngFromDegrees(top, lng))
		b := m.LatLngToScreen(s2.LatLngFromDegrees(bottom, lng))
		vector.StrokeLine(screen, float32(a.X), float32(a.Y), float32(b.X), float32(b.Y), 1, graticuleColor, false)
	}
	for lat := math.Ceil(bottom/step) * step; lat <= top; lat += step {
		a := m.LatLngToScreen(s2.LatLngFromDegrees(lat, left))
		b := m.LatLngToScreen(s2.LatLngFromDegrees(lat, right))
		vector.StrokeLine(screen, float32(a.X), float32(a.Y), float32(b.X), float32(b.Y), 1, graticuleColor, false)
	}
}
