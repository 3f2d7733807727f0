package willowmap

import (
	"context"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
	"github.com/zyedidia/generic/mapset"
)

// layerState tracks the render preconditions: icons loaded, overlay bound and
// markers supplied.
type layerState uint8

const (
	stateWaiting  layerState = iota // some precondition missing
	stateReady                      // all preconditions met, render pending
	stateRendered                   // nodes reflect the current markers
)

func (s layerState) String() string {
	switch s {
	case stateWaiting:
		return "waiting"
	case stateReady:
		return "ready"
	case stateRendered:
		return "rendered"
	}
	return "unknown"
}

// LayerOption customizes a MarkerLayer.
type LayerOption func(*MarkerLayer)

// WithLayerLogger sets the layer's logger.
func WithLayerLogger(l zerolog.Logger) LayerOption {
	return func(ml *MarkerLayer) {
		ml.logger = l
	}
}

// WithEventSink forwards marker events to sink.
func WithEventSink(sink EventSink) LayerOption {
	return func(ml *MarkerLayer) {
		ml.sink = sink
	}
}

// MarkerLayer renders markers as icon sprites in an overlay bound to a Map and
// manages their popup and tooltip.
type MarkerLayer struct {
	icons   *IconCache
	m       *Map
	overlay *Overlay
	rec     *Reconciler

	markers     []Marker
	markersSet  bool
	assetsReady bool
	state       layerState

	warnedColors mapset.Set[string]
	sink         EventSink
	logger       zerolog.Logger
}

// NewMarkerLayer returns a layer drawing icons from icons, or from
// DefaultIconCache when icons is nil.
func NewMarkerLayer(icons *IconCache, opts ...LayerOption) *MarkerLayer {
	if icons == nil {
		icons = DefaultIconCache()
	}
	ml := &MarkerLayer{
		icons:        icons,
		warnedColors: mapset.New[string](),
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(ml)
	}
	ml.rec = NewReconciler(nil)
	ml.rec.OnDeselect(func(req DisplayRequest) {
		ml.emit(MarkerDeselected, req.ID)
	})
	return ml
}

// SetEventSink forwards marker events to sink. nil stops forwarding.
func (ml *MarkerLayer) SetEventSink(sink EventSink) {
	ml.sink = sink
}

func (ml *MarkerLayer) emit(t MarkerEventType, id string) {
	if ml.sink != nil {
		ml.sink.EmitMarkerEvent(MarkerEvent{Type: t, ID: id})
	}
}

// AddTo binds the layer to m and starts loading icons. Binding to a different
// map discards every node and pending popup or tooltip from the old one. A nil
// map is the same as Remove.
func (ml *MarkerLayer) AddTo(m *Map) {
	if m == nil {
		ml.Remove()
		return
	}
	if ml.m == m {
		return
	}
	if ml.m != nil {
		ml.teardown()
	}
	ml.m = m
	ml.rec.Rebind(m)
	ml.overlay = NewOverlay("markers", ml.redraw)
	ml.overlay.AddTo(m)
	m.AddLayer(ml)
	ml.logger.Debug().Msg("marker layer bound to map")

	ml.icons.Load(context.Background())
	ml.invalidate()
}

// Remove unbinds the layer from its map.
func (ml *MarkerLayer) Remove() {
	if ml.m == nil {
		return
	}
	ml.teardown()
	ml.rec.Rebind(nil)
	ml.invalidate()
}

func (ml *MarkerLayer) teardown() {
	ml.rec.Reset()
	ml.overlay.Remove()
	ml.overlay = nil
	ml.m.RemoveLayer(ml)
	ml.m = nil
}

// Map returns the bound map, or nil.
func (ml *MarkerLayer) Map() *Map {
	return ml.m
}

// Overlay returns the layer's overlay, or nil when unbound.
func (ml *MarkerLayer) Overlay() *Overlay {
	return ml.overlay
}

// Reconciler returns the popup and tooltip reconciler.
func (ml *MarkerLayer) Reconciler() *Reconciler {
	return ml.rec
}

// Nodes returns the rendered marker nodes.
func (ml *MarkerLayer) Nodes() []*Node {
	if ml.overlay == nil {
		return nil
	}
	return ml.overlay.Container().Children()
}

// Markers returns the current marker slice.
func (ml *MarkerLayer) Markers() []Marker {
	return ml.markers
}

// SetMarkers supplies the markers to render. Passing the slice already held
// does nothing; any other slice replaces the rendered nodes.
func (ml *MarkerLayer) SetMarkers(markers []Marker) {
	if ml.markersSet && sameMarkers(ml.markers, markers) {
		return
	}
	ml.markers = markers
	ml.markersSet = true
	ml.invalidate()
}

// Refresh re-renders the current markers, for callers that edited the slice
// in place.
func (ml *MarkerLayer) Refresh() {
	ml.invalidate()
}

func sameMarkers(a, b []Marker) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return (a == nil) == (b == nil)
	}
	return &a[0] == &b[0]
}

// Update polls the icon cache and renders once every precondition holds.
func (ml *MarkerLayer) Update() {
	ml.advance()
}

// invalidate marks the nodes stale and renders if possible.
func (ml *MarkerLayer) invalidate() {
	ml.state = stateWaiting
	ml.advance()
}

func (ml *MarkerLayer) advance() {
	if !ml.assetsReady && ml.icons.IsReady() {
		ml.assetsReady = true
		for _, err := range ml.icons.Errors() {
			ml.logger.Warn().Err(err).Msg("marker icon unavailable")
		}
	}
	if ml.state == stateRendered {
		return
	}
	if !ml.assetsReady || ml.overlay == nil || !ml.markersSet {
		ml.state = stateWaiting
		return
	}
	ml.state = stateReady
	ml.render()
	ml.state = stateRendered
}

// Render draws the markers now. It returns ErrOverlayUnavailable when the
// layer is not bound; with icons still loading it defers to Update.
func (ml *MarkerLayer) Render() error {
	if ml.overlay == nil {
		return ErrOverlayUnavailable
	}
	ml.invalidate()
	return nil
}

// render rebuilds every marker node and resets popup and tooltip requests.
func (ml *MarkerLayer) render() {
	container := ml.overlay.Container()
	container.DisposeChildren()

	scale := ml.overlay.Scale()
	seen := mapset.New[string]()
	var popup *DisplayRequest

	for i := range ml.markers {
		mk := ml.markers[i]
		if seen.Has(mk.ID) {
			ml.logger.Warn().Str("id", mk.ID).Msg("duplicate marker id")
		}
		seen.Put(mk.ID)

		img, ok := ml.icon(mk)
		if !ok {
			continue
		}
		n := NewSprite("marker:"+mk.ID, img)
		n.UserData = mk.ID
		n.SetAnchor(0.5, 1)
		p := ml.overlay.Project(mk.Position)
		n.SetPosition(p.X, p.Y)
		n.SetScale(1/scale, 1/scale)

		if mk.PopupOpen {
			popup = &DisplayRequest{
				ID:       mk.ID,
				Offset:   markerPopupOffset,
				Position: mk.Position,
				Content:  mk.Popup,
				OnClick:  mk.OnClick,
			}
		}
		if mk.Interactive() {
			n.Interactable = true
			ml.bindInput(n, mk)
		}
		container.AddChild(n)
	}

	ml.rec.SetTooltip(nil)
	ml.rec.SetPopup(popup)
	ml.overlay.Render()
	ml.logger.Debug().
		Int("markers", len(ml.markers)).
		Int("nodes", container.NumChildren()).
		Msg("markers rendered")
}

// icon resolves the marker's icon, falling back to the default color.
func (ml *MarkerLayer) icon(mk Marker) (*ebiten.Image, bool) {
	color := mk.iconColor()
	if icon, err := ml.icons.Icon(color); err == nil {
		return icon, true
	}
	if !ml.warnedColors.Has(color) {
		ml.warnedColors.Put(color)
		ml.logger.Warn().Str("color", color).Str("fallback", DefaultIconColor).Msg("unknown marker color")
	}
	if icon, err := ml.icons.Icon(DefaultIconColor); err == nil {
		return icon, true
	}
	ml.logger.Warn().Str("id", mk.ID).Msg("marker skipped: no icon")
	return nil, false
}

func (ml *MarkerLayer) bindInput(n *Node, mk Marker) {
	if mk.Popup != "" || mk.OnClick != nil {
		n.Cursor = CursorShapePointer
		n.OnClick = func(PointerContext) {
			if mk.OnClick != nil {
				mk.OnClick(mk.ID, true)
			}
			ml.emit(MarkerClicked, mk.ID)
		}
	}
	if mk.Tooltip != "" {
		n.OnPointerEnter = func(PointerContext) {
			ml.rec.SetTooltip(&DisplayRequest{
				ID:       mk.ID,
				Offset:   markerPopupOffset,
				Position: mk.Position,
				Content:  mk.Tooltip,
			})
			ml.emit(MarkerHoverIn, mk.ID)
		}
		n.OnPointerLeave = func(PointerContext) {
			ml.rec.SetTooltip(nil)
			ml.emit(MarkerHoverOut, mk.ID)
		}
	}
}

// redraw keeps icons at constant screen size after a view change.
func (ml *MarkerLayer) redraw(o *Overlay) {
	inv := 1 / o.Scale()
	for _, n := range o.Container().Children() {
		n.SetScale(inv, inv)
	}
	o.Render()
}

// OpenPopup shows the popup of the marker with id. It reports false when no
// rendered marker has that id.
func (ml *MarkerLayer) OpenPopup(id string) bool {
	if ml.state != stateRendered {
		return false
	}
	for i := len(ml.markers) - 1; i >= 0; i-- {
		mk := ml.markers[i]
		if mk.ID != id {
			continue
		}
		ml.rec.SetPopup(&DisplayRequest{
			ID:       mk.ID,
			Offset:   markerPopupOffset,
			Position: mk.Position,
			Content:  mk.Popup,
			OnClick:  mk.OnClick,
		})
		return true
	}
	return false
}

// ClosePopup clears the popup request.
func (ml *MarkerLayer) ClosePopup() {
	ml.rec.SetPopup(nil)
}
