package willowmap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/hajimehoshi/ebiten/v2"
)

var (
	posOne   = s2.LatLngFromDegrees(0, 0)
	posTwo   = s2.LatLngFromDegrees(0, 20)
	posThree = s2.LatLngFromDegrees(0, -20)
)

func testIcons(colors ...string) *IconCache {
	if len(colors) == 0 {
		colors = []string{"red", "blue"}
	}
	images := make(map[string]*ebiten.Image, len(colors))
	for _, c := range colors {
		images[c] = ebiten.NewImage(IconWidth, IconHeight)
	}
	return NewIconCacheFromImages(images)
}

func newTestLayer(t *testing.T, markers []Marker, opts ...LayerOption) (*Map, *MarkerLayer) {
	t.Helper()
	m := newTestMap(t)
	l := NewMarkerLayer(testIcons(), opts...)
	l.AddTo(m)
	l.SetMarkers(markers)
	return m, l
}

// markerPoint returns a screen point inside the icon of a marker at ll.
func markerPoint(m *Map, ll s2.LatLng) (float64, float64) {
	p := m.LatLngToScreen(ll)
	return p.X, p.Y - 20
}

func TestMarkerLayerNodeCount(t *testing.T) {
	tests := []struct {
		name    string
		icons   []string
		markers []Marker
		want    int
	}{
		{"one per marker", nil, []Marker{
			{ID: "1", Position: posOne},
			{ID: "2", Position: posTwo, IconColor: "blue"},
			{ID: "3", Position: posThree},
		}, 3},
		{"unknown color falls back to red", nil, []Marker{
			{ID: "1", Position: posOne, IconColor: "purple"},
			{ID: "2", Position: posTwo, IconColor: "purple"},
		}, 2},
		{"unresolvable marker skipped", []string{"blue"}, []Marker{
			{ID: "1", Position: posOne, IconColor: "blue"},
			{ID: "2", Position: posTwo, IconColor: "purple"},
			{ID: "3", Position: posThree},
		}, 1},
		{"duplicate ids still rendered", nil, []Marker{
			{ID: "dup", Position: posOne},
			{ID: "dup", Position: posTwo},
		}, 2},
		{"empty", nil, []Marker{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMap(t)
			l := NewMarkerLayer(testIcons(tt.icons...))
			l.AddTo(m)
			l.SetMarkers(tt.markers)
			if got := len(l.Nodes()); got != tt.want {
				t.Errorf("nodes = %d, want %d", got, tt.want)
			}
			if l.state != stateRendered {
				t.Errorf("state = %v, want rendered", l.state)
			}
		})
	}
}

func TestMarkerLayerNodePlacement(t *testing.T) {
	m, l := newTestLayer(t, []Marker{{ID: "1", Position: posTwo}})
	n := l.Nodes()[0]

	want := m.LatLngToLayerPoint(posTwo)
	if n.X != want.X || n.Y != want.Y {
		t.Errorf("position = (%v, %v), want %+v", n.X, n.Y, want)
	}
	if n.PivotX != IconWidth/2.0 || n.PivotY != IconHeight {
		t.Errorf("pivot = (%v, %v), want bottom-center", n.PivotX, n.PivotY)
	}
	if n.ScaleX != 1 || n.UserData != "1" {
		t.Errorf("ScaleX = %v, UserData = %v", n.ScaleX, n.UserData)
	}
	if n.Interactable {
		t.Error("marker without popup, tooltip or callback should not be interactive")
	}
}

func TestMarkerLayerLastPopupOpenWins(t *testing.T) {
	m, l := newTestLayer(t, []Marker{
		{ID: "1", Position: posOne, Popup: "first", PopupOpen: true},
		{ID: "2", Position: posTwo, Popup: "second"},
		{ID: "3", Position: posThree, Popup: "third", PopupOpen: true},
	})

	req := l.Reconciler().PopupRequest()
	if req == nil || req.ID != "3" || req.Content != "third" || req.Offset != (Vec2{0, -35}) {
		t.Fatalf("PopupRequest = %+v, want marker 3", req)
	}
	if len(m.Popups()) != 1 || m.Popups()[0].Content() != "third" {
		t.Errorf("open popups = %d, want only marker 3", len(m.Popups()))
	}
}

func TestMarkerLayerPopupContentAloneDoesNotOpen(t *testing.T) {
	m, l := newTestLayer(t, []Marker{{ID: "1", Position: posOne, Popup: "content"}})
	if len(m.Popups()) != 0 {
		t.Fatal("popup should not open without PopupOpen")
	}

	n := l.Nodes()[0]
	if !n.Interactable || n.Cursor != CursorShapePointer {
		t.Error("marker with popup content should be clickable")
	}
	m.Scene().InjectClick(markerPoint(m, posOne))
	drain(m)
	if len(m.Popups()) != 0 {
		t.Error("click without callback should not open anything")
	}
}

func TestMarkerLayerClickCallback(t *testing.T) {
	var calls []clickRecord
	m, l := newTestLayer(t, []Marker{
		{ID: "1", Position: posOne, OnClick: recordClicks(&calls)},
		{ID: "2", Position: posTwo},
	})

	m.Scene().InjectClick(markerPoint(m, posOne))
	drain(m)
	if len(calls) != 1 || calls[0] != (clickRecord{"1", true}) {
		t.Errorf("calls = %v, want [{1 true}]", calls)
	}
	if l.Nodes()[1].Interactable {
		t.Error("plain marker should not be interactive")
	}
}

func TestMarkerLayerHoverTooltip(t *testing.T) {
	m, l := newTestLayer(t, []Marker{
		{ID: "1", Position: posOne},
		{ID: "2", Position: posTwo, Tooltip: "hi"},
	})

	m.Scene().InjectHover(markerPoint(m, posTwo))
	drain(m)

	req := l.Reconciler().TooltipRequest()
	if req == nil || req.ID != "2" || req.Offset != (Vec2{0, -35}) || req.Content != "hi" {
		t.Fatalf("TooltipRequest = %+v, want {2 (0,-35) hi}", req)
	}
	tip := l.Reconciler().Tooltip()
	if tip == nil || tip.Content() != "hi" {
		t.Fatal("tooltip should be displayed")
	}

	m.Scene().InjectHover(5, 5)
	drain(m)
	if l.Reconciler().TooltipRequest() != nil || tip.IsOpen() {
		t.Error("tooltip should close on hover-out")
	}
}

func TestMarkerLayerTooltipOverIconIsStable(t *testing.T) {
	var events []MarkerEvent
	sink := EventSinkFunc(func(ev MarkerEvent) { events = append(events, ev) })
	m, l := newTestLayer(t, []Marker{{ID: "2", Position: posOne, Tooltip: "hi"}}, WithEventSink(sink))

	// The tooltip box overlaps the top of the icon here.
	p := m.LatLngToScreen(posOne)
	for frame := range 6 {
		m.Scene().InjectHover(p.X, p.Y-38)
		m.update(1.0 / 60)
		if l.Reconciler().Tooltip() == nil {
			t.Fatalf("frame %d: tooltip closed while hovering", frame)
		}
	}
	if len(events) != 1 || events[0] != (MarkerEvent{MarkerHoverIn, "2"}) {
		t.Errorf("events = %v, want a single hover-in", events)
	}
	if l.Reconciler().Tooltip().Node().Interactable {
		t.Error("tooltip should not take the pointer from its marker")
	}
}

func TestMarkerLayerTooltipSuppressedByOwnPopup(t *testing.T) {
	m, l := newTestLayer(t, []Marker{
		{ID: "2", Position: posTwo, Tooltip: "tip", Popup: "popup", PopupOpen: true},
	})

	m.Scene().InjectHover(markerPoint(m, posTwo))
	drain(m)

	if l.Reconciler().TooltipRequest() == nil {
		t.Fatal("hover should still request the tooltip")
	}
	if l.Reconciler().Tooltip() != nil {
		t.Error("tooltip must not show alongside the same marker's popup")
	}
	if len(m.Popups()) != 1 {
		t.Errorf("open popups = %d, want 1", len(m.Popups()))
	}
}

func TestMarkerLayerCloseButtonDeselects(t *testing.T) {
	var calls []clickRecord
	m, l := newTestLayer(t, []Marker{
		{ID: "1", Position: posOne, Popup: "hello", PopupOpen: true, OnClick: recordClicks(&calls)},
	})
	p := l.Reconciler().Popup()
	if p == nil {
		t.Fatal("popup expected")
	}

	if p.CloseButton() == nil {
		t.Fatal("marker popups carry a close button")
	}
	m.Scene().InjectClick(220, 95)
	drain(m)

	if p.IsOpen() {
		t.Fatal("close button should close the popup")
	}
	if len(calls) != 1 || calls[0] != (clickRecord{"", false}) {
		t.Errorf("calls = %v, want one deselect", calls)
	}
	if l.Reconciler().PopupRequest() != nil {
		t.Error("popup request should be cleared")
	}
}

func TestMarkerLayerRerenderResetsRequests(t *testing.T) {
	var calls []clickRecord
	m, l := newTestLayer(t, []Marker{
		{ID: "1", Position: posOne, Popup: "p", PopupOpen: true, OnClick: recordClicks(&calls)},
		{ID: "2", Position: posTwo, Tooltip: "t"},
	})
	m.Scene().InjectHover(markerPoint(m, posTwo))
	drain(m)
	if l.Reconciler().Tooltip() == nil {
		t.Fatal("tooltip expected before re-render")
	}
	old := l.Nodes()[0]

	l.SetMarkers([]Marker{{ID: "3", Position: posThree}})

	if !old.IsDisposed() {
		t.Error("previous nodes should be disposed")
	}
	if l.Reconciler().PopupRequest() != nil || l.Reconciler().TooltipRequest() != nil {
		t.Error("re-render should clear popup and tooltip requests")
	}
	if len(m.Popups()) != 0 {
		t.Errorf("open popups = %d, want 0", len(m.Popups()))
	}
	if len(calls) != 1 || calls[0] != (clickRecord{"", false}) {
		t.Errorf("calls = %v, want one deselect", calls)
	}
}

func TestMarkerLayerSameSliceIsNoop(t *testing.T) {
	markers := []Marker{{ID: "1", Position: posOne}}
	_, l := newTestLayer(t, markers)
	first := l.Nodes()[0]

	l.SetMarkers(markers)
	if l.Nodes()[0] != first {
		t.Error("same slice should not re-render")
	}

	markers[0].Position = posTwo
	l.Refresh()
	if l.Nodes()[0] == first {
		t.Error("Refresh should re-render")
	}

	l.SetMarkers(append([]Marker(nil), markers...))
	if l.Nodes()[0].IsDisposed() {
		t.Error("fresh nodes expected")
	}
}

func TestSameMarkers(t *testing.T) {
	a := []Marker{{ID: "1"}, {ID: "2"}}
	tests := []struct {
		name string
		x, y []Marker
		want bool
	}{
		{"identical", a, a, true},
		{"copy", a, append([]Marker(nil), a...), false},
		{"prefix", a, a[:1], false},
		{"both nil", nil, nil, true},
		{"nil vs empty", nil, []Marker{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sameMarkers(tt.x, tt.y); got != tt.want {
				t.Errorf("sameMarkers = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMarkerLayerScaleOnZoom(t *testing.T) {
	m, l := newTestLayer(t, []Marker{
		{ID: "1", Position: posOne},
		{ID: "2", Position: posTwo},
	})
	before := append([]*Node(nil), l.Nodes()...)
	renders := l.Overlay().Renders()

	m.SetZoom(m.Zoom() + 1)

	after := l.Nodes()
	for i, n := range after {
		if n != before[i] {
			t.Fatal("zooming must not rebuild nodes")
		}
		assertNear(t, "ScaleX", n.ScaleX, 0.5)
		assertNear(t, "ScaleY", n.ScaleY, 0.5)
	}
	if l.Overlay().Renders() != renders+1 {
		t.Errorf("Renders = %d, want %d", l.Overlay().Renders(), renders+1)
	}

	// Icons keep their screen size: the anchor stays on the marker position.
	updateWorldTransform(m.Scene().Root(), identityTransform, 1, false)
	wx, wy := after[0].LocalToWorld(IconWidth/2.0, IconHeight)
	sx, sy := m.Camera().WorldToScreen(wx, wy)
	want := m.LatLngToScreen(posOne)
	assertNear(t, "anchor x", sx, want.X)
	assertNear(t, "anchor y", sy, want.Y)
}

func TestMarkerLayerRenderedAtCurrentScale(t *testing.T) {
	m := newTestMap(t)
	m.SetZoom(5)
	l := NewMarkerLayer(testIcons())
	l.AddTo(m)
	l.SetMarkers([]Marker{{ID: "1", Position: posOne}})
	assertNear(t, "ScaleX", l.Nodes()[0].ScaleX, 0.25)
}

func TestMarkerLayerMapChange(t *testing.T) {
	var calls []clickRecord
	m1, l := newTestLayer(t, []Marker{
		{ID: "1", Position: posOne, Popup: "p", PopupOpen: true, OnClick: recordClicks(&calls)},
		{ID: "2", Position: posTwo},
	})
	oldOverlay := l.Overlay()
	oldNodes := append([]*Node(nil), l.Nodes()...)

	m2 := newTestMap(t)
	l.AddTo(m2)

	for _, n := range oldNodes {
		if !n.IsDisposed() {
			t.Fatal("old nodes should be disposed")
		}
	}
	if m1.overlayPane.NumChildren() != 0 || len(m1.Popups()) != 0 {
		t.Error("old map should have no overlay and no popups")
	}
	if m1.HasLayer(l) || !m2.HasLayer(l) {
		t.Error("layer should move to the new map")
	}
	if l.Overlay() == oldOverlay || l.Overlay().Map() != m2 {
		t.Error("a new overlay should be bound to the new map")
	}
	// Markers are still supplied, so the new overlay is rendered.
	if len(l.Nodes()) != 2 {
		t.Errorf("nodes on new map = %d, want 2", len(l.Nodes()))
	}
	if len(m2.Popups()) != 1 {
		t.Errorf("popups on new map = %d, want 1", len(m2.Popups()))
	}
}

func TestMarkerLayerAddToSameMapIsNoop(t *testing.T) {
	m, l := newTestLayer(t, []Marker{{ID: "1", Position: posOne}})
	overlay := l.Overlay()
	node := l.Nodes()[0]
	l.AddTo(m)
	if l.Overlay() != overlay || l.Nodes()[0] != node {
		t.Error("binding to the same map should change nothing")
	}
}

func TestMarkerLayerRemove(t *testing.T) {
	m, l := newTestLayer(t, []Marker{{ID: "1", Position: posOne, Popup: "p", PopupOpen: true}})
	l.Remove()
	if l.Map() != nil || l.Overlay() != nil || l.Nodes() != nil {
		t.Error("layer should be unbound")
	}
	if m.overlayPane.NumChildren() != 0 || len(m.Popups()) != 0 || m.HasLayer(l) {
		t.Error("map should be clean after Remove")
	}
	if err := l.Render(); !errors.Is(err, ErrOverlayUnavailable) {
		t.Errorf("Render = %v, want ErrOverlayUnavailable", err)
	}
	l.Remove()
}

func TestMarkerLayerAddToNil(t *testing.T) {
	m, l := newTestLayer(t, []Marker{{ID: "1", Position: posOne}})
	l.AddTo(nil)
	if l.Map() != nil || m.HasLayer(l) || m.overlayPane.NumChildren() != 0 {
		t.Error("AddTo(nil) should unbind the layer")
	}
	// Unbound already: still a no-op.
	l.AddTo(nil)

	l.AddTo(m)
	if len(l.Nodes()) != 1 {
		t.Errorf("nodes after rebinding = %d, want 1", len(l.Nodes()))
	}
}

func TestMarkerLayerWaitsForIcons(t *testing.T) {
	release := make(chan struct{})
	body := iconPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write(body)
	}))
	defer srv.Close()
	released := false
	defer func() {
		if !released {
			close(release)
		}
	}()

	icons := NewIconCache(WithURLTemplate(srv.URL+"/{color}.png"), WithIconColors("red"))
	l := NewMarkerLayer(icons)
	l.SetMarkers([]Marker{{ID: "1", Position: posOne}})
	if err := l.Render(); !errors.Is(err, ErrOverlayUnavailable) {
		t.Errorf("Render before AddTo = %v, want ErrOverlayUnavailable", err)
	}

	m := newTestMap(t)
	l.AddTo(m)
	if l.state != stateWaiting || len(l.Nodes()) != 0 {
		t.Fatalf("state = %v with %d nodes, want waiting and none", l.state, len(l.Nodes()))
	}
	if err := l.Render(); err != nil {
		t.Errorf("Render while loading = %v, want nil", err)
	}

	close(release)
	released = true
	waitReady(t, icons)
	m.update(1.0 / 60)

	if l.state != stateRendered || len(l.Nodes()) != 1 {
		t.Errorf("state = %v with %d nodes, want rendered and 1", l.state, len(l.Nodes()))
	}
}

func TestMarkerLayerSharedCacheLoadsOnce(t *testing.T) {
	var hits atomic.Int32
	body := iconPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	icons := NewIconCache(WithURLTemplate(srv.URL+"/{color}.png"))
	a := NewMarkerLayer(icons)
	b := NewMarkerLayer(icons)
	a.AddTo(newTestMap(t))
	b.AddTo(newTestMap(t))
	icons.Load(context.Background())
	waitReady(t, icons)

	if got := int(hits.Load()); got != len(IconColors) {
		t.Errorf("requests = %d, want %d", got, len(IconColors))
	}
}

func TestMarkerLayerOpenClosePopup(t *testing.T) {
	var calls []clickRecord
	m, l := newTestLayer(t, []Marker{
		{ID: "1", Position: posOne, Popup: "one", OnClick: recordClicks(&calls)},
		{ID: "2", Position: posTwo, Popup: "two"},
	})

	if l.OpenPopup("missing") {
		t.Error("unknown id should report false")
	}
	if !l.OpenPopup("1") {
		t.Fatal("OpenPopup(1) should succeed")
	}
	if len(m.Popups()) != 1 || m.Popups()[0].Content() != "one" {
		t.Fatal("marker 1 popup should be open")
	}

	l.OpenPopup("2")
	if len(calls) != 0 {
		t.Errorf("switching popups fired %v", calls)
	}
	if m.Popups()[0].Content() != "two" {
		t.Error("marker 2 popup should replace marker 1")
	}

	l.ClosePopup()
	if len(m.Popups()) != 0 {
		t.Error("ClosePopup should close the popup")
	}
}

func TestMarkerLayerEvents(t *testing.T) {
	var got []MarkerEvent
	sink := EventSinkFunc(func(ev MarkerEvent) { got = append(got, ev) })
	m, l := newTestLayer(t, []Marker{
		{ID: "1", Position: posOne, Tooltip: "t", Popup: "p", OnClick: func(string, bool) {}},
	}, WithEventSink(sink))

	m.Scene().InjectClick(markerPoint(m, posOne))
	m.Scene().InjectHover(5, 5)
	drain(m)
	l.OpenPopup("1")
	l.ClosePopup()

	want := []MarkerEvent{
		{MarkerHoverIn, "1"},
		{MarkerClicked, "1"},
		{MarkerHoverOut, "1"},
		{MarkerDeselected, "1"},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}

	l.SetEventSink(nil)
	l.OpenPopup("1")
	l.ClosePopup()
	if len(got) != len(want) {
		t.Error("no events after removing the sink")
	}
}

func TestLayerStateString(t *testing.T) {
	for s, want := range map[layerState]string{
		stateWaiting:   "waiting",
		stateReady:     "ready",
		stateRendered:  "rendered",
		layerState(99): "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}
