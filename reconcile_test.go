package willowmap

import (
	"testing"

	"github.com/golang/geo/s2"
)

type clickRecord struct {
	id       string
	selected bool
}

func recordClicks(calls *[]clickRecord) ClickFunc {
	return func(id string, selected bool) {
		*calls = append(*calls, clickRecord{id, selected})
	}
}

func request(id, content string) *DisplayRequest {
	return &DisplayRequest{
		ID:       id,
		Offset:   markerPopupOffset,
		Position: s2.LatLngFromDegrees(0, 0),
		Content:  content,
	}
}

func TestReconcilerPopupTrack(t *testing.T) {
	m := newTestMap(t)
	r := NewReconciler(m)

	r.SetPopup(request("1", "one"))
	p := r.Popup()
	if p == nil || !p.IsOpen() {
		t.Fatal("popup should be displayed")
	}
	opts := p.Options()
	if opts.AutoClose || !opts.CloseButton || opts.Content != "one" || opts.Offset != markerPopupOffset {
		t.Errorf("popup options = %+v", opts)
	}

	r.SetPopup(request("2", "two"))
	if p.IsOpen() {
		t.Error("previous popup should be closed")
	}
	if r.Popup().Content() != "two" || len(m.Popups()) != 1 {
		t.Error("exactly the new popup should be displayed")
	}

	r.SetPopup(nil)
	if r.Popup() != nil || len(m.Popups()) != 0 {
		t.Error("clearing the request should close the popup")
	}
}

func TestReconcilerTooltipTrack(t *testing.T) {
	m := newTestMap(t)
	r := NewReconciler(m)

	r.SetTooltip(request("2", "hi"))
	tip := r.Tooltip()
	if tip == nil {
		t.Fatal("tooltip should be displayed")
	}
	if !tip.Options().AutoClose || tip.CloseButton() != nil {
		t.Errorf("tooltip options = %+v", tip.Options())
	}
	if got := r.TooltipRequest(); got == nil || got.ID != "2" || got.Offset != (Vec2{0, -35}) || got.Content != "hi" {
		t.Errorf("TooltipRequest = %+v", got)
	}

	r.SetTooltip(nil)
	if r.Tooltip() != nil || tip.IsOpen() {
		t.Error("tooltip should be closed")
	}
}

func TestReconcilerTooltipSuppressedForPopupID(t *testing.T) {
	m := newTestMap(t)
	r := NewReconciler(m)

	r.SetPopup(request("7", "popup"))
	r.SetTooltip(request("7", "tip"))
	if r.Tooltip() != nil {
		t.Fatal("tooltip for the popup's marker must be suppressed")
	}
	if r.TooltipRequest() == nil {
		t.Error("the request itself is kept")
	}

	// The popup track re-runs the tooltip track.
	r.SetPopup(nil)
	if r.Tooltip() == nil {
		t.Error("tooltip should appear once the popup is gone")
	}
}

func TestReconcilerPopupAndTooltipCoexist(t *testing.T) {
	m := newTestMap(t)
	r := NewReconciler(m)

	r.SetTooltip(request("b", "tip"))
	r.SetPopup(request("a", "popup"))
	if r.Popup() == nil || r.Tooltip() == nil {
		t.Fatal("popup and tooltip for different markers should both show")
	}
	if len(m.Popups()) != 2 {
		t.Errorf("open popups = %d, want 2", len(m.Popups()))
	}
}

func TestReconcilerDeselect(t *testing.T) {
	m := newTestMap(t)
	r := NewReconciler(m)
	var calls []clickRecord
	var deselected []string
	r.OnDeselect(func(req DisplayRequest) { deselected = append(deselected, req.ID) })

	a := request("a", "A")
	a.OnClick = recordClicks(&calls)
	r.SetPopup(a)

	// Replacement does not deselect.
	b := request("b", "B")
	b.OnClick = recordClicks(&calls)
	r.SetPopup(b)
	if len(calls) != 0 {
		t.Fatalf("replacing a popup fired %v", calls)
	}

	r.SetPopup(nil)
	if len(calls) != 1 || calls[0] != (clickRecord{"", false}) {
		t.Errorf("calls = %v, want one deselect", calls)
	}
	if len(deselected) != 1 || deselected[0] != "b" {
		t.Errorf("OnDeselect ids = %v, want [b]", deselected)
	}
}

func TestReconcilerDeselectWithoutCallback(t *testing.T) {
	m := newTestMap(t)
	r := NewReconciler(m)
	r.SetPopup(request("a", "A"))
	r.SetPopup(nil) // must not panic
}

func TestReconcilerCloseButtonClearsRequest(t *testing.T) {
	m := newTestMap(t)
	r := NewReconciler(m)
	var calls []clickRecord

	req := request("a", "hello")
	req.OnClick = recordClicks(&calls)
	r.SetPopup(req)
	r.SetTooltip(request("a", "tip"))

	r.Popup().CloseButton().OnClick(PointerContext{})

	if r.Popup() != nil || r.PopupRequest() != nil {
		t.Error("closing from the popup should clear display and request")
	}
	if len(calls) != 1 || calls[0] != (clickRecord{"", false}) {
		t.Errorf("calls = %v, want one deselect", calls)
	}
	if r.Tooltip() == nil {
		t.Error("tooltip no longer suppressed and should show")
	}
}

func TestReconcilerReset(t *testing.T) {
	m := newTestMap(t)
	r := NewReconciler(m)
	var calls []clickRecord
	req := request("a", "A")
	req.OnClick = recordClicks(&calls)
	r.SetPopup(req)
	r.SetTooltip(request("b", "tip"))

	r.Reset()
	if r.PopupRequest() != nil || r.TooltipRequest() != nil {
		t.Error("requests should be cleared")
	}
	if len(m.Popups()) != 0 {
		t.Errorf("open popups = %d, want 0", len(m.Popups()))
	}
	if len(calls) != 1 {
		t.Errorf("calls = %v, want one deselect", calls)
	}
}

func TestReconcilerRebind(t *testing.T) {
	a := newTestMap(t)
	b := newTestMap(t)
	r := NewReconciler(a)
	r.SetPopup(request("x", "X"))

	r.Rebind(b)
	if len(a.Popups()) != 0 {
		t.Error("old map should have no popups")
	}
	if r.PopupRequest() != nil {
		t.Error("requests are reset on rebind")
	}
	r.SetPopup(request("y", "Y"))
	if len(b.Popups()) != 1 {
		t.Error("new popups should open on the new map")
	}
}

func TestReconcilerWithoutMap(t *testing.T) {
	r := NewReconciler(nil)
	r.SetPopup(request("a", "A"))
	r.SetTooltip(request("b", "B"))
	if r.Popup() != nil || r.Tooltip() != nil {
		t.Error("nothing can be displayed without a map")
	}
	if r.PopupRequest() == nil {
		t.Error("requests are still recorded")
	}
}

func TestReconcilerRequestsAreCopied(t *testing.T) {
	m := newTestMap(t)
	r := NewReconciler(m)
	req := request("a", "A")
	r.SetPopup(req)
	req.Content = "changed"
	if r.PopupRequest().Content != "A" {
		t.Error("reconciler should keep its own copy of the request")
	}
}

type fakeOpener struct {
	opened, closed int
	m              *Map
}

func (f *fakeOpener) OpenPopup(opts PopupOptions) *Popup {
	f.opened++
	return f.m.OpenPopup(opts)
}

func (f *fakeOpener) ClosePopup(p *Popup) {
	f.closed++
	f.m.ClosePopup(p)
}

func TestReconcilerOnlyReactsToRequests(t *testing.T) {
	f := &fakeOpener{m: newTestMap(t)}
	r := NewReconciler(f)

	r.SetPopup(request("a", "A"))
	opened := f.opened
	// Reading displayed state never triggers another transition.
	for range 3 {
		_ = r.Popup()
		_ = r.Tooltip()
	}
	if f.opened != opened {
		t.Errorf("opened = %d, want %d", f.opened, opened)
	}
	if f.opened != 1 {
		t.Errorf("opened = %d, want 1", f.opened)
	}
}
