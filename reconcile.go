package willowmap

import (
	"github.com/golang/geo/s2"
)

// markerPopupOffset lifts popups and tooltips above a 41 px marker icon.
var markerPopupOffset = Vec2{X: 0, Y: -35}

// DisplayRequest asks the Reconciler to show a popup or tooltip.
type DisplayRequest struct {
	ID       string
	Offset   Vec2
	Position s2.LatLng
	Content  string
	// OnClick receives ("", false) when a requested popup is closed. Unused for
	// tooltips.
	OnClick ClickFunc
}

// PopupOpener is the part of Map the Reconciler drives.
type PopupOpener interface {
	OpenPopup(opts PopupOptions) *Popup
	ClosePopup(p *Popup)
}

// Reconciler keeps at most one popup and one tooltip displayed, matching the
// latest requests. Requests flow in; displayed popups are only ever output.
type Reconciler struct {
	m PopupOpener

	popupReq   *DisplayRequest
	tooltipReq *DisplayRequest

	popup   *Popup
	tooltip *Popup

	// closing is the handle the reconciler itself is removing.
	closing   *Popup
	replacing bool

	onDeselect func(req DisplayRequest)
}

// NewReconciler returns a reconciler showing popups on m. m may be nil until
// Rebind.
func NewReconciler(m PopupOpener) *Reconciler {
	return &Reconciler{m: m}
}

// OnDeselect registers fn to run whenever a displayed popup is removed other
// than by replacement, after the request's own OnClick.
func (r *Reconciler) OnDeselect(fn func(req DisplayRequest)) {
	r.onDeselect = fn
}

// SetPopup replaces the popup request. nil clears it.
func (r *Reconciler) SetPopup(req *DisplayRequest) {
	r.popupReq = cloneRequest(req)
	r.syncPopup()
	r.syncTooltip()
}

// SetTooltip replaces the tooltip request. nil clears it.
func (r *Reconciler) SetTooltip(req *DisplayRequest) {
	r.tooltipReq = cloneRequest(req)
	r.syncTooltip()
}

// Reset clears both requests and closes anything displayed.
func (r *Reconciler) Reset() {
	r.popupReq = nil
	r.tooltipReq = nil
	r.syncPopup()
	r.syncTooltip()
}

// Rebind resets against the current map and switches to m.
func (r *Reconciler) Rebind(m PopupOpener) {
	r.Reset()
	r.m = m
}

// PopupRequest returns a copy of the current popup request, or nil.
func (r *Reconciler) PopupRequest() *DisplayRequest {
	return cloneRequest(r.popupReq)
}

// TooltipRequest returns a copy of the current tooltip request, or nil.
func (r *Reconciler) TooltipRequest() *DisplayRequest {
	return cloneRequest(r.tooltipReq)
}

// Popup returns the displayed popup, or nil.
func (r *Reconciler) Popup() *Popup {
	return r.popup
}

// Tooltip returns the displayed tooltip, or nil.
func (r *Reconciler) Tooltip() *Popup {
	return r.tooltip
}

func cloneRequest(req *DisplayRequest) *DisplayRequest {
	if req == nil {
		return nil
	}
	c := *req
	return &c
}

// close removes p as the reconciler's own action.
func (r *Reconciler) close(p *Popup) {
	if p == nil || r.m == nil {
		return
	}
	r.closing = p
	r.m.ClosePopup(p)
	r.closing = nil
}

func (r *Reconciler) syncPopup() {
	r.replacing = r.popupReq != nil
	r.close(r.popup)
	r.replacing = false
	r.popup = nil

	req := r.popupReq
	if req == nil || r.m == nil {
		return
	}
	p := r.m.OpenPopup(PopupOptions{
		Position:     req.Position,
		Content:      req.Content,
		Offset:       req.Offset,
		AutoClose:    false,
		CloseButton:  true,
		CloseOnClick: true,
	})
	r.popup = p
	p.OnRemove(func(p *Popup) {
		r.popupRemoved(p, *req)
	})
}

func (r *Reconciler) popupRemoved(p *Popup, req DisplayRequest) {
	ours := r.closing == p
	if ours && r.replacing {
		return
	}
	if !ours && r.popup == p {
		// Closed from outside: close button or a map click.
		r.popup = nil
		r.popupReq = nil
		r.syncTooltip()
	}
	if req.OnClick != nil {
		req.OnClick("", false)
	}
	if r.onDeselect != nil {
		r.onDeselect(req)
	}
}

func (r *Reconciler) syncTooltip() {
	r.close(r.tooltip)
	r.tooltip = nil

	req := r.tooltipReq
	if req == nil || r.m == nil {
		return
	}
	if r.popupReq != nil && r.popupReq.ID == req.ID {
		return
	}
	p := r.m.OpenPopup(PopupOptions{
		Position:     req.Position,
		Content:      req.Content,
		Offset:       req.Offset,
		AutoClose:    true,
		CloseOnClick: true,
		PassThrough:  true,
	})
	r.tooltip = p
	p.OnRemove(func(p *Popup) {
		if r.closing != p && r.tooltip == p {
			r.tooltip = nil
		}
	})
}
