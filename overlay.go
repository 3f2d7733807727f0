package willowmap

import (
	"github.com/golang/geo/s2"
)

// DrawFunc redraws an overlay's nodes for the current view.
type DrawFunc func(o *Overlay)

// Overlay is a scene container bound to a Map. Its nodes live in layer pixels
// at the map's reference zoom, so panning and zooming are handled by the
// camera; the draw callback only runs to counter-scale nodes that must keep a
// constant screen size.
type Overlay struct {
	name      string
	draw      DrawFunc
	m         *Map
	container *Node
	view      ViewHandle
	renders   int
}

// NewOverlay returns an unbound overlay. draw may be nil.
func NewOverlay(name string, draw DrawFunc) *Overlay {
	return &Overlay{name: name, draw: draw}
}

// AddTo binds the overlay to m and runs the draw callback once. An overlay
// bound to another map is removed from it first.
func (o *Overlay) AddTo(m *Map) {
	if o.m == m {
		return
	}
	if o.m != nil {
		o.Remove()
	}
	o.m = m
	o.container = m.newOverlayContainer(o.name)
	o.view = m.OnViewChange(func(*Map) {
		o.Redraw()
	})
	o.Redraw()
}

// Remove unbinds the overlay and disposes all of its nodes.
func (o *Overlay) Remove() {
	if o.m == nil {
		return
	}
	o.view.Remove()
	o.container.Dispose()
	o.container = nil
	o.m = nil
}

// Map returns the bound map, or nil.
func (o *Overlay) Map() *Map {
	return o.m
}

// Container returns the overlay's root node, or nil when unbound.
func (o *Overlay) Container() *Node {
	return o.container
}

// Scale returns the current map scale factor, or 1 when unbound.
func (o *Overlay) Scale() float64 {
	if o.m == nil {
		return 1
	}
	return o.m.Scale()
}

// Project returns the layer point of ll.
func (o *Overlay) Project(ll s2.LatLng) Vec2 {
	return o.m.LatLngToLayerPoint(ll)
}

// Redraw runs the draw callback.
func (o *Overlay) Redraw() {
	if o.m != nil && o.draw != nil {
		o.draw(o)
	}
}

// Render submits the container for the next frame.
func (o *Overlay) Render() {
	if o.container == nil {
		return
	}
	o.container.MarkDirty()
	o.renders++
}

// Renders returns how many times Render has been called.
func (o *Overlay) Renders() int {
	return o.renders
}
