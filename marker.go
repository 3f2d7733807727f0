package willowmap

import (
	"github.com/golang/geo/s2"
)

// ClickFunc receives (id, true) when a marker is clicked and ("", false) when
// its popup is closed.
type ClickFunc func(id string, selected bool)

// Marker is one point rendered by a MarkerLayer.
type Marker struct {
	ID       string
	Position s2.LatLng
	// IconColor selects the icon; empty means DefaultIconColor.
	IconColor string
	Popup     string
	Tooltip   string
	OnClick   ClickFunc
	// PopupOpen shows the popup as soon as the marker is rendered.
	PopupOpen bool
}

// Interactive reports whether the marker reacts to the pointer.
func (mk Marker) Interactive() bool {
	return mk.Popup != "" || mk.OnClick != nil || mk.Tooltip != ""
}

func (mk Marker) iconColor() string {
	if mk.IconColor == "" {
		return DefaultIconColor
	}
	return mk.IconColor
}

// MarkerEventType identifies a MarkerEvent.
type MarkerEventType uint8

const (
	MarkerClicked MarkerEventType = iota
	MarkerHoverIn
	MarkerHoverOut
	MarkerDeselected
)

func (t MarkerEventType) String() string {
	switch t {
	case MarkerClicked:
		return "clicked"
	case MarkerHoverIn:
		return "hover-in"
	case MarkerHoverOut:
		return "hover-out"
	case MarkerDeselected:
		return "deselected"
	}
	return "unknown"
}

// MarkerEvent reports marker interaction to an EventSink.
type MarkerEvent struct {
	Type MarkerEventType
	ID   string
}

// EventSink receives marker events in addition to the markers' callbacks.
type EventSink interface {
	EmitMarkerEvent(MarkerEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(MarkerEvent)

// EmitMarkerEvent calls f(ev).
func (f EventSinkFunc) EmitMarkerEvent(ev MarkerEvent) {
	f(ev)
}
