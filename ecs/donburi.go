package ecs

import (
	"github.com/phanxgames/willowmap"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// MarkerEventType is the Donburi event type for marker events.
var MarkerEventType = events.NewEventType[willowmap.MarkerEvent]()

type donburiSink struct {
	world donburi.World
}

// NewDonburiSink creates an EventSink backed by a Donburi world. Marker
// events are published to MarkerEventType and can be consumed with
// Subscribe and ProcessEvents.
func NewDonburiSink(world donburi.World) willowmap.EventSink {
	return &donburiSink{world: world}
}

func (s *donburiSink) EmitMarkerEvent(event willowmap.MarkerEvent) {
	MarkerEventType.Publish(s.world, event)
}
