// Package ecs provides ECS adapters for willowmap's marker events.
//
// The primary adapter is [NewDonburiSink], which forwards marker clicks,
// hovers and popup deselection into a [Donburi] world as typed events.
// Subscribe to [MarkerEventType] in your ECS systems to receive them.
//
// Usage:
//
//	sink := ecs.NewDonburiSink(world)
//	layer.SetEventSink(sink)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
