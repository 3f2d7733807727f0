// Package willowmap renders geographic markers on an interactive slippy map
// built on [Ebitengine].
//
// The package is split into a small retained-mode scene graph (nodes,
// transforms, camera, pointer input) and the map layer on top of it: a Web
// Mercator [Map], an [Overlay] bound to that map, and a [MarkerLayer] that
// projects [Marker] values into sprites and keeps at most one popup and one
// tooltip open.
//
// # Quick start
//
//	icons := willowmap.NewIconCache()
//	m := willowmap.NewMap(willowmap.MapConfig{
//		Width: 1024, Height: 768,
//		Center: s2.LatLngFromDegrees(48.85, 2.35), Zoom: 5,
//	})
//
//	layer := willowmap.NewMarkerLayer(icons)
//	layer.AddTo(m)
//	layer.SetMarkers([]willowmap.Marker{{
//		ID:       "paris",
//		Position: s2.LatLngFromDegrees(48.85, 2.35),
//		Tooltip:  "Paris",
//	}})
//
//	if err := willowmap.Run(m, willowmap.RunConfig{Title: "Markers"}); err != nil {
//		log.Fatal(err)
//	}
//
// # Coordinates
//
// The map fixes a reference zoom when it is created. Layer points are Web
// Mercator pixels at that zoom, and the map camera scales them by
// 2^(zoom-reference). Marker sprites are scaled by the inverse so icons keep
// their pixel size while the map zooms.
//
// # Popups and tooltips
//
// A [Reconciler] turns requested popup/tooltip state into open map popups.
// Requests flow in, handles flow out; the reconciler never re-triggers on its
// own output.
//
// # Scripts
//
// [LoadScript] parses a YAML or JSON list of steps (click, hover, drag, pan,
// zoom, fly, wait, screenshot) that [Map.SetScript] replays one per frame.
//
// [Ebitengine]: https://ebitengine.org
package willowmap
