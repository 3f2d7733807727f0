package willowmap

// syntheticPointerEvent is one injected pointer sample in screen coordinates.
// Injected samples go through the same camera conversion as the real mouse.
type syntheticPointerEvent struct {
	screenX, screenY float64
	pressed          bool
	button           MouseButton
}

// InjectPress queues a left-button press at the given screen coordinates.
// Each queued event is consumed by one call to Update.
func (s *Scene) InjectPress(x, y float64) {
	s.injectQueue = append(s.injectQueue, syntheticPointerEvent{
		screenX: x, screenY: y,
		pressed: true,
		button:  MouseButtonLeft,
	})
}

// InjectMove queues a pointer move with the button held down.
func (s *Scene) InjectMove(x, y float64) {
	s.injectQueue = append(s.injectQueue, syntheticPointerEvent{
		screenX: x, screenY: y,
		pressed: true,
		button:  MouseButtonLeft,
	})
}

// InjectHover queues a pointer move with no button held.
func (s *Scene) InjectHover(x, y float64) {
	s.injectQueue = append(s.injectQueue, syntheticPointerEvent{
		screenX: x, screenY: y,
	})
}

// InjectRelease queues a pointer release at the given screen coordinates.
func (s *Scene) InjectRelease(x, y float64) {
	s.injectQueue = append(s.injectQueue, syntheticPointerEvent{
		screenX: x, screenY: y,
		pressed: false,
		button:  MouseButtonLeft,
	})
}

// InjectClick queues a press followed by a release. Consumes two frames.
func (s *Scene) InjectClick(x, y float64) {
	s.InjectPress(x, y)
	s.InjectRelease(x, y)
}

// InjectDrag queues a press at (fromX, fromY), frames-2 interpolated moves and
// a release at (toX, toY). Minimum frames is 2.
func (s *Scene) InjectDrag(fromX, fromY, toX, toY float64, frames int) {
	if frames < 2 {
		frames = 2
	}
	s.InjectPress(fromX, fromY)
	steps := frames - 2
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps+1)
		s.InjectMove(fromX+(toX-fromX)*t, fromY+(toY-fromY)*t)
	}
	s.InjectRelease(toX, toY)
}

// PendingInput returns the number of injected events not yet consumed.
func (s *Scene) PendingInput() int {
	return len(s.injectQueue)
}

// processInjectedInput pops one queued event and feeds it to processPointer.
// Returns true if an event was consumed.
func (s *Scene) processInjectedInput() bool {
	if len(s.injectQueue) == 0 {
		return false
	}
	evt := s.injectQueue[0]
	copy(s.injectQueue, s.injectQueue[1:])
	s.injectQueue = s.injectQueue[:len(s.injectQueue)-1]

	s.processPointer(0, evt.screenX, evt.screenY, evt.pressed, evt.button)
	return true
}
