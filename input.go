package willowmap

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

const defaultDragDeadZone = 4.0 // pixels

// HitRect is an axis-aligned rectangular hit area in local coordinates.
type HitRect struct {
	X, Y, Width, Height float64
}

// Contains reports whether (x, y) lies inside the rectangle.
func (r HitRect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// HitCircle is a circular hit area in local coordinates.
type HitCircle struct {
	CenterX, CenterY, Radius float64
}

// Contains reports whether (x, y) lies inside or on the circle.
func (c HitCircle) Contains(x, y float64) bool {
	dx := x - c.CenterX
	dy := y - c.CenterY
	return dx*dx+dy*dy <= c.Radius*c.Radius
}

type pointerState struct {
	down             bool
	startX, startY   float64 // world
	startSX, startSY float64 // screen
	lastX, lastY     float64 // world
	lastSX, lastSY   float64 // screen
	hitNode          *Node
	hoverNode        *Node
	dragging         bool
	button           MouseButton
}

// --- Handler registry ---

type pointerHandler struct {
	id uint32
	fn func(PointerContext)
}

type dragHandler struct {
	id uint32
	fn func(DragContext)
}

type handlerRegistry struct {
	pointerDown []pointerHandler
	click       []pointerHandler
	dragStart   []dragHandler
	drag        []dragHandler
	dragEnd     []dragHandler
	nextID      uint32
}

// CallbackHandle allows removing a registered scene-level callback.
type CallbackHandle struct {
	id    uint32
	reg   *handlerRegistry
	event EventType
}

// Remove unregisters this callback so it no longer fires.
func (h CallbackHandle) Remove() {
	if h.reg == nil {
		return
	}
	switch h.event {
	case EventPointerDown:
		h.reg.pointerDown = removeHandler(h.reg.pointerDown, h.id)
	case EventClick:
		h.reg.click = removeHandler(h.reg.click, h.id)
	case EventDragStart:
		h.reg.dragStart = removeDragHandler(h.reg.dragStart, h.id)
	case EventDrag:
		h.reg.drag = removeDragHandler(h.reg.drag, h.id)
	case EventDragEnd:
		h.reg.dragEnd = removeDragHandler(h.reg.dragEnd, h.id)
	}
}

func removeHandler(s []pointerHandler, id uint32) []pointerHandler {
	for i := range s {
		if s[i].id == id {
			copy(s[i:], s[i+1:])
			s[len(s)-1] = pointerHandler{}
			return s[:len(s)-1]
		}
	}
	return s
}

func removeDragHandler(s []dragHandler, id uint32) []dragHandler {
	for i := range s {
		if s[i].id == id {
			copy(s[i:], s[i+1:])
			s[len(s)-1] = dragHandler{}
			return s[:len(s)-1]
		}
	}
	return s
}

// OnPointerDown registers a scene-level callback for pointer down events.
func (s *Scene) OnPointerDown(fn func(PointerContext)) CallbackHandle {
	s.handlers.nextID++
	id := s.handlers.nextID
	s.handlers.pointerDown = append(s.handlers.pointerDown, pointerHandler{id: id, fn: fn})
	return CallbackHandle{id: id, reg: &s.handlers, event: EventPointerDown}
}

// OnClick registers a scene-level callback for click events.
func (s *Scene) OnClick(fn func(PointerContext)) CallbackHandle {
	s.handlers.nextID++
	id := s.handlers.nextID
	s.handlers.click = append(s.handlers.click, pointerHandler{id: id, fn: fn})
	return CallbackHandle{id: id, reg: &s.handlers, event: EventClick}
}

// OnDragStart registers a scene-level callback for drag start events.
func (s *Scene) OnDragStart(fn func(DragContext)) CallbackHandle {
	s.handlers.nextID++
	id := s.handlers.nextID
	s.handlers.dragStart = append(s.handlers.dragStart, dragHandler{id: id, fn: fn})
	return CallbackHandle{id: id, reg: &s.handlers, event: EventDragStart}
}

// OnDrag registers a scene-level callback fired every frame while dragging,
// whichever node the drag started on.
func (s *Scene) OnDrag(fn func(DragContext)) CallbackHandle {
	s.handlers.nextID++
	id := s.handlers.nextID
	s.handlers.drag = append(s.handlers.drag, dragHandler{id: id, fn: fn})
	return CallbackHandle{id: id, reg: &s.handlers, event: EventDrag}
}

// OnDragEnd registers a scene-level callback for drag end events.
func (s *Scene) OnDragEnd(fn func(DragContext)) CallbackHandle {
	s.handlers.nextID++
	id := s.handlers.nextID
	s.handlers.dragEnd = append(s.handlers.dragEnd, dragHandler{id: id, fn: fn})
	return CallbackHandle{id: id, reg: &s.handlers, event: EventDragEnd}
}

// SetDragDeadZone sets the minimum movement in pixels before a drag starts.
func (s *Scene) SetDragDeadZone(pixels float64) {
	s.dragDeadZone = pixels
}

// --- Hit testing ---

// nodeContainsLocal tests whether (lx, ly) falls inside a node's hit region.
// Uses HitShape if set, otherwise the sprite bounds. Containers without a
// HitShape are not hit-testable.
func nodeContainsLocal(n *Node, lx, ly float64) bool {
	if n.HitShape != nil {
		return n.HitShape.Contains(lx, ly)
	}
	w, h := n.Size()
	if w == 0 && h == 0 {
		return false
	}
	return lx >= 0 && lx <= w && ly >= 0 && ly <= h
}

// collectInteractable appends interactable nodes to buf in painter order.
// Invisible or non-interactable subtrees are skipped.
func (s *Scene) collectInteractable(n *Node, buf []*Node) []*Node {
	if !n.Visible || !n.Interactable {
		return buf
	}
	if n.HitShape != nil || n.Type != NodeTypeContainer {
		buf = append(buf, n)
	}
	if len(n.children) == 0 {
		return buf
	}
	for _, child := range n.sortedChildList() {
		buf = s.collectInteractable(child, buf)
	}
	return buf
}

// hitTest finds the topmost interactable node at (worldX, worldY).
func (s *Scene) hitTest(worldX, worldY float64) *Node {
	s.hitBuf = s.collectInteractable(s.root, s.hitBuf[:0])
	for i := len(s.hitBuf) - 1; i >= 0; i-- {
		n := s.hitBuf[i]
		lx, ly := n.WorldToLocal(worldX, worldY)
		if nodeContainsLocal(n, lx, ly) {
			return n
		}
	}
	return nil
}

// --- Input processing ---

// processInput consumes one injected event if queued, otherwise reads the
// mouse.
func (s *Scene) processInput() {
	if s.processInjectedInput() {
		return
	}

	mx, my := ebiten.CursorPosition()
	sx, sy := float64(mx), float64(my)

	var pressed bool
	var button MouseButton
	switch {
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft):
		pressed, button = true, MouseButtonLeft
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight):
		pressed, button = true, MouseButtonRight
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonMiddle):
		pressed, button = true, MouseButtonMiddle
	}

	s.processPointer(0, sx, sy, pressed, button)
}

// screenToWorld converts screen coordinates using the scene camera.
func (s *Scene) screenToWorld(sx, sy float64) (float64, float64) {
	if s.camera != nil {
		return s.camera.ScreenToWorld(sx, sy)
	}
	return sx, sy
}

// processPointer runs the pointer state machine for one pointer sample in
// screen coordinates.
func (s *Scene) processPointer(pointerID int, sx, sy float64, pressed bool, button MouseButton) {
	ps := &s.pointer
	wx, wy := s.screenToWorld(sx, sy)
	target := s.hitTest(wx, wy)

	if ps.hoverNode != nil && ps.hoverNode.disposed {
		ps.hoverNode = nil
	}
	if target != ps.hoverNode {
		if ps.hoverNode != nil {
			s.firePointer(EventPointerLeave, ps.hoverNode, pointerID, wx, wy, sx, sy, button)
		}
		if target != nil {
			s.firePointer(EventPointerEnter, target, pointerID, wx, wy, sx, sy, button)
		}
		ps.hoverNode = target
	}
	s.cursor = CursorShapeDefault
	if target != nil {
		s.cursor = target.Cursor
	}

	switch {
	case pressed && !ps.down:
		ps.down = true
		ps.button = button
		ps.startX, ps.startY = wx, wy
		ps.startSX, ps.startSY = sx, sy
		ps.lastX, ps.lastY = wx, wy
		ps.lastSX, ps.lastSY = sx, sy
		ps.hitNode = target
		ps.dragging = false
		s.firePointer(EventPointerDown, target, pointerID, wx, wy, sx, sy, button)

	case !pressed && ps.down:
		if ps.hitNode != nil && ps.hitNode.disposed {
			ps.hitNode = nil
		}
		if ps.dragging {
			s.fireDrag(EventDragEnd, ps.hitNode, pointerID, wx, wy, sx, sy)
		} else if ps.hitNode == target {
			// A nil target still reaches scene-level click handlers.
			s.firePointer(EventClick, target, pointerID, wx, wy, sx, sy, ps.button)
		}
		ps.down = false
		ps.hitNode = nil
		ps.dragging = false

	case pressed && ps.down:
		if sx != ps.lastSX || sy != ps.lastSY {
			if !ps.dragging && math.Hypot(sx-ps.startSX, sy-ps.startSY) > s.dragDeadZone {
				ps.dragging = true
				s.fireDrag(EventDragStart, ps.hitNode, pointerID, wx, wy, sx, sy)
			}
			if ps.dragging {
				s.fireDrag(EventDrag, ps.hitNode, pointerID, wx, wy, sx, sy)
			}
		}
	}

	ps.lastX, ps.lastY = wx, wy
	ps.lastSX, ps.lastSY = sx, sy
}

// --- Event dispatch ---

func (s *Scene) pointerContext(node *Node, pointerID int, wx, wy, sx, sy float64, button MouseButton) PointerContext {
	ctx := PointerContext{
		Node:    node,
		GlobalX: wx, GlobalY: wy,
		ScreenX: sx, ScreenY: sy,
		Button:    button,
		PointerID: pointerID,
	}
	if node != nil {
		ctx.LocalX, ctx.LocalY = node.WorldToLocal(wx, wy)
		ctx.UserData = node.UserData
	}
	return ctx
}

// firePointer dispatches down, click, enter and leave events: scene-level
// handlers first, then the node's own callback.
func (s *Scene) firePointer(ev EventType, node *Node, pointerID int, wx, wy, sx, sy float64, button MouseButton) {
	ctx := s.pointerContext(node, pointerID, wx, wy, sx, sy, button)

	var handlers []pointerHandler
	var fn func(PointerContext)
	switch ev {
	case EventPointerDown:
		handlers = s.handlers.pointerDown
		if node != nil {
			fn = node.OnPointerDown
		}
	case EventClick:
		handlers = s.handlers.click
		if node != nil {
			fn = node.OnClick
		}
	case EventPointerEnter:
		if node != nil {
			fn = node.OnPointerEnter
		}
	case EventPointerLeave:
		if node != nil {
			fn = node.OnPointerLeave
		}
	}
	for _, h := range handlers {
		h.fn(ctx)
	}
	if fn != nil {
		fn(ctx)
	}
}

func (s *Scene) fireDrag(ev EventType, node *Node, pointerID int, wx, wy, sx, sy float64) {
	ps := &s.pointer
	ctx := DragContext{
		PointerContext: s.pointerContext(node, pointerID, wx, wy, sx, sy, ps.button),
		StartX:         ps.startX,
		StartY:         ps.startY,
		DeltaX:         wx - ps.lastX,
		DeltaY:         wy - ps.lastY,
		ScreenDeltaX:   sx - ps.lastSX,
		ScreenDeltaY:   sy - ps.lastSY,
	}

	var handlers []dragHandler
	switch ev {
	case EventDragStart:
		handlers = s.handlers.dragStart
	case EventDrag:
		handlers = s.handlers.drag
	case EventDragEnd:
		handlers = s.handlers.dragEnd
	}
	for _, h := range handlers {
		h.fn(ctx)
	}
	if ev == EventDrag && node != nil && node.OnDrag != nil {
		node.OnDrag(ctx)
	}
}
