package willowmap

import (
	"image"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
)

const defaultCommandCap = 256

// Scene owns the node tree, the camera, pointer input state and the render
// command buffer.
type Scene struct {
	root   *Node
	camera *Camera

	// ClearColor fills the target before drawing when its alpha is non-zero.
	ClearColor Color

	commands   []drawCommand
	cullBounds Rect
	cullActive bool

	handlers     handlerRegistry
	pointer      pointerState
	hitBuf       []*Node
	dragDeadZone float64
	injectQueue  []syntheticPointerEvent
	cursor       CursorShape

	debug  bool
	logger zerolog.Logger
}

// NewScene creates a new scene with a pre-created root container.
func NewScene() *Scene {
	root := NewContainer("root")
	root.Interactable = true
	return &Scene{
		root:         root,
		commands:     make([]drawCommand, 0, defaultCommandCap),
		dragDeadZone: defaultDragDeadZone,
		logger:       zerolog.Nop(),
	}
}

// Root returns the scene's root container node.
func (s *Scene) Root() *Node {
	return s.root
}

// SetCamera sets the camera used for drawing and screen-to-world conversion.
// A nil camera draws with the identity view.
func (s *Scene) SetCamera(cam *Camera) {
	s.camera = cam
}

// Camera returns the scene camera, or nil.
func (s *Scene) Camera() *Camera {
	return s.camera
}

// SetLogger sets the logger used for debug output.
func (s *Scene) SetLogger(l zerolog.Logger) {
	s.logger = l
}

// SetDebugMode enables per-frame draw statistics at debug level.
func (s *Scene) SetDebugMode(enabled bool) {
	s.debug = enabled
}

// CursorShape returns the cursor requested by the hovered node.
func (s *Scene) CursorShape() CursorShape {
	return s.cursor
}

// HoveredNode returns the node currently under the pointer, or nil.
func (s *Scene) HoveredNode() *Node {
	return s.pointer.hoverNode
}

// Update refreshes world transforms, advances the camera and processes input.
// It reports whether the camera moved this frame.
func (s *Scene) Update() bool {
	dt := float32(1.0 / float64(ebiten.TPS()))
	return s.update(dt)
}

func (s *Scene) update(dt float32) bool {
	// Refresh world transforms first so hit testing sees this frame's positions.
	updateWorldTransform(s.root, identityTransform, 1.0, false)

	moved := false
	if s.camera != nil {
		moved = s.camera.update(dt)
	}
	s.processInput()
	return moved
}

// Draw traverses the tree and draws every visible sprite to screen.
func (s *Scene) Draw(screen *ebiten.Image) {
	target := screen
	view := identityTransform
	s.cullActive = false
	if cam := s.camera; cam != nil {
		view = cam.computeViewMatrix()
		vp := cam.Viewport
		if vp.Width > 0 && vp.Height > 0 {
			target = screen.SubImage(image.Rect(
				int(vp.X), int(vp.Y),
				int(vp.X+vp.Width), int(vp.Y+vp.Height),
			)).(*ebiten.Image)
			s.cullActive = true
			s.cullBounds = vp
		}
	}
	if s.ClearColor.A > 0 {
		target.Fill(s.ClearColor.RGBA())
	}

	var t0 time.Time
	var traverseTime time.Duration
	if s.debug {
		t0 = time.Now()
	}

	updateWorldTransform(s.root, identityTransform, 1.0, false)
	s.commands = s.commands[:0]
	culled := s.traverse(s.root, view)
	if s.debug {
		traverseTime = time.Since(t0)
	}

	if s.debug {
		t0 = time.Now()
	}
	s.submit(target)

	if s.debug {
		s.logger.Debug().
			Dur("traverse", traverseTime).
			Dur("submit", time.Since(t0)).
			Int("commands", len(s.commands)).
			Int("culled", culled).
			Msg("scene drawn")
	}
}
