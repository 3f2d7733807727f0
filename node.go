package willowmap

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// HitShape is a custom hit testing region in node-local coordinates.
type HitShape interface {
	Contains(x, y float64) bool
}

// PointerContext carries pointer event data.
type PointerContext struct {
	Node      *Node
	UserData  any
	GlobalX   float64
	GlobalY   float64
	LocalX    float64
	LocalY    float64
	ScreenX   float64
	ScreenY   float64
	Button    MouseButton
	PointerID int
}

// DragContext carries drag event data. Screen deltas are in screen pixels and
// are what callers use to pan a camera.
type DragContext struct {
	PointerContext
	StartX, StartY             float64
	DeltaX, DeltaY             float64
	ScreenDeltaX, ScreenDeltaY float64
}

// nodeIDCounter is a plain counter (no atomic, the scene graph is single-threaded).
var nodeIDCounter uint32

func nextNodeID() uint32 {
	nodeIDCounter++
	return nodeIDCounter
}

// Node is the scene graph element. One flat struct serves containers and
// sprites.
type Node struct {
	ID   uint32
	Name string
	Type NodeType

	Parent   *Node
	children []*Node

	// Local transform. Pivot is the local point placed at (X, Y).
	X, Y           float64
	ScaleX, ScaleY float64
	PivotX, PivotY float64

	worldTransform [6]float64
	worldAlpha     float64
	transformDirty bool

	Alpha        float64
	Visible      bool
	Interactable bool
	ZIndex       int

	UserData any

	// Sprite fields (NodeTypeSprite)
	Image *ebiten.Image
	Color Color

	// Cursor is requested while the pointer hovers this node.
	Cursor   CursorShape
	HitShape HitShape

	OnPointerDown  func(PointerContext)
	OnClick        func(PointerContext)
	OnPointerEnter func(PointerContext)
	OnPointerLeave func(PointerContext)
	OnDrag         func(DragContext)

	disposed       bool
	childrenSorted bool
	sortedChildren []*Node
}

func nodeDefaults(n *Node) {
	n.ID = nextNodeID()
	n.ScaleX = 1
	n.ScaleY = 1
	n.Alpha = 1
	n.Color = ColorWhite
	n.Visible = true
	n.transformDirty = true
	n.childrenSorted = true
}

// NewContainer creates a container node with no visual representation.
func NewContainer(name string) *Node {
	n := &Node{Name: name, Type: NodeTypeContainer}
	nodeDefaults(n)
	return n
}

// NewSprite creates a sprite node drawing img. A nil img is allowed and draws
// nothing.
func NewSprite(name string, img *ebiten.Image) *Node {
	n := &Node{Name: name, Type: NodeTypeSprite, Image: img}
	nodeDefaults(n)
	return n
}

// Size returns the unscaled size of the sprite image, or zero for containers.
func (n *Node) Size() (w, h float64) {
	if n.Type != NodeTypeSprite || n.Image == nil {
		return 0, 0
	}
	b := n.Image.Bounds()
	return float64(b.Dx()), float64(b.Dy())
}

// SetAnchor places the pivot at a fraction of the sprite size. (0.5, 1) puts
// the bottom-center of the image at (X, Y).
func (n *Node) SetAnchor(ax, ay float64) {
	w, h := n.Size()
	n.SetPivot(w*ax, h*ay)
}

// --- Tree manipulation ---

// AddChild appends child to this node's children.
// If child already has a parent, it is removed from that parent first.
// Panics if child is nil or an ancestor of this node.
func (n *Node) AddChild(child *Node) {
	if child == nil {
		panic("willowmap: cannot add nil child")
	}
	if child.disposed || n.disposed {
		panic("willowmap: AddChild on disposed node")
	}
	if isAncestor(child, n) {
		panic("willowmap: adding child would create a cycle")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	child.Parent = n
	n.children = append(n.children, child)
	n.childrenSorted = false
	markSubtreeDirty(child)
}

// RemoveChild detaches child from this node.
// Panics if child.Parent != n.
func (n *Node) RemoveChild(child *Node) {
	if child.Parent != n {
		panic("willowmap: child's parent is not this node")
	}
	n.removeChildByPtr(child)
	child.Parent = nil
	n.childrenSorted = false
	markSubtreeDirty(child)
}

// RemoveFromParent detaches this node from its parent. No-op without parent.
func (n *Node) RemoveFromParent() {
	if n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
}

// RemoveChildren detaches all children from this node and returns them.
// Children are not disposed.
func (n *Node) RemoveChildren() []*Node {
	removed := n.children
	for _, child := range removed {
		child.Parent = nil
		markSubtreeDirty(child)
	}
	n.children = nil
	n.sortedChildren = nil
	n.childrenSorted = true
	return removed
}

// DisposeChildren removes and disposes every child.
func (n *Node) DisposeChildren() {
	for _, child := range n.RemoveChildren() {
		child.dispose()
	}
}

// Children returns the child list. The returned slice must not be mutated.
func (n *Node) Children() []*Node {
	return n.children
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// ChildAt returns the child at the given index.
func (n *Node) ChildAt(index int) *Node {
	return n.children[index]
}

// SetZIndex sets the node's ZIndex and marks the parent's children as unsorted.
func (n *Node) SetZIndex(z int) {
	if n.ZIndex == z {
		return
	}
	n.ZIndex = z
	if n.Parent != nil {
		n.Parent.childrenSorted = false
	}
}

// --- Disposal ---

// Dispose removes this node from its parent, marks it as disposed,
// and recursively disposes all descendants.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	n.RemoveFromParent()
	n.dispose()
}

func (n *Node) dispose() {
	n.disposed = true
	n.ID = 0
	for _, child := range n.children {
		child.Parent = nil
		child.dispose()
	}
	n.children = nil
	n.sortedChildren = nil
	n.Parent = nil
	n.Image = nil
	n.HitShape = nil
	n.UserData = nil
	n.OnPointerDown = nil
	n.OnClick = nil
	n.OnPointerEnter = nil
	n.OnPointerLeave = nil
	n.OnDrag = nil
}

// IsDisposed returns true if this node has been disposed.
func (n *Node) IsDisposed() bool {
	return n.disposed
}

// --- Helpers ---

func isAncestor(candidate, node *Node) bool {
	for p := node; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// removeChildByPtr removes child from n.children without clearing child.Parent.
func (n *Node) removeChildByPtr(child *Node) {
	for i, c := range n.children {
		if c == child {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			return
		}
	}
}

func markSubtreeDirty(node *Node) {
	node.transformDirty = true
	for _, child := range node.children {
		markSubtreeDirty(child)
	}
}

// sortedChildList returns children in ZIndex order, rebuilding the cached
// order with a stable insertion sort when needed.
func (n *Node) sortedChildList() []*Node {
	if n.childrenSorted && n.sortedChildren != nil {
		return n.sortedChildren
	}
	nc := len(n.children)
	if cap(n.sortedChildren) < nc {
		n.sortedChildren = make([]*Node, nc)
	}
	n.sortedChildren = n.sortedChildren[:nc]
	copy(n.sortedChildren, n.children)
	for i := 1; i < nc; i++ {
		key := n.sortedChildren[i]
		j := i - 1
		for j >= 0 && n.sortedChildren[j].ZIndex > key.ZIndex {
			n.sortedChildren[j+1] = n.sortedChildren[j]
			j--
		}
		n.sortedChildren[j+1] = key
	}
	n.childrenSorted = true
	return n.sortedChildren
}
