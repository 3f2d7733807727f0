package willowmap

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// drawCommand is a single DrawImage call emitted during traversal.
type drawCommand struct {
	image     *ebiten.Image
	transform [6]float64
	color     Color
}

// traverse walks the tree depth-first in ZIndex order and emits a command for
// every visible sprite. World transforms must be current. Returns the number
// of sprites skipped by culling.
func (s *Scene) traverse(n *Node, view [6]float64) int {
	if !n.Visible {
		return 0
	}

	culled := 0
	if n.Type == NodeTypeSprite && n.Image != nil {
		m := multiplyAffine(view, n.worldTransform)
		if s.cullActive && shouldCull(n, m, s.cullBounds) {
			culled++
		} else {
			s.commands = append(s.commands, drawCommand{
				image:     n.Image,
				transform: m,
				color:     Color{n.Color.R, n.Color.G, n.Color.B, n.Color.A * n.worldAlpha},
			})
		}
	}

	if len(n.children) == 0 {
		return culled
	}
	for _, child := range n.sortedChildList() {
		culled += s.traverse(child, view)
	}
	return culled
}

// submit draws the command buffer in order.
func (s *Scene) submit(target *ebiten.Image) {
	var op ebiten.DrawImageOptions
	for i := range s.commands {
		cmd := &s.commands[i]
		op.GeoM = geoM(cmd.transform)
		op.ColorScale.Reset()
		a := float32(cmd.color.A)
		op.ColorScale.Scale(float32(cmd.color.R)*a, float32(cmd.color.G)*a, float32(cmd.color.B)*a, a)
		op.Filter = ebiten.FilterLinear
		target.DrawImage(cmd.image, &op)
	}
}

// geoM converts an affine matrix to an ebiten.GeoM.
func geoM(m [6]float64) ebiten.GeoM {
	var g ebiten.GeoM
	g.SetElement(0, 0, m[0])
	g.SetElement(1, 0, m[1])
	g.SetElement(0, 1, m[2])
	g.SetElement(1, 1, m[3])
	g.SetElement(0, 2, m[4])
	g.SetElement(1, 2, m[5])
	return g
}

// worldAABB returns the axis-aligned bounds of a (w, h) rectangle transformed
// by m.
func worldAABB(m [6]float64, w, h float64) Rect {
	x0, y0 := transformPoint(m, 0, 0)
	x1, y1 := transformPoint(m, w, 0)
	x2, y2 := transformPoint(m, w, h)
	x3, y3 := transformPoint(m, 0, h)

	minX := math.Min(math.Min(x0, x1), math.Min(x2, x3))
	minY := math.Min(math.Min(y0, y1), math.Min(y2, y3))
	maxX := math.Max(math.Max(x0, x1), math.Max(x2, x3))
	maxY := math.Max(math.Max(y0, y1), math.Max(y2, y3))

	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// shouldCull reports whether a sprite drawn with m falls outside bounds.
// Sprites without a size are never culled.
func shouldCull(n *Node, m [6]float64, bounds Rect) bool {
	w, h := n.Size()
	if w == 0 && h == 0 {
		return false
	}
	return !worldAABB(m, w, h).Intersects(bounds)
}
