package willowmap

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// cameraAnim holds active tweens for camera position and zoom. A nil tween is
// an axis that is not animating.
type cameraAnim struct {
	tweenX    *gween.Tween
	tweenY    *gween.Tween
	tweenZoom *gween.Tween

	// Tweens run in float32; the final frame lands on the exact target.
	toX, toY, toZoom float64
}

// Camera controls the view into the scene: position, zoom and viewport.
type Camera struct {
	// X and Y are the world-space position the camera centers on.
	X, Y float64
	// Zoom is the scale factor (1.0 = no zoom, >1 = zoom in, <1 = zoom out).
	Zoom float64
	// Viewport is the screen-space rectangle this camera renders into.
	Viewport Rect

	viewMatrix    [6]float64
	invViewMatrix [6]float64
	dirty         bool

	anim *cameraAnim
}

func newCamera(viewport Rect) *Camera {
	return &Camera{
		Zoom:     1.0,
		Viewport: viewport,
		dirty:    true,
	}
}

// AnimateTo tweens the camera to (x, y) at zoom over duration seconds.
func (c *Camera) AnimateTo(x, y, zoom float64, duration float32, easeFn ease.TweenFunc) {
	if duration <= 0 {
		c.X, c.Y, c.Zoom = x, y, zoom
		c.anim = nil
		c.dirty = true
		return
	}
	c.anim = &cameraAnim{
		tweenX:    gween.New(float32(c.X), float32(x), duration, easeFn),
		tweenY:    gween.New(float32(c.Y), float32(y), duration, easeFn),
		tweenZoom: gween.New(float32(c.Zoom), float32(zoom), duration, easeFn),
		toX:       x,
		toY:       y,
		toZoom:    zoom,
	}
}

// StopAnimation cancels a running AnimateTo, leaving the camera where it is.
func (c *Camera) StopAnimation() {
	c.anim = nil
}

// Animating reports whether an AnimateTo tween is in progress.
func (c *Camera) Animating() bool {
	return c.anim != nil
}

// update advances tweens and reports whether the view moved.
func (c *Camera) update(dt float32) bool {
	prevX, prevY, prevZoom := c.X, c.Y, c.Zoom

	if a := c.anim; a != nil {
		done := true
		if a.tweenX != nil {
			v, d := a.tweenX.Update(dt)
			c.X = float64(v)
			done = done && d
		}
		if a.tweenY != nil {
			v, d := a.tweenY.Update(dt)
			c.Y = float64(v)
			done = done && d
		}
		if a.tweenZoom != nil {
			v, d := a.tweenZoom.Update(dt)
			c.Zoom = float64(v)
			done = done && d
		}
		if done {
			c.X, c.Y, c.Zoom = a.toX, a.toY, a.toZoom
			c.anim = nil
		}
	}

	if c.X != prevX || c.Y != prevY || c.Zoom != prevZoom {
		c.dirty = true
		return true
	}
	return false
}

// computeViewMatrix recomputes the cached view matrix if dirty.
//
// viewMatrix = Translate(cx, cy) * Scale(zoom) * Translate(-X, -Y)
// where cx, cy = viewport center.
func (c *Camera) computeViewMatrix() [6]float64 {
	if !c.dirty {
		return c.viewMatrix
	}
	c.dirty = false

	cx := c.Viewport.X + c.Viewport.Width/2
	cy := c.Viewport.Y + c.Viewport.Height/2
	z := c.Zoom

	c.viewMatrix = [6]float64{z, 0, 0, z, cx - z*c.X, cy - z*c.Y}
	c.invViewMatrix = invertAffine(c.viewMatrix)
	return c.viewMatrix
}

// WorldToScreen converts world coordinates to screen coordinates.
func (c *Camera) WorldToScreen(wx, wy float64) (sx, sy float64) {
	c.computeViewMatrix()
	return transformPoint(c.viewMatrix, wx, wy)
}

// ScreenToWorld converts screen coordinates to world coordinates.
func (c *Camera) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	c.computeViewMatrix()
	return transformPoint(c.invViewMatrix, sx, sy)
}

// VisibleBounds returns the world-space rectangle covered by the viewport.
func (c *Camera) VisibleBounds() Rect {
	c.computeViewMatrix()
	x0, y0 := transformPoint(c.invViewMatrix, c.Viewport.X, c.Viewport.Y)
	x1, y1 := transformPoint(c.invViewMatrix, c.Viewport.X+c.Viewport.Width, c.Viewport.Y+c.Viewport.Height)
	return Rect{
		X:      math.Min(x0, x1),
		Y:      math.Min(y0, y1),
		Width:  math.Abs(x1 - x0),
		Height: math.Abs(y1 - y0),
	}
}

// MarkDirty forces a recomputation of the view matrix.
func (c *Camera) MarkDirty() {
	c.dirty = true
}
