package willowmap

import (
	"image"
	"strings"
	"unicode/utf8"

	"github.com/golang/geo/s2"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// Debug font metrics used to size popup boxes.
const (
	glyphWidth  = 6
	lineHeight  = 16
	popupPad    = 8
	closeSize   = 14
	minBoxWidth = 40
)

var (
	popupBackground = Color{R: 0.12, G: 0.13, B: 0.16, A: 0.92}
	popupBorder     = Color{R: 0.85, G: 0.85, B: 0.88, A: 1}
	closeBackground = Color{R: 0.35, G: 0.36, B: 0.4, A: 1}
)

// PopupOptions describes a popup to open on a Map.
type PopupOptions struct {
	Position s2.LatLng
	Content  string
	// Offset is applied in screen pixels from the projected position to the
	// bottom-center of the box.
	Offset Vec2
	// AutoClose closes this popup when another popup opens.
	AutoClose bool
	// CloseButton adds an × affordance that closes the popup.
	CloseButton bool
	// CloseOnClick closes the popup when empty map area is clicked.
	CloseOnClick bool
	// PassThrough leaves the popup out of hit testing, so the pointer reaches
	// whatever lies beneath it.
	PassThrough bool
}

// Popup is an open (or previously open) popup on a Map.
type Popup struct {
	opts     PopupOptions
	m        *Map
	open     bool
	painted  bool
	onRemove []func(*Popup)

	node     *Node
	box      *Node
	closeBtn *Node
}

// Options returns the options the popup was opened with.
func (p *Popup) Options() PopupOptions {
	return p.opts
}

// Content returns the popup text.
func (p *Popup) Content() string {
	return p.opts.Content
}

// IsOpen reports whether the popup is still displayed.
func (p *Popup) IsOpen() bool {
	return p.open
}

// Node returns the popup's root node in the popup pane.
func (p *Popup) Node() *Node {
	return p.node
}

// CloseButton returns the close affordance node, or nil.
func (p *Popup) CloseButton() *Node {
	return p.closeBtn
}

// OnRemove registers fn to run when the popup is removed from the map for any
// reason.
func (p *Popup) OnRemove(fn func(*Popup)) {
	p.onRemove = append(p.onRemove, fn)
}

// Close removes the popup from its map.
func (p *Popup) Close() {
	if p.m != nil {
		p.m.ClosePopup(p)
	}
}

func (p *Popup) lines() []string {
	return strings.Split(p.opts.Content, "\n")
}

// boxSize measures the content in debug-font cells.
func (p *Popup) boxSize() (w, h int) {
	lines := p.lines()
	for _, l := range lines {
		if n := utf8.RuneCountInString(l); n > w {
			w = n
		}
	}
	w = w*glyphWidth + 2*popupPad
	if p.opts.CloseButton {
		w += closeSize
	}
	if w < minBoxWidth {
		w = minBoxWidth
	}
	h = len(lines)*lineHeight + 2*popupPad - 4
	return w, h
}

// build creates the popup nodes. The box image gets its background now and
// its text on first paint.
func (p *Popup) build() {
	w, h := p.boxSize()
	img := ebiten.NewImage(w, h)
	img.Fill(popupBorder.RGBA())
	inner := img.SubImage(image.Rect(1, 1, w-1, h-1)).(*ebiten.Image)
	inner.Fill(popupBackground.RGBA())

	p.node = NewContainer("popup")
	p.node.Interactable = !p.opts.PassThrough
	pos := p.m.LatLngToLayerPoint(p.opts.Position)
	p.node.SetPosition(pos.X, pos.Y)
	inv := 1 / p.m.Scale()
	p.node.SetScale(inv, inv)

	p.box = NewSprite("popup-box", img)
	p.box.Interactable = !p.opts.PassThrough
	p.box.SetAnchor(0.5, 1)
	p.box.SetPosition(p.opts.Offset.X, p.opts.Offset.Y)
	p.node.AddChild(p.box)

	if p.opts.CloseButton {
		btn := ebiten.NewImage(closeSize, closeSize)
		btn.Fill(closeBackground.RGBA())
		p.closeBtn = NewSprite("popup-close", btn)
		p.closeBtn.Interactable = true
		p.closeBtn.Cursor = CursorShapePointer
		p.closeBtn.SetZIndex(1)
		p.closeBtn.SetPosition(
			p.opts.Offset.X+float64(w)/2-closeSize-2,
			p.opts.Offset.Y-float64(h)+2,
		)
		p.closeBtn.OnClick = func(PointerContext) {
			p.Close()
		}
		p.node.AddChild(p.closeBtn)
	}
}

// paint draws the text once, from the draw pass.
func (p *Popup) paint() {
	if p.painted || p.box == nil {
		return
	}
	p.painted = true
	ebitenutil.DebugPrintAt(p.box.Image, p.opts.Content, popupPad, popupPad-2)
	if p.closeBtn != nil {
		ebitenutil.DebugPrintAt(p.closeBtn.Image, "x", 4, -1)
	}
}

// OpenPopup shows a popup. When the most recently opened popup has AutoClose
// set, it is closed first.
func (m *Map) OpenPopup(opts PopupOptions) *Popup {
	if m.lastPopup != nil && m.lastPopup.open && m.lastPopup.opts.AutoClose {
		m.ClosePopup(m.lastPopup)
	}
	p := &Popup{opts: opts, m: m, open: true}
	p.build()
	m.popupPane.AddChild(p.node)
	m.popups = append(m.popups, p)
	m.lastPopup = p
	m.logger.Debug().Str("content", opts.Content).Msg("popup opened")
	return p
}

// ClosePopup removes p from the map and runs its remove callbacks. Closing a
// nil or already closed popup does nothing.
func (m *Map) ClosePopup(p *Popup) {
	if p == nil || !p.open || p.m != m {
		return
	}
	p.open = false
	for i, x := range m.popups {
		if x == p {
			m.popups = append(m.popups[:i:i], m.popups[i+1:]...)
			break
		}
	}
	if m.lastPopup == p {
		m.lastPopup = nil
	}
	p.node.Dispose()
	m.logger.Debug().Str("content", p.opts.Content).Msg("popup closed")
	for _, fn := range p.onRemove {
		fn(p)
	}
}

// Popups returns the open popups in opening order.
func (m *Map) Popups() []*Popup {
	return append([]*Popup(nil), m.popups...)
}

func (m *Map) closePopupsOnClick() {
	for _, p := range m.Popups() {
		if p.opts.CloseOnClick {
			m.ClosePopup(p)
		}
	}
}
