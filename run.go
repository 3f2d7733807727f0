package willowmap

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// RunConfig configures the window opened by Run.
type RunConfig struct {
	Title string
	// Width and Height default to the map size.
	Width, Height int
	Resizable     bool
	// ShowFPS prints TPS/FPS and the zoom level in the top-left corner.
	ShowFPS bool
}

// Run opens a window and drives m until the window is closed.
func Run(m *Map, cfg RunConfig) error {
	w, h := cfg.Width, cfg.Height
	if w == 0 || h == 0 {
		w, h = m.Size()
	}
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(w, h)
	if cfg.Resizable {
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	}
	return ebiten.RunGame(&gameShell{m: m, showFPS: cfg.ShowFPS})
}

// gameShell adapts a Map to ebiten.Game.
type gameShell struct {
	m       *Map
	showFPS bool
	cursor  CursorShape
}

func (g *gameShell) Update() error {
	g.m.Update()
	if c := g.m.Scene().CursorShape(); c != g.cursor {
		g.cursor = c
		ebiten.SetCursorShape(c.ebiten())
	}
	return nil
}

func (g *gameShell) Draw(screen *ebiten.Image) {
	g.m.Draw(screen)
	if g.showFPS {
		ebitenutil.DebugPrint(screen, fmt.Sprintf("TPS %.0f  FPS %.0f  zoom %.2f",
			ebiten.ActualTPS(), ebiten.ActualFPS(), g.m.Zoom()))
	}
}

func (g *gameShell) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.m.Resize(outsideWidth, outsideHeight)
	return outsideWidth, outsideHeight
}
