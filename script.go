package willowmap

import (
	"fmt"

	"github.com/golang/geo/s2"
	"gopkg.in/yaml.v3"
)

// scriptStep is a single action in an input script.
type scriptStep struct {
	Action  string  `yaml:"action"`
	Label   string  `yaml:"label,omitempty"`
	X       float64 `yaml:"x,omitempty"`
	Y       float64 `yaml:"y,omitempty"`
	FromX   float64 `yaml:"fromX,omitempty"`
	FromY   float64 `yaml:"fromY,omitempty"`
	ToX     float64 `yaml:"toX,omitempty"`
	ToY     float64 `yaml:"toY,omitempty"`
	Frames  int     `yaml:"frames,omitempty"`
	Lat     float64 `yaml:"lat,omitempty"`
	Lng     float64 `yaml:"lng,omitempty"`
	Zoom    float64 `yaml:"zoom,omitempty"`
	Seconds float64 `yaml:"seconds,omitempty"`
}

type script struct {
	Steps []scriptStep `yaml:"steps"`
}

var scriptActions = map[string]bool{
	"screenshot": true,
	"click":      true,
	"hover":      true,
	"drag":       true,
	"wait":       true,
	"pan":        true,
	"zoom":       true,
	"fly":        true,
}

// ScriptRunner replays a recorded sequence of pointer input, view changes and
// screenshots, one step per frame. Attach it with Map.SetScript.
//
// Scripts are YAML (or JSON) documents:
//
//	steps:
//	  - {action: hover, x: 200, y: 130}
//	  - {action: click, x: 200, y: 130}
//	  - {action: fly, lat: 48.85, lng: 2.35, zoom: 6, seconds: 1}
//	  - {action: wait, frames: 60}
//	  - {action: screenshot, label: paris}
type ScriptRunner struct {
	steps     []scriptStep
	cursor    int
	waitCount int
	done      bool
}

// LoadScript parses a script and returns a runner ready for Map.SetScript.
func LoadScript(data []byte) (*ScriptRunner, error) {
	var sc script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("willowmap: parse script: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("willowmap: parse script: no steps")
	}
	for i, st := range sc.Steps {
		if !scriptActions[st.Action] {
			return nil, fmt.Errorf("willowmap: parse script: step %d: unknown action %q", i, st.Action)
		}
	}
	return &ScriptRunner{steps: sc.Steps}, nil
}

// SetScript attaches r to the map; it advances from Update. nil detaches.
func (m *Map) SetScript(r *ScriptRunner) {
	m.script = r
}

// Done reports whether every step has run.
func (r *ScriptRunner) Done() bool {
	return r.done
}

// step advances the runner by one frame.
func (r *ScriptRunner) step(m *Map) {
	if r.done {
		return
	}
	s := m.scene
	// Injected input drains before the next step.
	if s.PendingInput() > 0 {
		return
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++

	switch st.Action {
	case "screenshot":
		m.Screenshot(st.Label)
	case "click":
		s.InjectClick(st.X, st.Y)
	case "hover":
		s.InjectHover(st.X, st.Y)
	case "drag":
		s.InjectDrag(st.FromX, st.FromY, st.ToX, st.ToY, st.Frames)
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1
		}
	case "pan":
		m.PanBy(st.X, st.Y)
	case "zoom":
		m.ZoomAround(st.X, st.Y, st.Zoom)
	case "fly":
		m.FlyTo(s2.LatLngFromDegrees(st.Lat, st.Lng), st.Zoom, float32(st.Seconds))
	}
	m.logger.Debug().Str("action", st.Action).Int("step", r.cursor).Msg("script step")

	if r.cursor >= len(r.steps) && r.waitCount == 0 && s.PendingInput() == 0 {
		r.done = true
	}
}
