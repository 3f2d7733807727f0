// Command markermap shows the markers of a YAML scene file on a draggable,
// zoomable map.
package main

import (
	"context"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"

	"github.com/phanxgames/willowmap"
	"github.com/phanxgames/willowmap/internal/config"
	"github.com/phanxgames/willowmap/internal/logger"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string  `short:"c" long:"config"      env:"CONFIG_FILE" description:"Path to scene file" default:"markermap.yaml"`
	IconSource string  `short:"i" long:"icons"       env:"ICON_SOURCE" description:"Icon URL or path template, {color} is replaced"`
	FlySeconds float32 `long:"fly-seconds"           env:"FLY_SECONDS" description:"Animate to a marker when it is clicked" default:"0.6"`
	ShowFPS    bool    `long:"fps"                   description:"Show TPS/FPS overlay"`
	SceneDebug bool    `long:"scene-debug"           description:"Log per-frame draw statistics"`
	Resizable  bool    `short:"r" long:"resizable"   description:"Allow resizing the window"`
	Script     string  `short:"s" long:"script"      env:"SCRIPT" description:"Replay an input script (YAML or JSON)"`
	ShotDir    string  `long:"screenshot-dir"        env:"SCREENSHOT_DIR" description:"Directory for scripted screenshots" default:"screenshots"`
	ShotFormat string  `long:"screenshot-format"     env:"SCREENSHOT_FORMAT" description:"Screenshot encoding" choice:"png" choice:"webp" default:"png"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	markers, err := cfg.LoadMarkers()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load markers")
	}

	iconOpts := append(cfg.IconOptions(), willowmap.WithIconLogger(log.Logger))
	if opts.IconSource != "" {
		iconOpts = append(iconOpts, willowmap.WithURLTemplate(opts.IconSource))
	}
	icons := willowmap.NewIconCache(iconOpts...)
	icons.Load(context.Background())

	m := willowmap.NewMap(cfg.MapConfig(), willowmap.WithMapLogger(log.Logger))
	m.Scene().SetDebugMode(opts.SceneDebug)
	m.SetScreenshotDir(opts.ShotDir)
	m.SetScreenshotFormat(willowmap.ScreenshotFormat(opts.ShotFormat))
	if opts.Script != "" {
		data, err := os.ReadFile(opts.Script)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read script")
		}
		runner, err := willowmap.LoadScript(data)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load script")
		}
		m.SetScript(runner)
	}

	var layer *willowmap.MarkerLayer
	for i := range markers {
		mk := markers[i]
		markers[i].OnClick = func(id string, selected bool) {
			log.Info().Str("id", id).Bool("selected", selected).Msg("Marker selection")
			if !selected {
				return
			}
			if mk.Popup != "" {
				layer.OpenPopup(id)
			}
			m.FlyTo(mk.Position, m.Zoom(), opts.FlySeconds)
		}
	}

	layer = willowmap.NewMarkerLayer(icons,
		willowmap.WithLayerLogger(log.Logger),
		willowmap.WithEventSink(willowmap.EventSinkFunc(func(ev willowmap.MarkerEvent) {
			log.Debug().Str("event", ev.Type.String()).Str("id", ev.ID).Msg("Marker event")
		})),
	)
	layer.AddTo(m)
	layer.SetMarkers(markers)

	log.Info().
		Str("config", opts.ConfigFile).
		Int("markers", len(markers)).
		Float64("zoom", m.Zoom()).
		Msg("Starting map")

	if err := willowmap.Run(m, willowmap.RunConfig{
		Title:     cfg.Title,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Resizable: opts.Resizable,
		ShowFPS:   opts.ShowFPS,
	}); err != nil {
		log.Fatal().Err(err).Msg("Map window failed")
	}
}
