package main

import (
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kass/go-map-viewpoint/pkg/basemap"
	"github.com/kass/go-map-viewpoint/pkg/config"
	"github.com/kass/go-map-viewpoint/pkg/models"
	"github.com/kass/go-map-viewpoint/pkg/surface"
	"github.com/kass/go-map-viewpoint/pkg/viewport"
)

var (
	configFile  string
	styleName   string
	basemapFile string
	watch       bool
)

var program *tea.Program

var rootCmd = &cobra.Command{
	Use:   "mapview",
	Short: "Interactive map viewport viewer",
	Long:  `A terminal viewer for the map surface: press l, w and m to animate, center and fit the viewport to the configured bookmarks.`,
	RunE:  runView,
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Config file path")
	rootCmd.Flags().StringVarP(&styleName, "style", "s", "", "Basemap style (imagery-labels, streets, oceans)")
	rootCmd.Flags().StringVarP(&basemapFile, "basemap", "b", "", "Basemap file (.geojson or .gob)")
	rootCmd.Flags().BoolVar(&watch, "watch", false, "Reload the basemap file when it changes")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if styleName != "" {
		cfg.Surface.Style = styleName
	}
	if basemapFile != "" {
		cfg.Basemap.File = basemapFile
		cfg.Basemap.Watch = watch
	}

	// The TUI owns the terminal, so library logging is discarded;
	// noteworthy events surface through the message pane instead.
	logger := log.New(io.Discard, "", 0)

	s := surface.New(surface.Options{
		Width:  mapWidth,
		Height: mapHeight,
		Logger: logger,
	})
	defer s.Dispose()

	var sr models.SpatialReference
	if cfg.Basemap.File != "" {
		features, err := basemap.LoadFile(cfg.Basemap.File)
		if err != nil {
			return fmt.Errorf("load basemap: %w", err)
		}
		if sr, err = s.InitializeFrom(features); err != nil {
			return err
		}
	} else {
		style, err := basemap.ParseStyle(cfg.Surface.Style)
		if err != nil {
			return err
		}
		if sr, err = s.Initialize(style); err != nil {
			return err
		}
	}

	ctrl := viewport.NewController(s, sr, logger)
	program = tea.NewProgram(newModel(s, ctrl, cfg), tea.WithAltScreen())

	if cfg.Basemap.File != "" && cfg.Basemap.Watch {
		watcher, err := basemap.NewWatcher(cfg.Basemap.File, logger, func(features []models.Feature) {
			if err := s.ReplaceFeatures(features); err != nil {
				program.Send(messageMsg(fmt.Sprintf("basemap reload failed: %v", err)))
				return
			}
			program.Send(basemapReloadedMsg{count: len(features)})
		})
		if err != nil {
			return fmt.Errorf("watch basemap: %w", err)
		}
		defer watcher.Close()
	}

	_, err = program.Run()
	return err
}
