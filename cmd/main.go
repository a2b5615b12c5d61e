package main

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/kass/go-map-viewpoint/pkg/basemap"
	"github.com/kass/go-map-viewpoint/pkg/config"
	"github.com/kass/go-map-viewpoint/pkg/models"
	"github.com/kass/go-map-viewpoint/pkg/postgis"
	"github.com/kass/go-map-viewpoint/pkg/surface"
	"github.com/kass/go-map-viewpoint/pkg/viewport"
)

var (
	configFile  string
	styleName   string
	basemapFile string
	width       int
	height      int
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "mapviewpoint",
	Short: "Drive a map viewport with animated, centered and fit-to-geometry transitions",
	Long:  `Applies viewpoint changes (animate to a point, center on a point, fit a geometry) against an in-process R-Tree backed map surface.`,
}

var animateCmd = &cobra.Command{
	Use:   "animate",
	Short: "Animate the viewport to a point",
	Long:  `Run an animated transition to the given center and scale, waiting for it to finish.`,
	Run:   runAnimate,
}

var centerCmd = &cobra.Command{
	Use:   "center",
	Short: "Center the viewport on a point",
	Long:  `Recenter the viewport immediately on the given center and scale.`,
	Run:   runCenter,
}

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit the viewport to a geometry",
	Long:  `Resize the viewport so the geometry given as repeated --point flags is fully visible.`,
	Run:   runFit,
}

var gotoCmd = &cobra.Command{
	Use:   "goto <bookmark>",
	Short: "Apply a named bookmark from the config",
	Args:  cobra.ExactArgs(1),
	Run:   runGoto,
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Export basemap features from PostGIS to a snapshot file",
	Long:  `Read basemap features from a PostGIS store and write them to a gob snapshot usable with --basemap.`,
	Run:   runLoad,
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark viewport transitions",
	Long:  `Execute a batch of random viewport transitions against a shared surface using worker goroutines.`,
	Run:   runBench,
}

var (
	targetX     float64
	targetY     float64
	targetScale float64
	durationSec float64
	fitPoints   []string

	pgHost     string
	pgPort     int
	pgUser     string
	pgPassword string
	pgDatabase string
	pgSeed     bool
	outFile    string

	numTransitions int
	numWorkers     int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringVarP(&styleName, "style", "s", "", "Basemap style (imagery-labels, streets, oceans)")
	rootCmd.PersistentFlags().StringVarP(&basemapFile, "basemap", "b", "", "Basemap file (.geojson or .gob) instead of a built-in style")
	rootCmd.PersistentFlags().IntVar(&width, "width", 0, "Viewport width in pixels")
	rootCmd.PersistentFlags().IntVar(&height, "height", 0, "Viewport height in pixels")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	animateCmd.Flags().Float64VarP(&targetX, "x", "x", -14093, "Target center X")
	animateCmd.Flags().Float64VarP(&targetY, "y", "y", 6711377, "Target center Y")
	animateCmd.Flags().Float64Var(&targetScale, "scale", 5000, "Target scale denominator")
	animateCmd.Flags().Float64VarP(&durationSec, "duration", "d", 7, "Animation duration in seconds")

	centerCmd.Flags().Float64VarP(&targetX, "x", "x", -12153, "Target center X")
	centerCmd.Flags().Float64VarP(&targetY, "y", "y", 6710527, "Target center Y")
	centerCmd.Flags().Float64Var(&targetScale, "scale", 5000, "Target scale denominator")

	fitCmd.Flags().StringArrayVarP(&fitPoints, "point", "p", nil, `Geometry point as "x,y" (repeat at least 3 times)`)

	loadCmd.Flags().StringVar(&pgHost, "pg-host", "localhost", "PostGIS host")
	loadCmd.Flags().IntVar(&pgPort, "pg-port", 5432, "PostGIS port")
	loadCmd.Flags().StringVar(&pgUser, "pg-user", "postgres", "PostGIS user")
	loadCmd.Flags().StringVar(&pgPassword, "pg-password", "", "PostGIS password")
	loadCmd.Flags().StringVar(&pgDatabase, "pg-db", "geodb", "PostGIS database")
	loadCmd.Flags().BoolVar(&pgSeed, "seed", false, "Seed the store with the built-in style before exporting")
	loadCmd.Flags().StringVarP(&outFile, "out", "o", "basemap.gob", "Snapshot output path")

	benchCmd.Flags().IntVarP(&numTransitions, "transitions", "t", 10000, "Number of transitions to run")
	benchCmd.Flags().IntVarP(&numWorkers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")

	rootCmd.AddCommand(animateCmd, centerCmd, fitCmd, gotoCmd, loadCmd, benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildApp assembles a surface and controller from config plus flag
// overrides. Initialization failure is fatal here: a CLI run with no
// basemap has nothing useful to do.
func buildApp() (*surface.Surface, *viewport.Controller, config.Config) {
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if styleName != "" {
		cfg.Surface.Style = styleName
	}
	if width > 0 {
		cfg.Surface.Width = width
	}
	if height > 0 {
		cfg.Surface.Height = height
	}
	if basemapFile != "" {
		cfg.Basemap.File = basemapFile
	}

	logger := log.New(io.Discard, "", 0)
	if verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	s := surface.New(surface.Options{
		Width:  cfg.Surface.Width,
		Height: cfg.Surface.Height,
		Logger: logger,
	})

	var sr models.SpatialReference
	if cfg.Basemap.File != "" {
		features, err := basemap.LoadFile(cfg.Basemap.File)
		if err != nil {
			log.Fatalf("Failed to load basemap: %v", err)
		}
		sr, err = s.InitializeFrom(features)
		if err != nil {
			log.Fatalf("Failed to initialize surface: %v", err)
		}
	} else {
		style, err := basemap.ParseStyle(cfg.Surface.Style)
		if err != nil {
			log.Fatalf("Failed to initialize surface: %v", err)
		}
		sr, err = s.Initialize(style)
		if err != nil {
			log.Fatalf("Failed to initialize surface: %v", err)
		}
	}

	return s, viewport.NewController(s, sr, logger), cfg
}

func runAnimate(cmd *cobra.Command, args []string) {
	s, ctrl, _ := buildApp()
	defer s.Dispose()

	fmt.Printf("Animating to (%.0f, %.0f) at scale %.0f over %.1fs...\n",
		targetX, targetY, targetScale, durationSec)

	start := time.Now()
	t, err := ctrl.AnimateTo(ctrl.Location(targetX, targetY),
		models.Scale(targetScale), time.Duration(durationSec*float64(time.Second)))
	if err != nil {
		log.Fatalf("Animate failed: %v", err)
	}
	awaitTransition(t)
	fmt.Printf("Transition finished in %v\n", time.Since(start).Round(time.Millisecond))

	printViewpoint(s)
}

func runCenter(cmd *cobra.Command, args []string) {
	s, ctrl, _ := buildApp()
	defer s.Dispose()

	t, err := ctrl.CenterOn(ctrl.Location(targetX, targetY), models.Scale(targetScale))
	if err != nil {
		log.Fatalf("Center failed: %v", err)
	}
	awaitTransition(t)

	printViewpoint(s)
}

func runFit(cmd *cobra.Command, args []string) {
	s, ctrl, _ := buildApp()
	defer s.Dispose()

	points := make([]models.Location, 0, len(fitPoints))
	for _, raw := range fitPoints {
		x, y, err := parsePoint(raw)
		if err != nil {
			log.Fatalf("Invalid --point %q: %v", raw, err)
		}
		points = append(points, ctrl.Location(x, y))
	}

	t, err := ctrl.FitTo(models.NewGeometry(points...))
	if err != nil {
		log.Fatalf("Fit failed: %v", err)
	}
	awaitTransition(t)

	printViewpoint(s)
}

func runGoto(cmd *cobra.Command, args []string) {
	s, ctrl, cfg := buildApp()
	defer s.Dispose()

	bm, ok := cfg.Bookmark(args[0])
	if !ok {
		log.Fatalf("Unknown bookmark %q", args[0])
	}

	var t viewport.Transition
	var err error
	switch {
	case bm.IsFit():
		t, err = ctrl.FitTo(bm.Geometry(ctrl.SpatialReference()))
	case bm.IsAnimated():
		t, err = ctrl.AnimateTo(ctrl.Location(bm.X, bm.Y), models.Scale(bm.Scale),
			time.Duration(bm.DurationSeconds*float64(time.Second)))
	default:
		t, err = ctrl.CenterOn(ctrl.Location(bm.X, bm.Y), models.Scale(bm.Scale))
	}
	if err != nil {
		log.Fatalf("Bookmark %q failed: %v", bm.Name, err)
	}
	awaitTransition(t)

	printViewpoint(s)
}

func runLoad(cmd *cobra.Command, args []string) {
	store, err := postgis.NewFeatureStore(pgHost, pgUser, pgPassword, pgDatabase, pgPort)
	if err != nil {
		log.Fatalf("Failed to connect to PostGIS: %v", err)
	}
	defer store.Close()

	if pgSeed {
		style := basemap.StyleImageryLabels
		if styleName != "" {
			style, err = basemap.ParseStyle(styleName)
			if err != nil {
				log.Fatalf("Invalid style: %v", err)
			}
		}
		features, err := basemap.Generate(style)
		if err != nil {
			log.Fatalf("Failed to generate basemap: %v", err)
		}

		if err := store.InitSchema(); err != nil {
			log.Fatalf("Failed to init schema: %v", err)
		}
		if err := store.BulkInsertFeatures(features); err != nil {
			log.Fatalf("Failed to insert features: %v", err)
		}
		if err := store.CreateSpatialIndex(); err != nil {
			log.Fatalf("Failed to create spatial index: %v", err)
		}
		fmt.Printf("Seeded %d features into PostGIS\n", len(features))
	}

	features, err := store.AllFeatures()
	if err != nil {
		log.Fatalf("Failed to read features: %v", err)
	}
	if err := basemap.SaveSnapshot(outFile, features); err != nil {
		log.Fatalf("Failed to save snapshot: %v", err)
	}

	fmt.Printf("Exported %d features to %s\n", len(features), outFile)
}

func runBench(cmd *cobra.Command, args []string) {
	s, ctrl, _ := buildApp()
	defer s.Dispose()

	fmt.Printf("Running %d transitions using %d workers...\n", numTransitions, numWorkers)

	// Random targets around the basemap extent.
	targets := make([]struct{ x, y, scale float64 }, numTransitions)
	for i := range targets {
		targets[i] = struct{ x, y, scale float64 }{
			x:     rand.Float64()*10000 - 20000,
			y:     rand.Float64()*5000 + 6708000,
			scale: rand.Float64()*45000 + 5000,
		}
	}

	var completed atomic.Int64
	var failed atomic.Int64

	start := time.Now()

	var wg sync.WaitGroup
	perWorker := numTransitions / numWorkers

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		startIdx := w * perWorker
		endIdx := startIdx + perWorker
		if w == numWorkers-1 {
			endIdx = numTransitions
		}

		go func(workerID, start, end int) {
			defer wg.Done()

			for i := start; i < end; i++ {
				tg := targets[i]
				t, err := ctrl.CenterOn(ctrl.Location(tg.x, tg.y), models.Scale(tg.scale))
				if err != nil {
					failed.Add(1)
					continue
				}
				<-t.Done()
				completed.Add(1)

				if verbose && i%1000 == 0 {
					fmt.Printf("Worker %d: transition %d done\n", workerID, i)
				}
			}
		}(w, startIdx, endIdx)
	}

	wg.Wait()
	elapsed := time.Since(start)

	done := completed.Load()
	fmt.Printf("\nBenchmark Results:\n")
	fmt.Printf("Total transitions: %d\n", done)
	fmt.Printf("Failed: %d\n", failed.Load())
	fmt.Printf("Total time: %v\n", elapsed)
	fmt.Printf("Transitions per second: %.0f\n", float64(done)/elapsed.Seconds())
	fmt.Printf("Average transition time: %v\n", elapsed/time.Duration(done))
}

func awaitTransition(t viewport.Transition) {
	if t == nil {
		return
	}
	<-t.Done()
	if err := t.Err(); err != nil {
		log.Fatalf("Transition ended early: %v", err)
	}
}

func printViewpoint(s *surface.Surface) {
	vp := s.Viewpoint()
	visible, err := s.VisibleFeatures()
	if err != nil {
		log.Fatalf("Failed to query viewport: %v", err)
	}

	fmt.Printf("\nViewpoint:\n")
	fmt.Printf("Center: (%.1f, %.1f) wkid=%d\n", vp.Center.X, vp.Center.Y, vp.Center.SR.WKID)
	fmt.Printf("Scale: 1:%.0f\n", float64(vp.Scale))
	fmt.Printf("Visible features: %d of %d\n", len(visible), s.FeatureCount())
	if verbose {
		for _, f := range visible {
			label := f.Label
			if label == "" {
				label = f.ID
			}
			fmt.Printf("  - %s (%s)\n", label, f.Kind)
		}
	}
}

func parsePoint(raw string) (float64, float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected \"x,y\"")
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
