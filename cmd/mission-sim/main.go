package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/orreryworks/mission-simulator/core"
	"github.com/orreryworks/mission-simulator/internal/logging"
	"github.com/orreryworks/mission-simulator/internal/observability"
	"github.com/orreryworks/mission-simulator/kb"
	"github.com/orreryworks/mission-simulator/model"
	"github.com/orreryworks/mission-simulator/timectrl"
)

func main() {
	catalogPath := flag.String("catalog", "configs/solar_catalog.json", "path to the JSON body/mission catalog")
	missionID := flag.String("mission", "voyager1", "mission to play back")
	playback := flag.Float64("playback-seconds", 30, "wall-clock seconds for a full playback at 1x")
	speed := flag.Float64("speed", 1, "playback speed multiplier")
	frame := flag.Duration("frame", 33*time.Millisecond, "frame interval")
	accelerated := flag.Bool("accelerated", false, "run frames back to back instead of real time")
	metricsAddr := flag.String("metrics-addr", "", "address for the /metrics endpoint (empty disables)")

	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "tracing init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	collector, err := observability.NewEngineCollector(nil)
	if err != nil {
		log.Error(ctx, "metrics init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Warn(ctx, "metrics server stopped", logging.String("error", err.Error()))
			}
		}()
		log.Info(ctx, "metrics listening", logging.String("addr", *metricsAddr))
	}

	catalog := kb.NewCatalog()
	f, err := os.Open(*catalogPath)
	if err != nil {
		log.Error(ctx, "failed to open catalog", logging.String("path", *catalogPath), logging.String("error", err.Error()))
		os.Exit(1)
	}
	summary, err := core.LoadCatalog(ctx, catalog, f)
	f.Close()
	if err != nil {
		log.Error(ctx, "failed to load catalog", logging.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info(ctx, "catalog loaded",
		logging.Int("bodies", len(summary.BodyKeys)),
		logging.Int("missions", len(summary.MissionIDs)),
		logging.String("mission_ids", strings.Join(summary.MissionIDs, ",")),
	)

	ephemeris := core.NewEphemeris(catalog)
	scene := &consoleScene{}
	controller := core.NewMissionController(catalog, ephemeris,
		core.WithSceneUpdater(scene),
		core.WithCameraRig(&consoleCamera{}),
		core.WithLogger(log),
		core.WithMetrics(collector),
		core.WithPlaybackSeconds(*playback),
	)

	loop := timectrl.NewFrameLoop(*frame, loopMode(*accelerated))
	hud := &consoleHUD{scene: scene, loop: loop}
	controller.AddListener(hud)
	loop.AddListener(func(delta time.Duration, _ time.Time) {
		controller.Update(delta)
	})

	ctx, _ = logging.WithMissionLogger(ctx, log, *missionID)
	if err := controller.EnterMission(ctx, *missionID); err != nil {
		log.Error(ctx, "mission entry rejected", logging.String("error", err.Error()))
		os.Exit(1)
	}
	controller.SetSpeed(*speed)
	controller.Play()

	done := loop.Start(0)
	<-done

	log.Info(ctx, "playback finished")
}

func loopMode(accelerated bool) timectrl.Mode {
	if accelerated {
		return timectrl.Accelerated
	}
	return timectrl.RealTime
}

// consoleScene records the latest positions so the HUD can print them beside
// playback progress.
type consoleScene struct {
	positions map[string]core.Vec3
}

func (s *consoleScene) UpdateBodyPosition(key string, pos core.Vec3) error {
	if s.positions == nil {
		s.positions = make(map[string]core.Vec3)
	}
	s.positions[key] = pos
	return nil
}

// consoleCamera prints nothing; a real embedding would drive the renderer's
// camera from these requests.
type consoleCamera struct{}

func (consoleCamera) Follow(position, lookAt core.Vec3) {}

// consoleHUD prints playback state, waypoint cards, and stops the loop when
// the mission completes.
type consoleHUD struct {
	scene     *consoleScene
	loop      *timectrl.FrameLoop
	lastPrint float64
}

func (h *consoleHUD) OnProgress(progress float64, date time.Time, waypointIndex int) {
	// Print at ~1% steps to keep the console readable.
	if progress-h.lastPrint < 0.01 && progress != 1 {
		return
	}
	h.lastPrint = progress
	fmt.Printf("[%5.1f%%] %s  (%d bodies positioned)\n",
		progress*100, date.Format("2006-01-02"), len(h.scene.positions))
}

func (h *consoleHUD) OnWaypointReached(index int, wp model.Waypoint) {
	fmt.Printf("↳ waypoint %d: %s (%s)\n", index, wp.Label, wp.Date.Format("2006-01-02"))
	for _, fact := range wp.Facts {
		fmt.Printf("    · %s\n", fact)
	}
}

func (h *consoleHUD) OnMissionComplete() {
	fmt.Println("Mission complete.")
	h.loop.Stop()
}
