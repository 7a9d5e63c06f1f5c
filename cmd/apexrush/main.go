// Command apexrush runs a headless race: it stages the configured
// track, drives the player with the autopilot or external intent
// commands, records every frame to the archive backend, and uploads
// the exported replay when a results service is configured.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/apexrush/simulation/internal/api"
	"github.com/apexrush/simulation/internal/config"
	"github.com/apexrush/simulation/internal/dispatcher"
	"github.com/apexrush/simulation/internal/handlers"
	"github.com/apexrush/simulation/internal/influx"
	"github.com/apexrush/simulation/internal/logging"
	"github.com/apexrush/simulation/internal/race"
	"github.com/apexrush/simulation/internal/session"
	"github.com/apexrush/simulation/internal/storage"
	"github.com/apexrush/simulation/internal/storage/factory"
	"github.com/apexrush/simulation/internal/track"
	"github.com/apexrush/simulation/internal/worker"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

const (
	appName   = "apexrush"
	frameRate = 60

	// maxRaceDuration caps a run where nobody ever finishes.
	maxRaceDuration = 30 * time.Minute
)

func main() {
	configDir := flag.String("config", ".", "directory holding apexrush.cfg.json")
	autopilot := flag.Bool("autopilot", true, "drive the player with the built-in autopilot")
	realtime := flag.Bool("realtime", true, "pace frames to the wall clock")
	flag.Parse()

	if err := run(*configDir, *autopilot, *realtime); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(configDir string, autopilot, realtime bool) error {
	sessionStart := time.Now().UTC()

	if err := config.Load(configDir); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		// Defaults only; announced once logging is up.
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs dir: %w", err)
	}
	logFile, err := os.Create(logging.LogFilePath(logsDir, appName, sessionStart))
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()

	var gelfWriter logging.MessageWriter
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := gelf.NewWriter(gl.Address)
		if err != nil {
			return fmt.Errorf("failed to connect graylog at %s: %w", gl.Address, err)
		}
		gelfWriter = w
	}

	logManager := logging.NewManager()
	logManager.Setup(logFile, config.GetString("logLevel"), gelfWriter)
	log := logManager.Logger()
	log.Info("starting up", "version", Version, "build", BuildDate, "config", configDir)

	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	layout, err := track.LoadLayout(config.GetString("track.file"))
	if err != nil {
		return fmt.Errorf("failed to load track: %w", err)
	}

	raceCfg := config.GetRaceConfig()
	r, err := race.New(log, layout, raceCfg)
	if err != nil {
		return fmt.Errorf("failed to stage race: %w", err)
	}

	sess := session.NewContext()
	info := sess.Begin(layout.Name, raceCfg.Laps, raceCfg.Rivals)
	log.Info("session started", "id", info.ID, "track", info.TrackName)

	backend, err := factory.NewBackend(config.GetStorageConfig(), zlog)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	defer backend.Close()

	var influxMgr *influx.Manager
	if config.GetInfluxConfig().Enabled {
		influxMgr = influx.NewManager(zlog, filepath.Join(logsDir, "influx_backup.gz"))
		if err := influxMgr.Connect(); err != nil {
			log.Warn("telemetry disabled", "error", err)
			influxMgr = nil
		} else {
			defer influxMgr.Close()
		}
	}

	d, err := dispatcher.New(handlers.SlogLogger{Log: log})
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	svc := handlers.NewService(handlers.Dependencies{
		Race:    r,
		Session: sess,
		Backend: backend,
		Log:     log,
	})
	svc.RegisterAll(d)

	recorder := worker.NewManager(worker.Dependencies{
		Backend: backend,
		Influx:  influxMgr,
		Session: sess,
		Log:     log,
	}, 1)

	wkt := r.Spline().LineString().AsText()
	if err := backend.StartRace(storage.RaceMeta{Session: info, TrackWKT: wkt}); err != nil {
		return fmt.Errorf("failed to start race archive: %w", err)
	}

	if autopilot {
		r.SetIntentSource(race.NewAutopilot(r.Spline(), r.Player()))
		log.Info("autopilot engaged")
	}

	finalSnap := runLoop(svc, recorder, log, realtime)

	sum := storage.Summary{
		Finished:   finalSnap.Finished,
		PlayerRank: playerRank(finalSnap),
		EndTime:    time.Now().UTC(),
	}
	if err := backend.EndRace(sum); err != nil {
		return fmt.Errorf("failed to close race archive: %w", err)
	}
	log.Info("race archived",
		"finished", sum.Finished, "rank", sum.PlayerRank, "frames", finalSnap.Frame)

	uploadReplay(backend, log)
	return nil
}

// runLoop steps the race at the fixed rate until the player finishes,
// the duration cap trips, or the process is interrupted. It returns
// the last captured snapshot.
func runLoop(svc *handlers.Service, recorder *worker.Manager, log *slog.Logger, realtime bool) race.Snapshot {
	const step = 1.0 / frameRate

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	var ticker *time.Ticker
	if realtime {
		ticker = time.NewTicker(time.Second / frameRate)
		defer ticker.Stop()
	}

	deadline := time.Now().Add(maxRaceDuration)
	var snap race.Snapshot

	for {
		select {
		case <-interrupt:
			log.Info("interrupted, shutting down")
			return snap
		default:
		}

		if realtime {
			<-ticker.C
		}

		start := time.Now()
		svc.Step(step)
		stepDur := time.Since(start)

		frameSnap, frameEvents := svc.Capture()
		snap = frameSnap
		if err := recorder.Flush(frameSnap, frameEvents, stepDur); err != nil {
			log.Error("recording failed", "frame", frameSnap.Frame, "error", err)
		}

		if frameSnap.Finished {
			log.Info("player finished", "frame", frameSnap.Frame, "elapsed", frameSnap.Elapsed)
			return snap
		}
		if time.Now().After(deadline) {
			log.Warn("race duration cap reached")
			return snap
		}
	}
}

func playerRank(snap race.Snapshot) int {
	for _, v := range snap.Vehicles {
		if v.IsPlayer {
			return v.Rank
		}
	}
	return 0
}

// uploadReplay ships the exported replay to the results service when
// the backend produced one and an API key is configured.
func uploadReplay(backend storage.Backend, log *slog.Logger) {
	up, ok := backend.(storage.Uploadable)
	if !ok || up.ExportedFilePath() == "" {
		return
	}

	apiCfg := config.GetAPIConfig()
	if apiCfg.APIKey == "" {
		log.Debug("no api key configured, skipping upload")
		return
	}

	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	if err := client.Healthcheck(); err != nil {
		log.Warn("results service unreachable, skipping upload", "error", err)
		return
	}
	if err := client.Upload(up.ExportedFilePath(), up.ExportMetadata()); err != nil {
		log.Error("replay upload failed", "error", err)
		return
	}
	log.Info("replay uploaded", "file", filepath.Base(up.ExportedFilePath()))
}
