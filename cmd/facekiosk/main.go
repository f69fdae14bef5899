// Command facekiosk runs the attendance terminal: it verifies faces
// against the local gallery, records time-in/time-out events against
// each employee's schedule, and keeps the local store in sync with the
// central server in both directions.
//
// Usage:
//
//	facekiosk                          # run with built-in defaults
//	facekiosk -config /etc/facekiosk.conf
//	facekiosk -config kiosk.conf -sync-status
//
// The kiosk keeps recording attendance while the server is
// unreachable; unsynced rows drain on the next successful push cycle.
// -sync-status prints the per-stream push/pull state and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"facekiosk/internal/config"
	"facekiosk/internal/detect"
	"facekiosk/internal/index"
	"facekiosk/internal/kiosk"
	"facekiosk/internal/rules"
	"facekiosk/internal/store"
	"facekiosk/internal/sync"
	"facekiosk/internal/verify"
	"facekiosk/pkg/clock"
)

func main() {
	configPath := flag.String("config", "", "Path to the kiosk configuration file (optional, defaults apply)")
	syncStatus := flag.Bool("sync-status", false, "Print the per-stream sync status and exit")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(*configPath)
		if err != nil {
			log.Error().Err(err).Str("path", *configPath).Msg("loading configuration failed")
			os.Exit(1)
		}
	}

	st, err := store.Open(cfg.Local.Path)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Local.Path).Msg("opening local store failed")
		os.Exit(1)
	}
	defer st.Close()

	if *syncStatus {
		if err := printSyncStatus(st); err != nil {
			log.Error().Err(err).Msg("reading sync status failed")
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, st, log); err != nil {
		log.Error().Err(err).Msg("kiosk exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, st *store.Store, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.NewReal()

	remote, err := sync.OpenRemote(cfg.Remote.DSN(),
		time.Duration(cfg.Remote.ConnectTimeoutSeconds)*time.Second, log)
	if err != nil {
		return err
	}
	defer remote.Close()

	idx := index.New(log)
	gallery := kiosk.NewGallery(st, idx, cfg.Local.SnapshotPath, clk, log)
	if err := gallery.Hydrate(ctx); err != nil {
		return err
	}

	pusher := sync.NewPusher(st, remote, clk, cfg.Kiosk.DailyPushWindowDays, log)
	puller := sync.NewPuller(st, remote, clk, log)
	syncEng := sync.NewEngine(pusher, puller,
		time.Duration(cfg.Kiosk.PushIntervalSeconds)*time.Second,
		time.Duration(cfg.Kiosk.PullIntervalSeconds)*time.Second,
		func(ctx context.Context) {
			if err := gallery.Rebuild(ctx); err != nil {
				log.Error().Err(err).Msg("gallery rebuild failed")
			}
		}, log)

	overlay := kiosk.NewConsoleOverlay(log)
	engine := rules.NewEngine(st, clk, rules.Config{
		LoginCooldownEnabled:     cfg.Kiosk.LoginCooldownEnabled,
		LoginCooldownMinutes:     cfg.Kiosk.LoginCooldownMinutes,
		LogoutRestrictionEnabled: cfg.Kiosk.LogoutRestrictionEnabled,
	}, kiosk.NewOverlayConfirmer(overlay), log)
	dayInit := rules.NewDayInitializer(st, clk, remote, log)

	verifier := verify.New(verify.Config{
		SimilarityThreshold: cfg.Kiosk.SimilarityThreshold,
		Stabilization:       secondsToDuration(cfg.Kiosk.StabilizationSeconds),
		ReverifyCooldown:    secondsToDuration(cfg.Kiosk.ReverifyCooldownSeconds),
		MinFaceRatio:        cfg.Kiosk.MinFaceRatio,
		MaxFaceRatio:        cfg.Kiosk.MaxFaceRatio,
	}, clk, detect.Disabled{}, idx, log)

	// No camera backend is linked into this build; the supervisor runs
	// the sync and day-initializer loops and skips capture.
	sup := kiosk.NewSupervisor(nil, detect.Disabled{}, verifier,
		engine, dayInit, syncEng, gallery, overlay, clk, log)

	log.Info().Str("store", cfg.Local.Path).Msg("facekiosk starting")
	return sup.Run(ctx)
}

func printSyncStatus(st *store.Store) error {
	statuses, err := st.SyncStatuses(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%-20s %-6s %-20s %-6s %-20s\n", "STREAM", "PULL", "LAST PULL", "PUSH", "LAST PUSH")
	for _, s := range statuses {
		fmt.Printf("%-20s %-6s %-20s %-6s %-20s\n",
			s.Stream, flagStr(s.LastPullSuccess), s.LastPullTime,
			flagStr(s.LastPushSuccess), s.LastPushTime)
		if s.PullError != "" {
			fmt.Printf("  pull error: %s\n", s.PullError)
		}
		if s.PushError != "" {
			fmt.Printf("  push error: %s\n", s.PushError)
		}
	}
	return nil
}

func flagStr(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
