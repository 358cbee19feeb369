package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/richard-vock/beer-display-viewer/internal/config"
	"github.com/richard-vock/beer-display-viewer/internal/server"
	"github.com/richard-vock/beer-display-viewer/internal/snapshot"
	"github.com/richard-vock/beer-display-viewer/internal/store"
	"github.com/richard-vock/beer-display-viewer/internal/view"
)

var version = "dev"

func init() {
	// The webview event loop has to stay on the main OS thread.
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to the configuration document")
	noWindow := flag.Bool("no-window", false, "serve the mirror without opening a window")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("beerview %s\n", version)
		return
	}

	os.Exit(run(*configPath, *noWindow))
}

func defaultConfigPath() string {
	if p := os.Getenv("BEERVIEW_CONFIG"); p != "" {
		return p
	}
	return "./config.json"
}

// run keeps teardown in deferred calls, so it returns an exit code for
// main to pass to os.Exit instead of calling os.Exit itself.
func run(configPath string, noWindow bool) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "beerview: %v\n", err)
		return 1
	}

	log.Printf("beerview %s mirroring %s", version, cfg.TargetURL)

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "beerview: cache dir: %v\n", err)
		return 1
	}

	// Run history is diagnostics only; a broken database never stops the
	// display.
	db, err := store.New(cfg.DBPath)
	if err != nil {
		log.Printf("[store] history disabled: %v", err)
		db = nil
	} else {
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, err := snapshot.New(cfg.CacheDir, cfg.TargetURL, snapshot.Options{
		UserAgent:    cfg.UserAgent,
		AuthToken:    cfg.AuthToken,
		PreloadPaths: cfg.PreloadPaths,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "beerview: %v\n", err)
		return 1
	}

	// Take the first snapshot before the window opens so there is always
	// something to show.
	res, err := snap.EnsureInitial(ctx)
	if db != nil {
		if _, dberr := db.RecordRun(snapshot.RunRecord(res, err)); dberr != nil {
			log.Printf("[store] history: %v", dberr)
		}
	}
	if res == nil {
		fmt.Fprintf(os.Stderr, "beerview: %v\n", err)
		return 1
	}

	srv := server.New(server.Options{
		Addr:      cfg.ListenAddr(),
		CacheRoot: cfg.CacheDir,
		Target:    cfg.TargetURL,
		Version:   version,
		Store:     db,
	})
	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "beerview: listen on %s: %v\n", cfg.ListenAddr(), err)
		return 1
	}

	ref := snapshot.NewRefresher(snap, db, cfg.RefreshInterval(), func(*snapshot.Result) {
		srv.Hub().BroadcastReload()
	})
	ref.Start(ctx)

	if db != nil {
		go runRetentionPurge(ctx, db)
	}

	exit := 0
	if noWindow {
		log.Printf("window disabled, mirror stays on %s", srv.URL())
		<-ctx.Done()
	} else {
		opts := view.Options{
			Title:      cfg.Title,
			Width:      cfg.Width,
			Height:     cfg.Height,
			Fullscreen: cfg.Fullscreen,
		}
		win, err := view.Open(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "beerview: %v\n", err)
			exit = 1
		} else {
			defer win.Destroy()
			view.Launch(ctx, win, srv.URL(), opts)
		}
	}

	log.Println("shutting down...")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ref.Stop()
	srv.Shutdown(shutCtx)

	log.Println("goodbye")
	return exit
}

func runRetentionPurge(ctx context.Context, db *store.Store) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.PurgeRunsOlderThan(30)
			if err != nil {
				log.Printf("[purge] error: %v", err)
			} else if n > 0 {
				log.Printf("[purge] removed %d old runs", n)
			}
		}
	}
}
