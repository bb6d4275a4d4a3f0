package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/photobooth/internal/api"
	"github.com/banshee-data/photobooth/internal/config"
	"github.com/banshee-data/photobooth/internal/db"
	"github.com/banshee-data/photobooth/internal/httputil"
	"github.com/banshee-data/photobooth/internal/monitoring"
	"github.com/banshee-data/photobooth/internal/overlay"
	"github.com/banshee-data/photobooth/internal/session"
	"github.com/banshee-data/photobooth/internal/share"
	"github.com/banshee-data/photobooth/internal/timeutil"
	"github.com/banshee-data/photobooth/internal/version"
)

// bindFlags registers the server flags on fs. Defaults come from cfg, so a
// flag given on the command line overrides the environment.
func bindFlags(fs *flag.FlagSet, cfg *config.ServerConfig) (showVersion *bool) {
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "Listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path to the SQLite database")
	fs.StringVar(&cfg.UploadDir, "upload-dir", cfg.UploadDir, "Directory for shared photos")
	fs.StringVar(&cfg.PublicBaseURL, "public-url", cfg.PublicBaseURL, "Public origin for share links (default: derived from request)")
	fs.StringVar(&cfg.TuningPath, "tuning", cfg.TuningPath, "Overlay tuning JSON file (default: built-in values)")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "Idle time before a booth session is dropped")
	fs.Int64Var(&cfg.MaxUploadMB, "max-upload-mb", cfg.MaxUploadMB, "Maximum upload size in MiB")
	fs.DurationVar(&cfg.Retention, "retention", cfg.Retention, "Delete shared photos older than this (0 keeps them)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Write logs to a rotating file instead of stderr")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable per-frame debug logging")
	return fs.Bool("version", false, "Print version and exit")
}

// purgeInterval is how often expired photos are swept.
func purgeInterval(retention time.Duration) time.Duration {
	if retention <= 0 {
		return 0
	}
	return min(retention/4, time.Hour)
}

// runPurge deletes photos older than retention on every tick until ctx ends.
func runPurge(ctx context.Context, clock timeutil.Clock, every, retention time.Duration,
	purge func(context.Context, time.Duration) (int, error)) {
	ticker := clock.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			n, err := purge(ctx, retention)
			if err != nil {
				log.Printf("photo purge failed: %v", err)
			} else if n > 0 {
				log.Printf("purged %d photos older than %s", n, retention)
			}
		}
	}
}

func loadTrackerConfig(path string) (overlay.Config, error) {
	tuning := config.DefaultTuningConfig()
	if path != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(path); err != nil {
			return overlay.Config{}, err
		}
		log.Printf("Loaded overlay tuning from %s", path)
	}
	return overlay.ConfigFromTuning(tuning), nil
}

func main() {
	cfg, err := config.LoadServerConfig(".env")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	showVersion := bindFlags(flag.CommandLine, &cfg)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Current())
		return
	}
	if flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(flag.Args()[1:], cfg.DBPath, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if cfg.LogFile != "" {
		closer := monitoring.UseFile(monitoring.FileOptions{Path: cfg.LogFile, Compress: true, Tee: true})
		defer closer.Close()
	}
	monitoring.SetDebug(cfg.Debug)
	log.Printf("photobooth %s", version.Current())

	trackerCfg, err := loadTrackerConfig(cfg.TuningPath)
	if err != nil {
		log.Fatalf("Failed to load tuning: %v", err)
	}

	database, err := db.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	clock := timeutil.RealClock{}
	store, err := share.NewStore(cfg.UploadDir, database, clock)
	if err != nil {
		log.Fatalf("Failed to open upload dir: %v", err)
	}

	sessions := session.NewManager(session.Options{
		Tracker: func() overlay.Config { return trackerCfg },
		TTL:     cfg.SessionTTL,
		Clock:   clock,
	})

	meta := share.DefaultPageMeta
	meta.Title = cfg.ShareTitle
	meta.Description = cfg.ShareDescription
	apiServer := api.NewServer(api.Options{
		Sessions:       sessions,
		Store:          store,
		Meta:           meta,
		PublicBaseURL:  cfg.PublicBaseURL,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// idle session janitor
	wg.Add(1)
	go func() {
		defer wg.Done()
		sessions.Run(ctx)
		log.Print("session janitor terminated")
	}()

	if every := purgeInterval(cfg.Retention); every > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runPurge(ctx, clock, every, cfg.Retention, store.Purge)
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		mux := apiServer.ServeMux()
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach admin routes: %v", err)
		}

		server := &http.Server{
			Addr:    cfg.Listen,
			Handler: api.LoggingMiddleware(httputil.CORS(mux)),
		}

		go func() {
			log.Printf("Starting HTTP server on %s", cfg.Listen)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
