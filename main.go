package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"trailfetch/api"
	"trailfetch/config"
	"trailfetch/handlers"
	"trailfetch/internal/blob"
	"trailfetch/internal/fetch"
	"trailfetch/internal/notify"
	"trailfetch/internal/remux"
	"trailfetch/internal/scratch"
	"trailfetch/internal/store"
	"trailfetch/internal/worker"
	"trailfetch/services"
	"trailfetch/services/appletv"
	"trailfetch/services/imdb"
	"trailfetch/services/netflix"
	"trailfetch/services/primevideo"
	"trailfetch/services/search"
	"trailfetch/utils"

	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	// Determine config path (env or default)
	configPath := os.Getenv("TRAILFETCH_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	if dir := filepath.Dir(settings.Database.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("failed to create database directory: %v", err)
		}
	}

	st, err := store.Open(settings.Database.Path)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	fetcher := fetch.NewClient(fetch.ProxyConfig{
		Host:     settings.Proxy.Host,
		Port:     settings.Proxy.Port,
		Username: settings.Proxy.Username,
		Password: settings.Proxy.Password,
		Protocol: settings.Proxy.Protocol,
	})
	engine := remux.NewEngine(settings.Transmux.FFmpegPath, settings.Transmux.FFprobePath)
	searcher := search.NewClient(settings.Search.APIKey, settings.Search.EngineID)
	if settings.Search.APIKey == "" || settings.Search.EngineID == "" {
		log.Printf("[main] search credentials missing; title discovery will fail until configured")
	}

	registry := services.NewRegistry(
		appletv.NewService(fetcher, searcher, engine),
		netflix.NewService(fetcher, searcher, engine),
		primevideo.NewService(fetcher, searcher, engine),
		imdb.NewService(fetcher),
	)
	log.Printf("[main] registered services: %v", registry.Names())

	scr := scratch.NewManager(settings.Scratch.Directory)
	notifier := notify.New(st)
	blobClient := blob.NewClient(settings.Blob.Endpoint)

	w := worker.New(worker.Config{
		Concurrency: settings.Worker.Concurrency,
		LocateLimit: settings.Worker.LocateLimit,
	}, st, registry, engine, scr, notifier, blobClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	// Pick up processes interrupted by the previous run.
	if settings.Worker.CancelOnRestart {
		if err := w.CancelIncomplete(ctx); err != nil {
			log.Printf("[main] failed to cancel incomplete processes: %v", err)
		}
	} else if err := w.Requeue(ctx); err != nil {
		log.Printf("[main] failed to requeue incomplete processes: %v", err)
	}

	r := utils.NewRouter()
	processHandler := handlers.NewProcessHandler(st, registry, w)
	metaHandler := handlers.NewMetaHandler(st, registry)
	api.Register(r, processHandler, metaHandler)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Stop accepting jobs and wait for in-flight ones to finish.
	cancel()
	w.Stop()

	log.Println("Shutdown complete")
}
