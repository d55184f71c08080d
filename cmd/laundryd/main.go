package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/pflag"

	"laundry-reservation-backend/config"
	"laundry-reservation-backend/internal/api"
	"laundry-reservation-backend/internal/clock"
	"laundry-reservation-backend/internal/db"
	"laundry-reservation-backend/internal/dispatch"
	"laundry-reservation-backend/internal/notification"
	"laundry-reservation-backend/internal/store"
	"laundry-reservation-backend/internal/taskqueue"
	"laundry-reservation-backend/internal/watcher"
)

func main() {
	logger := log.New(os.Stdout, "laundryd ", log.LstdFlags)

	var configPath string
	flagSet := pflag.NewFlagSet("laundryd", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to the YAML config file (default: $CONFIG_PATH or ./config/config.yaml)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logger.Fatalf("invalid arguments: %v", err)
	}
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.Real()
	appStore := store.NewGormStore(gormDB)
	notifier := notification.NewNotifier(appStore, &webpushOptions, cfg.Push.Fanout)

	queue := taskqueue.NewQueue(taskqueue.Options{
		Workers:      cfg.Queue.Workers,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		RetryBackoff: cfg.Queue.RetryBackoff,
		RatePerSec:   cfg.Queue.RatePerSec,
		Clock:        clk,
		Deliverer:    taskqueue.NewHTTPDeliverer(time.Duration(cfg.Queue.TimeoutSeconds)*time.Second, cfg.Queue.HTTPProxy),
	})
	queue.Start(ctx)
	logger.Printf("task queue started with %d workers, callbacks to %s", cfg.Queue.Workers, cfg.Queue.ExecuteURL)

	dispatcher := dispatch.New(appStore, appStore, notifier, queue, clk, cfg.Queue.ExecuteURL)
	transitions := watcher.New(appStore, clk, cfg.Schedule.ReservationHold)

	appStore.OnMachineUpdate(transitions.HandleMachineUpdate)
	appStore.OnIntentCreate(dispatcher.OnIntentCreated)

	router := api.NewRouter(api.NewHandler(appStore, dispatcher, &webpushOptions), cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Scheduled tasks are lost on restart; the ledger still has them.
	n, err := dispatcher.Recover(ctx)
	if err != nil {
		logger.Printf("recovered %d pending intents with errors: %v", n, err)
	} else {
		logger.Printf("recovered %d pending intents", n)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}
	cancel()

	logger.Println("Server gracefully stopped")
}
