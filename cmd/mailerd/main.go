package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/reflectcal/mailerd/internal/config"
	"github.com/reflectcal/mailerd/internal/handlers"
	"github.com/reflectcal/mailerd/internal/mailer"
	"github.com/reflectcal/mailerd/internal/notify"
	"github.com/reflectcal/mailerd/internal/scheduler"
	"github.com/reflectcal/mailerd/internal/server"
	"github.com/reflectcal/mailerd/internal/store"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Build PostgreSQL connection string
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Postgres.User,
		cfg.Database.Postgres.Password,
		cfg.Database.Postgres.Host,
		cfg.Database.Postgres.Port,
		cfg.Database.Postgres.Database,
		cfg.Database.Postgres.SSLMode,
	)

	// Run database migrations
	log.Println("Running database migrations...")
	m, err := migrate.New("file://migrations", connString)
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Initialize store
	st, err := store.NewPostgresStore(context.Background(), connString)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer st.Close()

	// Pick the mail dispatcher
	var dispatcher mailer.Dispatcher
	if cfg.Mailer.URL != "" {
		dispatcher = mailer.NewHTTPDispatcher(cfg.Mailer.URL, cfg.Mailer.Timeout)
	} else {
		log.Println("No mail relay configured, logging digests instead")
		dispatcher = mailer.NewLogDispatcher(log.Printf)
	}

	// Wire the notification pipeline
	resolver := notify.NewResolver(st)
	sched := scheduler.New(st, resolver, dispatcher, scheduler.NewLogSink(log.Printf), scheduler.Config{
		CheckInterval: cfg.Scheduler.CheckInterval,
		TickTimeout:   cfg.Scheduler.TickTimeout,
	})

	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	if err := sched.Start(schedCtx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Observability endpoints
	handler := handlers.NewHandler(sched)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Mailer daemon listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	if err := sched.Stop(); err != nil {
		log.Printf("Scheduler stop: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Stopped gracefully")
}
