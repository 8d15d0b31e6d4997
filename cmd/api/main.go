package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/rent-ledger/internal/clock"
	"github.com/Dan9191/rent-ledger/internal/config"
	"github.com/Dan9191/rent-ledger/internal/finance"
	"github.com/Dan9191/rent-ledger/internal/handler"
	"github.com/Dan9191/rent-ledger/internal/middleware"
	"github.com/Dan9191/rent-ledger/internal/notify"
	"github.com/Dan9191/rent-ledger/internal/report"
	"github.com/Dan9191/rent-ledger/internal/repository"
	"github.com/Dan9191/rent-ledger/internal/scheduler"
	"github.com/Dan9191/rent-ledger/internal/service"
)

func main() {
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Money leaves the API as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	clk := clock.Real{Loc: cfg.Location}
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, finance.NewEngine(clk), logger, cfg)
	h := handler.NewHandler(svc, report.NewExporter(cfg.HMACSecret), logger)

	sched, err := scheduler.New(cfg, svc, notify.NewSender(cfg, logger), clk, logger)
	if err != nil {
		logger.Fatalf("Failed to create scheduler: %v", err)
	}
	sched.Start()

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/health", h.Health).Methods("GET")
	// Protected routes
	teamRouter := r.PathPrefix("/teams/{teamID}").Subrouter()
	teamRouter.Use(middleware.AuthMiddleware(cfg), middleware.TeamAccess)
	h.Routes(teamRouter)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	select {
	case <-sched.Stop().Done():
	case <-ctx.Done():
		logger.Warn("Reminder job still running at shutdown")
	}
}
