package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/franckalain/mealscan/internal/config"
	"github.com/franckalain/mealscan/internal/database"
	"github.com/franckalain/mealscan/internal/diary"
	"github.com/franckalain/mealscan/internal/logging"
	"github.com/franckalain/mealscan/internal/metrics"
	"github.com/franckalain/mealscan/internal/ml"
	"github.com/franckalain/mealscan/internal/server"
	"github.com/sirupsen/logrus"
)

const metricsRetentionDays = 90

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log := logging.New(cfg.Log)

	// Initialize database
	db, err := database.NewSQLiteDB(cfg.Database.Path, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	usage := metrics.NewStore(db.SQL())
	if n, err := usage.Cleanup(metricsRetentionDays); err != nil {
		log.WithError(err).Warn("Failed to clean up recognition metrics")
	} else if n > 0 {
		log.WithField("rows", n).Info("Removed old recognition metrics")
	}

	// Today's entries make up the diary.
	d := diary.New(diary.WithStore(db), diary.WithLogger(log))
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	entries, err := db.ListFoodEntries(context.Background(), startOfDay)
	if err != nil {
		log.WithError(err).Fatal("Failed to load diary")
	}
	if err := d.Restore(entries); err != nil {
		log.WithError(err).Fatal("Failed to restore diary")
	}

	// Initialize ML service
	model, err := ml.NewModel(cfg.ML)
	if err != nil {
		log.WithError(err).Fatal("Failed to create ML model")
	}
	if err := model.Load(context.Background()); err != nil {
		log.WithError(err).Fatal("Failed to load ML model")
	}
	defer model.Close()
	recognizer := ml.NewClient(model, cfg.ML, log, ml.WithRecorder(usage))

	srv, err := server.New(cfg, d, recognizer, usage, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		log.WithError(err).Error("Server stopped")
		return
	}
	log.Info("Server stopped")
}
