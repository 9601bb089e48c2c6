package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/niinog/hospital-data/pkg/common/config"
	"github.com/niinog/hospital-data/pkg/common/database"
	"github.com/niinog/hospital-data/pkg/common/kafka"
	"github.com/niinog/hospital-data/pkg/common/logger"
	"github.com/niinog/hospital-data/pkg/common/models"
	"github.com/niinog/hospital-data/pkg/features"
	"github.com/niinog/hospital-data/pkg/observability/metrics"
	"github.com/niinog/hospital-data/pkg/pipeline"
	"github.com/niinog/hospital-data/pkg/schema"
	"github.com/niinog/hospital-data/pkg/warehouse"
)

// PipelineService triggers runs over HTTP. One run at a time; a second
// trigger while a run is in flight is rejected with 409.
type PipelineService struct {
	runner  *pipeline.Runner
	mu      sync.Mutex
	running bool
	last    *models.RunSummary
}

func main() {
	logger.Init()
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	cat, err := schema.Load(os.Getenv("SCHEMA_CATALOG"))
	if err != nil {
		log.WithError(err).Fatal("Failed to load entity catalog")
	}

	runner := pipeline.NewRunner(cfg, cat, log)

	if cfg.WarehouseEnabled {
		db, err := database.GetPostgres()
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to warehouse")
		}
		defer database.ClosePostgres()

		runs := warehouse.NewRunRepository(db)
		if err := runs.AutoMigrate(); err != nil {
			log.WithError(err).Fatal("Failed to migrate run history")
		}
		runner.WithLoader(warehouse.NewLoader(db, log)).WithRunRepository(runs)
	}

	if cfg.FeatureCacheEnabled {
		runner.WithCache(features.NewCache(database.GetRedis(), cfg.FeatureCacheTTL, log))
		defer database.CloseRedis()
	}

	if cfg.EventBusEnabled {
		producer := kafka.NewProducer(cfg.KafkaTopic)
		defer producer.Close()
		runner.WithProducer(producer)
	}

	service := &PipelineService{runner: runner}

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/api/v1/runs", service.handleTrigger).Methods("POST")
	router.HandleFunc("/api/v1/runs/last", service.handleLast).Methods("GET")
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods("GET")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Pipeline Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Pipeline Service...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server shutdown error")
	}
}

func (s *PipelineService) handleTrigger(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a run is already in progress"})
		return
	}
	s.running = true
	s.mu.Unlock()

	summary, err := s.runner.Run(r.Context())

	s.mu.Lock()
	s.running = false
	s.last = &summary
	s.mu.Unlock()

	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   err.Error(),
			"summary": summary,
		})
		return
	}

	status := http.StatusOK
	if !summary.Succeeded() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, summary)
}

func (s *PipelineService) handleLast(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	if last == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no runs yet"})
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
