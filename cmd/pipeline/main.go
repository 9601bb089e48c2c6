package main

import (
	"context"
	"os"

	"github.com/niinog/hospital-data/pkg/common/config"
	"github.com/niinog/hospital-data/pkg/common/database"
	"github.com/niinog/hospital-data/pkg/common/kafka"
	"github.com/niinog/hospital-data/pkg/common/logger"
	"github.com/niinog/hospital-data/pkg/features"
	"github.com/niinog/hospital-data/pkg/pipeline"
	"github.com/niinog/hospital-data/pkg/schema"
	"github.com/niinog/hospital-data/pkg/warehouse"
)

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

	summary, err := runner.Run(context.Background())
	if err != nil {
		log.WithError(err).Error("Pipeline run aborted")
		os.Exit(1)
	}
	if !summary.Succeeded() {
		os.Exit(1)
	}
}
