package warehouse

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/niinog/hospital-data/pkg/common/models"
)

// RunModel persists one pipeline run's outcome for audit and reporting.
type RunModel struct {
	ID          string            `gorm:"primaryKey;column:id"`
	Status      string            `gorm:"column:status"`
	Summary     datatypes.JSONMap `gorm:"column:summary"`
	StartedAt   time.Time         `gorm:"column:started_at"`
	CompletedAt time.Time         `gorm:"column:completed_at"`
	CreatedAt   time.Time         `gorm:"column:created_at"`
}

func (RunModel) TableName() string {
	return "pipeline_runs"
}

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&RunModel{})
}

func (r *RunRepository) Save(ctx context.Context, summary models.RunSummary) error {
	payload, err := summaryToJSONMap(summary)
	if err != nil {
		return err
	}

	rec := &RunModel{
		ID:          summary.RunID,
		Status:      summary.Status,
		Summary:     payload,
		StartedAt:   summary.StartedAt,
		CompletedAt: summary.CompletedAt,
		CreatedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *RunRepository) Recent(ctx context.Context, limit int) ([]RunModel, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []RunModel
	err := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}

func summaryToJSONMap(summary models.RunSummary) (datatypes.JSONMap, error) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	var payload datatypes.JSONMap
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
