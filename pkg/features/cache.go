package features

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/niinog/hospital-data/pkg/table"
)

// Cache materializes wide feature rows into Redis for online lookup.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

func NewCache(client *redis.Client, ttl time.Duration, log *logrus.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, log: log}
}

func cacheKey(personID string) string {
	return fmt.Sprintf("features:%s", personID)
}

// Materialize writes one JSON document per person row. Rows without a person
// identifier are skipped; the first write error aborts.
func (c *Cache) Materialize(ctx context.Context, features *table.Table) error {
	written := 0
	for _, row := range features.Rows {
		personID := table.AsString(row["person_id"])
		if personID == "" {
			continue
		}

		payload := make(map[string]interface{}, len(features.Columns))
		for _, col := range features.Columns {
			if col == "person_id" {
				continue
			}
			payload[col] = row[col]
		}

		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal features for %s: %w", personID, err)
		}

		if err := c.client.Set(ctx, cacheKey(personID), data, c.ttl).Err(); err != nil {
			c.log.WithError(err).WithField("person_id", personID).Error("Failed to cache features")
			return err
		}
		written++
	}

	c.log.WithFields(logrus.Fields{
		"persons": written,
		"ttl":     c.ttl.String(),
	}).Info("Materialized feature rows to cache")
	return nil
}

// Get reads one person's cached feature row.
func (c *Cache) Get(ctx context.Context, personID string) (map[string]interface{}, error) {
	data, err := c.client.Get(ctx, cacheKey(personID)).Bytes()
	if err != nil {
		return nil, err
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
