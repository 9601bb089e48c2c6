// Package pipeline sequences one full run: ingest raw sources, normalize,
// flatten, link, pivot, validate, then write and optionally load every
// derived table. Stages are synchronous and fully materialize their inputs;
// independent runs are isolated because no stage shares mutable state.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/niinog/hospital-data/pkg/common/config"
	"github.com/niinog/hospital-data/pkg/common/kafka"
	"github.com/niinog/hospital-data/pkg/common/models"
	"github.com/niinog/hospital-data/pkg/features"
	"github.com/niinog/hospital-data/pkg/flattener"
	"github.com/niinog/hospital-data/pkg/ingest"
	"github.com/niinog/hospital-data/pkg/linker"
	"github.com/niinog/hospital-data/pkg/normalizer"
	"github.com/niinog/hospital-data/pkg/observability/metrics"
	"github.com/niinog/hospital-data/pkg/schema"
	"github.com/niinog/hospital-data/pkg/table"
	"github.com/niinog/hospital-data/pkg/validator"
	"github.com/niinog/hospital-data/pkg/warehouse"
)

// Raw flat exports, one file per entity kind, under <input>/csv.
var sourceFiles = map[string]string{
	schema.Person:          "patients.csv",
	schema.CareEpisode:     "encounters.csv",
	schema.Caregiver:       "providers.csv",
	schema.Organization:    "organizations.csv",
	schema.MedicationOrder: "medications.csv",
}

// Persisted output table names, in write order.
const (
	TablePerson          = schema.Person
	TableCareEpisode     = schema.CareEpisode
	TableCaregiver       = schema.Caregiver
	TableOrganization    = schema.Organization
	TableMedicationOrder = schema.MedicationOrder
	TableClinicalEvent   = "clinical_event"
	TablePatientFact     = "patient_event_fact"
	TableFeatures        = "patient_features"
)

type Runner struct {
	cfg        *config.Config
	log        *logrus.Logger
	normalizer *normalizer.Normalizer
	flattener  *flattener.Flattener
	validator  *validator.Validator

	loader   *warehouse.Loader
	cache    *features.Cache
	producer *kafka.Producer
	runs     *warehouse.RunRepository
}

func NewRunner(cfg *config.Config, cat schema.Catalog, log *logrus.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		log:        log,
		normalizer: normalizer.New(cat, cfg.ReferenceDate),
		flattener:  flattener.New(cfg.EventType),
		validator:  validator.New(cat, log),
	}
}

// Optional collaborators; a nil receiver-side field simply skips that step.

func (r *Runner) WithLoader(l *warehouse.Loader) *Runner          { r.loader = l; return r }
func (r *Runner) WithCache(c *features.Cache) *Runner             { r.cache = c; return r }
func (r *Runner) WithProducer(p *kafka.Producer) *Runner          { r.producer = p; return r }
func (r *Runner) WithRunRepository(h *warehouse.RunRepository) *Runner { r.runs = h; return r }

type namedTable struct {
	name  string
	table *table.Table
}

// Run executes the full pipeline once. A failed validation marks the run
// failed but outputs are still written; the caller decides whether to halt.
// Run only returns an error for infrastructure faults (unreadable sources,
// sink failures).
func (r *Runner) Run(ctx context.Context) (models.RunSummary, error) {
	summary := models.RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	log := r.log.WithField("run_id", summary.RunID)
	log.Info("Pipeline run started")
	metrics.RunStarted()
	r.publish(ctx, "run-started", map[string]interface{}{"run_id": summary.RunID})

	tables, results, err := r.derive(log)
	if err != nil {
		summary.Status = models.RunFailed
		summary.Error = err.Error()
		r.finish(ctx, &summary, log)
		return summary, err
	}

	passed := true
	fatal, advisory := 0, 0
	for _, res := range results {
		if !res.Passed {
			passed = false
		}
		fatal += res.FatalCount()
		advisory += res.AdvisoryCount()
		r.publish(ctx, "validation-verdict", map[string]interface{}{
			"run_id":   summary.RunID,
			"table":    res.Table,
			"verdict":  res.Verdict(),
			"fatal":    res.FatalCount(),
			"advisory": res.AdvisoryCount(),
		})
	}
	metrics.ObserveValidation(fatal, advisory)

	if err := r.deliver(ctx, tables, results, &summary, log); err != nil {
		summary.Status = models.RunFailed
		summary.Error = err.Error()
		r.finish(ctx, &summary, log)
		return summary, err
	}

	if passed {
		summary.Status = models.RunSucceeded
	} else {
		summary.Status = models.RunFailed
	}
	r.finish(ctx, &summary, log)
	return summary, nil
}

// derive produces every table and the validation results, in dependency
// order.
func (r *Runner) derive(log *logrus.Entry) ([]namedTable, []validator.Result, error) {
	csvRoot := filepath.Join(r.cfg.InputRoot, "csv")

	raw := make(map[string]*table.Table, len(sourceFiles))
	for entity, file := range sourceFiles {
		batch, err := ingest.ReadBatch(filepath.Join(csvRoot, file))
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", entity, err)
		}
		raw[entity] = batch
	}

	canonical := make(map[string]*table.Table, len(sourceFiles))
	for entity, batch := range raw {
		normalized, err := r.normalizer.Normalize(entity, batch)
		if err != nil {
			return nil, nil, fmt.Errorf("normalizing %s: %w", entity, err)
		}
		canonical[entity] = normalized
		log.WithFields(logrus.Fields{"table": entity, "rows": normalized.Len()}).Info("Table normalized")
	}

	// Validation gate: person and care-episode tables are checked before any
	// downstream consumption.
	results := []validator.Result{
		r.validator.ValidatePersons(canonical[schema.Person]),
		r.validator.ValidateCareEpisodes(canonical[schema.CareEpisode]),
	}

	docs, err := ingest.ReadBundles(filepath.Join(r.cfg.InputRoot, "fhir"))
	if err != nil {
		return nil, nil, fmt.Errorf("reading bundles: %w", err)
	}
	events := r.flattener.Flatten(docs)
	log.WithField("rows", events.Len()).Info("Clinical events flattened")

	fact := linker.Link(events, canonical[schema.Person])
	wide := features.Pivot(fact, r.cfg.FeatureLabels)
	log.WithFields(logrus.Fields{
		"fact_rows":    fact.Len(),
		"feature_rows": wide.Len(),
	}).Info("Features derived")

	tables := []namedTable{
		{TablePerson, canonical[schema.Person]},
		{TableCareEpisode, canonical[schema.CareEpisode]},
		{TableCaregiver, canonical[schema.Caregiver]},
		{TableOrganization, canonical[schema.Organization]},
		{TableMedicationOrder, canonical[schema.MedicationOrder]},
		{TableClinicalEvent, events},
		{TablePatientFact, fact},
		{TableFeatures, wide},
	}
	return tables, results, nil
}

// deliver writes every table to the output root and, when configured, loads
// it into the warehouse and materializes features to the cache.
func (r *Runner) deliver(ctx context.Context, tables []namedTable, results []validator.Result, summary *models.RunSummary, log *logrus.Entry) error {
	verdicts := make(map[string]validator.Result, len(results))
	for _, res := range results {
		verdicts[res.Table] = res
	}

	for _, nt := range tables {
		report := models.TableReport{
			Name:    nt.name,
			Rows:    nt.table.Len(),
			Columns: len(nt.table.Columns),
		}
		if res, ok := verdicts[nt.name]; ok {
			report.Verdict = res.Verdict()
			report.FatalIss = res.FatalCount()
			report.AdvisIss = res.AdvisoryCount()
		}

		path, err := warehouse.WriteTable(r.cfg.OutputRoot, nt.name, nt.table)
		if err != nil {
			return fmt.Errorf("writing %s: %w", nt.name, err)
		}
		report.Written = true
		metrics.TableWritten(nt.table.Len())
		log.WithFields(logrus.Fields{"table": nt.name, "path": path}).Info("Table written")

		if r.loader != nil {
			if err := r.loader.Replace(ctx, nt.name, nt.table); err != nil {
				return err
			}
			report.Loaded = true
			metrics.TableLoaded()
			r.publish(ctx, "table-loaded", map[string]interface{}{
				"run_id": summary.RunID,
				"table":  nt.name,
				"rows":   nt.table.Len(),
			})
		}

		summary.Tables = append(summary.Tables, report)

		if nt.name == TableFeatures && r.cache != nil {
			if err := r.cache.Materialize(ctx, nt.table); err != nil {
				return fmt.Errorf("caching features: %w", err)
			}
		}
	}
	return nil
}

func (r *Runner) finish(ctx context.Context, summary *models.RunSummary, log *logrus.Entry) {
	summary.CompletedAt = time.Now().UTC()
	summary.Duration = summary.CompletedAt.Sub(summary.StartedAt)
	metrics.RunCompleted(summary.Succeeded())

	r.publish(ctx, "run-finished", map[string]interface{}{
		"run_id":   summary.RunID,
		"status":   summary.Status,
		"duration": summary.Duration.String(),
	})

	if r.runs != nil {
		if err := r.runs.Save(ctx, *summary); err != nil {
			log.WithError(err).Error("Failed to persist run history")
		}
	}

	entry := log.WithFields(logrus.Fields{
		"status":   summary.Status,
		"duration": summary.Duration.String(),
		"tables":   len(summary.Tables),
	})
	if summary.Succeeded() {
		entry.Info("Pipeline run finished")
	} else {
		entry.Error("Pipeline run finished with failures")
	}
}

func (r *Runner) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if r.producer == nil {
		return
	}
	if err := r.producer.PublishEvent(ctx, eventType, "pipeline", data); err != nil {
		r.log.WithError(err).WithField("event_type", eventType).Warning("Event publish failed")
	}
}
