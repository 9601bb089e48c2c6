// Package metrics exposes pipeline counters in Prometheus text format
// without pulling in a client library. Counters are process-global; the
// trigger service serves one pipeline, so there is nothing to label.
package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	runsStarted   atomic.Int64
	runsSucceeded atomic.Int64
	runsFailed    atomic.Int64

	tablesWritten atomic.Int64
	tablesLoaded  atomic.Int64
	rowsWritten   atomic.Int64

	validationFatal    atomic.Int64
	validationAdvisory atomic.Int64
)

func RunStarted() { runsStarted.Add(1) }

func RunCompleted(succeeded bool) {
	if succeeded {
		runsSucceeded.Add(1)
	} else {
		runsFailed.Add(1)
	}
}

func TableWritten(rows int) {
	tablesWritten.Add(1)
	rowsWritten.Add(int64(rows))
}

func TableLoaded() { tablesLoaded.Add(1) }

// ObserveValidation records the latest run's finding counts; gauges, not
// counters, so the endpoint always reflects the most recent verdicts.
func ObserveValidation(fatal, advisory int) {
	validationFatal.Store(int64(fatal))
	validationAdvisory.Store(int64(advisory))
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP hospital_pipeline_runs_started_total Number of pipeline runs started.\n")
	fmt.Fprintf(w, "# TYPE hospital_pipeline_runs_started_total counter\n")
	fmt.Fprintf(w, "hospital_pipeline_runs_started_total %d\n", runsStarted.Load())

	fmt.Fprintf(w, "# HELP hospital_pipeline_runs_succeeded_total Number of pipeline runs that finished with every validation passing.\n")
	fmt.Fprintf(w, "# TYPE hospital_pipeline_runs_succeeded_total counter\n")
	fmt.Fprintf(w, "hospital_pipeline_runs_succeeded_total %d\n", runsSucceeded.Load())

	fmt.Fprintf(w, "# HELP hospital_pipeline_runs_failed_total Number of pipeline runs that failed validation or aborted.\n")
	fmt.Fprintf(w, "# TYPE hospital_pipeline_runs_failed_total counter\n")
	fmt.Fprintf(w, "hospital_pipeline_runs_failed_total %d\n", runsFailed.Load())

	fmt.Fprintf(w, "# HELP hospital_pipeline_tables_written_total Number of derived tables written to the output root.\n")
	fmt.Fprintf(w, "# TYPE hospital_pipeline_tables_written_total counter\n")
	fmt.Fprintf(w, "hospital_pipeline_tables_written_total %d\n", tablesWritten.Load())

	fmt.Fprintf(w, "# HELP hospital_pipeline_tables_loaded_total Number of derived tables loaded into the warehouse.\n")
	fmt.Fprintf(w, "# TYPE hospital_pipeline_tables_loaded_total counter\n")
	fmt.Fprintf(w, "hospital_pipeline_tables_loaded_total %d\n", tablesLoaded.Load())

	fmt.Fprintf(w, "# HELP hospital_pipeline_rows_written_total Number of rows written across all derived tables.\n")
	fmt.Fprintf(w, "# TYPE hospital_pipeline_rows_written_total counter\n")
	fmt.Fprintf(w, "hospital_pipeline_rows_written_total %d\n", rowsWritten.Load())

	fmt.Fprintf(w, "# HELP hospital_pipeline_validation_fatal_findings Fatal validation findings in the latest run.\n")
	fmt.Fprintf(w, "# TYPE hospital_pipeline_validation_fatal_findings gauge\n")
	fmt.Fprintf(w, "hospital_pipeline_validation_fatal_findings %d\n", validationFatal.Load())

	fmt.Fprintf(w, "# HELP hospital_pipeline_validation_advisory_findings Advisory validation findings in the latest run.\n")
	fmt.Fprintf(w, "# TYPE hospital_pipeline_validation_advisory_findings gauge\n")
	fmt.Fprintf(w, "hospital_pipeline_validation_advisory_findings %d\n", validationAdvisory.Load())
}
