// Package validator runs the schema and integrity battery against normalized
// tables. Normalization is tolerant; this package is the strict gate that
// turns detected problems into a pass/fail verdict. It records every finding,
// logs it through the injected sink, and never lets an unexpected fault
// escape to the caller.
package validator

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/niinog/hospital-data/pkg/schema"
	"github.com/niinog/hospital-data/pkg/table"
)

type Severity string

const (
	SeverityFatal    Severity = "fatal"
	SeverityAdvisory Severity = "advisory"
)

// Check identifiers, one per error class.
const (
	CheckMissingSchema   = "missing_schema"
	CheckCoercionFailure = "coercion_failure"
	CheckMissingness     = "missingness"
	CheckDuplicateKey    = "duplicate_key"
	CheckLogicViolation  = "logic_violation"
	CheckPlausibility    = "plausibility_warning"
	CheckUnexpectedFault = "unexpected_fault"
)

const (
	VerdictPassed = "PASSED"
	VerdictFailed = "FAILED"
)

// Plausibility bounds for derived age; findings outside the range are
// advisory only because the synthetic sources carry known outliers.
const (
	ageLowerBound = 0.0
	ageUpperBound = 120.0
)

type Issue struct {
	Table    string   `json:"table"`
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	Count    int      `json:"count"`
	Message  string   `json:"message"`
}

type Result struct {
	Table  string  `json:"table"`
	Passed bool    `json:"passed"`
	Issues []Issue `json:"issues"`
}

func (r Result) Verdict() string {
	if r.Passed {
		return VerdictPassed
	}
	return VerdictFailed
}

func (r Result) FatalCount() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityFatal {
			n++
		}
	}
	return n
}

func (r Result) AdvisoryCount() int {
	return len(r.Issues) - r.FatalCount()
}

type Validator struct {
	catalog schema.Catalog
	log     *logrus.Logger
}

// New builds a validator around an explicitly passed log sink so concurrent
// runs and tests can isolate their streams.
func New(cat schema.Catalog, log *logrus.Logger) *Validator {
	return &Validator{catalog: cat, log: log}
}

// ValidatePersons checks the canonical person table: required columns, type
// coercion, missing/duplicate identifiers, age plausibility (advisory) and
// negative coverage (fatal).
func (v *Validator) ValidatePersons(t *table.Table) (result Result) {
	run := v.newRun(schema.Person, t)
	defer run.complete(&result)

	if !run.requireColumns() {
		return
	}

	work := t.Copy()
	run.coerceTime(work, "birth_date")
	run.coerceNumeric(work, "age_years")
	run.coerceNumeric(work, "total_coverage")

	run.checkMissingKey(work, "person_id")
	run.checkDuplicateKey(work, "person_id")

	outOfRange := 0
	for _, row := range work.Rows {
		if age, ok := table.AsFloat(row["age_years"]); ok {
			if age < ageLowerBound || age > ageUpperBound {
				outOfRange++
			}
		}
	}
	if outOfRange > 0 {
		run.advisory(CheckPlausibility, outOfRange,
			"%d rows have age_years outside [0, 120] (warning only, synthetic data)", outOfRange)
	}

	if negativeCoverage := countNegative(work, "total_coverage"); negativeCoverage > 0 {
		run.fatal(CheckLogicViolation, negativeCoverage,
			"%d rows have negative total_coverage", negativeCoverage)
	}

	return
}

// ValidateCareEpisodes checks the canonical care-episode table: required
// columns, type coercion, missing/duplicate identifiers, end-before-start and
// negative duration (both fatal).
func (v *Validator) ValidateCareEpisodes(t *table.Table) (result Result) {
	run := v.newRun(schema.CareEpisode, t)
	defer run.complete(&result)

	if !run.requireColumns() {
		return
	}

	work := t.Copy()
	run.coerceTime(work, "start_time")
	run.coerceTime(work, "end_time")
	run.coerceNumeric(work, "duration_hours")

	run.checkMissingKey(work, "episode_id")
	run.checkDuplicateKey(work, "episode_id")

	endBeforeStart := 0
	for _, row := range work.Rows {
		start, okStart := table.AsTime(row["start_time"])
		end, okEnd := table.AsTime(row["end_time"])
		if okStart && okEnd && end.Before(start) {
			endBeforeStart++
		}
	}
	if endBeforeStart > 0 {
		run.fatal(CheckLogicViolation, endBeforeStart,
			"%d rows have end_time before start_time", endBeforeStart)
	}

	if negativeDuration := countNegative(work, "duration_hours"); negativeDuration > 0 {
		run.fatal(CheckLogicViolation, negativeDuration,
			"%d rows have negative duration_hours", negativeDuration)
	}

	return
}

// Validate dispatches on the canonical table name.
func (v *Validator) Validate(name string, t *table.Table) (Result, error) {
	switch name {
	case schema.Person:
		return v.ValidatePersons(t), nil
	case schema.CareEpisode:
		return v.ValidateCareEpisodes(t), nil
	default:
		return Result{}, fmt.Errorf("no validation rules for table %s", name)
	}
}

func countNegative(t *table.Table, column string) int {
	n := 0
	for _, row := range t.Rows {
		if value, ok := table.AsFloat(row[column]); ok && value < 0 {
			n++
		}
	}
	return n
}
