package validator

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/niinog/hospital-data/pkg/table"
)

// run tracks one table's single validation pass: checking → PASSED/FAILED.
type run struct {
	table    string
	input    *table.Table
	required []string
	log      *logrus.Logger
	issues   []Issue
	fatals   int
}

func (v *Validator) newRun(tableName string, t *table.Table) *run {
	required := []string{}
	if entity, ok := v.catalog.Lookup(tableName); ok {
		required = entity.Required
	}

	v.log.WithFields(logrus.Fields{
		"table": tableName,
		"rows":  t.Len(),
	}).Info("Starting validation")

	return &run{table: tableName, input: t, required: required, log: v.log}
}

// record appends an issue and emits it through the log sink at the severity's
// matching level.
func (r *run) record(check string, severity Severity, count int, format string, args ...interface{}) {
	message := fmt.Sprintf("%s: %s", r.table, fmt.Sprintf(format, args...))
	r.issues = append(r.issues, Issue{
		Table:    r.table,
		Check:    check,
		Severity: severity,
		Count:    count,
		Message:  message,
	})

	entry := r.log.WithFields(logrus.Fields{"table": r.table, "check": check, "count": count})
	if severity == SeverityFatal {
		r.fatals++
		entry.Error(message)
	} else {
		entry.Warning(message)
	}
}

func (r *run) fatal(check string, count int, format string, args ...interface{}) {
	r.record(check, SeverityFatal, count, format, args...)
}

func (r *run) advisory(check string, count int, format string, args ...interface{}) {
	r.record(check, SeverityAdvisory, count, format, args...)
}

// requireColumns is the first gate: any absent required column fails the
// table immediately and skips the remaining checks.
func (r *run) requireColumns() bool {
	var missing []string
	for _, c := range r.required {
		if !r.input.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		r.fatal(CheckMissingSchema, len(missing), "missing required columns: %v", missing)
		return false
	}
	return true
}

// coerceTime coerces a timestamp column in the working copy. Failures are
// recorded but non-fatal; the coerced cells feed the checks that follow.
func (r *run) coerceTime(work *table.Table, column string) {
	failures := 0
	for _, row := range work.Rows {
		v, ok := row[column]
		if !ok || table.IsMissing(v) {
			row[column] = nil
			continue
		}
		if parsed, ok := table.AsTime(v); ok {
			row[column] = parsed
		} else {
			row[column] = nil
			failures++
		}
	}
	if failures > 0 {
		r.advisory(CheckCoercionFailure, failures,
			"%d values in %s could not be coerced to datetime", failures, column)
	}
}

// coerceNumeric mirrors coerceTime for numeric columns.
func (r *run) coerceNumeric(work *table.Table, column string) {
	failures := 0
	for _, row := range work.Rows {
		v, ok := row[column]
		if !ok || table.IsMissing(v) {
			row[column] = nil
			continue
		}
		if f, ok := table.AsFloat(v); ok {
			row[column] = f
		} else {
			row[column] = nil
			failures++
		}
	}
	if failures > 0 {
		r.advisory(CheckCoercionFailure, failures,
			"%d values in %s could not be coerced to numeric", failures, column)
	}
}

func (r *run) checkMissingKey(work *table.Table, key string) {
	nulls := 0
	for _, row := range work.Rows {
		if table.IsMissing(row[key]) {
			nulls++
		}
	}
	if nulls > 0 {
		r.fatal(CheckMissingness, nulls, "%d rows have missing %s", nulls, key)
	}
}

// checkDuplicateKey counts rows beyond the first occurrence of each key.
func (r *run) checkDuplicateKey(work *table.Table, key string) {
	seen := make(map[string]struct{}, work.Len())
	dups := 0
	for _, row := range work.Rows {
		id := table.AsString(row[key])
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			dups++
			continue
		}
		seen[id] = struct{}{}
	}
	if dups > 0 {
		r.fatal(CheckDuplicateKey, dups, "%d duplicate %s values found", dups, key)
	}
}

// complete closes the pass. A panic anywhere in the checks is recovered here,
// recorded as a fatal finding with full diagnostics, and the table is failed;
// the fault never reaches the caller.
func (r *run) complete(result *Result) {
	if p := recover(); p != nil {
		r.log.WithFields(logrus.Fields{
			"table": r.table,
			"panic": fmt.Sprint(p),
			"stack": string(debug.Stack()),
		}).Error("Unexpected error while validating")
		r.fatal(CheckUnexpectedFault, 1, "unexpected error during validation: %v", p)
	}

	passed := r.fatals == 0
	if passed {
		r.log.WithField("table", r.table).Info("Validation PASSED")
	} else {
		r.log.WithFields(logrus.Fields{
			"table":  r.table,
			"issues": len(r.issues),
		}).Error("Validation FAILED")
	}

	issues := r.issues
	if issues == nil {
		issues = []Issue{}
	}
	*result = Result{Table: r.table, Passed: passed, Issues: issues}
}
