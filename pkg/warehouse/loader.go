package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/niinog/hospital-data/pkg/table"
)

const insertBatchSize = 500

// Loader replaces tables in the analytical warehouse. Destination schema is
// inferred from the table's cell types; each load is drop-and-recreate inside
// one transaction, so success means the transfer is durably committed.
type Loader struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewLoader(db *gorm.DB, log *logrus.Logger) *Loader {
	return &Loader{db: db, log: log}
}

// Replace loads the table under the destination name, wholesale.
func (l *Loader) Replace(ctx context.Context, destination string, t *table.Table) error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", destination)
	}

	ddl := createStatement(destination, t)

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(destination))).Error; err != nil {
			return err
		}
		if err := tx.Exec(ddl).Error; err != nil {
			return err
		}
		return insertRows(tx, destination, t)
	})
	if err != nil {
		l.log.WithError(err).WithField("destination", destination).Error("Warehouse load failed")
		return fmt.Errorf("failed to load %s: %w", destination, err)
	}

	l.log.WithFields(logrus.Fields{
		"destination": destination,
		"rows":        t.Len(),
	}).Info("Warehouse table replaced")
	return nil
}

func insertRows(tx *gorm.DB, destination string, t *table.Table) error {
	columns := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = quoteIdent(c)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ",
		quoteIdent(destination), strings.Join(columns, ", "))
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ") + ")"

	for start := 0; start < len(t.Rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		batch := t.Rows[start:end]

		placeholders := make([]string, len(batch))
		args := make([]interface{}, 0, len(batch)*len(t.Columns))
		for i, row := range batch {
			placeholders[i] = placeholder
			for _, c := range t.Columns {
				args = append(args, row[c])
			}
		}

		if err := tx.Exec(prefix+strings.Join(placeholders, ", "), args...).Error; err != nil {
			return err
		}
	}
	return nil
}

// createStatement infers a column type from the first typed cell in each
// column; columns that never carry a typed value fall back to text.
func createStatement(destination string, t *table.Table) string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = fmt.Sprintf("%s %s", quoteIdent(c), columnType(t, c))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(destination), strings.Join(defs, ", "))
}

func columnType(t *table.Table, column string) string {
	for _, row := range t.Rows {
		switch row[column].(type) {
		case nil:
			continue
		case time.Time:
			return "timestamptz"
		case float64, float32:
			return "double precision"
		case int, int64:
			return "bigint"
		default:
			return "text"
		}
	}
	return "text"
}

// quoteIdent quotes a destination or column name; feature columns carry
// spaces ("Body Mass Index") so quoting is not optional.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
