package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, registers "sqlite"

	"github.com/hupe1980/vecgroup/model"
)

// DefaultTable is the catalog table read by the SQLite loader.
const DefaultTable = "CDE_Dictionary_Condensed"

// ErrMissingIDColumn is returned when the table has no ID column.
var ErrMissingIDColumn = errors.New("loader: table has no ID column")

// Catalog columns. Only ID is required.
const (
	colID                    = "ID"
	colVariableName          = "variable_name"
	colValueFormat           = "value_format"
	colTitle                 = "title"
	colShortDescription      = "short_description"
	colPreferredQuestionText = "preferred_question_text"
	colSynonymousTerms       = "synonymous_terms"
	colAlternateTitles       = "alternate_titles"
)

// SQLiteOptions configures the SQLite loader.
type SQLiteOptions struct {
	// Table is the catalog table name.
	Table string

	// Limit caps the number of rows read. 0 reads all rows.
	Limit int

	// Logger receives progress messages. Nil disables logging.
	Logger *slog.Logger
}

// SQLite loads items from a catalog table in a SQLite database.
type SQLite struct {
	path   string
	opts   SQLiteOptions
	logger *slog.Logger
}

// NewSQLite creates a loader for the database at path.
func NewSQLite(path string, optFns ...func(o *SQLiteOptions)) *SQLite {
	opts := SQLiteOptions{Table: DefaultTable}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &SQLite{path: path, opts: opts, logger: logger}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Load reads the table in rowid order. Rows whose ID cannot be coerced to
// an integer are skipped; duplicate IDs are a *model.DataError.
func (l *SQLite) Load(ctx context.Context) ([]model.Item, error) {
	db, err := sql.Open("sqlite", "file:"+l.path+"?mode=ro")
	if err != nil {
		return nil, &model.IOError{Op: "open", Name: l.path, Err: err}
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, &model.IOError{Op: "open", Name: l.path, Err: err}
	}

	query := "SELECT * FROM " + quoteIdent(l.opts.Table)
	if l.opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", l.opts.Limit)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, &model.IOError{Op: "query", Name: l.opts.Table, Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &model.IOError{Op: "query", Name: l.opts.Table, Err: err}
	}

	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c] = i
	}

	if _, ok := index[colID]; !ok {
		return nil, ErrMissingIDColumn
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))

	for i := range values {
		ptrs[i] = &values[i]
	}

	text := func(col string) string {
		i, ok := index[col]
		if !ok {
			return ""
		}

		return asText(values[i])
	}

	var (
		items   []model.Item
		skipped int
	)

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &model.IOError{Op: "scan", Name: l.opts.Table, Err: err}
		}

		id, ok := CoerceID(values[index[colID]])
		if !ok {
			skipped++
			continue
		}

		items = append(items, model.Item{
			ID:           id,
			VariableName: text(colVariableName),
			ValueFormat:  strings.TrimSpace(text(colValueFormat)),
			Title:        text(colTitle),
			Description:  text(colShortDescription),
			AlternateNames: nonEmpty(
				text(colPreferredQuestionText),
				text(colSynonymousTerms),
				text(colAlternateTitles),
			),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, &model.IOError{Op: "query", Name: l.opts.Table, Err: err}
	}

	if err := CheckUnique(items); err != nil {
		return nil, err
	}

	if skipped > 0 {
		l.logger.Warn("skipped rows with non-integer ids", "table", l.opts.Table, "rows", skipped)
	}

	l.logger.Info("candidates loaded", "source", l.path, "table", l.opts.Table, "items", len(items))

	return items, nil
}

func asText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
