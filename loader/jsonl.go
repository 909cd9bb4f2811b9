package loader

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"

	gojson "github.com/goccy/go-json"

	"github.com/hupe1980/vecgroup/blobstore"
	"github.com/hupe1980/vecgroup/model"
)

const maxLineSize = 64 << 20

// record is one JSON-lines input object.
type record struct {
	ID             any       `json:"id"`
	VariableName   string    `json:"variable_name"`
	ValueFormat    string    `json:"value_format"`
	Title          string    `json:"title"`
	Description    string    `json:"short_description"`
	AlternateNames []string  `json:"alternate_names"`
	Embedding      []float32 `json:"embedding"`
}

// JSONLines loads items from a blob holding one JSON object per line.
type JSONLines struct {
	store  blobstore.Store
	name   string
	logger *slog.Logger
}

// NewJSONLines creates a loader for the blob name in store.
func NewJSONLines(store blobstore.Store, name string, logger *slog.Logger) *JSONLines {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &JSONLines{store: store, name: name, logger: logger}
}

// Load reads and parses the blob.
func (l *JSONLines) Load(ctx context.Context) ([]model.Item, error) {
	b, err := l.store.Open(ctx, l.name)
	if err != nil {
		return nil, &model.IOError{Op: "open", Name: l.name, Err: err}
	}
	defer b.Close()

	if b.Size() == 0 {
		return nil, nil
	}

	r, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, &model.IOError{Op: "read", Name: l.name, Err: err}
	}
	defer r.Close()

	items, err := ParseJSONLines(ctx, r)
	if err != nil {
		return nil, err
	}

	l.logger.Info("candidates loaded", "source", l.name, "items", len(items))

	return items, nil
}

// ParseJSONLines parses JSON-lines input. Blank lines are skipped. The id
// field may be a number or a numeric string; a missing or non-integer id and
// duplicate ids are reported as *model.DataError. Read failures are
// reported as *model.IOError.
func ParseJSONLines(ctx context.Context, r io.Reader) ([]model.Item, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var items []model.Item

	for line := 1; sc.Scan(); line++ {
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		dec := gojson.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()

		var rec record
		if err := dec.Decode(&rec); err != nil {
			return nil, lineError(line, "invalid json: %v", err)
		}

		id, ok := coerceJSONID(rec.ID)
		if !ok {
			return nil, lineError(line, "id %v is not an integer", rec.ID)
		}

		items = append(items, model.Item{
			ID:             id,
			VariableName:   rec.VariableName,
			ValueFormat:    rec.ValueFormat,
			Title:          rec.Title,
			Description:    rec.Description,
			AlternateNames: nonEmpty(rec.AlternateNames...),
			Embedding:      rec.Embedding,
		})
	}

	if err := sc.Err(); err != nil {
		return nil, &model.IOError{Op: "read", Name: "jsonl", Err: err}
	}

	if err := CheckUnique(items); err != nil {
		return nil, err
	}

	return items, nil
}

func coerceJSONID(v any) (int64, bool) {
	if n, ok := v.(gojson.Number); ok {
		return CoerceID(string(n))
	}

	if _, ok := v.(string); ok {
		return CoerceID(v)
	}

	return 0, false
}
