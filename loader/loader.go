// Package loader provides the candidate loaders that feed the pipeline and
// the Embedder interface used when candidates carry no embeddings.
package loader

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hupe1980/vecgroup/model"
)

// Loader returns the ordered candidate items of a run.
type Loader interface {
	Load(ctx context.Context) ([]model.Item, error)
}

// Func adapts a function to the Loader interface.
type Func func(ctx context.Context) ([]model.Item, error)

// Load calls f(ctx).
func (f Func) Load(ctx context.Context) ([]model.Item, error) { return f(ctx) }

// Static returns a Loader that always yields items.
func Static(items []model.Item) Loader {
	return Func(func(context.Context) ([]model.Item, error) { return items, nil })
}

// Embedder computes one embedding per item, in item order.
type Embedder interface {
	Embed(ctx context.Context, items []model.Item) ([][]float32, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, items []model.Item) ([][]float32, error)

// Embed calls f(ctx, items).
func (f EmbedderFunc) Embed(ctx context.Context, items []model.Item) ([][]float32, error) {
	return f(ctx, items)
}

// CoerceID converts a raw identifier to an integer. Integral floats and
// numeric strings such as "12" or "12.0" are accepted.
func CoerceID(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) || math.Abs(x) > 1<<53 {
			return 0, false
		}

		return int64(x), true
	case []byte:
		return CoerceID(string(x))
	case string:
		s := strings.TrimSpace(x)
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			return id, true
		}

		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return CoerceID(f)
		}

		return 0, false
	default:
		return 0, false
	}
}

// CheckUnique reports the first duplicate ID as a DataError.
func CheckUnique(items []model.Item) error {
	seen := make(map[int64]struct{}, len(items))

	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			return &model.DataError{ItemID: it.ID, Reason: "duplicate id"}
		}

		seen[it.ID] = struct{}{}
	}

	return nil
}

func nonEmpty(values ...string) []string {
	var out []string

	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}

	return out
}

func lineError(line int, format string, args ...any) error {
	return &model.DataError{Reason: fmt.Sprintf("line %d: ", line) + fmt.Sprintf(format, args...)}
}
