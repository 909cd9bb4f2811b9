package vecgroup

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecgroup/model"
)

var (
	// ErrNoLoader is returned when a pipeline is created without a loader.
	ErrNoLoader = errors.New("vecgroup: loader is required")

	// ErrNoStore is returned when a pipeline is created without a blob store.
	ErrNoStore = errors.New("vecgroup: blob store is required")
)

// DataError and IOError are re-exported for callers that only import the
// root package.
type (
	DataError = model.DataError
	IOError   = model.IOError
)

// ErrEmbeddingCount indicates that an Embedder returned the wrong number of
// vectors.
type ErrEmbeddingCount struct {
	Expected int
	Actual   int
}

func (e *ErrEmbeddingCount) Error() string {
	return fmt.Sprintf("embedder returned %d vectors for %d items", e.Actual, e.Expected)
}

// IsDataError reports whether err is caused by bad input data.
func IsDataError(err error) bool {
	var de *model.DataError
	return errors.As(err, &de)
}

// IsIOError reports whether err is a storage failure.
func IsIOError(err error) bool {
	var ie *model.IOError
	return errors.As(err, &ie)
}

// ErrInvalidParams is returned for out-of-range grouping parameters.
var ErrInvalidParams = errors.New("vecgroup: invalid parameters")
