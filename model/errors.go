package model

import "fmt"

// DataError reports an input record that cannot be processed.
type DataError struct {
	ItemID int64
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error: item %d: %s", e.ItemID, e.Reason)
}

// IOError reports a storage failure.
//
// The original underlying error can be accessed via errors.Unwrap.
type IOError struct {
	Op   string
	Name string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
