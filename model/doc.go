// Package model defines core types used throughout vecgroup.
//
// # Input Types
//
//   - Item: a catalog metadata record with its embedding
//   - DataError: a malformed or incomplete input record
//   - IOError: a storage failure while reading or writing artifacts
//
// # Output Types
//
//   - Community: a modularity community and its sub-groups
//   - SubGroup: a bounded-size hub_and_spoke or orphan batch
package model
