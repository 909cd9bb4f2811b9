// Package output assembles the community definitions and writes them,
// together with statistics, samples and text analysis reports, to a blob
// store.
package output
