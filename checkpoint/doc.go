// Package checkpoint persists the expensive intermediate results of a run,
// the embedding matrix and the similarity graph, so that a rerun over the
// same candidates can skip recomputing them.
//
// Every checkpoint is a single blob: a 64-byte header followed by the
// payload, optionally block-compressed with LZ4 or ZSTD. The header carries
// the row or node count the checkpoint was built from and a CRC32 over the
// header and payload.
//
// A checkpoint that fails to decode is treated as absent by the Manager.
// Only genuine storage failures are reported, as *model.IOError.
package checkpoint
