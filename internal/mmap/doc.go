// Package mmap maps blob files read-only into memory.
//
// The local blob store hands checkpoint readers the mapped bytes directly,
// so an embedding matrix is decoded without an intermediate read buffer.
//
//	f, err := mmap.Map("out/embeddings.vgck")
//	if err != nil { ... }
//	defer f.Close()
//
//	f.Sequential()
//	data := f.Bytes()
//
// Unix builds use mmap(2) and madvise(2); Windows builds use a read-only
// file mapping view. A File is safe for concurrent reads.
package mmap
