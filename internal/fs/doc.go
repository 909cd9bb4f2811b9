// Package fs provides the file system abstraction behind the local blob store.
//
//   - [LocalFS]: production implementation using the os package
//   - [FaultyFS]: test wrapper that injects open, write, sync, close and
//     rename failures by file name
//
// Tests inject a FaultyFS to check that storage failures surface as I/O
// errors instead of leaving partial files behind:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("graph", fs.Fault{FailOnSync: true})
//
// Operations take no context.Context; local file system calls are not
// interruptible at the syscall level.
package fs
