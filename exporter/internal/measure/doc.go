// Package measure walks a directory tree and totals the size and number of
// the regular files below it.
//
// Walker.Measure tolerates partial failure: a file whose size cannot be read
// or a subdirectory that cannot be listed is logged at warn level, skipped,
// and counted in Usage.Errors. Only a root that cannot be listed fails the
// call. Symlinks are neither followed nor counted. Depth is uncapped unless
// WithMaxDepth is given.
package measure
