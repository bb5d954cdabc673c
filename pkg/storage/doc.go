// Package storage provides an interface to handle flat backend storage objects.
//
// This package supports the following backends:
//   - S3 and S3-compatible object stores (AWS)
//   - GCS (Google)
//   - local file system
//
// Stores address objects by key in a flat namespace. Hierarchical
// filesystem semantics (directories, symlinks, stat) are layered on top
// of a Store by pkg/repofs/objfs.
package storage
