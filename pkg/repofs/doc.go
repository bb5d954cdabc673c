// Package repofs defines the filesystem contract a hosted repository's
// version-control engine programs against.
//
// The engine depends exclusively on the FS interface. Which
// implementation backs a deployment (a local directory tree, an object
// store) is wiring-time configuration; implementations are
// interchangeable and verified for behavioral parity by the shared
// suite in pkg/repofs/fstest.
//
// Every operation takes a repository-relative path. Implementations
// resolve it through pkg/repofs/safepath before touching storage, so an
// untrusted path can never escape the repository root.
package repofs
