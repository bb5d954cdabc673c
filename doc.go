/*
Package flotilla provides the storage backend of a version-control server.

Repository contents are accessed through one POSIX-like filesystem contract,
implemented both by a local directory tree and by flat object stores (S3, GCS,
or a local flat store) with emulated directories and symbolic links. Untrusted
repository-relative paths are sanitized before any storage access, and pushed
payloads are bounded by a byte budget.
*/
package flotilla
