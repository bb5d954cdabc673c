package repofs

import (
	"io/fs"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/errors"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/limitio"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs/safepath"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/storage/status"
)

// Error kind helpers normalizing over both adapters: the local adapter
// propagates native I/O error kinds unchanged, the object-store adapter
// synthesizes the equivalent kinds, and the engine branches with these
// regardless of which backend is wired in.

// IsNotExist reports a missing file, directory or link. For a loose
// object this means "absent", not "corrupted".
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, status.ErrNotExists) ||
		errors.Is(err, status.ErrNotFound)
}

// IsPermission reports an access denial by the backing store.
func IsPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, status.ErrForbidden) ||
		errors.Is(err, status.ErrUnauthorized)
}

// IsExist reports a creation attempt over an existing entry.
func IsExist(err error) bool {
	return errors.Is(err, fs.ErrExist) || errors.Is(err, status.ErrExists)
}

// IsPathTraversal reports a rejected attempt to escape the repository
// root. Always a hard rejection, never retried, worth alerting on.
func IsPathTraversal(err error) bool {
	return errors.Is(err, safepath.ErrPathTraversal)
}

// IsPayloadTooLarge reports a stream aborted over its byte budget.
func IsPayloadTooLarge(err error) bool {
	return errors.Is(err, limitio.ErrPayloadTooLarge)
}
