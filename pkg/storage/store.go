package storage

import (
	"context"
	"io"
	"time"
)

// MaxKeysPerPage bounds the number of keys returned by a single
// KeysPrefix page when the caller does not specify a count.
const MaxKeysPerPage = 1000

// Attrs describes the native metadata a store keeps about one object.
type Attrs struct {
	// Size of the object payload in bytes
	Size int64

	// ModTime is the last modification (or creation) time of the object
	ModTime time.Time

	// Metadata holds user-defined key/value pairs attached to the object.
	// Backends persist these natively (e.g. x-amz-meta-* on S3); the
	// local backend keeps them in a reserved sidecar area.
	Metadata map[string]string
}

// PutOptions controls a single Put operation.
type PutOptions struct {
	// Exclusive makes the Put fail with status.ErrExists when the key
	// is already present, instead of overwriting it
	Exclusive bool

	// Metadata is attached to the object and returned by Head
	Metadata map[string]string
}

// Store implementations know how to read and write entries of a flat K/V
// object namespace.
//
// Typically this is something object-store-like. Examples are S3, GCS,
// local FS. Implementations of this interface are assumed to be fairly
// simple: no retries, no caching, errors surfaced to the caller.
//
// A Store suitable to back a repository filesystem must provide strong
// read-after-write consistency on a single key: a Get immediately after
// a Put must observe the new payload.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Head(context.Context, string) (Attrs, error)
	Put(context.Context, string, io.Reader, PutOptions) error
	Delete(context.Context, string) error

	// KeysPrefix returns a page of keys starting after token, restricted
	// to the given prefix.
	//
	// With an empty delimiter, every key under the prefix is returned.
	// With a delimiter, only keys without a delimiter past the prefix are
	// returned, plus the distinct intermediate prefixes ("directories"),
	// reported with the delimiter appended. The second return value is
	// the token for the next page, empty when the listing is complete.
	KeysPrefix(ctx context.Context, token, prefix, delimiter string, count int) ([]string, string, error)

	// Clear removes every object in the store's namespace
	Clear(context.Context) error
}

// PipeIO copies the reader to the writer through a fixed-size buffer and
// reports the number of bytes moved.
func PipeIO(writer io.Writer, reader io.Reader) (n int64, err error) {
	pr, pw := io.Pipe()
	errC := make(chan error, 1)
	go func() {
		defer pw.Close()
		_, e := io.Copy(pw, reader)
		errC <- e
	}()
	written, err := io.Copy(writer, pr)
	if err != nil {
		_ = pr.Close() // unblocks the copy goroutine
		return written, err
	}
	if e := <-errC; e != nil {
		return written, e
	}
	return written, nil
}
