package repofs

import (
	"context"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/metrics"
)

// Instrument wraps a repository filesystem with logging and counters.
//
// Path-traversal rejections are logged at warn level: they are security
// events an operator wants to alert on, and must stay distinguishable
// from plain not-found noise.
func Instrument(fs FS, logger *zap.Logger, collector *metrics.Collector) FS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumentedFS{
		fs: fs,
		l:  logger.With(zap.String("backend", fs.String())),
		m:  collector,
	}
}

type instrumentedFS struct {
	fs FS
	l  *zap.Logger
	m  *metrics.Collector
}

func (i *instrumentedFS) String() string {
	return i.fs.String()
}

func (i *instrumentedFS) observe(op, path string, err error) {
	if i.m != nil {
		i.m.Op(op, err)
	}
	switch {
	case err == nil:
		i.l.Debug("storage "+op, zap.String("path", path))
	case IsPathTraversal(err):
		if i.m != nil {
			i.m.TraversalRejections.Inc()
		}
		i.l.Warn("path traversal rejected",
			zap.String("op", op),
			zap.String("path", path))
	case IsPayloadTooLarge(err):
		if i.m != nil {
			i.m.OversizeRejections.Inc()
		}
		i.l.Warn("payload over byte budget",
			zap.String("op", op),
			zap.String("path", path))
	default:
		i.l.Debug("storage "+op, zap.String("path", path), zap.Error(err))
	}
}

// countedReader adds payload bytes to a counter as they stream through
type countedReader struct {
	r     io.Reader
	bytes prometheus.Counter
}

func (c *countedReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.bytes.Add(float64(n))
	}
	return n, err
}

type countedReadCloser struct {
	countedReader
	closer io.Closer
}

func (c *countedReadCloser) Close() error {
	return c.closer.Close()
}

func (i *instrumentedFS) ReadFile(ctx context.Context, path string) (io.ReadCloser, error) {
	rdr, err := i.fs.ReadFile(ctx, path)
	i.observe("read", path, err)
	if err != nil || i.m == nil {
		return rdr, err
	}
	return &countedReadCloser{
		countedReader: countedReader{r: rdr, bytes: i.m.Bytes.WithLabelValues("read")},
		closer:        rdr,
	}, nil
}

func (i *instrumentedFS) WriteFile(ctx context.Context, path string, source io.Reader, perm os.FileMode) error {
	if i.m != nil {
		source = &countedReader{r: source, bytes: i.m.Bytes.WithLabelValues("write")}
	}
	err := i.fs.WriteFile(ctx, path, source, perm)
	i.observe("write", path, err)
	return err
}

func (i *instrumentedFS) Unlink(ctx context.Context, path string) error {
	err := i.fs.Unlink(ctx, path)
	i.observe("unlink", path, err)
	return err
}

func (i *instrumentedFS) ReadDir(ctx context.Context, path string) ([]string, error) {
	names, err := i.fs.ReadDir(ctx, path)
	i.observe("readdir", path, err)
	return names, err
}

func (i *instrumentedFS) Mkdir(ctx context.Context, path string) error {
	err := i.fs.Mkdir(ctx, path)
	i.observe("mkdir", path, err)
	return err
}

func (i *instrumentedFS) MkdirAll(ctx context.Context, path string) error {
	err := i.fs.MkdirAll(ctx, path)
	i.observe("mkdirall", path, err)
	return err
}

func (i *instrumentedFS) Rmdir(ctx context.Context, path string) error {
	err := i.fs.Rmdir(ctx, path)
	i.observe("rmdir", path, err)
	return err
}

func (i *instrumentedFS) Stat(ctx context.Context, path string) (FileInfo, error) {
	fi, err := i.fs.Stat(ctx, path)
	i.observe("stat", path, err)
	return fi, err
}

func (i *instrumentedFS) Lstat(ctx context.Context, path string) (FileInfo, error) {
	fi, err := i.fs.Lstat(ctx, path)
	i.observe("lstat", path, err)
	return fi, err
}

func (i *instrumentedFS) Readlink(ctx context.Context, path string) (string, error) {
	target, err := i.fs.Readlink(ctx, path)
	i.observe("readlink", path, err)
	return target, err
}

func (i *instrumentedFS) Symlink(ctx context.Context, target, linkPath string) error {
	err := i.fs.Symlink(ctx, target, linkPath)
	i.observe("symlink", linkPath, err)
	return err
}
