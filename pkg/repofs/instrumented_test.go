package repofs_test

import (
	"context"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/limitio"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/metrics"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs/localfs"
)

func setupInstrumented(t *testing.T) (repofs.FS, *metrics.Collector, *observer.ObservedLogs) {
	t.Helper()

	inner, err := localfs.New(t.TempDir(), localfs.WithAferoFs(afero.NewOsFs()))
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	collector := metrics.New(prometheus.NewRegistry())
	return repofs.Instrument(inner, zap.New(core), collector), collector, logs
}

func TestInstrumentCountsOps(t *testing.T) {
	fs, collector, _ := setupInstrumented(t)
	ctx := context.Background()

	require.NoError(t, fs.WriteFile(ctx, "refs/heads/main", strings.NewReader("sha\n"), 0644))
	rdr, err := fs.ReadFile(ctx, "refs/heads/main")
	require.NoError(t, err)
	require.NoError(t, rdr.Close())
	_, err = fs.ReadFile(ctx, "nothere")
	require.Error(t, err)

	assert.EqualValues(t, 1, testutil.ToFloat64(collector.Ops.WithLabelValues("write", "ok")))
	assert.EqualValues(t, 1, testutil.ToFloat64(collector.Ops.WithLabelValues("read", "ok")))
	assert.EqualValues(t, 1, testutil.ToFloat64(collector.Ops.WithLabelValues("read", "error")))
}

func TestInstrumentCountsBytes(t *testing.T) {
	fs, collector, _ := setupInstrumented(t)
	ctx := context.Background()

	payload := strings.Repeat("x", 1024)
	require.NoError(t, fs.WriteFile(ctx, "objects/ab/cd", strings.NewReader(payload), 0644))
	assert.EqualValues(t, 1024, testutil.ToFloat64(collector.Bytes.WithLabelValues("write")))

	rdr, err := fs.ReadFile(ctx, "objects/ab/cd")
	require.NoError(t, err)
	out, err := ioutil.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())
	assert.Equal(t, payload, string(out))
	assert.EqualValues(t, 1024, testutil.ToFloat64(collector.Bytes.WithLabelValues("read")))
}

func TestInstrumentFlagsOversize(t *testing.T) {
	fs, collector, logs := setupInstrumented(t)
	ctx := context.Background()

	// a bounded source aborting mid-write, the way a push body does
	source := limitio.NewReader(strings.NewReader(strings.Repeat("x", 64)), "push", 16)
	err := fs.WriteFile(ctx, "incoming/bundle", source, 0644)
	require.Error(t, err)
	assert.True(t, repofs.IsPayloadTooLarge(err), "the decorator must not swallow the error kind")

	assert.EqualValues(t, 1, testutil.ToFloat64(collector.OversizeRejections))

	warnings := logs.FilterMessage("payload over byte budget").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zap.WarnLevel, warnings[0].Level)
}

func TestInstrumentFlagsTraversal(t *testing.T) {
	fs, collector, logs := setupInstrumented(t)
	ctx := context.Background()

	_, err := fs.ReadFile(ctx, "../../etc/passwd")
	require.Error(t, err)
	assert.True(t, repofs.IsPathTraversal(err), "the decorator must not swallow the error kind")

	assert.EqualValues(t, 1, testutil.ToFloat64(collector.TraversalRejections))

	warnings := logs.FilterMessage("path traversal rejected").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zap.WarnLevel, warnings[0].Level)
}

func TestInstrumentPassesResultsThrough(t *testing.T) {
	fs, _, _ := setupInstrumented(t)
	ctx := context.Background()

	require.NoError(t, fs.MkdirAll(ctx, "refs/heads"))
	require.NoError(t, fs.WriteFile(ctx, "refs/heads/main", strings.NewReader("sha\n"), 0644))
	require.NoError(t, fs.Symlink(ctx, "heads/main", "refs/current"))

	names, err := fs.ReadDir(ctx, "refs")
	require.NoError(t, err)
	assert.Equal(t, []string{"current", "heads"}, names)

	fi, err := fs.Lstat(ctx, "refs/current")
	require.NoError(t, err)
	assert.True(t, fi.IsSymlink())

	target, err := fs.Readlink(ctx, "refs/current")
	require.NoError(t, err)
	assert.Equal(t, "heads/main", target)

	assert.Equal(t, fs.String(), repofs.Instrument(fs, nil, nil).String())
}
