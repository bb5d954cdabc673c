package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/errors"
)

func TestOpOutcomes(t *testing.T) {
	c := New(nil)

	c.Op("read", nil)
	c.Op("read", nil)
	c.Op("read", errors.New("boom"))
	c.Op("write", nil)

	assert.EqualValues(t, 2, testutil.ToFloat64(c.Ops.WithLabelValues("read", "ok")))
	assert.EqualValues(t, 1, testutil.ToFloat64(c.Ops.WithLabelValues("read", "error")))
	assert.EqualValues(t, 1, testutil.ToFloat64(c.Ops.WithLabelValues("write", "ok")))
}

func TestRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.TraversalRejections.Inc()
	c.OversizeRejections.Inc()
	c.Bytes.WithLabelValues("write").Add(42)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["flotilla_storage_path_traversal_rejections_total"])
	assert.True(t, names["flotilla_storage_payload_oversize_rejections_total"])
	assert.True(t, names["flotilla_storage_bytes_total"])
}
