package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterCollectors(reg) })

	before := testutil.ToFloat64(Edits.WithLabelValues("applied"))
	Edits.WithLabelValues("applied").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(Edits.WithLabelValues("applied")))

	n, err := testutil.GatherAndCount(reg, "collab_edits_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
