package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRefresh_OutcomesMatchHelp(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	outcomes := []string{"success", "degraded", "no_data", "busy"}
	for _, o := range outcomes {
		r.RecordRefresh(o, 1)
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "omnispectrum_refresh_total" {
			continue
		}
		found = true
		for _, o := range outcomes {
			assert.True(t, strings.Contains(mf.GetHelp(), o), "help should list %q", o)
		}
		require.Len(t, mf.GetMetric(), len(outcomes))
		for _, m := range mf.GetMetric() {
			assert.Equal(t, 1.0, m.GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}
