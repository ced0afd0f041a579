package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDefaultIsIdempotent(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	Plans.WithLabelValues("solved").Inc()

	families, err := Registry.Gather()
	require.NoError(t, err)
	var solved float64
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
		if f.GetName() != "fleetroute_plans_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" && l.GetValue() == "solved" {
					solved = m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 1.0, solved)
	assert.True(t, names["go_goroutines"])
}
