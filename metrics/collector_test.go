package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/baxromumarov/parfor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStats parfor.Stats

func (f fixedStats) Stats() parfor.Stats { return parfor.Stats(f) }

func TestCollector_Values(t *testing.T) {
	c := NewCollector(fixedStats{
		Workers:           4,
		Created:           6,
		Active:            1,
		Ready:             2,
		Reserve:           3,
		Runs:              1,
		RunsCompleted:     9,
		BundlesDispatched: 40,
		ItemsProcessed:    1000,
		IdleQueues:        2,
	}, "parfor")

	expected := `
# HELP parfor_workers Workers by pool membership.
# TYPE parfor_workers gauge
parfor_workers{state="active"} 1
parfor_workers{state="ready"} 2
parfor_workers{state="reserve"} 3
# HELP parfor_runs_completed_total Runs completed.
# TYPE parfor_runs_completed_total counter
parfor_runs_completed_total 9
# HELP parfor_items_processed_total Items whose bundle finished.
# TYPE parfor_items_processed_total counter
parfor_items_processed_total 1000
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"parfor_workers", "parfor_runs_completed_total", "parfor_items_processed_total")
	require.NoError(t, err)

	assert.Equal(t, 10, testutil.CollectAndCount(c))
}

func TestCollector_Register(t *testing.T) {
	s := parfor.New(2)
	defer s.Close()

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(s, "parfor")))

	require.NoError(t, parfor.ForRange(s, 0, 100, func(int) error { return nil }))

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				byName[mf.GetName()] = m.GetCounter().GetValue()
			case m.GetGauge() != nil && len(m.GetLabel()) == 0:
				byName[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, float64(100), byName["parfor_items_processed_total"])
	assert.Equal(t, float64(1), byName["parfor_runs_completed_total"])
	assert.Equal(t, float64(2), byName["parfor_workers_target"])
	assert.Equal(t, float64(0), byName["parfor_runs_active"])
}

func TestObserver_RecordsRuns(t *testing.T) {
	obs := NewObserver("parfor")
	s := parfor.New(3, parfor.WithOnEvent(obs.Observe))
	defer s.Close()

	err := parfor.ForRange(s, 0, 50, func(i int) error {
		if i%10 == 0 {
			return errors.New("boom")
		}
		return nil
	})
	require.Error(t, err)

	err = parfor.ForEach(s, []string{"a", "b"}, func(string) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, 2, testutil.CollectAndCount(obs, "parfor_bundle_items"),
		"one series per collection kind")
	assert.Equal(t, 2, testutil.CollectAndCount(obs, "parfor_run_work_seconds"))
	assert.Equal(t, float64(5), testutil.ToFloat64(obs.itemErrors.WithLabelValues("range")))
	assert.Equal(t, float64(0), testutil.ToFloat64(obs.corrections))

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(obs), "observer must be registrable")
}
