package metrics_test

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenqi/lumen-core/pkg/evolution"
	"github.com/lumenqi/lumen-core/pkg/memory"
	"github.com/lumenqi/lumen-core/pkg/metrics"
)

func TestCollector_Sources(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector("test", reg, nil)

	c.ObserveAttempt(memory.SourceHostedModel, "error", time.Second)
	c.ObserveAttempt(memory.SourceLocalModel, "success", 200*time.Millisecond)
	c.ObserveResponse(memory.SourceLocalModel, 0.5)

	expected := `
# HELP test_responses_total Responses returned to the user by winning source
# TYPE test_responses_total counter
test_responses_total{source="local_model"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_responses_total"))

	count, err := testutil.GatherAndCount(reg, "test_source_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCollector_Cycles(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector("", reg, nil)

	report := evolution.CycleReport{Trigger: evolution.TriggerForced, LevelAfter: 42, Threshold: 43.2}
	report.Consolidation.Merged = 3
	c.ObserveCycle(report, nil)
	c.ObserveCycle(evolution.CycleReport{Trigger: evolution.TriggerScheduled}, errors.New("boom"))

	count, err := testutil.GatherAndCount(reg, "lumen_evolution_cycles_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	c.SetStoreSizes(10, 4)
	c.SetTraits(map[string]float64{"humor": 0.7})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, "lumen_autonomy_level 42")
	assert.Contains(t, body, "lumen_memories_merged_total 3")
	assert.Contains(t, body, `lumen_store_size{store="patterns"} 4`)
	assert.Contains(t, body, `lumen_trait_value{trait="humor"} 0.7`)
}

func TestNewCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		metrics.NewCollector("", nil, nil)
		metrics.NewCollector("", nil, nil)
	})
}
