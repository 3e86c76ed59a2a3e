package metrics_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arnavsurve/crawlstep/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := metrics.New()
	m.ObserveAction("Wait", "continue", time.Second)
	m.ObserveAction("Wait", "continue", time.Second)
	m.ObserveAction("ExitAction", "exit", time.Millisecond)
	m.IncStep()
	m.ObserveRun("exit")

	count, err := testutil.GatherAndCount(m.Registry(), "crawlstep_actions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := metrics.New()
	m.ObserveAction("GenericElementAction", "error", 0)
	path := filepath.Join(t.TempDir(), "crawlstep.prom")

	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `crawlstep_actions_total{action="GenericElementAction",outcome="error"} 1`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.ObserveAction("Wait", "continue", time.Second)
	m.IncStep()
	m.ObserveRun("finished")
	assert.NoError(t, m.WriteTextfile("/nonexistent/dir/file.prom"))
}
