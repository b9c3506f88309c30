package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/batch-weighing/internal/domain/process"
)

func TestCounters(t *testing.T) {
	m := New()
	m.OrphansPruned(3)
	m.WeighingRecorded("accepted")
	m.WeighingRecorded("accepted")
	m.WeighingRecorded("out_of_tolerance")
	m.ProcessClosed(process.OutcomeArchived)
	m.BackupFinished(true, 2)
	m.BackupFinished(false, 0)
	m.ObserveRequest("GET", "/api/products", 200, 15*time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.orphans))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.weighings.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.weighings.WithLabelValues("out_of_tolerance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.closed.WithLabelValues("archived")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backups.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pruned))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/products", "200")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.OrphansPruned(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "weighd_catalog_orphans_pruned_total 1"))
}
