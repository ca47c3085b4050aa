package metrics

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsolatedRegistries(t *testing.T) {
	a := New()
	b := New()

	a.ObserveRound("gather", 128)
	a.ObserveRound("gather", 64)

	assert.Equal(t, 2.0, testutil.ToFloat64(a.CollectiveRounds.WithLabelValues("gather")))
	assert.Equal(t, 192.0, testutil.ToFloat64(a.CollectiveBytes.WithLabelValues("gather")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CollectiveRounds.WithLabelValues("gather")))
}

func TestObserveRoundNil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveRound("broadcast", 10) })
}

func TestPush(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Contains(t, r.URL.Path, "/metrics/job/termmatrix")
		assert.Contains(t, r.URL.Path, "/rank/1")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.TokensTotal.Add(3)
	require.NoError(t, m.Push(srv.URL, "termmatrix", 1))
	assert.Equal(t, int32(1), hits.Load())
}

func TestPushDisabled(t *testing.T) {
	require.NoError(t, New().Push("", "termmatrix", 0))
}
