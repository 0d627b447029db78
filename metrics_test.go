package capturex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveJob(StatusSucceeded, time.Second)
	m.ObserveStage("plan", time.Second, nil)
	m.IncRetry("plan")
	m.incMalformed()
}

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveJob(StatusSucceeded, 2*time.Second)
	m.ObserveJob(StatusFailed, time.Second)
	m.ObserveJob(StatusFailed, time.Second)
	m.ObserveStage("plan", time.Second, nil)
	m.ObserveStage("commit", time.Second, errors.New("x"))
	m.IncRetry("research")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobs.WithLabelValues("succeeded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.jobs.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues("research")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.stageDuration))

	n, err := testutil.GatherAndCount(reg, "capturex_jobs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestWorker_RecordsMetrics(t *testing.T) {
	s, rdb := startMiniRedis(t)
	queue := NewRedisQueue(rdb, "")
	store := NewRedisStore(rdb, RedisStoreOptions{})
	m := NewMetrics(prometheus.NewRegistry())

	pipeline := PipelineFunc(func(ctx context.Context, p Payload) (*Outcome, error) {
		return &Outcome{Artifact: ArtifactRef{PageID: "p"}}, nil
	})
	w := NewWorker(queue, store, pipeline, WorkerConfig{PopTimeout: time.Second, Metrics: m})
	startWorker(t, w)

	s.Push(DefaultQueueKey, "not json")
	require.NoError(t, queue.Push(context.Background(), Message{JobID: "ok", Payload: Payload{TaskName: "t"}}))

	waitTerminal(t, store, "ok")
	require.NoError(t, pollUntil(t, 2*time.Second, func() (bool, error) {
		return testutil.ToFloat64(m.jobs.WithLabelValues("succeeded")) == 1, nil
	}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.malformed))
}
