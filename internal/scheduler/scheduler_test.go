package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/vindesk/internal/clock"
	obsmetrics "github.com/smallbiznis/vindesk/internal/observability/metrics"
	ticketdomain "github.com/smallbiznis/vindesk/internal/ticket/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeExpirer struct {
	mu      sync.Mutex
	pending int
	calls   int
	ttls    []time.Duration
	err     error
}

func (f *fakeExpirer) ExpirePending(ctx context.Context, ttl time.Duration, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ttls = append(f.ttls, ttl)
	if f.err != nil {
		return 0, f.err
	}
	n := limit
	if f.pending < n {
		n = f.pending
	}
	f.pending -= n
	return n, nil
}

type pingStore struct {
	ticketdomain.Store
	err error
}

func (s pingStore) Ping(context.Context) error { return s.err }
func (s pingStore) Backend() string            { return "remote" }

func newTestScheduler(t *testing.T, cfg Config, payments PaymentExpirer, store ticketdomain.Store) (*Scheduler, *obsmetrics.Metrics) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	m := obsmetrics.New()
	s, err := New(Params{
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		Payments:   payments,
		Store:      store,
		ObsMetrics: m,
		Config:     cfg,
	})
	require.NoError(t, err)
	return s, m
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestExpirePaymentsDrainsInBatches(t *testing.T) {
	payments := &fakeExpirer{pending: 7}
	s, m := newTestScheduler(t, Config{BatchSize: 3, PaymentTTL: time.Hour}, payments, pingStore{})

	require.NoError(t, s.RunOnce(context.Background()))

	assert.Equal(t, 0, payments.pending)
	assert.Equal(t, 3, payments.calls)
	assert.Equal(t, []time.Duration{time.Hour, time.Hour, time.Hour}, payments.ttls)
	assert.Equal(t, float64(1), counterValue(t, m.Registry(), "vindesk_scheduler_job_runs_total", map[string]string{"job": JobExpirePayments}))
}

func TestExpirePaymentsDisabledByZeroTTL(t *testing.T) {
	payments := &fakeExpirer{pending: 2}
	s, _ := newTestScheduler(t, Config{PaymentTTL: 0}, payments, pingStore{})

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Zero(t, payments.calls)
}

func TestRunOnceJoinsJobErrors(t *testing.T) {
	payments := &fakeExpirer{err: errors.New("db down")}
	store := pingStore{err: ticketdomain.ErrBackendUnavailable}
	s, m := newTestScheduler(t, Config{PaymentTTL: time.Hour}, payments, store)

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ticketdomain.ErrBackendUnavailable)
	assert.Contains(t, err.Error(), JobExpirePayments)
	assert.Contains(t, err.Error(), JobTicketBackendPing)

	labels := map[string]string{"job": JobTicketBackendPing, "reason": obsmetrics.JobReasonError}
	assert.Equal(t, float64(1), counterValue(t, m.Registry(), "vindesk_scheduler_job_errors_total", labels))
}

func TestEnabledJobsFilter(t *testing.T) {
	payments := &fakeExpirer{pending: 1}
	store := pingStore{err: errors.New("unreachable")}
	s, _ := newTestScheduler(t, Config{PaymentTTL: time.Hour, EnabledJobs: []string{" EXPIRE_PAYMENTS "}}, payments, store)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, payments.calls)
}

func TestRunJobTimeoutDoesNotReturnError(t *testing.T) {
	s, m := newTestScheduler(t, Config{}, &fakeExpirer{}, pingStore{})

	err := s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context, _ *jobRun) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	labels := map[string]string{"job": "timeout_job", "reason": obsmetrics.JobReasonTimeout}
	assert.Equal(t, float64(1), counterValue(t, m.Registry(), "vindesk_scheduler_job_errors_total", labels))
}

func TestRunForeverStopsOnCancel(t *testing.T) {
	payments := &fakeExpirer{}
	s, _ := newTestScheduler(t, Config{RunInterval: time.Millisecond, PaymentTTL: time.Hour}, payments, pingStore{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RunForever(ctx)
	}()

	require.Eventually(t, func() bool {
		payments.mu.Lock()
		defer payments.mu.Unlock()
		return payments.calls >= 2
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			require.NotNil(t, metric.Counter, "metric %s is not a counter", name)
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
