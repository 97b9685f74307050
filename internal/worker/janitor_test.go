package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/asistlabs/asist-service/internal/events"
	"github.com/asistlabs/asist-service/internal/service"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingPruner struct {
	calls atomic.Int32
	err   error
}

func (p *countingPruner) PruneExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return 2, p.err
}

func TestRevocationJanitor_PrunesUntilCancelled(t *testing.T) {
	pruner := &countingPruner{}
	ctx, cancel := context.WithCancel(context.Background())

	done := NewRevocationJanitor(pruner, 5*time.Millisecond, nil).Start(ctx)
	require.Eventually(t, func() bool { return pruner.calls.Load() >= 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestRevocationJanitor_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	pruner := &countingPruner{err: errors.New("db down")}

	j := NewRevocationJanitor(pruner, time.Minute, zap.New(core))
	j.pruneOnce(context.Background())

	assert.Equal(t, 1, logs.FilterMessage("prune revoked tokens").Len())
}

func TestNewRevocationJanitor_DefaultInterval(t *testing.T) {
	assert.Equal(t, time.Hour, NewRevocationJanitor(&countingPruner{}, 0, nil).interval)
}

func TestStartAuditWorker(t *testing.T) {
	StartAuditWorker(nil)

	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	StartAuditWorker(service.NewAuditService(dispatcher, zap.New(core)))

	err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventUserRegistered, "a@x.com", time.Now(), nil))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("auth event").Len())
}
