package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civicdesk/triage-service/internal/realtime"
)

type countingReconciler struct {
	calls atomic.Int32
	err   error
}

func (c *countingReconciler) Reconcile(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestStartReconcileWorker(t *testing.T) {
	notifier := realtime.NewNotifier(realtime.Options{}, nil, nil)
	defer notifier.Close()

	rec := &countingReconciler{err: errors.New("store down")}
	stop := StartReconcileWorker(context.Background(), notifier, rec, zap.NewNop())

	notifier.Notify(realtime.ChangeEvent{Source: "test"})
	require.Eventually(t, func() bool { return rec.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	stop()
	stop()
	assert.Zero(t, notifier.Subscribers())
}
