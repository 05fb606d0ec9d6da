package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refundly/webhooks/pkg/logger"
)

type fakeEnqueuer struct {
	mu     sync.Mutex
	tasks  []*asynq.Task
	opts   [][]asynq.Option
	failOn string
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && string(task.Payload()) == f.failOn {
		return nil, errors.New("redis down")
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type fakeRecorder struct {
	names map[string]bool
}

func (f *fakeRecorder) Add(_ context.Context, queue string) (bool, error) {
	if f.names == nil {
		f.names = make(map[string]bool)
	}
	if f.names[queue] {
		return false, nil
	}
	f.names[queue] = true
	return true, nil
}

func optionValue(opts []asynq.Option, typ asynq.OptionType) any {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value()
		}
	}
	return nil
}

func TestBroker_Publish(t *testing.T) {
	enq := &fakeEnqueuer{}
	b := newBroker(enq, &fakeRecorder{}, time.Minute, logger.NewNop())

	err := b.Publish(context.Background(), "webhook-vendor-3",
		[]byte(`{"webhookEventId":1}`),
		[]byte(`{"webhookEventId":2}`),
	)
	require.NoError(t, err)
	require.Len(t, enq.tasks, 2)

	for i, task := range enq.tasks {
		assert.Equal(t, TypeWebhookDeliver, task.Type())
		assert.Equal(t, "webhook-vendor-3", optionValue(enq.opts[i], asynq.QueueOpt))
		assert.Equal(t, 0, optionValue(enq.opts[i], asynq.MaxRetryOpt))
		assert.Equal(t, time.Minute, optionValue(enq.opts[i], asynq.TimeoutOpt))
	}
	assert.JSONEq(t, `{"webhookEventId":2}`, string(enq.tasks[1].Payload()))
}

func TestBroker_PublishContinuesPastFailures(t *testing.T) {
	enq := &fakeEnqueuer{failOn: `{"webhookEventId":1}`}
	b := newBroker(enq, &fakeRecorder{}, 0, logger.NewNop())

	err := b.Publish(context.Background(), "q",
		[]byte(`{"webhookEventId":1}`),
		[]byte(`{"webhookEventId":2}`),
	)
	assert.ErrorContains(t, err, "redis down")
	require.Len(t, enq.tasks, 1, "second message still published")
	assert.Equal(t, DefaultTaskTimeout, optionValue(enq.opts[0], asynq.TimeoutOpt))
}

func TestBroker_DeclareQueue(t *testing.T) {
	rec := &fakeRecorder{}
	b := newBroker(&fakeEnqueuer{}, rec, 0, logger.NewNop())

	require.NoError(t, b.DeclareQueue(context.Background(), "refund-webhook-vendor"))
	require.NoError(t, b.DeclareQueue(context.Background(), "refund-webhook-vendor"))
	assert.True(t, rec.names["refund-webhook-vendor"])
}

type fakeServer struct {
	handler  asynq.Handler
	started  int
	shutdown int
	startErr error
}

func (s *fakeServer) Start(h asynq.Handler) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.handler = h
	s.started++
	return nil
}

func (s *fakeServer) Shutdown() { s.shutdown++ }

func TestConsumerPool_RegisterIsIdempotent(t *testing.T) {
	servers := map[string]*fakeServer{}
	pool := newConsumerPool(func(queue string) server {
		s := &fakeServer{}
		servers[queue] = s
		return s
	}, logger.NewNop())

	handle := func(context.Context, []byte) {}
	require.NoError(t, pool.Register("webhook-vendor-1", handle))
	require.NoError(t, pool.Register("webhook-vendor-1", handle))
	require.NoError(t, pool.Register("refund-webhook-vendor", handle))

	assert.Len(t, servers, 2)
	assert.Equal(t, 1, servers["webhook-vendor-1"].started)
	assert.Equal(t, []string{"refund-webhook-vendor", "webhook-vendor-1"}, pool.Queues())

	pool.Stop()
	assert.Equal(t, 1, servers["webhook-vendor-1"].shutdown)
	assert.Equal(t, 1, servers["refund-webhook-vendor"].shutdown)
	assert.ErrorIs(t, pool.Register("webhook-vendor-9", handle), ErrPoolStopped)
}

func TestConsumerPool_StartFailureIsNotRecorded(t *testing.T) {
	pool := newConsumerPool(func(string) server {
		return &fakeServer{startErr: errors.New("no redis")}
	}, logger.NewNop())

	err := pool.Register("q", func(context.Context, []byte) {})
	assert.ErrorContains(t, err, "no redis")
	assert.Empty(t, pool.Queues())
}

func TestConsumerPool_HandlerAlwaysAcks(t *testing.T) {
	pool := newConsumerPool(nil, logger.NewNop())

	var got []byte
	h := pool.wrap("q", func(_ context.Context, body []byte) { got = body })
	err := h.ProcessTask(context.Background(), asynq.NewTask(TypeWebhookDeliver, []byte(`{"webhookEventId":7}`)))
	assert.NoError(t, err)
	assert.Equal(t, `{"webhookEventId":7}`, string(got))

	panicky := pool.wrap("q", func(context.Context, []byte) { panic("boom") })
	assert.NoError(t, panicky.ProcessTask(context.Background(), asynq.NewTask(TypeWebhookDeliver, nil)))

	called := false
	other := pool.wrap("q", func(context.Context, []byte) { called = true })
	assert.NoError(t, other.ProcessTask(context.Background(), asynq.NewTask("email:welcome", nil)))
	assert.False(t, called)
}
