package channel

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xinyang-go/tos/internal/metrics"
)

func TestSingleConsumerRoundTrip(t *testing.T) {
	ch := New[int](1, Fifo, SingleConsumer)
	pub := ch.NewPublisher()
	sub := ch.NewSubscriber()

	require.NoError(t, pub.Push(42))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, status, err := sub.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, 42, v)
}

func TestPopTimeoutOnEmpty(t *testing.T) {
	ch := New[int](1, Fifo, SingleConsumer)
	ch.NewPublisher() // keep a publisher attached so NoProducers doesn't fire
	sub := ch.NewSubscriber()

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	_, status, err := sub.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, status)
}

func TestNoProducersAfterLastDetach(t *testing.T) {
	ch := New[int](1, Fifo, SingleConsumer)
	pub := ch.NewPublisher()
	sub := ch.NewSubscriber()

	done := make(chan Status, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, status, _ := sub.Pop(ctx)
		done <- status
	}()

	time.Sleep(20 * time.Millisecond)
	pub.Detach()

	select {
	case status := <-done:
		assert.Equal(t, StatusNoProducers, status)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not wake within bound after last publisher detached")
	}
}

func TestFifoOverwriteOnFullKeepsNewest(t *testing.T) {
	ch := New[int](1, Fifo, MultiConsumer)
	pub := ch.NewPublisher()
	sub := ch.NewSubscriber()
	for i := 0; i < 10; i++ {
		require.NoError(t, pub.Push(i))
	}

	pub.Push(99) // capacity 1: evicts 9

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, status, err := sub.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, 99, v)
}

func TestMultiConsumerEachSeesOwnStream(t *testing.T) {
	ch := New[int](4, Fifo, MultiConsumer)
	pub := ch.NewPublisher()
	subA := ch.NewSubscriber()
	require.NoError(t, pub.Push(1))
	subB := ch.NewSubscriber() // attaches after the first push

	require.NoError(t, pub.Push(2))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	va, _, _ := subA.Pop(ctx)
	vb, _, _ := subB.Pop(ctx)
	assert.Equal(t, 1, va) // subA attached before push(1), sees it
	assert.Equal(t, 2, vb) // subB attached after push(1), only sees push(2)
}

func TestBufferNeverExceedsCapacity(t *testing.T) {
	ch := New[int](3, Fifo, SingleConsumer)
	pub := ch.NewPublisher()
	for i := 0; i < 50; i++ {
		require.NoError(t, pub.Push(i))
		assert.LessOrEqual(t, ch.single.Size(), 3)
	}
}

func TestBlockPolicyPushReturnsWouldBlockOnFull(t *testing.T) {
	ch := New[int](1, Fifo, SingleConsumer, Block)
	pub := ch.NewPublisher()
	require.NoError(t, pub.Push(1))
	assert.ErrorIs(t, pub.Push(2), ErrWouldBlock)
}

func TestBlockPolicyPushCtxWaitsForRoom(t *testing.T) {
	ch := New[int](1, Fifo, SingleConsumer, Block)
	pub := ch.NewPublisher()
	sub := ch.NewSubscriber()
	require.NoError(t, pub.Push(1))

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- pub.PushCtx(ctx, 2)
	}()

	time.Sleep(20 * time.Millisecond)
	popCtx, popCancel := context.WithTimeout(context.Background(), time.Second)
	defer popCancel()
	v, status, err := sub.Pop(popCtx)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, 1, v)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("PushCtx did not unblock after room opened up")
	}
}

func TestBlockPolicyPushCtxRespectsCtxCancellation(t *testing.T) {
	ch := New[int](1, Fifo, SingleConsumer, Block)
	pub := ch.NewPublisher()
	require.NoError(t, pub.Push(1))

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	err := pub.PushCtx(ctx, 2)
	assert.Error(t, err)
}

func TestOverwriteIncrementsDropsMetric(t *testing.T) {
	ch := New[int](1, Fifo, MultiConsumer)
	ch.SetName("metric-test-topic")
	pub := ch.NewPublisher()
	ch.NewSubscriber()

	before := testutil.ToFloat64(metrics.ChannelDropsTotal.WithLabelValues("metric-test-topic"))
	require.NoError(t, pub.Push(1))
	require.NoError(t, pub.Push(2)) // second push overwrites the first
	after := testutil.ToFloat64(metrics.ChannelDropsTotal.WithLabelValues("metric-test-topic"))
	assert.Equal(t, before+1, after)
}

func TestDetachReattachCounters(t *testing.T) {
	ch := New[int](1, Fifo, SingleConsumer)
	assert.Equal(t, 0, ch.PublisherCount())
	p1 := ch.NewPublisher()
	p2 := ch.NewPublisher()
	assert.Equal(t, 2, ch.PublisherCount())
	p1.Detach()
	assert.Equal(t, 1, ch.PublisherCount())
	p2.Detach()
	assert.Equal(t, 0, ch.PublisherCount())
}
