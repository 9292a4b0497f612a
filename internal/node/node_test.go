package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xinyang-go/tos/internal/channel"
	"github.com/xinyang-go/tos/internal/logger"
	"github.com/xinyang-go/tos/internal/registry"
)

func TestCreateNodeUniqueNameAndRunningFlag(t *testing.T) {
	reg := registry.New()
	h1, err := CreateNode(reg, "worker")
	require.NoError(t, err)
	h2, err := CreateNode(reg, "worker")
	require.NoError(t, err)

	n1, _ := h1.Get()
	n2, _ := h2.Get()
	assert.NotEqual(t, n1.Name(), n2.Name())
	assert.True(t, n1.Running())
	n1.Stop()
	assert.False(t, n1.Running())
	assert.True(t, n2.Running())
}

func TestContextRoundTrip(t *testing.T) {
	reg := registry.New()
	h, err := CreateNode(reg, "ctx-node")
	require.NoError(t, err)
	n, _ := h.Get()

	ctx := NewContext(context.Background(), n)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, n, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestMakePublisherSubscriberRoundTrip(t *testing.T) {
	reg := registry.New()
	h, err := CreateNode(reg, "pubnode")
	require.NoError(t, err)
	n, _ := h.Get()

	_, pub, err := MakePublisher[int](n, registry.FindOrCreate, "timeval", 1, channel.Fifo, channel.MultiConsumer)
	require.NoError(t, err)
	_, sub, err := MakeSubscriber[int](n, registry.FindOrCreate, "timeval", 1, channel.Fifo, channel.MultiConsumer)
	require.NoError(t, err)

	require.NoError(t, pub.Push(7))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, status, err := sub.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, channel.StatusOK, status)
	assert.Equal(t, 7, v)
}

func TestMakeClientServerRoundTrip(t *testing.T) {
	reg := registry.New()
	h, err := CreateNode(reg, "epnode")
	require.NoError(t, err)
	n, _ := h.Get()

	_, client, err := MakeClient[string, int](n, registry.FindOrCreate, "req", 4)
	require.NoError(t, err)
	_, server, err := MakeServer[string, int](n, registry.FindOrCreate, "req", 4)
	require.NoError(t, err)

	future, err := client.Push("hi")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	payload, responder, ok, err := server.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hi", payload)
	responder.Set(42)

	v, err := future.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestMakeLoggerSharedPerNode(t *testing.T) {
	reg := registry.New()
	h, err := CreateNode(reg, "lognode")
	require.NoError(t, err)
	n, _ := h.Get()

	l1h, err := MakeLogger(n, logger.FormatJSON)
	require.NoError(t, err)
	l2h, err := MakeLogger(n, logger.FormatJSON)
	require.NoError(t, err)

	l1, _ := l1h.Get()
	l2, _ := l2h.Get()
	assert.Same(t, l1, l2)
}

func TestTypeMismatchOnReopen(t *testing.T) {
	reg := registry.New()
	h, err := CreateNode(reg, "typenode")
	require.NoError(t, err)
	n, _ := h.Get()

	_, _, err = MakePublisher[int](n, registry.Create, "mismatch", 1, channel.Fifo, channel.SingleConsumer)
	require.NoError(t, err)

	_, _, err = MakeSubscriber[string](n, registry.Find, "mismatch", 1, channel.Fifo, channel.SingleConsumer)
	assert.ErrorIs(t, err, registry.ErrTypeMismatch)
}
