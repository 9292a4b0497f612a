package endpoint

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xinyang-go/tos/internal/metrics"
)

func TestRequestResponseRoundTrip(t *testing.T) {
	ep := New[string, int](4)
	client := ep.NewClient()
	server := ep.NewServer()

	future, err := client.Push("ping")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	payload, responder, ok, err := server.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ping", payload)
	responder.Set(7)

	v, err := future.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestOverwriteResolvesRequestLostExactlyOnce(t *testing.T) {
	ep := New[string, int](1)
	client := ep.NewClient()

	f1, err := client.Push("first")
	require.NoError(t, err)
	_, err = client.Push("second") // evicts "first"'s pending entry
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = f1.Get(ctx)
	assert.ErrorIs(t, err, ErrRequestLost)
}

func TestOverwriteIncrementsDropsMetric(t *testing.T) {
	ep := New[string, int](1)
	ep.SetName("metric-test-endpoint")
	client := ep.NewClient()

	before := testutil.ToFloat64(metrics.EndpointDropsTotal.WithLabelValues("metric-test-endpoint"))
	_, err := client.Push("first")
	require.NoError(t, err)
	_, err = client.Push("second") // evicts "first"'s pending entry
	require.NoError(t, err)
	after := testutil.ToFloat64(metrics.EndpointDropsTotal.WithLabelValues("metric-test-endpoint"))
	assert.Equal(t, before+1, after)
}

func TestServerPopDoesNotExitEarlyWithoutClients(t *testing.T) {
	ep := New[string, int](1)
	server := ep.NewServer()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, ok, err := server.Pop(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "server should time out waiting, not return early for zero clients")
}

func TestBlockPolicyPushReturnsWouldBlockOnFull(t *testing.T) {
	ep := New[string, int](1, Block)
	client := ep.NewClient()

	_, err := client.Push("first")
	require.NoError(t, err)
	_, err = client.Push("second")
	assert.ErrorIs(t, err, ErrWouldBlock)
}

func TestBlockPolicyPushCtxWaitsForRoom(t *testing.T) {
	ep := New[string, int](1, Block)
	client := ep.NewClient()
	server := ep.NewServer()

	_, err := client.Push("first")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := client.PushCtx(ctx, "second")
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	popCtx, popCancel := context.WithTimeout(context.Background(), time.Second)
	defer popCancel()
	payload, responder, ok, err := server.Pop(popCtx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", payload)
	responder.Set(1)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("PushCtx did not unblock after room opened up")
	}
}

func TestCounters(t *testing.T) {
	ep := New[string, int](1)
	assert.Equal(t, 0, ep.ClientCount())
	assert.Equal(t, 0, ep.ServerCount())

	c := ep.NewClient()
	s := ep.NewServer()
	assert.Equal(t, 1, ep.ClientCount())
	assert.Equal(t, 1, ep.ServerCount())

	c.Detach()
	s.Detach()
	assert.Equal(t, 0, ep.ClientCount())
	assert.Equal(t, 0, ep.ServerCount())
}
