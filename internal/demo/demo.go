// Package demo registers a set of ready-made entries for exercising the
// broker from the shell: a publisher/subscriber pair and a client/server
// pair on "timeval", and a setter/waiter rendezvous pair on "sync".
package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/xinyang-go/tos/internal/channel"
	"github.com/xinyang-go/tos/internal/logger"
	"github.com/xinyang-go/tos/internal/node"
	"github.com/xinyang-go/tos/internal/registry"
	"github.com/xinyang-go/tos/internal/shell"
)

func init() {
	shell.RegisterEntry("publisher", publisherEntry)
	shell.RegisterEntry("subscriber", subscriberEntry)
	shell.RegisterEntry("server", serverEntry)
	shell.RegisterEntry("client", clientEntry)
	shell.RegisterEntry("sync_setter", syncSetterEntry)
	shell.RegisterEntry("sync_waiter", syncWaiterEntry)
}

// currentLogger returns the node's shared logger handle. Callers release
// the handle when the entry exits; the logger object itself lives until
// the last handle drops.
func currentLogger(n *node.Node) (registry.Handle[*logger.Logger], *logger.Logger) {
	h, err := node.MakeLogger(n, logger.FormatJSON)
	if err != nil {
		return registry.Handle[*logger.Logger]{}, logger.New(n.Name(), logger.FormatJSON)
	}
	l, _ := h.Get()
	return h, l
}

// logAllLevels emits tag once at each level on entry startup, so a
// `logger <glob> -l ...` call in a running shell has output to filter.
func logAllLevels(log *logger.Logger, tag string) {
	log.Info(tag)
	log.Warning(tag)
	log.Error(tag)
}

// publisherEntry pushes a timestamp on topic "timeval" once a second
// (capacity 1, FIFO, multi-consumer).
func publisherEntry(ctx context.Context, args []string) int {
	n, ok := node.FromContext(ctx)
	if !ok {
		return -1
	}
	logH, log := currentLogger(n)
	defer logH.Release()
	logAllLevels(log, "publisher")

	chH, pub, err := node.MakePublisher[time.Time](n, registry.FindOrCreate, "timeval", 1, channel.Fifo, channel.MultiConsumer)
	if err != nil {
		log.Error("publisher: " + err.Error())
		return -1
	}
	defer chH.Release()
	defer pub.Detach()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for n.Running() {
		select {
		case now := <-ticker.C:
			if err := pub.Push(now); err != nil {
				log.Error("publisher: push: " + err.Error())
			}
		case <-time.After(100 * time.Millisecond):
		}
	}
	return 0
}

// subscriberEntry pops "timeval" with a 2s timeout and logs how old each
// received timestamp is.
func subscriberEntry(ctx context.Context, args []string) int {
	n, ok := node.FromContext(ctx)
	if !ok {
		return -1
	}
	logH, log := currentLogger(n)
	defer logH.Release()
	logAllLevels(log, "subscriber")

	chH, sub, err := node.MakeSubscriber[time.Time](n, registry.FindOrCreate, "timeval", 1, channel.Fifo, channel.MultiConsumer)
	if err != nil {
		log.Error("subscriber: " + err.Error())
		return -1
	}
	defer chH.Release()
	defer sub.Detach()

	for n.Running() {
		popCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		ts, status, err := sub.Pop(popCtx)
		cancel()
		if err != nil {
			log.Error("subscriber: pop: " + err.Error())
			continue
		}
		switch status {
		case channel.StatusOK:
			dt := time.Since(ts)
			log.Info(fmt.Sprintf("subscriber: dt=%s", dt))
		case channel.StatusTimeout:
			log.Warning("subscriber: timeout waiting for publisher")
		case channel.StatusNoProducers:
			log.Info("subscriber: no producers left, exiting")
			return 0
		}
	}
	return 0
}

type request struct {
	ts time.Time
}

// serverEntry pops requests on "timeval", stamps its own time, and
// completes the future.
func serverEntry(ctx context.Context, args []string) int {
	n, ok := node.FromContext(ctx)
	if !ok {
		return -1
	}
	logH, log := currentLogger(n)
	defer logH.Release()
	logAllLevels(log, "server")

	epH, srv, err := node.MakeServer[request, time.Time](n, registry.FindOrCreate, "timeval", 4)
	if err != nil {
		log.Error("server: " + err.Error())
		return -1
	}
	defer epH.Release()
	defer srv.Detach()

	for n.Running() {
		popCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, responder, ok, err := srv.Pop(popCtx)
		cancel()
		if err != nil {
			log.Error("server: pop: " + err.Error())
			continue
		}
		if !ok {
			continue // timed out; loop to re-check Running
		}
		responder.Set(time.Now())
	}
	return 0
}

// clientEntry pushes a request every 800ms and logs the round-trip
// latency.
func clientEntry(ctx context.Context, args []string) int {
	n, ok := node.FromContext(ctx)
	if !ok {
		return -1
	}
	logH, log := currentLogger(n)
	defer logH.Release()
	logAllLevels(log, "client")

	epH, cl, err := node.MakeClient[request, time.Time](n, registry.FindOrCreate, "timeval", 4)
	if err != nil {
		log.Error("client: " + err.Error())
		return -1
	}
	defer epH.Release()
	defer cl.Detach()

	ticker := time.NewTicker(800 * time.Millisecond)
	defer ticker.Stop()
	for n.Running() {
		select {
		case <-ticker.C:
			ts := time.Now()
			future, err := cl.Push(request{ts: ts})
			if err != nil {
				log.Error("client: push: " + err.Error())
				continue
			}
			getCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			tm, err := future.Get(getCtx)
			cancel()
			if err != nil {
				log.Warning("client: request lost or timed out: " + err.Error())
				continue
			}
			log.Info(fmt.Sprintf("client: round-trip=%s", tm.Sub(ts)))
		case <-time.After(100 * time.Millisecond):
		}
	}
	return 0
}

// syncSetterEntry writes 'a','a','e' in rotation at 1Hz on key "sync".
func syncSetterEntry(ctx context.Context, args []string) int {
	n, ok := node.FromContext(ctx)
	if !ok {
		return -1
	}

	h, err := node.MakeSync[byte](n, registry.FindOrCreate, "sync", 'a')
	if err != nil {
		logH, log := currentLogger(n)
		log.Error("sync_setter: " + err.Error())
		logH.Release()
		return -1
	}
	defer h.Release()
	s, _ := h.Get()

	i := 0
	for n.Running() {
		v := byte('a')
		if (i+1)%3 == 0 {
			v = 'e'
		}
		s.Update(v)
		i++
		time.Sleep(time.Second)
	}
	return 0
}

// syncWaiterEntry blocks on wait('e') and logs each time it fires.
func syncWaiterEntry(ctx context.Context, args []string) int {
	n, ok := node.FromContext(ctx)
	if !ok {
		return -1
	}
	logH, log := currentLogger(n)
	defer logH.Release()

	h, err := node.MakeSync[byte](n, registry.FindOrCreate, "sync", 'a')
	if err != nil {
		log.Error("sync_waiter: " + err.Error())
		return -1
	}
	defer h.Release()
	s, _ := h.Get()

	for n.Running() {
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := s.Wait(waitCtx, 'e')
		cancel()
		if err != nil {
			continue
		}
		log.Info("sync_waiter: rendezvous on 'e'")
		// wait for the setter to move off 'e' before re-arming, so this logs
		// once per setter cycle rather than spinning while 'e' holds.
		waitCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		_ = s.Wait(waitCtx, 'a')
		cancel()
	}
	return 0
}
