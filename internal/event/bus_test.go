package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_DeliversToTypeAndWildcard(t *testing.T) {
	bus := NewBus(10)

	var mu sync.Mutex
	var got []string
	record := func(tag string) Handler {
		return func(_ context.Context, e Event) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, tag+":"+e.Type)
			return nil
		}
	}
	bus.Subscribe("hour.created", record("typed"))
	bus.Subscribe(Wildcard, record("all"))

	bus.Publish(Event{Type: "hour.created"})
	bus.Publish(Event{Type: "course.deleted"})
	bus.Shutdown()

	assert.ElementsMatch(t, []string{"typed:hour.created", "all:hour.created", "all:course.deleted"}, got)
}

func TestBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewBus(1)
	var calls int32
	bus.Subscribe("x", func(context.Context, Event) error { return errors.New("boom") })
	bus.Subscribe("x", func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	bus.Publish(Event{Type: "x"})
	bus.Shutdown()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestBus_PublishAfterShutdown(t *testing.T) {
	bus := NewBus(1)
	var calls int32
	bus.Subscribe("x", func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	bus.Shutdown()
	bus.Shutdown()

	assert.NotPanics(t, func() { bus.Publish(Event{Type: "x"}) })
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestBus_SetsTimestamp(t *testing.T) {
	bus := NewBus(1)
	done := make(chan Event, 1)
	bus.Subscribe("x", func(_ context.Context, e Event) error {
		done <- e
		return nil
	})
	bus.Publish(Event{Type: "x"})
	bus.Shutdown()
	e := <-done
	assert.False(t, e.Timestamp.IsZero())
}
