// Package events carries domain events between components in-process. The
// bus is not durable; events exist to decouple audit/notification concerns
// from the write path, not to guarantee delivery.
package events

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sproutworks/nursery/internal/domain/event"
	"github.com/sproutworks/nursery/internal/observability"
	"github.com/sproutworks/nursery/internal/observability/logctx"
)

const (
	componentBus   = "event_bus"
	handlerTimeout = 30 * time.Second
)

// Publisher is the port the application services depend on.
type Publisher interface {
	Publish(ctx context.Context, e event.Event) error
}

// Subscriber registers handlers by event name.
type Subscriber interface {
	Subscribe(eventName string, h event.Handler)
}

type Bus struct {
	mu        sync.RWMutex
	subs      map[string][]event.Handler
	queue     chan event.Event
	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc

	log       observability.Logger
	published observability.Counter // events_published_total{event}
}

func NewBus(tel observability.Observability) *Bus {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Bus{
		subs:      make(map[string][]event.Handler),
		queue:     make(chan event.Event, 1024),
		log:       tel.Logger().With(observability.F("component", componentBus)),
		published: tel.Metrics().Counter(observability.MEventsPublished),
	}
}

func (b *Bus) Subscribe(eventName string, h event.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		bg, cancel := context.WithCancel(ctx)
		b.cancel = cancel
		go b.dispatchLoop(bg)
		b.log.Info("event_bus_started")
	})
}

func (b *Bus) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		close(b.queue)
		logctx.FromOr(ctx, b.log).Info("event_bus_stopped")
	})
}

func (b *Bus) Publish(ctx context.Context, e event.Event) error {
	if e == nil {
		return nil
	}
	select {
	case b.queue <- e:
		if b.published != nil {
			b.published.Add(1, observability.L("event", e.EventName()))
		}
		return nil
	case <-ctx.Done():
		logctx.FromOr(ctx, b.log).Warn("event_enqueue_aborted",
			observability.F("event", e.EventName()),
			observability.F("error", ctx.Err()),
		)
		return ctx.Err()
	}
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-b.queue:
			if !ok {
				return
			}
			b.fanout(ctx, e)
		}
	}
}

func (b *Bus) fanout(ctx context.Context, e event.Event) {
	name := e.EventName()

	b.mu.RLock()
	handlers := append([]event.Handler(nil), b.subs[name]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug("event_dropped_no_subscriber", observability.F("event", name))
		return
	}

	ctx = context.WithoutCancel(ctx)
	ctx = logctx.With(ctx, b.log.With(observability.F("event", name)))

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("event_handler_panic",
						observability.F("event", name),
						observability.F("panic", r),
						observability.F("stack", string(debug.Stack())),
					)
				}
			}()

			hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
			defer cancel()
			if err := h(hctx, e); err != nil {
				b.log.Warn("event_handler_error",
					observability.F("event", name),
					observability.F("error", err),
				)
			}
		}()
	}
}
