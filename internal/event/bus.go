package event

import (
	"context"
	"log"
	"sync"
	"time"

	"gestionlearn.com/internal/model"
)

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// Event 表示系统中的一个事件
type Event struct {
	Type      string      // 事件类型
	Source    string      // 事件来源
	ActorID   uint        // 触发事件的用户
	Data      interface{} // 事件数据
	Timestamp time.Time

	// Audience of the websocket push: these users plus everyone holding one of Roles.
	UserIDs []uint
	Roles   []model.Role
}

// Handler 事件处理函数
type Handler func(ctx context.Context, event Event) error

// Publisher is the publishing side of the bus, as seen by services.
type Publisher interface {
	Publish(event Event)
}

// Bus 事件总线，用于解耦业务服务与通知、审计
type Bus struct {
	handlers map[string][]Handler
	mu       sync.RWMutex

	// 异步处理的缓冲通道
	eventChan chan Event
	closed    bool
	closeMu   sync.RWMutex
	wg        sync.WaitGroup
}

var _ Publisher = (*Bus)(nil)

// NewBus 创建新的事件总线
func NewBus(bufferSize int) *Bus {
	bus := &Bus{
		handlers:  make(map[string][]Handler),
		eventChan: make(chan Event, bufferSize),
	}

	bus.wg.Add(1)
	go bus.processEvents()

	return bus
}

// Subscribe registers handler for eventType, or for every type with Wildcard.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	log.Printf("EventBus: Subscribed to event type: %s", eventType)
}

// Publish 异步发布事件，Shutdown 之后发布的事件会被丢弃
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed {
		log.Printf("EventBus: closed, dropping event: %s", event.Type)
		return
	}

	select {
	case b.eventChan <- event:
	default:
		log.Printf("EventBus: Warning - event channel full, dropping event: %s", event.Type)
	}
}

// processEvents 处理事件的后台协程，直到 Shutdown 关闭通道
func (b *Bus) processEvents() {
	defer b.wg.Done()
	for event := range b.eventChan {
		b.dispatch(context.Background(), event)
	}
}

// dispatch 分发事件给所有订阅者
func (b *Bus) dispatch(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type])+len(b.handlers[Wildcard]))
	handlers = append(handlers, b.handlers[event.Type]...)
	handlers = append(handlers, b.handlers[Wildcard]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			if err := h(ctx, event); err != nil {
				log.Printf("EventBus: Handler error for event %s: %v", event.Type, err)
			}
		}(handler)
	}
	wg.Wait()
}

// Shutdown stops accepting events and waits for queued ones to be handled.
func (b *Bus) Shutdown() {
	b.closeMu.Lock()
	if b.closed {
		b.closeMu.Unlock()
		return
	}
	b.closed = true
	close(b.eventChan)
	b.closeMu.Unlock()

	b.wg.Wait()
	log.Println("EventBus: Shutdown complete")
}
