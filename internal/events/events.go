// Package events decouples library mutations from their listeners: search
// indexing, snapshot history and notifications.
package events

import (
	"sync"

	"go.uber.org/zap"
)

type Type string

const (
	TreeChanged        Type = "tree.changed"
	TreeImported       Type = "tree.imported"
	NodeDeleted        Type = "node.deleted"
	AttachmentAdded    Type = "attachment.added"
	AttachmentRemoved  Type = "attachment.removed"
	CredentialChanged  Type = "credential.changed"
	SubmissionReceived Type = "submission.received"
	SubmissionsCleared Type = "submissions.cleared"
)

type Event struct {
	Type   Type
	NodeID string
	Data   any
}

type Handler func(Event)

// Bus delivers each published event to its subscribers on their own
// goroutines. Publish never waits for handlers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]Handler
	all         []Handler
	wg          sync.WaitGroup
	logger      *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{subscribers: make(map[Type][]Handler), logger: logger}
}

func (b *Bus) Subscribe(eventType Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers[event.Type])+len(b.all))
	handlers = append(handlers, b.subscribers[event.Type]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("panic in event handler",
						zap.String("event", string(event.Type)),
						zap.Any("panic", r),
					)
				}
			}()
			h(event)
		}(handler)
	}
}

// Wait blocks until every handler started so far has returned.
func (b *Bus) Wait() {
	b.wg.Wait()
}
