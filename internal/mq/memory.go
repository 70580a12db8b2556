package mq

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrBrokerClosed is returned by a MemoryBroker after Close.
var ErrBrokerClosed = errors.New("broker closed")

// MemoryBroker delivers messages between goroutines of one process. Each
// channel is a single queue shared by its subscribers. A message whose
// handler fails is requeued at the back of the queue.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]chan Message
	closed chan struct{}
	once   sync.Once
	size   int
}

func NewMemoryBroker(size int) *MemoryBroker {
	if size <= 0 {
		size = 64
	}
	return &MemoryBroker{
		queues: make(map[string]chan Message),
		closed: make(chan struct{}),
		size:   size,
	}
}

func (b *MemoryBroker) queue(channel string) chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[channel]
	if !ok {
		q = make(chan Message, b.size)
		b.queues[channel] = q
	}
	return q
}

func (b *MemoryBroker) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	select {
	case <-b.closed:
		return "", ErrBrokerClosed
	default:
	}

	msg := Message{ID: uuid.NewString(), Data: data, Attributes: attrs}
	select {
	case <-b.closed:
		return "", ErrBrokerClosed
	case <-ctx.Done():
		return "", ctx.Err()
	case b.queue(channel) <- msg:
		return msg.ID, nil
	}
}

// Subscribe runs handler for each message until ctx is done or the broker
// is closed.
func (b *MemoryBroker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	q := b.queue(channel)
	for {
		select {
		case <-b.closed:
			return ErrBrokerClosed
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.closed:
			return ErrBrokerClosed
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				select {
				case q <- msg:
				default:
				}
			}
		}
	}
}

func (b *MemoryBroker) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}
