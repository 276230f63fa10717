package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pribylovaa/quotes-service/internal/pkg/log"
)

var (
	// ErrQueueFull — очередь публикации заполнена, событие отброшено.
	ErrQueueFull = errors.New("events: publish queue is full")
	// ErrClosed — публикатор уже закрыт.
	ErrClosed = errors.New("events: publisher is closed")
)

const (
	defaultQueueSize      = 256
	defaultPublishTimeout = 5 * time.Second
)

type job struct {
	ctx context.Context
	e   Event
}

// Async выносит публикацию из пути запроса: Publish кладёт событие в
// очередь и сразу возвращает управление, доставку выполняет фоновая
// горутина. Ошибки доставки пишутся в логгер из контекста вызова.
type Async struct {
	next    Publisher
	timeout time.Duration
	queue   chan job
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsync запускает фоновую доставку в next.
// size <= 0 и timeout <= 0 заменяются значениями по умолчанию.
func NewAsync(next Publisher, size int, timeout time.Duration) *Async {
	if size <= 0 {
		size = defaultQueueSize
	}
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}

	a := &Async{
		next:    next,
		timeout: timeout,
		queue:   make(chan job, size),
		done:    make(chan struct{}),
	}
	go a.run()

	return a
}

// Publish не блокируется: при заполненной очереди возвращает ErrQueueFull.
// Отмена ctx после возврата не прерывает доставку; логгер и trace-контекст
// сохраняются.
func (a *Async) Publish(ctx context.Context, e Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrClosed
	}

	select {
	case a.queue <- job{ctx: context.WithoutCancel(ctx), e: e}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close перестаёт принимать события, дожидается доставки очереди
// и закрывает next.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done

	return a.next.Close()
}

func (a *Async) run() {
	defer close(a.done)

	for j := range a.queue {
		ctx, cancel := context.WithTimeout(j.ctx, a.timeout)
		if err := a.next.Publish(ctx, j.e); err != nil {
			log.From(j.ctx).Warn("event_publish_failed",
				slog.String("type", string(j.e.Type)),
				log.Err(err),
			)
		}
		cancel()
	}
}

var _ Publisher = (*Async)(nil)
