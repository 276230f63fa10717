package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// gatePublisher блокирует Publish до закрытия release и запоминает события.
type gatePublisher struct {
	release chan struct{}
	started chan struct{}

	mu      sync.Mutex
	got     []Event
	ctxErrs []error
	closed  bool
	err     error
}

func newGatePublisher() *gatePublisher {
	return &gatePublisher{
		release: make(chan struct{}),
		started: make(chan struct{}, 16),
	}
}

func (p *gatePublisher) Publish(ctx context.Context, e Event) error {
	p.started <- struct{}{}
	<-p.release

	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, e)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	return p.err
}

func (p *gatePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *gatePublisher) events() []Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Type, 0, len(p.got))
	for _, e := range p.got {
		out = append(out, e.Type)
	}
	return out
}

func TestAsync_PublishReturnsBeforeDelivery(t *testing.T) {
	t.Parallel()

	next := newGatePublisher()
	a := NewAsync(next, 4, time.Second)

	done := make(chan error, 1)
	go func() { done <- a.Publish(context.Background(), Event{Type: UserLoggedIn}) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Publish заблокирован медленным получателем")
	}

	close(next.release)
	require.NoError(t, a.Close())
	require.Equal(t, []Type{UserLoggedIn}, next.events())
	require.True(t, next.closed)
}

// TestAsync_QueueFull — пока воркер занят, в очередь помещается size событий,
// следующее отбрасывается.
func TestAsync_QueueFull(t *testing.T) {
	t.Parallel()

	next := newGatePublisher()
	a := NewAsync(next, 1, time.Second)
	ctx := context.Background()

	require.NoError(t, a.Publish(ctx, Event{Type: UserRegistered}))
	<-next.started // воркер забрал первое событие и ждёт release

	require.NoError(t, a.Publish(ctx, Event{Type: UserLoggedIn}))
	require.ErrorIs(t, a.Publish(ctx, Event{Type: QuoteAdded}), ErrQueueFull)

	close(next.release)
	require.NoError(t, a.Close())
	require.Equal(t, []Type{UserRegistered, UserLoggedIn}, next.events())
}

// TestAsync_DeliveryOutlivesCallerContext — отмена контекста запроса не
// прерывает доставку.
func TestAsync_DeliveryOutlivesCallerContext(t *testing.T) {
	t.Parallel()

	next := newGatePublisher()
	close(next.release)
	a := NewAsync(next, 1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.Publish(ctx, Event{Type: SessionRevoked}))
	cancel()

	require.NoError(t, a.Close())
	require.Equal(t, []Type{SessionRevoked}, next.events())
	require.Equal(t, []error{nil}, next.ctxErrs)
}

func TestAsync_PublishAfterClose(t *testing.T) {
	t.Parallel()

	next := newGatePublisher()
	close(next.release)
	next.err = errors.New("broker down")
	a := NewAsync(next, 0, 0)

	// Ошибка доставки только логируется.
	require.NoError(t, a.Publish(context.Background(), Event{Type: QuoteDeleted}))

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	require.ErrorIs(t, a.Publish(context.Background(), Event{Type: QuoteDeleted}), ErrClosed)
	require.Equal(t, []Type{QuoteDeleted}, next.events())
}
