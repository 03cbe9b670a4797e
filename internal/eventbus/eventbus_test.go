package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type pingEvent struct{ N int }
type otherEvent struct{}

func TestPublishSubscribe(t *testing.T) {
	Use(New())
	defer Use(nil)

	var got []pingEvent
	unsubscribe := Subscribe(func(ctx context.Context, e pingEvent) { got = append(got, e) })
	defer unsubscribe()

	Publish(context.Background(), pingEvent{N: 1})
	Publish(context.Background(), otherEvent{})
	Publish(context.Background(), pingEvent{N: 2})

	require.Equal(t, []pingEvent{{N: 1}, {N: 2}}, got,
		"handlers receive only their event type")
}

func TestUnsubscribe(t *testing.T) {
	Use(New())
	defer Use(nil)

	count := 0
	unsubscribe := Subscribe(func(ctx context.Context, e pingEvent) { count++ })
	Publish(context.Background(), pingEvent{})
	unsubscribe()
	Publish(context.Background(), pingEvent{})

	require.Equal(t, 1, count)
	unsubscribe() // second call is a no-op
}

func TestMultipleHandlers(t *testing.T) {
	Use(New())
	defer Use(nil)

	a, b := 0, 0
	defer Subscribe(func(ctx context.Context, e pingEvent) { a++ })()
	defer Subscribe(func(ctx context.Context, e pingEvent) { b++ })()

	Publish(context.Background(), pingEvent{})
	require.Equal(t, 1, a)
	require.Equal(t, 1, b)
}

func TestNoBusConfigured(t *testing.T) {
	Use(nil)

	unsubscribe := Subscribe(func(ctx context.Context, e pingEvent) {
		t.Fatal("handler must not fire without a bus")
	})
	defer unsubscribe()

	Publish(context.Background(), pingEvent{}) // must not panic
}
