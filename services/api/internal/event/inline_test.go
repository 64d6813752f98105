package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgkafka "github.com/bookineo/bookineo/pkg/kafka"
)

func TestInlinePublisher_DispatchesSubscribedTopics(t *testing.T) {
	got := make(chan string, 2)
	handler := func(_ context.Context, e *pkgkafka.Event) error {
		got <- e.EventType
		return nil
	}
	pub := NewInlinePublisher(handler, []string{TopicBoxDeleted}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pub.Publish(ctx, TopicBoxCreated, &pkgkafka.Event{EventType: TopicBoxCreated}))
	require.NoError(t, pub.Publish(ctx, TopicBoxDeleted, &pkgkafka.Event{EventType: TopicBoxDeleted}))
	cancel()

	select {
	case topic := <-got:
		assert.Equal(t, TopicBoxDeleted, topic)
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}

	select {
	case topic := <-got:
		t.Fatalf("unexpected dispatch of %s", topic)
	case <-time.After(50 * time.Millisecond):
	}
}
