package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOutToSubscribers(t *testing.T) {
	pub := NewExamEventPublisher(nil, "", zerolog.Nop())

	ch, cancel := pub.Subscribe()
	defer cancel()

	pub.Publish(context.Background(), ExamEvent{Type: ExamEventStarted, ExamID: 7, UserID: 1})

	event := <-ch
	require.Equal(t, ExamEventStarted, event.Type)
	require.Equal(t, uint(7), event.ExamID)
	require.False(t, event.At.IsZero())
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	pub := NewExamEventPublisher(nil, "", zerolog.Nop())

	ch, cancel := pub.Subscribe()
	defer cancel()

	// Nobody reads, so everything beyond the channel buffer is dropped and
	// Publish must return without blocking.
	for i := 0; i < eventBufferSize+5; i++ {
		pub.Publish(context.Background(), ExamEvent{Type: ExamEventStarted, ExamID: uint(i + 1)})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			require.Equal(t, eventBufferSize, received)
			return
		}
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	pub := NewExamEventPublisher(nil, "", zerolog.Nop())

	ch, cancel := pub.Subscribe()
	cancel()
	cancel() // idempotent

	_, open := <-ch
	require.False(t, open)

	// Publishing after cancellation must not panic on the closed channel.
	pub.Publish(context.Background(), ExamEvent{Type: ExamEventCompleted, ExamID: 1})
}
