package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-go-api/internal/observability"
)

// Exam lifecycle event types.
const (
	ExamEventStarted    = "exam.started"
	ExamEventCompleted  = "exam.completed"
	ExamEventTerminated = "exam.terminated"
)

// ExamEvent is one lifecycle notification fanned out to monitors.
type ExamEvent struct {
	Type   string    `json:"type"`
	ExamID uint      `json:"exam_id"`
	UserID uint      `json:"user_id"`
	Score  float64   `json:"score,omitempty"`
	At     time.Time `json:"at"`
}

// ExamEventPublisher publishes lifecycle events and lets in-process
// consumers (the admin monitor websocket) subscribe to the stream. Events
// also go out over NATS so monitors on other nodes see them.
type ExamEventPublisher interface {
	Publish(ctx context.Context, event ExamEvent)
	Subscribe() (<-chan ExamEvent, func())
	Start(ctx context.Context)
}

const eventBufferSize = 16

type examEventPublisher struct {
	nats    *nats.Conn
	subject string
	logger  zerolog.Logger

	mu          sync.RWMutex
	subscribers map[chan ExamEvent]struct{}
}

// NewExamEventPublisher constructs the publisher. A nil NATS connection
// keeps fan-out local to the process.
func NewExamEventPublisher(natsConn *nats.Conn, subject string, logger zerolog.Logger) ExamEventPublisher {
	if subject == "" {
		subject = "exam.events"
	}
	return &examEventPublisher{
		nats:        natsConn,
		subject:     subject,
		logger:      logger.With().Str("component", "exam_events").Logger(),
		subscribers: make(map[chan ExamEvent]struct{}),
	}
}

// Start begins consuming cross-node events from NATS.
func (p *examEventPublisher) Start(ctx context.Context) {
	if p.nats == nil {
		return
	}

	sub, err := p.nats.Subscribe(p.subject, func(msg *nats.Msg) {
		var event ExamEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			p.logger.Warn().Err(err).Msg("failed to decode exam event")
			return
		}
		p.fanOut(event)
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to subscribe to exam events")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			p.logger.Warn().Err(err).Msg("failed to unsubscribe from exam events")
		}
	}()
}

func (p *examEventPublisher) Publish(ctx context.Context, event ExamEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	p.fanOut(event)

	if p.nats == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to encode exam event")
		return
	}
	if err := p.nats.Publish(p.subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to publish exam event")
	}
}

func (p *examEventPublisher) Subscribe() (<-chan ExamEvent, func()) {
	ch := make(chan ExamEvent, eventBufferSize)

	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if _, ok := p.subscribers[ch]; ok {
			delete(p.subscribers, ch)
			close(ch)
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

func (p *examEventPublisher) fanOut(event ExamEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for ch := range p.subscribers {
		select {
		case ch <- event:
		default:
			// Slow consumers drop events rather than block publishers.
			observability.EventsDropped().Inc()
			p.logger.Debug().Str("type", event.Type).Msg("dropped exam event for slow subscriber")
		}
	}
}
