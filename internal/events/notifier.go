package events

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/metrics"
	"github.com/alagappainfotech/student-registration-app/internal/session"
)

const (
	defaultQueueSize = 64
	publishTimeout   = 5 * time.Second
)

// Notifier is a session.Observer that publishes transitions from a single
// background goroutine, so a slow broker never blocks the credential store.
// Failures are logged and dropped.
type Notifier struct {
	publisher Publisher
	metrics   *metrics.MessagingMetrics
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	done   chan struct{}
}

func NewNotifier(publisher Publisher, m *metrics.MessagingMetrics, logger *slog.Logger, queueSize int) *Notifier {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		queue:     make(chan Message, queueSize),
		done:      make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *Notifier) SessionChanged(ctx context.Context, ev session.Event) {
	msg := FromSession(ev)
	if msg.Type == "" {
		return
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- msg:
	default:
		n.logger.WarnContext(ctx, "event queue full, dropping session event", "type", msg.Type)
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for msg := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		start := time.Now()
		err := n.publisher.Publish(ctx, msg)
		n.metrics.RecordPublish(ctx, msg.Type, time.Since(start), err)
		if err != nil {
			n.logger.ErrorContext(ctx, "failed to publish session event", "type", msg.Type, "error", err)
		}
		cancel()
	}
}

// Close flushes queued events and closes the publisher. Events reported
// after Close are dropped.
func (n *Notifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		<-n.done
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	<-n.done
	return n.publisher.Close()
}

func typeSuffix(eventType string) string {
	return strings.TrimPrefix(eventType, "session.")
}
