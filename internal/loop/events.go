package loop

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fairline-labs/fairline/internal/model"
)

const subscriberBuffer = 64

// Bus fans lifecycle events out to per-subject subscribers. Publishing never
// blocks the coordinator; a subscriber that falls behind loses events.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]chan model.LifecycleEvent
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]chan model.LifecycleEvent)}
}

// Subscribe registers for a subject's lifecycle events. The returned cancel
// func unregisters and closes the channel.
func (b *Bus) Subscribe(subjectID string) (<-chan model.LifecycleEvent, func()) {
	ch := make(chan model.LifecycleEvent, subscriberBuffer)

	b.mu.Lock()
	b.subs[subjectID] = append(b.subs[subjectID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		chans := b.subs[subjectID]
		for i, c := range chans {
			if c == ch {
				b.subs[subjectID] = append(chans[:i], chans[i+1:]...)
				close(ch)
				break
			}
		}
		if len(b.subs[subjectID]) == 0 {
			delete(b.subs, subjectID)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of its subject.
func (b *Bus) Publish(ev model.LifecycleEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[ev.SubjectID] {
		select {
		case ch <- ev:
		default:
			zap.L().Warn("loop: event dropped, slow subscriber",
				zap.String("subject", ev.SubjectID),
				zap.String("phase", string(ev.Phase)),
			)
		}
	}
}
