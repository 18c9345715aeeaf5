package stream

import (
	"log/slog"
	"sync"

	"github.com/sentinelmarket/pricestream/internal/model"
)

// StatusSubscription delivers connection status changes.
type StatusSubscription struct {
	ch    chan model.ConnectionStatus
	owner *listeners
	once  sync.Once
}

// C returns the channel of status changes. It is closed on Unsubscribe or
// when the client is disposed.
func (s *StatusSubscription) C() <-chan model.ConnectionStatus {
	return s.ch
}

// Unsubscribe stops delivery and closes C. Safe to call more than once.
func (s *StatusSubscription) Unsubscribe() {
	s.owner.removeStatus(s)
}

type alertEntry struct {
	id uint64
	fn func(model.TriggeredAlertEvent)
}

// listeners is the client's registry of alert handlers and status subscribers.
type listeners struct {
	buffer int

	alertMu sync.RWMutex
	alerts  []alertEntry
	nextID  uint64

	statusMu sync.Mutex
	statuses map[*StatusSubscription]struct{}
	closed   bool
}

func newListeners(buffer int) *listeners {
	if buffer < 1 {
		buffer = 1
	}
	return &listeners{
		buffer:   buffer,
		statuses: make(map[*StatusSubscription]struct{}),
	}
}

func (l *listeners) addAlert(fn func(model.TriggeredAlertEvent)) func() {
	l.alertMu.Lock()
	l.nextID++
	id := l.nextID
	l.alerts = append(l.alerts, alertEntry{id: id, fn: fn})
	l.alertMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.alertMu.Lock()
			defer l.alertMu.Unlock()
			for i, e := range l.alerts {
				if e.id == id {
					l.alerts = append(l.alerts[:i:i], l.alerts[i+1:]...)
					return
				}
			}
		})
	}
}

// publishAlert calls every registered handler once, in registration order.
// A panicking handler is logged and does not stop delivery to the rest.
func (l *listeners) publishAlert(event model.TriggeredAlertEvent, logger *slog.Logger) {
	l.alertMu.RLock()
	entries := make([]alertEntry, len(l.alerts))
	copy(entries, l.alerts)
	l.alertMu.RUnlock()

	for _, e := range entries {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("alert handler panicked", "alert_id", event.ID, "panic", r)
				}
			}()
			e.fn(event)
		}()
	}
}

func (l *listeners) alertCount() int {
	l.alertMu.RLock()
	defer l.alertMu.RUnlock()
	return len(l.alerts)
}

func (l *listeners) addStatus() *StatusSubscription {
	s := &StatusSubscription{
		ch:    make(chan model.ConnectionStatus, l.buffer),
		owner: l,
	}

	l.statusMu.Lock()
	defer l.statusMu.Unlock()

	if l.closed {
		close(s.ch)
		return s
	}
	l.statuses[s] = struct{}{}
	return s
}

func (l *listeners) removeStatus(s *StatusSubscription) {
	l.statusMu.Lock()
	defer l.statusMu.Unlock()

	if _, ok := l.statuses[s]; !ok {
		return
	}
	delete(l.statuses, s)
	s.once.Do(func() { close(s.ch) })
}

// publishStatus delivers status to every subscriber without blocking.
// A full channel loses its oldest entry.
func (l *listeners) publishStatus(status model.ConnectionStatus) {
	l.statusMu.Lock()
	defer l.statusMu.Unlock()

	for s := range l.statuses {
		select {
		case s.ch <- status:
		default:
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- status:
			default:
			}
		}
	}
}

// closeAll closes every status subscription and drops all alert handlers.
func (l *listeners) closeAll() {
	l.statusMu.Lock()
	for s := range l.statuses {
		delete(l.statuses, s)
		s.once.Do(func() { close(s.ch) })
	}
	l.closed = true
	l.statusMu.Unlock()

	l.alertMu.Lock()
	l.alerts = nil
	l.alertMu.Unlock()
}
