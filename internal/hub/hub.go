package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/simonbystrom/teamboard/internal/watch"
)

// Message types sent to observers.
const (
	TypeConnected   = "connected"
	TypeFileChanged = "file_changed"
)

// Observer is one live viewer. Send is only ever called with the
// registry lock held, so implementations see a single writer and must
// not block.
type Observer interface {
	// Open reports whether the observer can currently accept messages.
	Open() bool
	Send(data []byte) error
}

// Connected is the handshake every observer receives first.
type Connected struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// FileChanged notifies observers that something on disk moved. It carries
// no state: observers re-query for it.
type FileChanged struct {
	Type      string  `json:"type"`
	Event     string  `json:"event"`
	Area      string  `json:"area"`
	TeamName  *string `json:"teamName"`
	File      string  `json:"file"`
	Timestamp int64   `json:"timestamp"`
}

// NewFileChanged converts a watcher event into its wire form.
func NewFileChanged(ev watch.ChangeEvent) FileChanged {
	fc := FileChanged{
		Type:      TypeFileChanged,
		Event:     string(ev.Kind),
		Area:      string(ev.Area),
		File:      ev.File,
		Timestamp: ev.Time.UnixMilli(),
	}
	if ev.Team != "" {
		team := ev.Team
		fc.TeamName = &team
	}
	return fc
}

// Registry is the set of connected observers.
type Registry struct {
	mu        sync.Mutex
	observers map[Observer]struct{}
	now       func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		observers: make(map[Observer]struct{}),
		now:       time.Now,
	}
}

// Connect sends the handshake to o and then adds it. Both happen under the
// lock, so no broadcast can reach o before its handshake.
func (r *Registry) Connect(o Observer) error {
	data, err := json.Marshal(Connected{Type: TypeConnected, Timestamp: r.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("marshal handshake: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := o.Send(data); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}
	r.observers[o] = struct{}{}
	return nil
}

// Disconnect removes o. Removing an unknown observer is a no-op.
func (r *Registry) Disconnect(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.observers, o)
}

// Len returns the number of registered observers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}

// Broadcast serializes v once and pushes it to every open observer.
// Observers that are not open are skipped; an observer whose send fails is
// dropped. Nothing is retried or buffered. It returns how many observers
// received the message.
func (r *Registry) Broadcast(v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshal broadcast: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delivered := 0
	for o := range r.observers {
		if !o.Open() {
			continue
		}
		if err := o.Send(data); err != nil {
			slog.Debug("observer send failed, dropping", "error", err)
			delete(r.observers, o)
			continue
		}
		delivered++
	}
	return delivered, nil
}
