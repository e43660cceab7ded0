package ui

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/simonbystrom/teamboard/internal/hub"
)

const observerQueueSize = 64

var errObserverClosed = errors.New("viewer closed")

// connectedMsg is delivered when the hub handshake arrives.
type connectedMsg struct {
	at time.Time
}

// fileChangedMsg is delivered for every broadcast change.
type fileChangedMsg struct {
	hub.FileChanged
}

// Observer registers the viewer with a hub.Registry. Send is called with the
// registry lock held, so it only enqueues; a separate goroutine decodes and
// hands messages to the sink (normally tea.Program.Send, which blocks until
// the program is running). Messages are dropped when the queue is full.
type Observer struct {
	sink   func(tea.Msg)
	queue  chan []byte
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

// NewObserver starts forwarding decoded hub messages to sink.
func NewObserver(sink func(tea.Msg)) *Observer {
	o := &Observer{
		sink:  sink,
		queue: make(chan []byte, observerQueueSize),
		done:  make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *Observer) Open() bool { return !o.closed.Load() }

func (o *Observer) Send(data []byte) error {
	if o.closed.Load() {
		return errObserverClosed
	}
	select {
	case o.queue <- data:
	default:
		slog.Debug("viewer queue full, dropping message")
	}
	return nil
}

// Close stops forwarding. Queued messages are discarded.
func (o *Observer) Close() {
	o.once.Do(func() {
		o.closed.Store(true)
		close(o.done)
	})
}

func (o *Observer) run() {
	for {
		select {
		case <-o.done:
			return
		case data := <-o.queue:
			if msg, ok := decode(data); ok {
				o.sink(msg)
			}
		}
	}
}

func decode(data []byte) (tea.Msg, bool) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		slog.Debug("undecodable hub message", "error", err)
		return nil, false
	}

	switch head.Type {
	case hub.TypeConnected:
		var c hub.Connected
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, false
		}
		return connectedMsg{at: time.UnixMilli(c.Timestamp)}, true
	case hub.TypeFileChanged:
		var fc hub.FileChanged
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, false
		}
		return fileChangedMsg{fc}, true
	default:
		return nil, false
	}
}
