package watch

import (
	"sync"
)

// Kind is the type of file change.
type Kind uint8

const (
	Created Kind = iota + 1
	Modified
	Deleted
	Renamed
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is a change to one path.
type Event struct {
	Path string
	Kind Kind
}

// EventSource delivers change events.
type EventSource interface {
	// Events is closed when the source is closed.
	Events() <-chan Event
	// Errors reports non-fatal source errors.
	Errors() <-chan error
	Close() error
}

// ChanSource is an EventSource fed by Send, for tests and external feeds.
type ChanSource struct {
	events chan Event
	errors chan error
	once   sync.Once
}

var _ EventSource = (*ChanSource)(nil)

// NewChanSource creates a source buffering up to size events.
func NewChanSource(size int) *ChanSource {
	return &ChanSource{events: make(chan Event, size), errors: make(chan error)}
}

// Send queues an event, blocking while the buffer is full.
func (s *ChanSource) Send(ev Event) { s.events <- ev }

func (s *ChanSource) Events() <-chan Event { return s.events }
func (s *ChanSource) Errors() <-chan error { return s.errors }

// Close closes the event channel. Send must not be called afterwards.
func (s *ChanSource) Close() error {
	s.once.Do(func() {
		close(s.events)
		close(s.errors)
	})
	return nil
}
