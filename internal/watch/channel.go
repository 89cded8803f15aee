package watch

import (
	"fmt"
	"sync"
)

// ChannelService is a Service fed by hand instead of by the OS. It assigns
// sequential watch ids and delivers whatever the caller emits, which makes
// engine behaviour fully deterministic in tests and lets custom event
// sources stand in for the platform facility.
type ChannelService struct {
	mu     sync.Mutex
	next   ID
	ids    map[string]ID
	closed bool

	events chan Event
	errs   chan error
}

// NewChannelService creates an empty ChannelService. The buffer sizes the
// event channel; 0 makes every Emit rendezvous with the consumer.
func NewChannelService(buffer int) *ChannelService {
	return &ChannelService{
		ids:    make(map[string]ID),
		events: make(chan Event, buffer),
		errs:   make(chan error, 1),
	}
}

// Add assigns the next watch id to path. The path is recorded but not
// touched; emitting events stays entirely under the caller's control.
func (s *ChannelService) Add(path string) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("watch service closed")
	}

	s.next++
	s.ids[path] = s.next

	return s.next, nil
}

// IDFor returns the watch id assigned to path by a previous Add.
func (s *ChannelService) IDFor(path string) (ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.ids[path]

	return id, ok
}

// Access emits one read-access event for path, as the OS would after some
// process read the file.
func (s *ChannelService) Access(path string) error {
	id, ok := s.IDFor(path)
	if !ok {
		return fmt.Errorf("no watch installed for %q", path)
	}

	s.Emit(Event{ID: id})

	return nil
}

// Emit delivers ev verbatim.
func (s *ChannelService) Emit(ev Event) {
	s.events <- ev
}

// Fail reports a fatal facility error and closes the event stream.
func (s *ChannelService) Fail(err error) {
	s.errs <- err
}

func (s *ChannelService) Events() <-chan Event {
	return s.events
}

func (s *ChannelService) Errors() <-chan error {
	return s.errs
}

// Close ends the event stream.
func (s *ChannelService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.events)
	}

	return nil
}
