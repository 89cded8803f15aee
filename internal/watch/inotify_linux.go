//go:build linux

package watch

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// inotifyService is the Linux implementation of Service, backed by a single
// inotify instance watching IN_ACCESS.
type inotifyService struct {
	fd     int
	events chan Event
	errs   chan error

	closeOnce sync.Once
	done      chan struct{}
}

func newService() (Service, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("initializing inotify: %w", err)
	}

	s := &inotifyService{
		fd:     fd,
		events: make(chan Event),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}

	go s.readLoop()

	return s, nil
}

// Add installs an IN_ACCESS watch on path.
func (s *inotifyService) Add(path string) (ID, error) {
	wd, err := unix.InotifyAddWatch(s.fd, path, unix.IN_ACCESS)
	if err != nil {
		return 0, fmt.Errorf("watching %q for access: %w", path, err)
	}

	return ID(wd), nil
}

func (s *inotifyService) Events() <-chan Event {
	return s.events
}

func (s *inotifyService) Errors() <-chan error {
	return s.errs
}

// Close releases the inotify instance. The pending blocking read fails with
// EBADF, which ends the read loop.
func (s *inotifyService) Close() error {
	var err error

	s.closeOnce.Do(func() {
		close(s.done)
		err = unix.Close(s.fd)
	})

	return err
}

// readLoop blocks on the inotify fd and fans the raw event buffer out onto
// the event channel. One read may carry several packed events.
func (s *inotifyService) readLoop() {
	defer close(s.events)

	buf := make([]byte, 65536)

	for {
		n, err := unix.Read(s.fd, buf)
		if err != nil {
			if err == unix.EINTR {
				continue
			}

			select {
			case <-s.done:
				// Close() was called; not a facility failure.
			default:
				s.errs <- fmt.Errorf("reading inotify events: %w", err)
			}

			return
		}

		var offset uint32
		for offset+unix.SizeofInotifyEvent <= uint32(n) {
			raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))

			if raw.Mask&unix.IN_Q_OVERFLOW == 0 {
				select {
				case s.events <- Event{ID: ID(raw.Wd), Mask: raw.Mask}:
				case <-s.done:
					return
				}
			}

			offset += unix.SizeofInotifyEvent + raw.Len
		}
	}
}
