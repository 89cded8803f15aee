// Package watch provides the file-notification service used by the relay
// engine. A Service installs watches for read-access events on individual
// files and delivers them as opaque (watch id, event) pairs.
//
// The relay is triggered by *reads* of the watched file, not by writes to
// it: it assumes some other process periodically reads a status file, and
// that read itself is the signal to re-evaluate. General-purpose watcher
// libraries only surface modification events, so the production
// implementation drives the platform facility directly (inotify_linux.go).
// Non-Linux platforms have no read-access notification and get a stub
// (unsupported.go); tests and custom sources use ChannelService.
package watch

import "errors"

// ErrUnsupported is returned by New on platforms without a read-access
// notification facility.
var ErrUnsupported = errors.New("read-access watching is not supported on this platform")

// ID is the opaque identifier of one installed file watch, as issued by the
// underlying notification facility.
type ID int

// Event is a single notification delivered by a Service.
type Event struct {
	// ID identifies the watch the event belongs to.
	ID ID

	// Mask carries the raw platform event bits, for debug logging only.
	Mask uint32
}

// Service is the abstract file-notification facility. Implementations own a
// single event stream shared by all watches installed through them.
type Service interface {
	// Add registers interest in read-access events on path and returns the
	// watch id the facility assigned to it.
	Add(path string) (ID, error)

	// Events returns the channel events are delivered on. The channel is
	// closed when the service is closed or the facility becomes unusable.
	Events() <-chan Event

	// Errors returns the channel a fatal facility error is delivered on.
	// At most one error is ever sent; after that the event channel closes.
	Errors() <-chan error

	// Close releases the facility. Safe to call more than once.
	Close() error
}

// New returns the platform notification service.
func New() (Service, error) {
	return newService()
}
