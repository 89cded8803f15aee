package relay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/filerelay/internal/logging"
)

// DebounceWindow is the minimum time between two content reads of one
// trigger's file. Access notifications can arrive once per reader or even
// per byte, so polls younger than this are dropped before touching the file.
const DebounceWindow = 50 * time.Millisecond

// Handler carries the per-trigger runtime state: the debounce reference
// point and the last resolved value. One handler exists per trigger for the
// process lifetime, and only the engine loop ever touches it.
type Handler struct {
	trigger Trigger

	lastRead time.Time // zero until the first successful read
	cached   string
	hasValue bool

	now func() time.Time
}

// NewHandler creates the runtime state for trigger.
func NewHandler(trigger Trigger) *Handler {
	return &Handler{trigger: trigger, now: time.Now}
}

// Trigger returns the definition this handler evaluates.
func (h *Handler) Trigger() Trigger { return h.trigger }

// Poll reads the trigger's file and reports its semantic value when it
// changed since the previous poll. ok is false when the poll was debounced,
// the content had no mapping, or the value is unchanged. A read failure is
// returned to the caller; the debounce state is not advanced by it.
func (h *Handler) Poll(ctx context.Context) (value string, ok bool, err error) {
	if !h.lastRead.IsZero() && h.now().Sub(h.lastRead) < DebounceWindow {
		return "", false, nil
	}

	raw, err := os.ReadFile(h.trigger.File())
	if err != nil {
		return "", false, fmt.Errorf("reading trigger %q: %w", h.trigger.Name(), err)
	}

	// Advance the gate on every successful read, mapped or not, so
	// unmapped content cannot defeat the debounce.
	h.lastRead = h.now()

	resolved, found := h.trigger.Resolve(string(raw))
	if !found {
		// The cached value stays as it was: a miss reports a warning and
		// nothing else.
		logging.FromContext(ctx).Warn("no value mapping for content",
			slog.String("trigger", h.trigger.Name()),
			slog.String("content", strings.TrimSpace(string(raw))),
		)

		return "", false, nil
	}

	if h.hasValue && h.cached == resolved {
		return "", false, nil
	}

	h.cached = resolved
	h.hasValue = true

	return resolved, true, nil
}
