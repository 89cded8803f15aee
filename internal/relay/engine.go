package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/filerelay/internal/logging"
	"github.com/hupe1980/filerelay/internal/watch"
)

// Engine drives the relay: it installs one watch per trigger, performs the
// initial evaluation pass, then consumes events and fans changed values out
// to the bound actions. All handler state is touched only from Run's
// goroutine.
type Engine struct {
	doc     *Document
	service watch.Service

	registry map[watch.ID]*Handler
	handlers []*Handler // document order, for the initial pass

	docNoticePath string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDocumentNotice makes Run watch path for on-disk changes and log a
// restart notice when it is rewritten. The document itself is never
// reloaded: the configuration is immutable for the process lifetime.
func WithDocumentNotice(path string) EngineOption {
	return func(e *Engine) {
		e.docNoticePath = path
	}
}

// NewEngine creates an engine over doc, delivering events through service.
func NewEngine(doc *Document, service watch.Service, opts ...EngineOption) *Engine {
	e := &Engine{
		doc:      doc,
		service:  service,
		registry: make(map[watch.ID]*Handler, len(doc.Triggers)),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run installs all watches, evaluates every trigger once so the relay
// reflects the on-disk state at startup, then blocks consuming events until
// ctx is cancelled or the watch service fails. Any install or initial
// evaluation failure is fatal; a failed poll inside the loop only skips
// that one event.
func (e *Engine) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	if err := e.install(); err != nil {
		return err
	}

	if err := e.initialPass(ctx); err != nil {
		return fmt.Errorf("initial evaluation: %w", err)
	}

	docEvents := e.watchDocument(ctx)

	logger.Info("relay running",
		slog.Int("triggers", len(e.doc.Triggers)),
		slog.Int("actions", len(e.doc.Actions)),
	)

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil

		case ev, ok := <-e.service.Events():
			if !ok {
				return errors.New("watch service event stream ended")
			}

			e.handleEvent(ctx, ev)

		case err := <-e.service.Errors():
			return fmt.Errorf("watch service failed: %w", err)

		case dev, ok := <-docEvents:
			if ok && dev.Has(fsnotify.Write) {
				logger.Warn("relay document changed on disk, restart to apply",
					slog.String("path", e.docNoticePath),
				)
			}
		}
	}
}

// install registers a read-access watch for every trigger in document order
// and builds the watch-id routing table.
func (e *Engine) install() error {
	for _, trig := range e.doc.Triggers {
		id, err := e.service.Add(trig.File())
		if err != nil {
			return fmt.Errorf("installing watch for trigger %q: %w", trig.Name(), err)
		}

		h := NewHandler(trig)
		e.registry[id] = h
		e.handlers = append(e.handlers, h)
	}

	return nil
}

// initialPass polls every handler once before the loop starts and
// dispatches any value it yields.
func (e *Engine) initialPass(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	for _, h := range e.handlers {
		value, ok, err := h.Poll(ctx)
		if err != nil {
			return err
		}

		if !ok {
			continue
		}

		logger.Debug("initial trigger value",
			slog.String("trigger", h.Trigger().Name()),
			slog.String("value", value),
		)

		e.dispatch(ctx, h.Trigger().Name(), value)
	}

	return nil
}

// handleEvent routes one event to its handler. Events for watches not in
// the registry are ignored; a failed poll is logged and skipped.
func (e *Engine) handleEvent(ctx context.Context, ev watch.Event) {
	logger := logging.FromContext(ctx)

	h, ok := e.registry[ev.ID]
	if !ok {
		logger.Debug("event for unknown watch", slog.Int("watchID", int(ev.ID)))
		return
	}

	value, fired, err := h.Poll(ctx)
	if err != nil {
		logger.Error("poll failed",
			slog.String("trigger", h.Trigger().Name()),
			slog.String("error", err.Error()),
		)

		return
	}

	if !fired {
		return
	}

	logger.Info("trigger fired",
		slog.String("trigger", h.Trigger().Name()),
		slog.String("value", value),
	)

	e.dispatch(ctx, h.Trigger().Name(), value)
}

// dispatch applies value to every action bound to name, in document order.
// A failed action is logged and does not keep the remaining actions from
// running.
func (e *Engine) dispatch(ctx context.Context, name, value string) {
	logger := logging.FromContext(ctx)

	for _, act := range e.doc.Actions {
		if act.TriggerName() != name {
			continue
		}

		if err := act.Apply(ctx, value); err != nil {
			logger.Error("action failed",
				slog.String("trigger", name),
				slog.String("value", value),
				slog.String("error", err.Error()),
			)
		}
	}
}

// watchDocument starts a best-effort fsnotify watch on the relay document.
// It returns a nil channel (never ready) when no path was configured or the
// watch could not be installed.
func (e *Engine) watchDocument(ctx context.Context) <-chan fsnotify.Event {
	if e.docNoticePath == "" {
		return nil
	}

	logger := logging.FromContext(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("document change notices unavailable", slog.String("error", err.Error()))
		return nil
	}

	if err := w.Add(e.docNoticePath); err != nil {
		logger.Warn("document change notices unavailable",
			slog.String("path", e.docNoticePath),
			slog.String("error", err.Error()),
		)

		_ = w.Close()

		return nil
	}

	go func() {
		<-ctx.Done()
		_ = w.Close()
	}()

	return w.Events
}
