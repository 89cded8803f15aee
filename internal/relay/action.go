package relay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hupe1980/filerelay/internal/logging"
)

// Action is a consumer of one trigger's values. Implementations translate a
// semantic value into whatever side effect their kind defines.
type Action interface {
	// TriggerName is the name of the trigger this action listens to.
	TriggerName() string

	// Apply reacts to a newly resolved value. A value with no translation
	// is a warning, not an error; errors are reserved for failed writes.
	Apply(ctx context.Context, value string) error
}

// PendingWrite is one file write an action would perform for a value.
type PendingWrite struct {
	Path    string
	Content string
}

// Planner is implemented by actions that can report the writes Apply would
// perform without performing them. The plan command uses it for previews.
type Planner interface {
	Plan(value string) ([]PendingWrite, error)
}

// SimpleFileAction translates a semantic value through its own value map and
// writes the result to every file matching a glob pattern.
type SimpleFileAction struct {
	trigger string
	pattern string
	values  map[string]string
}

// NewSimpleFileAction creates a simple-file action bound to the named
// trigger. The values map is taken over by the action.
func NewSimpleFileAction(trigger, pattern string, values map[string]string) *SimpleFileAction {
	return &SimpleFileAction{trigger: trigger, pattern: pattern, values: values}
}

// TriggerName returns the bound trigger name.
func (a *SimpleFileAction) TriggerName() string { return a.trigger }

// Pattern returns the target glob pattern.
func (a *SimpleFileAction) Pattern() string { return a.pattern }

// Apply writes the translated value to every path currently matching the
// pattern. The pattern is expanded on every call: the set of matching files
// may change between dispatches. A pattern matching nothing is not an
// error. The first failed write aborts the remaining writes of this action.
func (a *SimpleFileAction) Apply(ctx context.Context, value string) error {
	logger := logging.FromContext(ctx)

	content, ok := a.values[value]
	if !ok {
		logger.Warn("no output mapping for value",
			slog.String("trigger", a.trigger),
			slog.String("value", value),
		)

		return nil
	}

	paths, err := filepath.Glob(a.pattern)
	if err != nil {
		return fmt.Errorf("expanding pattern %q: %w", a.pattern, err)
	}

	for _, path := range paths {
		logger.Debug("writing target",
			slog.String("trigger", a.trigger),
			slog.String("path", path),
			slog.String("value", value),
		)

		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}

	return nil
}

// Plan reports the writes Apply would perform for value right now. A value
// with no translation plans nothing.
func (a *SimpleFileAction) Plan(value string) ([]PendingWrite, error) {
	content, ok := a.values[value]
	if !ok {
		return nil, nil
	}

	paths, err := filepath.Glob(a.pattern)
	if err != nil {
		return nil, fmt.Errorf("expanding pattern %q: %w", a.pattern, err)
	}

	writes := make([]PendingWrite, 0, len(paths))
	for _, path := range paths {
		writes = append(writes, PendingWrite{Path: path, Content: content})
	}

	return writes, nil
}
