package relay

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/hupe1980/filerelay/internal/logging"
)

// TargetDiff describes how one target file would change if dispatch ran for
// the trigger's current on-disk value.
type TargetDiff struct {
	// Trigger is the name of the trigger whose value implies the write.
	Trigger string

	// Path is the target file.
	Path string

	// Unified is the unified diff of current vs planned content. Empty
	// when the target already holds the planned content.
	Unified string

	// Changed reports whether the write would alter the target.
	Changed bool
}

// ComputePlan resolves every trigger's current file content and returns the
// writes dispatch would perform, each as a diff against the target's
// current content. Target files are read but never written. A trigger whose
// content has no mapping contributes nothing (warned, as at runtime); an
// unreadable trigger file is an error, mirroring the startup pass.
func ComputePlan(ctx context.Context, doc *Document) ([]TargetDiff, error) {
	logger := logging.FromContext(ctx)

	var diffs []TargetDiff

	for _, trig := range doc.Triggers {
		raw, err := os.ReadFile(trig.File())
		if err != nil {
			return nil, fmt.Errorf("reading trigger %q: %w", trig.Name(), err)
		}

		value, ok := trig.Resolve(string(raw))
		if !ok {
			logger.Warn("no value mapping for content",
				slog.String("trigger", trig.Name()),
			)

			continue
		}

		for _, act := range doc.Actions {
			if act.TriggerName() != trig.Name() {
				continue
			}

			planner, ok := act.(Planner)
			if !ok {
				continue
			}

			writes, err := planner.Plan(value)
			if err != nil {
				return nil, fmt.Errorf("planning action for trigger %q: %w", trig.Name(), err)
			}

			for _, w := range writes {
				diff, err := diffTarget(trig.Name(), w)
				if err != nil {
					return nil, err
				}

				diffs = append(diffs, diff)
			}
		}
	}

	return diffs, nil
}

// diffTarget computes the unified diff of one pending write. A missing
// target diffs against empty content.
func diffTarget(trigger string, w PendingWrite) (TargetDiff, error) {
	current, err := os.ReadFile(w.Path)
	if err != nil && !os.IsNotExist(err) {
		return TargetDiff{}, fmt.Errorf("reading target %s: %w", w.Path, err)
	}

	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(current)),
		B:        difflib.SplitLines(w.Content),
		FromFile: w.Path + " (current)",
		ToFile:   w.Path + " (planned)",
		Context:  3,
	})
	if err != nil {
		return TargetDiff{}, fmt.Errorf("diffing target %s: %w", w.Path, err)
	}

	return TargetDiff{
		Trigger: trigger,
		Path:    w.Path,
		Unified: unified,
		Changed: unified != "",
	}, nil
}
