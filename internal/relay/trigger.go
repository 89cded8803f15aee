package relay

import "strings"

// KindSimpleFile is the built-in trigger and action kind: whole-file reads
// resolved through an exact-match value map, whole-file overwrite writes.
const KindSimpleFile = "simple-file"

// Trigger is a named, file-bound source of semantic values. Implementations
// are pure data: resolving never touches the filesystem.
type Trigger interface {
	// Name is the join key actions bind to. Unique within a document.
	Name() string

	// File is the path whose read-access events drive this trigger.
	File() string

	// Resolve maps raw file content to a semantic value. ok is false when
	// the content has no mapping.
	Resolve(raw string) (value string, ok bool)
}

// SimpleFileTrigger resolves the trimmed content of its file through an
// exact-match value map.
type SimpleFileTrigger struct {
	name   string
	file   string
	values map[string]string
}

// NewSimpleFileTrigger creates a simple-file trigger. The values map is
// taken over by the trigger and must not be mutated afterwards.
func NewSimpleFileTrigger(name, file string, values map[string]string) *SimpleFileTrigger {
	return &SimpleFileTrigger{name: name, file: file, values: values}
}

// Name returns the trigger name.
func (t *SimpleFileTrigger) Name() string { return t.name }

// File returns the watched file path.
func (t *SimpleFileTrigger) File() string { return t.file }

// Resolve trims surrounding whitespace and looks the content up verbatim.
func (t *SimpleFileTrigger) Resolve(raw string) (string, bool) {
	value, ok := t.values[strings.TrimSpace(raw)]

	return value, ok
}
