package relay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Document is the declarative relay configuration: the full ordered set of
// triggers and actions. Loaded once at startup, read-only afterwards.
type Document struct {
	// Path is the file the document was loaded from.
	Path string

	// Triggers in declaration order.
	Triggers []Trigger

	// Actions in declaration order. Dispatch walks them in this order.
	Actions []Action

	spec documentSpec
}

// documentSpec mirrors the on-disk document: trigger/action arrays with
// kebab-case fields.
type documentSpec struct {
	Triggers []triggerSpec `toml:"trigger" yaml:"trigger"`
	Actions  []actionSpec  `toml:"action" yaml:"action"`
}

type triggerSpec struct {
	Name   string            `toml:"name" yaml:"name"`
	Type   string            `toml:"type" yaml:"type"`
	File   string            `toml:"file" yaml:"file"`
	Values map[string]string `toml:"value-map" yaml:"value-map"`
}

type actionSpec struct {
	Type    string            `toml:"type" yaml:"type"`
	Trigger string            `toml:"trigger" yaml:"trigger"`
	File    string            `toml:"file" yaml:"file"`
	Values  map[string]string `toml:"values" yaml:"values"`
}

// LoadDocument reads, parses, and validates a relay document. The format is
// chosen by file extension: .toml, or .yaml/.yml.
//
// Value-map keys are matched byte-for-byte against file content, so the
// document is decoded directly with the format codec rather than through a
// key-normalizing config layer.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading relay document: %w", err)
	}

	var spec documentSpec

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("parsing relay document %q: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("parsing relay document %q: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported relay document format %q (want .toml, .yaml, or .yml)", ext)
	}

	return buildDocument(path, spec)
}

// buildDocument turns the decoded spec into typed triggers and actions and
// enforces the document invariants: at least one trigger, unique non-empty
// trigger names, known kinds, and actions referencing declared triggers.
func buildDocument(path string, spec documentSpec) (*Document, error) {
	if len(spec.Triggers) == 0 {
		return nil, fmt.Errorf("relay document %q declares no triggers", path)
	}

	doc := &Document{Path: path, spec: spec}
	names := make(map[string]struct{}, len(spec.Triggers))

	for i, ts := range spec.Triggers {
		trig, err := buildTrigger(ts)
		if err != nil {
			return nil, fmt.Errorf("trigger[%d]: %w", i, err)
		}

		if _, dup := names[trig.Name()]; dup {
			return nil, fmt.Errorf("trigger[%d]: duplicate trigger name %q", i, trig.Name())
		}

		names[trig.Name()] = struct{}{}
		doc.Triggers = append(doc.Triggers, trig)
	}

	for i, as := range spec.Actions {
		act, err := buildAction(as)
		if err != nil {
			return nil, fmt.Errorf("action[%d]: %w", i, err)
		}

		if _, ok := names[act.TriggerName()]; !ok {
			return nil, fmt.Errorf("action[%d]: references unknown trigger %q", i, act.TriggerName())
		}

		doc.Actions = append(doc.Actions, act)
	}

	return doc, nil
}

func buildTrigger(ts triggerSpec) (Trigger, error) {
	if ts.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	if ts.File == "" {
		return nil, fmt.Errorf("file is required")
	}

	if len(ts.Values) == 0 {
		return nil, fmt.Errorf("value-map must not be empty")
	}

	switch ts.Type {
	case KindSimpleFile:
		return NewSimpleFileTrigger(ts.Name, ts.File, ts.Values), nil
	default:
		return nil, fmt.Errorf("unknown trigger type %q", ts.Type)
	}
}

func buildAction(as actionSpec) (Action, error) {
	if as.Trigger == "" {
		return nil, fmt.Errorf("trigger is required")
	}

	if as.File == "" {
		return nil, fmt.Errorf("file pattern is required")
	}

	if _, err := filepath.Match(as.File, ""); err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", as.File, err)
	}

	if len(as.Values) == 0 {
		return nil, fmt.Errorf("values must not be empty")
	}

	switch as.Type {
	case KindSimpleFile:
		return NewSimpleFileAction(as.Trigger, as.File, as.Values), nil
	default:
		return nil, fmt.Errorf("unknown action type %q", as.Type)
	}
}

// Dump renders the document in normalized YAML form, for startup
// diagnostics and the check command.
func (d *Document) Dump() (string, error) {
	out, err := yaml.Marshal(d.spec)
	if err != nil {
		return "", fmt.Errorf("rendering relay document: %w", err)
	}

	return string(out), nil
}
