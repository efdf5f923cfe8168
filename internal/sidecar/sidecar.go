// Package sidecar is the comment-embedded metadata channel between the
// project model and the code-generation driver.
//
// Task scheduling, instance-to-task binding and remote-I/O mapping are
// resource-level concepts with no representation in plain Structured Text,
// so the project model emits them as specially prefixed comment lines, each
// followed by one JSON object. The driver scans the generated source
// line-by-line for the prefixes and reconstructs the metadata. Keeping the
// channel inside the source text keeps each compilation unit self-describing
// without a second parallel file.
package sidecar

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	TaskPrefix     = "//Task="
	InstancePrefix = "//Instance="
	MapPrefix      = "//Map="
	GlobalPrefix   = "//Global="
)

// Task is one cyclic task definition.
type Task struct {
	Name     string
	Interval int
	Priority int
}

// Instance binds one program instance to its task.
type Instance struct {
	TypeName           string
	Name               string
	AssociatedTaskName string
}

// Map is one remote-I/O mapping row. Field names follow the generated
// runtime's IOMap JSON constructor; RemoteSize and PollTime travel as
// strings there, so they stay strings here.
type Map struct {
	ModuleID             string          `json:"ModuleID"`
	ModulePort           string          `json:"ModulePort"`
	InternalAddress      string          `json:"InternalAddress"`
	RemoteAddress        string          `json:"RemoteAddress"`
	RemoteSize           string          `json:"RemoteSize"`
	PollTime             string          `json:"PollTime"`
	Protocol             string          `json:"Protocol"`
	AdditionalProperties json.RawMessage `json:"AdditionalProperties,omitempty"`
}

// Global binds a human name to an address for external-interface exposure.
// It rides as a trailing same-line comment on the declaration line.
type Global struct {
	Name    string
	Address string
}

// Meta is everything re-extracted from one source unit.
type Meta struct {
	Tasks     []Task
	Instances []Instance
	Maps      []Map
	Globals   []Global
}

// TaskFor returns the task an instance is bound to, or nil when the binding
// does not resolve (the instance then runs unscheduled).
func (m *Meta) TaskFor(inst Instance) *Task {
	for i := range m.Tasks {
		if m.Tasks[i].Name == inst.AssociatedTaskName {
			return &m.Tasks[i]
		}
	}
	return nil
}

// ── Emission ─────────────────────────────────────────────────────────────────

func marshal(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TaskComment(t Task) string         { return TaskPrefix + marshal(t) }
func InstanceComment(i Instance) string { return InstancePrefix + marshal(i) }
func MapComment(m Map) string           { return MapPrefix + marshal(m) }
func GlobalComment(g Global) string     { return GlobalPrefix + marshal(g) }

// ── Extraction ───────────────────────────────────────────────────────────────

// Scan walks src line-by-line and collects every metadata row. Prefixes may
// start a line or trail a declaration on the same line. A row whose JSON does
// not parse is reported, not skipped: the channel is an interface contract.
func Scan(src string) (*Meta, error) {
	meta := &Meta{}
	for n, line := range strings.Split(src, "\n") {
		switch {
		case strings.HasPrefix(strings.TrimSpace(line), TaskPrefix):
			var t Task
			if err := unmarshalRow(line, TaskPrefix, &t); err != nil {
				return nil, fmt.Errorf("line %d: %w", n+1, err)
			}
			meta.Tasks = append(meta.Tasks, t)

		case strings.HasPrefix(strings.TrimSpace(line), InstancePrefix):
			var i Instance
			if err := unmarshalRow(line, InstancePrefix, &i); err != nil {
				return nil, fmt.Errorf("line %d: %w", n+1, err)
			}
			meta.Instances = append(meta.Instances, i)

		case strings.HasPrefix(strings.TrimSpace(line), MapPrefix):
			var m Map
			if err := unmarshalRow(line, MapPrefix, &m); err != nil {
				return nil, fmt.Errorf("line %d: %w", n+1, err)
			}
			meta.Maps = append(meta.Maps, m)

		case strings.Contains(line, GlobalPrefix):
			var g Global
			if err := unmarshalRow(line, GlobalPrefix, &g); err != nil {
				return nil, fmt.Errorf("line %d: %w", n+1, err)
			}
			meta.Globals = append(meta.Globals, g)
		}
	}
	return meta, nil
}

func unmarshalRow(line, prefix string, v any) error {
	idx := strings.Index(line, prefix)
	payload := strings.TrimSpace(line[idx+len(prefix):])
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("bad %s row: %w", strings.TrimSuffix(prefix[2:], "="), err)
	}
	return nil
}
