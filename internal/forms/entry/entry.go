// Package entry pairs a form schema with the values a user has entered
// against it, including the stateful timer fields. An entry is created
// fresh from a sanitized schema or reopened from storage, mutated
// through the data-entry session, and persisted whole.
package entry

import (
	"time"

	"github.com/fieldforms/fieldforms-go/internal/forms/schema"
)

// FieldEntryValue holds one field's entered value. Timer fields carry
// their state machine in Meta.
type FieldEntryValue struct {
	Value any        `json:"value"`
	Meta  *TimerMeta `json:"meta,omitempty"`
}

// FormEntry is one submission in progress: a schema plus the value map
// keyed by field entry key. ID is zero until first persisted.
type FormEntry struct {
	ID        uint                        `json:"id,omitempty"`
	Config    *schema.FormSchema          `json:"config"`
	Values    map[string]*FieldEntryValue `json:"values"`
	CreatedAt time.Time                   `json:"createdAt"`
	UpdatedAt time.Time                   `json:"updatedAt"`
}

// New instantiates an entry from a sanitized schema. Every field gets
// a value initialized to its default; global timer fields configured
// to start on form creation begin RUNNING immediately.
func New(form *schema.FormSchema) *FormEntry {
	now := time.Now().UTC()
	e := &FormEntry{
		Config:    form,
		Values:    make(map[string]*FieldEntryValue),
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, screen := range form.Screens {
		for _, row := range screen.Rows {
			for _, field := range row.Fields {
				e.Values[field.EntryKey] = newValue(field.Type, field.DefaultValue)
			}
		}
	}
	for _, gf := range form.GlobalFields {
		v := newValue(gf.Type, gf.DefaultValue)
		if gf.Type.IsTimer() && gf.StartTrigger == schema.StartTriggerOnFormCreated {
			v.Meta.State = TimerRunning
			v.Meta.History = append(v.Meta.History, TimerEvent{State: TimerRunning, Timestamp: now})
		}
		e.Values[gf.EntryKey] = v
	}
	return e
}

func newValue(t schema.FieldType, defaultValue any) *FieldEntryValue {
	v := &FieldEntryValue{Value: defaultValue}
	if t.IsTimer() {
		if v.Value == nil {
			v.Value = 0
		}
		v.Meta = &TimerMeta{State: TimerStopped}
	}
	return v
}

// Reopen normalizes an entry loaded from storage: every timer is
// forced to STOPPED regardless of its persisted state, since a running
// timer cannot survive a session restart. Last values and history are
// preserved verbatim.
func Reopen(e *FormEntry) {
	for _, v := range e.Values {
		if v != nil && v.Meta != nil {
			v.Meta.State = TimerStopped
		}
	}
}

// Copy clones the entry for a new submission. Fields that persist
// across copies keep their value; all others reset to their default.
// The copy is unsaved (zero id) with fresh timestamps, and any copied
// timers are stopped.
func (e *FormEntry) Copy() *FormEntry {
	now := time.Now().UTC()
	dup := &FormEntry{
		Config:    e.Config,
		Values:    make(map[string]*FieldEntryValue, len(e.Values)),
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, screen := range e.Config.Screens {
		for _, row := range screen.Rows {
			for _, field := range row.Fields {
				dup.Values[field.EntryKey] = e.copyValue(field.EntryKey, field.Type, field.DefaultValue, field.CopiesValue())
			}
		}
	}
	for _, gf := range e.Config.GlobalFields {
		dup.Values[gf.EntryKey] = e.copyValue(gf.EntryKey, gf.Type, gf.DefaultValue, true)
	}

	Reopen(dup)
	return dup
}

func (e *FormEntry) copyValue(entryKey string, t schema.FieldType, defaultValue any, persists bool) *FieldEntryValue {
	src := e.Values[entryKey]
	if !persists || src == nil {
		return newValue(t, defaultValue)
	}
	dup := &FieldEntryValue{Value: src.Value}
	if src.Meta != nil {
		meta := &TimerMeta{
			State:     src.Meta.State,
			LastValue: src.Meta.LastValue,
			History:   append([]TimerEvent(nil), src.Meta.History...),
		}
		dup.Meta = meta
	}
	return dup
}

// ValueFor returns the value for an entry key, or nil when none exists.
func (e *FormEntry) ValueFor(entryKey string) *FieldEntryValue {
	return e.Values[entryKey]
}

// SetValue records a user-entered value and bumps the updated
// timestamp. Existing timer metadata is kept.
func (e *FormEntry) SetValue(entryKey string, value any) {
	v := e.Values[entryKey]
	if v == nil {
		v = &FieldEntryValue{}
		e.Values[entryKey] = v
	}
	v.Value = value
	e.UpdatedAt = time.Now().UTC()
}

// EnsureValue initializes a value for a newly appended field without
// overwriting anything already present. Used when trigger duplication
// adds rows mid-session.
func (e *FormEntry) EnsureValue(entryKey string, t schema.FieldType, defaultValue any) {
	if _, ok := e.Values[entryKey]; ok {
		return
	}
	e.Values[entryKey] = newValue(t, defaultValue)
}

// IsFilled reports whether the value is defined and non-empty.
// Numbers and booleans count as filled once set; strings must be
// non-empty.
func (v *FieldEntryValue) IsFilled() bool {
	if v == nil || v.Value == nil {
		return false
	}
	if s, ok := v.Value.(string); ok {
		return s != ""
	}
	return true
}
