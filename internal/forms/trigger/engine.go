// Package trigger decides, on a field value change, whether any
// configured trigger has all of its watched rows filled in, and if so
// appends a fresh duplicate of the triggering row group to the screen.
package trigger

import (
	"github.com/fieldforms/fieldforms-go/internal/forms/entry"
	"github.com/fieldforms/fieldforms-go/internal/forms/schema"
)

// Duplication describes one executed trigger: the rows it appended and
// the generation they belong to.
type Duplication struct {
	TriggerKey string        `json:"triggerKey"`
	CopyIndex  int           `json:"copyIndex"`
	Rows       []*schema.Row `json:"rows"`
}

// Result aggregates the duplications performed for one field change.
// A nil Result means no trigger fired.
type Result struct {
	Duplications []Duplication `json:"duplications"`
}

// Engine evaluates field-change events against screen triggers.
// It is stateless; all state lives in the entry being edited.
type Engine struct{}

// NewEngine creates a trigger engine.
func NewEngine() *Engine {
	return &Engine{}
}

// OnFieldChange runs every trigger on the changed field's screen, in
// declared order. Triggers whose watched rows are fully filled append
// a cloned row group to the screen and initialize values for the new
// entry keys; existing values are never overwritten. Returns nil when
// nothing fired.
func (e *Engine) OnFieldChange(ent *entry.FormEntry, fieldKey string, screenIndex, rowIndex int) (*Result, error) {
	screen := ent.Config.ScreenAt(screenIndex)
	if screen == nil {
		return nil, schema.NewValidationError("screen index %d out of range", screenIndex)
	}

	changed := rowAt(screen, rowIndex, fieldKey)
	if changed == nil {
		changed = screen.RowContaining(fieldKey)
	}
	if changed == nil {
		return nil, schema.NewValidationError("screen %q has no field with entry key %q", screen.Key, fieldKey)
	}

	var result *Result
	for _, trig := range screen.Triggers {
		if trig == nil || !trig.WatchesField(fieldKey) {
			continue
		}
		dup := e.evaluate(ent, screen, changed, trig)
		if dup == nil {
			continue
		}
		if result == nil {
			result = &Result{}
		}
		result.Duplications = append(result.Duplications, *dup)
	}
	return result, nil
}

// evaluate checks one trigger's conditions against the changed row's
// generation and performs the duplication when satisfied.
func (e *Engine) evaluate(ent *entry.FormEntry, screen *schema.Screen, changed *schema.Row, trig *schema.Trigger) *Duplication {
	resolved := resolveGeneration(screen, trig, changed)
	// No resolved rows means nothing to check: vacuous truth is
	// rejected, not treated as satisfied.
	if len(resolved) == 0 {
		return nil
	}

	for _, row := range resolved {
		for _, field := range row.Fields {
			if len(trig.Fields) > 0 && !contains(trig.Fields, field.EntryKey) {
				continue
			}
			if !ent.ValueFor(field.EntryKey).IsFilled() {
				return nil
			}
		}
	}

	// If a newer copy already exists downstream, editing this older
	// generation must not re-trigger.
	lastRowCopy := lastCopyIndex(screen, changed.OriginID(), trig.Key)
	if changed.CopyIndex < lastRowCopy {
		return nil
	}

	nextIndex := lastRowCopy + 1
	clones := make([]*schema.Row, 0, len(resolved))
	for _, src := range resolved {
		clone := cloneRow(src, trig.Key, nextIndex)
		for _, field := range clone.Fields {
			ent.EnsureValue(field.EntryKey, field.Type, field.DefaultValue)
		}
		clones = append(clones, clone)
	}
	screen.Rows = append(screen.Rows, clones...)

	return &Duplication{
		TriggerKey: trig.Key,
		CopyIndex:  nextIndex,
		Rows:       clones,
	}
}

// resolveGeneration maps the trigger's design-time row keys to the
// current instances sharing the changed row's generation. Keys with no
// instance in that generation contribute nothing. Order follows the
// trigger's row-key list.
func resolveGeneration(screen *schema.Screen, trig *schema.Trigger, changed *schema.Row) []*schema.Row {
	var resolved []*schema.Row
	for _, key := range trig.Rows {
		for _, row := range screen.Rows {
			if row.OriginID() == key &&
				row.CopyIndex == changed.CopyIndex &&
				row.CopyTrigger == changed.CopyTrigger {
				resolved = append(resolved, row)
				break
			}
		}
	}
	return resolved
}

// lastCopyIndex returns the highest generation in a row lineage for
// the given trigger. Template rows (generation zero) always belong to
// the lineage; copies only count when this trigger produced them.
func lastCopyIndex(screen *schema.Screen, originID, triggerKey string) int {
	last := 0
	for _, row := range screen.Rows {
		if row.OriginID() != originID {
			continue
		}
		if row.IsCopy() && row.CopyTrigger != triggerKey {
			continue
		}
		if row.CopyIndex > last {
			last = row.CopyIndex
		}
	}
	return last
}

// cloneRow duplicates a row into the next generation. Every field gets
// a fresh id and entry key so the clone's values are independent of
// the source row's.
func cloneRow(src *schema.Row, triggerKey string, copyIndex int) *schema.Row {
	clone := &schema.Row{
		ID:          schema.NewID(),
		ParentID:    src.OriginID(),
		CopyIndex:   copyIndex,
		CopyTrigger: triggerKey,
		Fields:      make([]*schema.Field, 0, len(src.Fields)),
	}
	for _, field := range src.Fields {
		dup := *field
		dup.ID = schema.NewID()
		dup.EntryKey = schema.NewID()
		dup.Options = append([]*schema.FieldOption(nil), field.Options...)
		if field.Exportable != nil {
			v := *field.Exportable
			dup.Exportable = &v
		}
		if field.PersistsCopy != nil {
			v := *field.PersistsCopy
			dup.PersistsCopy = &v
		}
		clone.Fields = append(clone.Fields, &dup)
	}
	return clone
}

func rowAt(screen *schema.Screen, i int, entryKey string) *schema.Row {
	if i < 0 || i >= len(screen.Rows) {
		return nil
	}
	row := screen.Rows[i]
	for _, field := range row.Fields {
		if field.EntryKey == entryKey {
			return row
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
