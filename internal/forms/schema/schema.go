// Package schema defines the design-time structure of a form: screens,
// rows, fields, global fields and triggers. A schema is authored in the
// template editor, sanitized on load, and persisted whole as a JSON
// document.
package schema

// FieldType identifies how a field collects and formats its value.
type FieldType string

const (
	FieldTypeText           FieldType = "TEXT"
	FieldTypeNumeric        FieldType = "NUMERIC"
	FieldTypeWholeNumber    FieldType = "WHOLE_NUMBER"
	FieldTypeSelect         FieldType = "SELECT"
	FieldTypeCheckbox       FieldType = "CHECKBOX"
	FieldTypeTimer          FieldType = "TIMER"
	FieldTypeBGTimer        FieldType = "BG_TIMER"
	FieldTypePlaybackButton FieldType = "PLAYBACK_BUTTON"
)

// IsTimer reports whether the field type carries timer state.
func (t FieldType) IsTimer() bool {
	return t == FieldTypeTimer || t == FieldTypeBGTimer
}

// GlobalFieldPosition places a global field in the UI chrome.
type GlobalFieldPosition string

const (
	GlobalPositionFloatingButtonBR GlobalFieldPosition = "FLOATING_BUTTON_BR"
	GlobalPositionHeader           GlobalFieldPosition = "HEADER"
)

// StartTrigger controls when a global field becomes active.
type StartTrigger string

const (
	StartTriggerManual        StartTrigger = "MANUAL"
	StartTriggerOnFormCreated StartTrigger = "ON_FORM_CREATED"
)

// FormSchema is the root document describing a form template.
// ID is the storage row id; zero until first persisted.
type FormSchema struct {
	ID           uint           `json:"id,omitempty"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Screens      []*Screen      `json:"screens"`
	GlobalFields []*GlobalField `json:"globalFields"`
	Triggers     []*Trigger     `json:"triggers"`
}

// Screen is one page of rows. Key is generated once and never changes.
// Position is carried through serialization but display order is the
// slice order, not Position.
type Screen struct {
	Key             string     `json:"key"`
	Title           string     `json:"title"`
	NextButtonLabel string     `json:"nextButtonLabel,omitempty"`
	Position        int        `json:"position"`
	Rows            []*Row     `json:"rows"`
	Triggers        []*Trigger `json:"triggers"`
}

// Row is a group of fields. A row produced by duplication carries the
// lineage of its origin: ParentID points at the design-time row,
// CopyIndex is the generation ordinal and CopyTrigger names the
// trigger that produced it. Template rows have an empty ParentID and
// CopyIndex zero.
type Row struct {
	ID          string   `json:"id"`
	ParentID    string   `json:"parentId,omitempty"`
	CopyIndex   int      `json:"copyIndex"`
	CopyTrigger string   `json:"copyTrigger,omitempty"`
	Fields      []*Field `json:"fields"`
}

// OriginID returns the id of the design-time row this row descends
// from: its own id for template rows, ParentID for copies.
func (r *Row) OriginID() string {
	if r.ParentID != "" {
		return r.ParentID
	}
	return r.ID
}

// IsCopy reports whether the row was produced by duplication.
func (r *Row) IsCopy() bool {
	return r.ParentID != ""
}

// Field configures one input. EntryKey is the join key into entry
// values and is unique per field instance; duplicated rows regenerate
// it so copies never share values with their source.
type Field struct {
	ID           string         `json:"id"`
	Name         string         `json:"name,omitempty"`
	EntryKey     string         `json:"entryKey"`
	Label        string         `json:"label"`
	Type         FieldType      `json:"type"`
	Options      []*FieldOption `json:"options,omitempty"`
	MultiSelect  bool           `json:"multiSelect,omitempty"`
	DefaultValue any            `json:"defaultValue,omitempty"`
	Exportable   *bool          `json:"exportable,omitempty"`
	PersistsCopy *bool          `json:"persistsCopy,omitempty"`
}

// IsExportable reports whether the field appears in CSV export.
// Unsanitized schemas may leave the flag nil; nil means exportable.
func (f *Field) IsExportable() bool {
	return f.Exportable == nil || *f.Exportable
}

// CopiesValue reports whether the field's value survives "copy entry".
func (f *Field) CopiesValue() bool {
	return f.PersistsCopy == nil || *f.PersistsCopy
}

// FieldOption is one selectable choice of a SELECT field.
type FieldOption struct {
	Label          string `json:"label"`
	Value          string `json:"value"`
	Position       int    `json:"position"`
	OnChangeAction string `json:"onChangeAction,omitempty"`
}

// GlobalField is a field not bound to a screen, rendered in the header
// or as a floating button (typically a form-wide timer).
type GlobalField struct {
	Key          string              `json:"key"`
	Name         string              `json:"name,omitempty"`
	EntryKey     string              `json:"entryKey"`
	Label        string              `json:"label"`
	Type         FieldType           `json:"type"`
	Position     GlobalFieldPosition `json:"position"`
	StartTrigger StartTrigger        `json:"startTrigger,omitempty"`
	Exportable   *bool               `json:"exportable,omitempty"`
	DefaultValue any                 `json:"defaultValue,omitempty"`
}

// IsExportable reports whether the global field appears in CSV export.
func (g *GlobalField) IsExportable() bool {
	return g.Exportable == nil || *g.Exportable
}

// Trigger duplicates a row group once every watched field in its
// target rows is filled. Fields lists the entry keys the trigger
// watches (empty watches all fields in its rows); Rows lists the
// design-time row ids to duplicate.
type Trigger struct {
	Key       string   `json:"key"`
	ScreenKey string   `json:"screenKey,omitempty"`
	Fields    []string `json:"fields"`
	Rows      []string `json:"rows"`
}

// WatchesField reports whether the trigger fires on changes to the
// given entry key.
func (t *Trigger) WatchesField(entryKey string) bool {
	if len(t.Fields) == 0 {
		return true
	}
	for _, f := range t.Fields {
		if f == entryKey {
			return true
		}
	}
	return false
}

// ScreenAt returns the screen at the given index, or nil when the
// index is out of range.
func (s *FormSchema) ScreenAt(i int) *Screen {
	if i < 0 || i >= len(s.Screens) {
		return nil
	}
	return s.Screens[i]
}

// FindField returns the field with the given entry key, searching
// screens first and then global fields. Global fields are returned as
// synthesized Field values sharing the same entry key and type.
func (s *FormSchema) FindField(entryKey string) *Field {
	for _, screen := range s.Screens {
		for _, row := range screen.Rows {
			for _, field := range row.Fields {
				if field.EntryKey == entryKey {
					return field
				}
			}
		}
	}
	for _, gf := range s.GlobalFields {
		if gf.EntryKey == entryKey {
			return &Field{
				ID:           gf.Key,
				Name:         gf.Name,
				EntryKey:     gf.EntryKey,
				Label:        gf.Label,
				Type:         gf.Type,
				Exportable:   gf.Exportable,
				DefaultValue: gf.DefaultValue,
			}
		}
	}
	return nil
}

// RowContaining returns the row holding the field with the given entry
// key, or nil when the screen has no such field.
func (sc *Screen) RowContaining(entryKey string) *Row {
	for _, row := range sc.Rows {
		for _, field := range row.Fields {
			if field.EntryKey == entryKey {
				return row
			}
		}
	}
	return nil
}

// FieldAt returns the field at the given slot position, or nil when
// the position is out of range.
func (r *Row) FieldAt(i int) *Field {
	if i < 0 || i >= len(r.Fields) {
		return nil
	}
	return r.Fields[i]
}
