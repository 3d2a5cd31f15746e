package schema

import (
	"encoding/json"
	"testing"
)

func TestSanitizeNilSchema(t *testing.T) {
	err := Sanitize(nil)
	if err == nil {
		t.Fatal("Expected error for nil schema")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("Expected *ValidationError, got %T", err)
	}
}

func TestSanitizeDropsNullPlaceholders(t *testing.T) {
	form := &FormSchema{
		Screens: []*Screen{
			nil,
			{
				Rows: []*Row{
					nil,
					{Fields: []*Field{nil, {Label: "Name"}}},
				},
				Triggers: []*Trigger{nil},
			},
		},
	}

	if err := Sanitize(form); err != nil {
		t.Fatalf("Sanitize failed: %v", err)
	}

	if len(form.Screens) != 1 {
		t.Fatalf("Expected 1 screen, got %d", len(form.Screens))
	}
	screen := form.Screens[0]
	if len(screen.Rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(screen.Rows))
	}
	if len(screen.Rows[0].Fields) != 1 {
		t.Errorf("Expected 1 field, got %d", len(screen.Rows[0].Fields))
	}
	if len(screen.Triggers) != 0 {
		t.Errorf("Expected 0 triggers, got %d", len(screen.Triggers))
	}
}

func TestSanitizeNullFieldsBecomesEmpty(t *testing.T) {
	form := &FormSchema{
		Screens: []*Screen{{Rows: []*Row{{ID: "r1", Fields: nil}}}},
	}
	if err := Sanitize(form); err != nil {
		t.Fatalf("Sanitize failed: %v", err)
	}
	fields := form.Screens[0].Rows[0].Fields
	if fields == nil {
		t.Fatal("Expected fields to be an empty slice, got nil")
	}
	if len(fields) != 0 {
		t.Errorf("Expected 0 fields, got %d", len(fields))
	}
}

func TestSanitizeAssignsIdentifiers(t *testing.T) {
	form := &FormSchema{
		Screens: []*Screen{
			{Rows: []*Row{{Fields: []*Field{{Label: "A"}, {Label: "B"}}}}},
			{Rows: []*Row{{Fields: []*Field{{Label: "C"}}}}},
		},
	}
	if err := Sanitize(form); err != nil {
		t.Fatalf("Sanitize failed: %v", err)
	}

	seen := make(map[string]bool)
	check := func(id string) {
		t.Helper()
		if id == "" {
			t.Error("Expected a generated identifier, got empty string")
		}
		if seen[id] {
			t.Errorf("Identifier %q assigned twice", id)
		}
		seen[id] = true
	}
	for _, screen := range form.Screens {
		check(screen.Key)
		for _, row := range screen.Rows {
			check(row.ID)
			for _, field := range row.Fields {
				check(field.ID)
				check(field.EntryKey)
			}
		}
	}
}

func TestSanitizePreservesExistingIdentifiers(t *testing.T) {
	form := &FormSchema{
		Screens: []*Screen{{
			Key: "screen-1",
			Rows: []*Row{{
				ID:     "row-1",
				Fields: []*Field{{ID: "field-1", EntryKey: "key-1"}},
			}},
		}},
	}
	if err := Sanitize(form); err != nil {
		t.Fatalf("Sanitize failed: %v", err)
	}
	if form.Screens[0].Key != "screen-1" {
		t.Errorf("Screen key changed: %q", form.Screens[0].Key)
	}
	if form.Screens[0].Rows[0].ID != "row-1" {
		t.Errorf("Row id changed: %q", form.Screens[0].Rows[0].ID)
	}
	if form.Screens[0].Rows[0].Fields[0].EntryKey != "key-1" {
		t.Errorf("Entry key changed: %q", form.Screens[0].Rows[0].Fields[0].EntryKey)
	}
}

// Sanitizing twice must be a fixpoint: the second pass has nothing
// left to fill in.
func TestSanitizeIdempotent(t *testing.T) {
	form := &FormSchema{
		Name: "Survey",
		Screens: []*Screen{{
			Rows: []*Row{{Fields: []*Field{{Label: "Q1"}, nil}}},
		}},
		GlobalFields: []*GlobalField{{Label: "Session", Type: FieldTypeTimer}},
	}
	if err := Sanitize(form); err != nil {
		t.Fatalf("First sanitize failed: %v", err)
	}
	first, err := json.Marshal(form)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if err := Sanitize(form); err != nil {
		t.Fatalf("Second sanitize failed: %v", err)
	}
	second, err := json.Marshal(form)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("Sanitize not idempotent:\nfirst:  %s\nsecond: %s", first, second)
	}
}

func TestSanitizeFieldDefaults(t *testing.T) {
	form := &FormSchema{
		Screens: []*Screen{{Rows: []*Row{{Fields: []*Field{{Label: "Q1"}}}}}},
	}
	if err := Sanitize(form); err != nil {
		t.Fatalf("Sanitize failed: %v", err)
	}
	field := form.Screens[0].Rows[0].Fields[0]
	if field.Exportable == nil || !*field.Exportable {
		t.Error("Expected exportable to default to true")
	}
	if field.PersistsCopy == nil || !*field.PersistsCopy {
		t.Error("Expected persistsCopy to default to true")
	}
}

func TestSanitizeGlobalFieldExportability(t *testing.T) {
	exportable := true
	form := &FormSchema{
		GlobalFields: []*GlobalField{
			{Label: "Timer", Type: FieldTypeTimer},
			{Label: "Play", Type: FieldTypePlaybackButton, Exportable: &exportable},
		},
	}
	if err := Sanitize(form); err != nil {
		t.Fatalf("Sanitize failed: %v", err)
	}
	if !form.GlobalFields[0].IsExportable() {
		t.Error("Timer global field should be exportable")
	}
	// Forced off even when the stored document claims otherwise.
	if form.GlobalFields[1].IsExportable() {
		t.Error("Playback button global field must never be exportable")
	}
}

func TestSanitizeDefaultsCollections(t *testing.T) {
	form := &FormSchema{}
	if err := Sanitize(form); err != nil {
		t.Fatalf("Sanitize failed: %v", err)
	}
	if form.Screens == nil || form.GlobalFields == nil || form.Triggers == nil {
		t.Error("Expected all top-level collections to be non-nil")
	}
}
