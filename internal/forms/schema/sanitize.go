package schema

// Sanitize normalizes a loaded or legacy schema in place so that it
// satisfies the data-model invariants: null placeholders are dropped,
// missing identifiers are generated, and optional flags get their
// defaults. Existing identifiers are always preserved, so sanitizing
// twice yields an identical document.
func Sanitize(form *FormSchema) error {
	if form == nil {
		return NewValidationError("cannot sanitize a nil schema")
	}

	screens := form.Screens[:0]
	for _, screen := range form.Screens {
		if screen == nil {
			continue
		}
		sanitizeScreen(screen)
		screens = append(screens, screen)
	}
	if screens == nil {
		screens = []*Screen{}
	}
	form.Screens = screens

	form.GlobalFields = sanitizeGlobalFields(form.GlobalFields)
	form.Triggers = sanitizeTriggers(form.Triggers)
	return nil
}

func sanitizeScreen(screen *Screen) {
	if screen.Key == "" {
		screen.Key = NewID()
	}

	rows := screen.Rows[:0]
	for _, row := range screen.Rows {
		if row == nil {
			continue
		}
		sanitizeRow(row)
		rows = append(rows, row)
	}
	if rows == nil {
		rows = []*Row{}
	}
	screen.Rows = rows

	screen.Triggers = sanitizeTriggers(screen.Triggers)
}

func sanitizeRow(row *Row) {
	if row.ID == "" {
		row.ID = NewID()
	}

	fields := row.Fields[:0]
	for _, field := range row.Fields {
		if field == nil {
			continue
		}
		sanitizeField(field)
		fields = append(fields, field)
	}
	if fields == nil {
		fields = []*Field{}
	}
	row.Fields = fields
}

func sanitizeField(field *Field) {
	if field.ID == "" {
		field.ID = NewID()
	}
	if field.EntryKey == "" {
		field.EntryKey = NewID()
	}
	if field.Exportable == nil {
		field.Exportable = boolPtr(true)
	}
	if field.PersistsCopy == nil {
		field.PersistsCopy = boolPtr(true)
	}

	options := field.Options[:0]
	for _, opt := range field.Options {
		if opt == nil {
			continue
		}
		options = append(options, opt)
	}
	field.Options = options
}

func sanitizeGlobalFields(globals []*GlobalField) []*GlobalField {
	out := globals[:0]
	for _, gf := range globals {
		if gf == nil {
			continue
		}
		if gf.Key == "" {
			gf.Key = NewID()
		}
		if gf.EntryKey == "" {
			gf.EntryKey = NewID()
		}
		// Playback controls are UI-only and never exported.
		gf.Exportable = boolPtr(gf.Type != FieldTypePlaybackButton)
		out = append(out, gf)
	}
	if out == nil {
		out = []*GlobalField{}
	}
	return out
}

func sanitizeTriggers(triggers []*Trigger) []*Trigger {
	out := triggers[:0]
	for _, trigger := range triggers {
		if trigger == nil {
			continue
		}
		if trigger.Key == "" {
			trigger.Key = NewID()
		}
		if trigger.Fields == nil {
			trigger.Fields = []string{}
		}
		if trigger.Rows == nil {
			trigger.Rows = []string{}
		}
		out = append(out, trigger)
	}
	if out == nil {
		out = []*Trigger{}
	}
	return out
}

func boolPtr(b bool) *bool {
	return &b
}
