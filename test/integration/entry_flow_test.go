// Package integration contains integration tests for the FieldForms system.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fieldforms/fieldforms-go/internal/database/models"
	"github.com/fieldforms/fieldforms-go/internal/database/repositories"
	"github.com/fieldforms/fieldforms-go/internal/forms/entry"
	"github.com/fieldforms/fieldforms-go/internal/forms/export"
	"github.com/fieldforms/fieldforms-go/internal/forms/schema"
	"github.com/fieldforms/fieldforms-go/internal/forms/trigger"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	err = db.AutoMigrate(
		&models.FormConfiguration{},
		&models.FormEntryRecord{},
		&models.Setting{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	cleanup := func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	}

	return db, cleanup
}

// surveyTemplate is a realistic field survey: a duplicating observation
// row, a session timer that starts with the form, and a manual break
// timer.
func surveyTemplate(t *testing.T) *schema.FormSchema {
	t.Helper()
	form := &schema.FormSchema{
		Name: "Wader Roost Count",
		Screens: []*schema.Screen{{
			Key:   "obs",
			Title: "Observations",
			Rows: []*schema.Row{{
				ID: "obs-row",
				Fields: []*schema.Field{
					{EntryKey: "species-0", Label: "Species", Type: schema.FieldTypeText},
					{EntryKey: "count-0", Label: "Count", Type: schema.FieldTypeWholeNumber},
				},
			}},
			Triggers: []*schema.Trigger{{Key: "obs-trigger", Rows: []string{"obs-row"}}},
		}},
		GlobalFields: []*schema.GlobalField{
			{EntryKey: "session", Label: "Session", Type: schema.FieldTypeTimer, StartTrigger: schema.StartTriggerOnFormCreated},
			{EntryKey: "observer", Label: "Observer", Type: schema.FieldTypeText},
		},
	}
	if err := schema.Sanitize(form); err != nil {
		t.Fatalf("Sanitize failed: %v", err)
	}
	return form
}

// TestEntryFlow_TemplateToCSV drives the whole pipeline: save a
// template, open an entry, record observations through the trigger
// engine, run the session timer, persist, reload, and export.
func TestEntryFlow_TemplateToCSV(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	configRepo := repositories.NewConfigurationRepository(db)
	entryRepo := repositories.NewEntryRepository(db)

	// Save and reload the template, as the editor and the data
	// collector are separate moments in time.
	template := surveyTemplate(t)
	if err := configRepo.Save(ctx, template); err != nil {
		t.Fatalf("Failed to save template: %v", err)
	}
	loaded, err := configRepo.FindByID(ctx, template.ID)
	if err != nil {
		t.Fatalf("Failed to reload template: %v", err)
	}
	if err := schema.Sanitize(loaded); err != nil {
		t.Fatalf("Sanitize after reload failed: %v", err)
	}

	// Open a new entry; the session timer starts on its own.
	e := entry.New(loaded)
	session := e.ValueFor("session")
	if session.Meta.State != entry.TimerRunning {
		t.Fatalf("Session timer should start RUNNING, got %s", session.Meta.State)
	}

	e.SetValue("observer", "R. Halloway")

	// Record two observations; each completed row spawns the next.
	engine := trigger.NewEngine()
	screen := loaded.Screens[0]
	observations := []struct {
		species string
		count   int
	}{
		{"oystercatcher", 40},
		{"bar-tailed godwit", 12},
	}
	for i, obs := range observations {
		row := screen.Rows[len(screen.Rows)-1]
		e.SetValue(row.Fields[0].EntryKey, obs.species)
		e.SetValue(row.Fields[1].EntryKey, obs.count)
		result, err := engine.OnFieldChange(e, row.Fields[1].EntryKey, 0, len(screen.Rows)-1)
		if err != nil {
			t.Fatalf("OnFieldChange failed: %v", err)
		}
		if result == nil || len(result.Duplications) != 1 {
			t.Fatalf("Observation %d should have spawned a new row, got %+v", i, result)
		}
	}
	if len(screen.Rows) != 3 {
		t.Fatalf("Expected 3 rows (2 filled + 1 blank), got %d", len(screen.Rows))
	}

	// Time passes; the observer stops the session timer.
	for i := 0; i < 95; i++ {
		if _, err := e.TickTimer("session"); err != nil {
			t.Fatalf("TickTimer failed: %v", err)
		}
	}
	if _, err := e.ToggleTimer("session"); err != nil {
		t.Fatalf("ToggleTimer failed: %v", err)
	}

	// Persist and reload; the duplicated rows and timer value survive,
	// and the reloaded timer never comes back running.
	id, err := entryRepo.Save(ctx, e)
	if err != nil {
		t.Fatalf("Failed to save entry: %v", err)
	}
	reloaded, err := entryRepo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("Failed to reload entry: %v", err)
	}
	if got := len(reloaded.Config.Screens[0].Rows); got != 3 {
		t.Errorf("Expected 3 rows after reload, got %d", got)
	}
	rsession := reloaded.ValueFor("session")
	if rsession.Meta.State != entry.TimerStopped {
		t.Errorf("Reloaded timer should be STOPPED, got %s", rsession.Meta.State)
	}
	if entry.TimerSeconds(rsession.Value) != 95 {
		t.Errorf("Expected timer value 95, got %v", rsession.Value)
	}

	// Export to CSV.
	settingRepo := repositories.NewSettingRepository(db)
	exportDir := t.TempDir()
	writer := export.NewWriter(repositories.NewExportDirectoryStore(settingRepo), exportDir)

	path, err := writer.Write(ctx, reloaded)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if filepath.Dir(path) != exportDir {
		t.Errorf("Expected export in %s, got %s", exportDir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected header + 3 data lines, got %d:\n%s", len(lines), data)
	}
	if lines[0] != "Species,Count,Session,Observer" {
		t.Errorf("Unexpected header: %q", lines[0])
	}
	if lines[1] != "oystercatcher,40,00:01:35,R. Halloway" {
		t.Errorf("Unexpected first data line: %q", lines[1])
	}
	if lines[2] != "bar-tailed godwit,12,00:01:35,R. Halloway" {
		t.Errorf("Unexpected second data line: %q", lines[2])
	}
	// The trailing blank row exports empty cells; broadcast columns
	// still fill in.
	if lines[3] != ",,00:01:35,R. Halloway" {
		t.Errorf("Unexpected third data line: %q", lines[3])
	}

	// The granted directory is remembered for the next export.
	cached, err := repositories.NewExportDirectoryStore(settingRepo).Directory(ctx)
	if err != nil {
		t.Fatalf("Directory lookup failed: %v", err)
	}
	if cached != exportDir {
		t.Errorf("Expected cached export dir %s, got %s", exportDir, cached)
	}
}

// TestEntryFlow_CopyForNextSurvey verifies the copy path a surveyor
// uses to start the next count from the previous one.
func TestEntryFlow_CopyForNextSurvey(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	entryRepo := repositories.NewEntryRepository(db)

	template := surveyTemplate(t)
	e := entry.New(template)
	e.SetValue("observer", "R. Halloway")
	e.SetValue("species-0", "oystercatcher")
	if _, err := entryRepo.Save(ctx, e); err != nil {
		t.Fatalf("Failed to save entry: %v", err)
	}

	source, err := entryRepo.FindByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("Failed to reload entry: %v", err)
	}
	dup := source.Copy()
	if _, err := entryRepo.Save(ctx, dup); err != nil {
		t.Fatalf("Failed to save copy: %v", err)
	}
	if dup.ID == source.ID {
		t.Fatal("Copy must get its own id")
	}

	// Persisting fields carry over; the copied timer is stopped.
	if v := dup.ValueFor("observer"); v == nil || v.Value != "R. Halloway" {
		t.Errorf("Observer should persist across copies, got %+v", v)
	}
	if v := dup.ValueFor("session"); v.Meta.State != entry.TimerStopped {
		t.Errorf("Copied timer should be STOPPED, got %s", v.Meta.State)
	}
}
