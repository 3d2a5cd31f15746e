package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fieldforms/fieldforms-go/internal/database/models"
	"github.com/fieldforms/fieldforms-go/internal/forms/entry"
	"github.com/fieldforms/fieldforms-go/internal/forms/schema"
	"gorm.io/gorm"
)

// EntrySummary is the listing shape for saved entries.
type EntrySummary struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EntryRepository persists form entries as whole JSON documents.
type EntryRepository struct {
	db *gorm.DB
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(db *gorm.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// Save inserts the entry when it has no id yet and updates it
// otherwise. The assigned id is written back onto the in-memory entry,
// which the caller keeps editing; a failed save leaves it untouched.
func (r *EntryRepository) Save(ctx context.Context, e *entry.FormEntry) (uint, error) {
	if e == nil {
		return 0, schema.NewValidationError("cannot save a nil entry")
	}

	record := models.FormEntryRecord{
		ID:        e.ID,
		Name:      e.Config.Name,
		CreatedAt: e.CreatedAt,
	}
	data, err := json.Marshal(e)
	if err != nil {
		return 0, &PersistenceError{Op: "serializing entry", Err: err}
	}
	record.Data = string(data)

	if err := r.db.WithContext(ctx).Save(&record).Error; err != nil {
		return 0, &PersistenceError{Op: "saving entry", Err: err}
	}

	if e.ID == 0 {
		e.ID = record.ID
		data, err = json.Marshal(e)
		if err != nil {
			return 0, &PersistenceError{Op: "serializing entry", Err: err}
		}
		record.Data = string(data)
		if err := r.db.WithContext(ctx).Save(&record).Error; err != nil {
			return 0, &PersistenceError{Op: "saving entry", Err: err}
		}
	}
	return record.ID, nil
}

// FindByID loads an entry document by id and normalizes it for a new
// session: persisted RUNNING timers come back STOPPED with their last
// value and history intact. Unknown ids come back as *NotFoundError.
func (r *EntryRepository) FindByID(ctx context.Context, id uint) (*entry.FormEntry, error) {
	var record models.FormEntryRecord
	result := r.db.WithContext(ctx).First(&record, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "entry", ID: id}
		}
		return nil, &PersistenceError{Op: "loading entry", Err: result.Error}
	}

	var e entry.FormEntry
	if err := json.Unmarshal([]byte(record.Data), &e); err != nil {
		return nil, &PersistenceError{Op: "deserializing entry", Err: err}
	}
	e.ID = record.ID
	entry.Reopen(&e)
	return &e, nil
}

// FindAll returns summaries of all saved entries, newest first.
func (r *EntryRepository) FindAll(ctx context.Context) ([]EntrySummary, error) {
	var records []models.FormEntryRecord
	result := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Find(&records)
	if result.Error != nil {
		return nil, &PersistenceError{Op: "listing entries", Err: result.Error}
	}

	summaries := make([]EntrySummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, EntrySummary{
			ID:        record.ID,
			Name:      record.Name,
			UpdatedAt: record.UpdatedAt,
		})
	}
	return summaries, nil
}

// DeleteByID removes a saved entry.
func (r *EntryRepository) DeleteByID(ctx context.Context, id uint) error {
	if id == 0 {
		return schema.NewValidationError("cannot delete an entry without an id")
	}
	if err := r.db.WithContext(ctx).Delete(&models.FormEntryRecord{}, "id = ?", id).Error; err != nil {
		return &PersistenceError{Op: "deleting entry", Err: err}
	}
	return nil
}
