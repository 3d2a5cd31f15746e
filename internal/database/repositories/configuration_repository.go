// Package repositories provides data access layer implementations.
package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fieldforms/fieldforms-go/internal/database/models"
	"github.com/fieldforms/fieldforms-go/internal/forms/schema"
	"gorm.io/gorm"
)

// ConfigurationSummary is the listing shape for saved templates.
type ConfigurationSummary struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ConfigurationRepository persists form schemas as whole JSON
// documents.
type ConfigurationRepository struct {
	db *gorm.DB
}

// NewConfigurationRepository creates a new ConfigurationRepository.
func NewConfigurationRepository(db *gorm.DB) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

// Save inserts the schema when it has no id yet and updates it
// otherwise, writing the assigned id back onto the document. Updates
// are idempotent on retry.
func (r *ConfigurationRepository) Save(ctx context.Context, form *schema.FormSchema) error {
	if form == nil {
		return schema.NewValidationError("cannot save a nil schema")
	}

	record := models.FormConfiguration{
		ID:   form.ID,
		Name: form.Name,
	}
	data, err := json.Marshal(form)
	if err != nil {
		return &PersistenceError{Op: "serializing configuration", Err: err}
	}
	record.Data = string(data)

	if err := r.db.WithContext(ctx).Save(&record).Error; err != nil {
		return &PersistenceError{Op: "saving configuration", Err: err}
	}

	if form.ID == 0 {
		// Re-serialize so the stored document carries its own id.
		form.ID = record.ID
		data, err = json.Marshal(form)
		if err != nil {
			return &PersistenceError{Op: "serializing configuration", Err: err}
		}
		record.Data = string(data)
		if err := r.db.WithContext(ctx).Save(&record).Error; err != nil {
			return &PersistenceError{Op: "saving configuration", Err: err}
		}
	}
	return nil
}

// FindByID loads a schema document by id. Unknown ids come back as
// *NotFoundError.
func (r *ConfigurationRepository) FindByID(ctx context.Context, id uint) (*schema.FormSchema, error) {
	var record models.FormConfiguration
	result := r.db.WithContext(ctx).First(&record, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "configuration", ID: id}
		}
		return nil, &PersistenceError{Op: "loading configuration", Err: result.Error}
	}

	var form schema.FormSchema
	if err := json.Unmarshal([]byte(record.Data), &form); err != nil {
		return nil, &PersistenceError{Op: "deserializing configuration", Err: err}
	}
	form.ID = record.ID
	return &form, nil
}

// FindAll returns summaries of all saved configurations, newest first.
func (r *ConfigurationRepository) FindAll(ctx context.Context) ([]ConfigurationSummary, error) {
	var records []models.FormConfiguration
	result := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Find(&records)
	if result.Error != nil {
		return nil, &PersistenceError{Op: "listing configurations", Err: result.Error}
	}

	summaries := make([]ConfigurationSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, ConfigurationSummary{
			ID:        record.ID,
			Name:      record.Name,
			UpdatedAt: record.UpdatedAt,
		})
	}
	return summaries, nil
}

// Delete removes a saved configuration. A schema that was never saved
// has nothing to delete.
func (r *ConfigurationRepository) Delete(ctx context.Context, form *schema.FormSchema) error {
	if form == nil || form.ID == 0 {
		return schema.NewValidationError("cannot delete a configuration without an id")
	}
	if err := r.db.WithContext(ctx).Delete(&models.FormConfiguration{}, "id = ?", form.ID).Error; err != nil {
		return &PersistenceError{Op: "deleting configuration", Err: err}
	}
	return nil
}
