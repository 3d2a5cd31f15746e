// Package models contains the database model definitions.
// Schemas and entries are persisted as whole JSON documents in a text
// column, with a relational id and name alongside for indexing and
// listing. There is no field-level persistence.
package models

import (
	"time"
)

// FormConfiguration is a persisted form template document.
// Table: form_configurations
type FormConfiguration struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;index"`
	Data      string    `gorm:"column:data"` // JSON FormSchema document
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (FormConfiguration) TableName() string { return "form_configurations" }

// FormEntryRecord is a persisted entry document.
// Table: form_entries
type FormEntryRecord struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;index"` // configuration name at save time
	Data      string    `gorm:"column:data"`       // JSON FormEntry document
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (FormEntryRecord) TableName() string { return "form_entries" }

// Setting represents a system setting.
// Table: settings
type Setting struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Key       string    `gorm:"column:key;uniqueIndex"`
	Value     string    `gorm:"column:value"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Setting) TableName() string { return "settings" }
