package models

import (
	"time"

	"github.com/google/uuid"
)

// Station is a broadcast brand as stored in the catalog.
type Station struct {
	ID        uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	Slug      string    `json:"slug" gorm:"type:text;not null;uniqueIndex;column:slug"`
	Name      string    `json:"name" gorm:"type:text;not null;column:name"`
	ManagedBy ManagedBy `json:"managed_by" gorm:"type:text;not null;default:ITSELF;column:managed_by"`
	Bitrate   int       `json:"bitrate" gorm:"type:integer;not null;default:128000;column:bitrate"`
	CreatedAt time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// NewStation creates a Station with a generated ID.
func NewStation(slug, name string, managedBy ManagedBy, bitrate int) *Station {
	now := time.Now().UTC()
	return &Station{
		ID:        uuid.New(),
		Slug:      slug,
		Name:      name,
		ManagedBy: managedBy,
		Bitrate:   bitrate,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
