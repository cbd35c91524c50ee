package project

import (
	"time"

	"github.com/google/uuid"
)

// Project owns prompt families. Deleting a project removes every family in it.
type Project struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Key         string    `gorm:"column:key;type:varchar(50);not null;uniqueIndex" json:"key"`
	Name        string    `gorm:"column:name;type:varchar(100);not null" json:"name"`
	Description string    `gorm:"column:description;type:varchar(500)" json:"description"`
	OwnerID     uuid.UUID `gorm:"type:uuid;column:owner_id;not null;index" json:"owner_id"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Project) TableName() string { return "project" }
