// Package gorm provides GORM model definitions and repositories for persisted cards and tiers
package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
)

// CookCardModel represents the GORM model for assembled cards
type CookCardModel struct {
	ID          uuid.UUID `gorm:"type:char(36);primaryKey"`
	Title       string    `gorm:"type:varchar(512);not null"`
	Creator     string    `gorm:"type:varchar(255)"`
	SourceURL   string    `gorm:"type:varchar(2048);not null;index"`
	Platform    string    `gorm:"type:varchar(20);not null;index"`
	RequesterID string    `gorm:"type:varchar(128);not null;index"`
	GroupID     string    `gorm:"type:varchar(128);index:idx_cookcards_group_created,priority:1"`

	Ingredients  IngredientList `gorm:"type:json"`
	Instructions StringSlice    `gorm:"type:json"`

	// Extraction summary
	Method          string      `gorm:"type:varchar(32);not null;index"`
	Sources         StringSlice `gorm:"type:json"`
	EvidenceSource  string      `gorm:"type:varchar(32)"`
	Confidence      float64     `gorm:"default:0"`
	CostCents       int64       `gorm:"default:0"`
	RejectedCount   int         `gorm:"default:0"`
	PipelineVersion string      `gorm:"type:varchar(32);not null"`

	CreatedAt time.Time `gorm:"index:idx_cookcards_group_created,priority:2"`
}

// RequesterTierModel maps a requester to a subscription tier
type RequesterTierModel struct {
	RequesterID string `gorm:"type:varchar(128);primaryKey"`
	Tier        string `gorm:"type:varchar(20);not null;default:'free'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StringSlice custom type for handling string slices in JSON
type StringSlice []string

// Scan implements the sql.Scanner interface
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into StringSlice", value)
	}
}

// Value implements the driver.Valuer interface
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// IngredientList stores validated ingredients as a JSON array
type IngredientList []cookcard.Ingredient

// Scan implements the sql.Scanner interface
func (l *IngredientList) Scan(value interface{}) error {
	if value == nil {
		*l = IngredientList{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into IngredientList", value)
	}
}

// Value implements the driver.Valuer interface
func (l IngredientList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// BeforeCreate hook for CookCardModel
func (m *CookCardModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// TableName methods for custom table names
func (CookCardModel) TableName() string {
	return "cookcards"
}

func (RequesterTierModel) TableName() string {
	return "requester_tiers"
}

// AllModels lists every model for AutoMigrate
func AllModels() []interface{} {
	return []interface{}{&CookCardModel{}, &RequesterTierModel{}}
}
