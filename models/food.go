package models

import "time"

// FoodReference is a per-100g nutrient profile keyed by canonical name.
// The catalog is seeded at startup and read-only afterwards.
type FoodReference struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"type:varchar(120);uniqueIndex;not null" json:"name"`
	Category  string `gorm:"type:varchar(60)" json:"category,omitempty"`
	Nutrients `gorm:"embedded" json:"per_100g"`
	CreatedAt time.Time `json:"-"`
}
