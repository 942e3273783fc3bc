package models

import (
	"time"

	"gorm.io/datatypes"
)

// One committed meal (breakfast/lunch/…). Rows are never updated; deleting
// one removes its items and activity entries through FK cascade.
type Meal struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	Type      MealType   `gorm:"type:varchar(16);not null" json:"type"`
	AteAt     time.Time  `gorm:"index;not null" json:"ate_at"`
	Day       string     `gorm:"type:varchar(10);index;not null" json:"day"`
	Note      string     `gorm:"type:text" json:"note,omitempty"`
	Items     []MealItem `gorm:"foreignKey:MealID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// MealItem is the nutrition snapshot of one recognized dish.
type MealItem struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	MealID          uint    `gorm:"index;not null" json:"meal_id"`
	FoodReferenceID uint    `gorm:"index;not null" json:"food_reference_id"`
	FoodLabel       string  `gorm:"type:varchar(120);not null" json:"food_label"`
	WeightGrams     float64 `gorm:"not null" json:"weight_grams"`
	Confidence      float64 `json:"confidence"`
	Nutrients       `gorm:"embedded" json:"nutrients"`

	Candidates datatypes.JSON `json:"candidates,omitempty"` // classifier top-3 at recognition time
	PhotoURL   string         `gorm:"type:varchar(512)" json:"photo_url,omitempty"`
	Safe       bool           `json:"safe"`
	Warnings   string         `gorm:"type:text" json:"warnings,omitempty"` // "; "-separated
	CreatedAt  time.Time      `json:"created_at"`
}
