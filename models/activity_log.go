package models

import "time"

// ActivityLogEntry is the flattened feed row written next to every MealItem.
// It duplicates the item on purpose so the feed reads without joins.
type ActivityLogEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index:idx_activity_user_logged,priority:1;not null" json:"user_id"`
	MealID      uint      `gorm:"index;not null" json:"meal_id"`
	Meal        *Meal     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	MealItemID  uint      `gorm:"index;not null" json:"meal_item_id"`
	MealItem    *MealItem `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	MealType    MealType  `gorm:"type:varchar(16);not null" json:"meal_type"`
	FoodLabel   string    `gorm:"type:varchar(120);not null" json:"food_label"`
	WeightGrams float64   `json:"weight_grams"`
	Nutrients   `gorm:"embedded" json:"nutrients"`
	LoggedAt    time.Time `gorm:"index:idx_activity_user_logged,priority:2;not null" json:"logged_at"`
	Day         string    `gorm:"type:varchar(10);index;not null" json:"day"`
}
