package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"nutritrack/models"
)

// MealStore holds the row-level writes of the commit pipeline. Every method
// works on the handle it is given, so callers decide the transaction.
type MealStore struct{}

func (MealStore) CreateMeal(tx *gorm.DB, meal *models.Meal) error {
	return tx.Omit(clause.Associations).Create(meal).Error
}

func (MealStore) CreateMealItems(tx *gorm.DB, items []models.MealItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.Create(&items).Error
}

func (MealStore) CreateActivityEntries(tx *gorm.DB, entries []models.ActivityLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return tx.Omit(clause.Associations).Create(&entries).Error
}

// GetDailySummary reads the (user, day) row, locking it on postgres. A
// missing row comes back as a zero-valued summary with ID 0.
func (MealStore) GetDailySummary(tx *gorm.DB, userID uint, day string, lock bool) (*models.DailyNutritionSummary, error) {
	q := tx
	if lock && tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var s models.DailyNutritionSummary
	err := q.Where("user_id = ? AND day = ?", userID, day).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.DailyNutritionSummary{UserID: userID, Day: day}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertDailySummary writes s back. A row read earlier is saved in place.
// A new row is inserted with ON CONFLICT (user_id, day) adding s onto
// whatever a concurrent commit inserted first, then re-read.
func (st MealStore) UpsertDailySummary(tx *gorm.DB, s *models.DailyNutritionSummary) error {
	if s.ID != 0 {
		return tx.Save(s).Error
	}
	sets, err := summaryIncrements(tx)
	if err != nil {
		return err
	}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoUpdates: sets,
	}).Create(s).Error
	if err != nil {
		return err
	}
	fresh, err := st.GetDailySummary(tx, s.UserID, s.Day, false)
	if err != nil {
		return err
	}
	*s = *fresh
	return nil
}

// summaryIncrements builds "col = table.col + excluded.col" for every
// numeric column of the summary except the keys.
func summaryIncrements(tx *gorm.DB) ([]clause.Assignment, error) {
	stmt := &gorm.Statement{DB: tx}
	if err := stmt.Parse(&models.DailyNutritionSummary{}); err != nil {
		return nil, err
	}
	table := stmt.Schema.Table
	var sets []clause.Assignment
	for _, f := range stmt.Schema.Fields {
		if f.DBName == "" || f.PrimaryKey || f.DBName == "user_id" {
			continue
		}
		switch f.DataType {
		case schema.Float, schema.Int:
			sets = append(sets, clause.Assignment{
				Column: clause.Column{Name: f.DBName},
				Value:  gorm.Expr(fmt.Sprintf("%s.%s + excluded.%s", table, f.DBName, f.DBName)),
			})
		}
	}
	sets = append(sets, clause.Assignment{
		Column: clause.Column{Name: "updated_at"},
		Value:  gorm.Expr("excluded.updated_at"),
	})
	return sets, nil
}

// DeleteMeal removes the meal row; items and activity entries go with it
// through the FK cascade.
func (MealStore) DeleteMeal(tx *gorm.DB, userID, mealID uint) (int64, error) {
	res := tx.Where("id = ? AND user_id = ?", mealID, userID).Delete(&models.Meal{})
	return res.RowsAffected, res.Error
}
