package services

import (
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"nutritrack/capture"
	"nutritrack/config"
	"nutritrack/logger"
	"nutritrack/models"
)

var testLoc = time.FixedZone("PHT", 8*3600)

// lunchTime is 12:30 on 2025-03-14 in testLoc.
var lunchTime = time.Date(2025, 3, 14, 12, 30, 0, 0, testLoc)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestMealService(t *testing.T, db *gorm.DB) *MealService {
	t.Helper()
	s := NewMealService(db, NewGormTxRunner(db), testLoc, logger.Nop())
	s.now = func() time.Time { return lunchTime }
	return s
}

func dish(name string, refID uint, grams, kcal, sodium float64) capture.RecognizedDish {
	return capture.RecognizedDish{
		Name:            name,
		FoodReferenceID: refID,
		WeightGrams:     grams,
		Confidence:      0.9,
		Nutrients:       models.Nutrients{Calories: kcal, Sodium: sodium, Protein: grams / 20},
	}
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}

func approx(a, b float64) bool {
	d := a - b
	return d < 1e-6 && d > -1e-6
}
