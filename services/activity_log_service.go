package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"nutritrack/apperr"
	"nutritrack/models"
)

// ActivityService reads the flattened activity feed written by commits.
type ActivityService struct {
	db *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService { return &ActivityService{db: db} }

// Recent returns the newest feed rows; day, when set, restricts to that day.
func (s *ActivityService) Recent(ctx context.Context, userID uint, day string, limit int) ([]models.ActivityLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if day != "" {
		q = q.Where("day = ?", day)
	}
	var out []models.ActivityLogEntry
	if err := q.Order("logged_at DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "activity.recent", err)
	}
	return out, nil
}

func (s *ActivityService) ByMeal(ctx context.Context, userID, mealID uint) ([]models.ActivityLogEntry, error) {
	var out []models.ActivityLogEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND meal_id = ?", userID, mealID).
		Order("id ASC").
		Find(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return out, apperr.Wrap(apperr.CodeStorage, "activity.by_meal", err)
}
