// services/daily_goal_service.go
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"nutritrack/apperr"
	"nutritrack/models"
)

type GoalService struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

func NewGoalService(db *gorm.DB, loc *time.Location) *GoalService {
	if loc == nil {
		loc = time.Local
	}
	return &GoalService{db: db, loc: loc, now: time.Now}
}

type GoalInput struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Sodium   float64 `json:"sodium"`
	Sugar    float64 `json:"sugar"`
	Fiber    float64 `json:"fiber"`
}

type NutrientProgress struct {
	Consumed float64 `json:"consumed"`
	Goal     float64 `json:"goal"`
	Percent  float64 `json:"percent"`
}

type DailyProgress struct {
	Day      string                        `json:"day"`
	Goal     *models.DailyGoal             `json:"goal"`
	Summary  *models.DailyNutritionSummary `json:"summary"`
	Progress map[string]NutrientProgress   `json:"progress"`
}

// GetGoal returns the user's targets; a user without any gets zero targets.
func (s *GoalService) GetGoal(ctx context.Context, userID uint) (*models.DailyGoal, error) {
	var goal models.DailyGoal
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&goal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.DailyGoal{UserID: userID}, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "goals.get", err)
	}
	return &goal, nil
}

func (s *GoalService) UpsertGoal(ctx context.Context, userID uint, in GoalInput) (*models.DailyGoal, error) {
	for _, v := range []float64{in.Calories, in.Protein, in.Carbs, in.Fat, in.Sodium, in.Sugar, in.Fiber} {
		if v < 0 {
			return nil, apperr.New(apperr.CodeValidation, "goals.upsert", "targets must not be negative")
		}
	}
	goal, err := s.GetGoal(ctx, userID)
	if err != nil {
		return nil, err
	}
	goal.Calories = in.Calories
	goal.Protein = in.Protein
	goal.Carbs = in.Carbs
	goal.Fat = in.Fat
	goal.Sodium = in.Sodium
	goal.Sugar = in.Sugar
	goal.Fiber = in.Fiber
	if err := s.db.WithContext(ctx).Save(goal).Error; err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "goals.upsert", err)
	}
	return goal, nil
}

// Progress compares a day's summary with the targets. day is YYYY-MM-DD;
// empty means today.
func (s *GoalService) Progress(ctx context.Context, userID uint, day string) (*DailyProgress, error) {
	if day == "" {
		day = models.DayKey(s.now(), s.loc)
	} else if _, err := time.ParseInLocation("2006-01-02", day, s.loc); err != nil {
		return nil, apperr.New(apperr.CodeValidation, "goals.progress", "date must be YYYY-MM-DD")
	}
	goal, err := s.GetGoal(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum, err := MealStore{}.GetDailySummary(s.db.WithContext(ctx), userID, day, false)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "goals.progress", err)
	}

	t := sum.Totals
	prog := func(consumed, target float64) NutrientProgress {
		return NutrientProgress{Consumed: round2(consumed), Goal: target, Percent: pct(consumed, target)}
	}
	return &DailyProgress{
		Day:     day,
		Goal:    goal,
		Summary: sum,
		Progress: map[string]NutrientProgress{
			"calories": prog(t.Calories, goal.Calories),
			"protein":  prog(t.Protein, goal.Protein),
			"carbs":    prog(t.Carbs, goal.Carbs),
			"fat":      prog(t.Fat, goal.Fat),
			"sodium":   prog(t.Sodium, goal.Sodium),
			"sugar":    prog(t.Sugar, goal.Sugar),
			"fiber":    prog(t.Fiber, goal.Fiber),
		},
	}, nil
}
