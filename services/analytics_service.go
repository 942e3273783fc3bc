package services

import (
	"context"
	"math"
	"time"

	"gorm.io/gorm"

	"nutritrack/apperr"
	"nutritrack/models"
)

// AnalyticsService reads the incrementally maintained daily summaries; it
// never re-aggregates meal items for totals.
type AnalyticsService struct {
	db    *gorm.DB
	goals *GoalService
	loc   *time.Location
	now   func() time.Time
}

func NewAnalyticsService(db *gorm.DB, goals *GoalService, loc *time.Location) *AnalyticsService {
	if loc == nil {
		loc = time.Local
	}
	return &AnalyticsService{db: db, goals: goals, loc: loc, now: time.Now}
}

type Metric struct {
	Actual  float64 `json:"actual"`
	Target  float64 `json:"target"`
	Percent float64 `json:"percent"`
}

type DayOverview struct {
	Date      string             `json:"date"`
	MealCount int                `json:"meal_count"`
	Metrics   map[string]Metric  `json:"metrics"`
	ByMeal    map[string]float64 `json:"calories_by_meal"`
}

type WeeklyOverview struct {
	WeekStart string            `json:"week_start"`
	Days      []DayOverview     `json:"days"`
	Averages  map[string]Metric `json:"averages"`
	Safety    SafetyBreakdown   `json:"safety"`
}

// DailySummary returns the stored summary for a day, or a zero baseline.
func (s *AnalyticsService) DailySummary(ctx context.Context, userID uint, day string) (*models.DailyNutritionSummary, error) {
	if day == "" {
		day = models.DayKey(s.now(), s.loc)
	}
	if _, err := time.ParseInLocation("2006-01-02", day, s.loc); err != nil {
		return nil, apperr.New(apperr.CodeValidation, "analytics.daily", "date must be YYYY-MM-DD")
	}
	sum, err := MealStore{}.GetDailySummary(s.db.WithContext(ctx), userID, day, false)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "analytics.daily", err)
	}
	return sum, nil
}

// WeeklyOverview covers the seven days starting at weekStart; a zero
// weekStart means the last seven days ending today.
func (s *AnalyticsService) WeeklyOverview(ctx context.Context, userID uint, weekStart time.Time) (*WeeklyOverview, error) {
	const op = "analytics.weekly"
	if weekStart.IsZero() {
		weekStart = s.now().In(s.loc).AddDate(0, 0, -6)
	}
	from := dayStart(weekStart.In(s.loc))
	keys := make([]string, 7)
	for i := range keys {
		keys[i] = from.AddDate(0, 0, i).Format("2006-01-02")
	}

	var rows []models.DailyNutritionSummary
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND day IN ?", userID, keys).
		Find(&rows).Error; err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, op, err)
	}
	idx := make(map[string]models.DailyNutritionSummary, len(rows))
	for _, r := range rows {
		idx[r.Day] = r
	}

	goal, err := s.goals.GetGoal(ctx, userID)
	if err != nil {
		return nil, err
	}
	targets := map[string]float64{
		"calories": goal.Calories, "protein_g": goal.Protein, "carbs_g": goal.Carbs,
		"fat_g": goal.Fat, "sodium_mg": goal.Sodium, "sugar_g": goal.Sugar, "fiber_g": goal.Fiber,
	}

	out := &WeeklyOverview{WeekStart: keys[0], Averages: map[string]Metric{}}
	sums := map[string]float64{}
	for _, key := range keys {
		dp := idx[key]
		t := dp.Totals
		actual := map[string]float64{
			"calories": t.Calories, "protein_g": t.Protein, "carbs_g": t.Carbs,
			"fat_g": t.Fat, "sodium_mg": t.Sodium, "sugar_g": t.Sugar, "fiber_g": t.Fiber,
		}
		day := DayOverview{
			Date:      key,
			MealCount: dp.MealCount,
			Metrics:   make(map[string]Metric, len(actual)),
			ByMeal: map[string]float64{
				string(models.MealBreakfast): round2(dp.BreakfastCalories),
				string(models.MealLunch):     round2(dp.LunchCalories),
				string(models.MealDinner):    round2(dp.DinnerCalories),
				string(models.MealSnack):     round2(dp.SnackCalories),
			},
		}
		for k, v := range actual {
			day.Metrics[k] = Metric{Actual: round2(v), Target: round2(targets[k]), Percent: pct(v, targets[k])}
			sums[k] += v
		}
		out.Days = append(out.Days, day)
	}
	for k, sum := range sums {
		a := avg(sum, len(keys))
		out.Averages[k] = Metric{Actual: a, Target: round2(targets[k]), Percent: pct(a, targets[k])}
	}

	br, err := s.safetyBreakdown(ctx, userID, keys[0], keys[len(keys)-1])
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, op, err)
	}
	out.Safety = br
	return out, nil
}

type SafetyBreakdown struct {
	Safe     int64   `json:"safe"`
	Flagged  int64   `json:"flagged"`
	Total    int64   `json:"total"`
	ScorePct float64 `json:"score_pct"`
}

func (s *AnalyticsService) safetyBreakdown(ctx context.Context, userID uint, fromDay, toDay string) (SafetyBreakdown, error) {
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).
			Model(&models.MealItem{}).
			Joins("JOIN meals ON meals.id = meal_items.meal_id").
			Where("meals.user_id = ? AND meals.day BETWEEN ? AND ?", userID, fromDay, toDay)
	}
	var br SafetyBreakdown
	if err := base().Count(&br.Total).Error; err != nil {
		return br, err
	}
	if err := base().Where("meal_items.safe = ?", true).Count(&br.Safe).Error; err != nil {
		return br, err
	}
	br.Flagged = br.Total - br.Safe
	br.ScorePct = safetyScore(br.Safe, br.Flagged)
	return br, nil
}

// safetyScore smooths small samples with a Beta(1,1) prior.
func safetyScore(safe, flagged int64) float64 {
	const alpha, beta = 1.0, 1.0
	return round2((float64(safe) + alpha) / (float64(safe+flagged) + alpha + beta) * 100)
}

func pct(actual, goal float64) float64 {
	if goal <= 0 {
		if actual <= 0 {
			return 0
		}
		return 100
	}
	return round2((actual / goal) * 100.0)
}

func avg(sum float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	return round2(sum / float64(n))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
