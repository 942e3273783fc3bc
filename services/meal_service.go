// services/meal_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"nutritrack/apperr"
	"nutritrack/capture"
	"nutritrack/logger"
	"nutritrack/models"
	"nutritrack/observability"
)

type MealService struct {
	db     *gorm.DB
	tx     TxRunner
	store  MealStore
	loc    *time.Location
	now    func() time.Time
	log    *logger.Logger
	alerts *AlertBus
}

func NewMealService(db *gorm.DB, tx TxRunner, loc *time.Location, log *logger.Logger) *MealService {
	if loc == nil {
		loc = time.Local
	}
	return &MealService{
		db:  db,
		tx:  tx,
		loc: loc,
		now: time.Now,
		log: log.With("service", "MealService"),
	}
}

// WithAlerts makes every successful commit check the day's goals.
func (s *MealService) WithAlerts(a *AlertBus) *MealService {
	s.alerts = a
	return s
}

type ItemWarning struct {
	MealItemID uint    `json:"meal_item_id"`
	FoodLabel  string  `json:"food_label"`
	Safe       bool    `json:"safe"`
	Warnings   string  `json:"warnings"`
	Calories   float64 `json:"calories,omitempty"`
}

type MealWarnings struct {
	MealID   uint            `json:"meal_id"`
	Type     models.MealType `json:"type"`
	AteAt    time.Time       `json:"ate_at"`
	MealSafe bool            `json:"meal_safe"`
	Warnings []ItemWarning   `json:"warnings_by_item"`
}

// CommitMeal writes the meal, one item and one activity entry per dish, and
// adds the meal to the day's summary, all in one transaction. Nothing is
// written if any step fails.
func (s *MealService) CommitMeal(
	ctx context.Context,
	userID uint,
	mealType models.MealType,
	dishes []capture.RecognizedDish,
	note string,
) (meal *models.Meal, summary *models.DailyNutritionSummary, err error) {
	const op = "meals.commit"
	ctx, span := observability.Tracer("meals").Start(ctx, "MealService.CommitMeal")
	defer func() { observability.EndSpan(span, err) }()
	span.SetAttributes(
		attribute.Int("meal.user_id", int(userID)),
		attribute.String("meal.type", string(mealType)),
		attribute.Int("meal.dishes", len(dishes)),
	)

	if err = validateCommit(userID, mealType, dishes); err != nil {
		return nil, nil, err
	}

	ateAt := s.now()
	day := models.DayKey(ateAt, s.loc)

	var out models.Meal
	var sum *models.DailyNutritionSummary
	err = s.tx.InTx(ctx, func(tx *gorm.DB) error {
		out = models.Meal{UserID: userID, Type: mealType, AteAt: ateAt, Day: day, Note: strings.TrimSpace(note)}
		if err := s.store.CreateMeal(tx, &out); err != nil {
			return apperr.Wrap(apperr.CodeStorage, op+".meal", err)
		}

		items, err := itemsFromDishes(out.ID, dishes)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, op+".items", err)
		}
		if err := s.store.CreateMealItems(tx, items); err != nil {
			return apperr.Wrap(apperr.CodeStorage, op+".items", err)
		}

		if err := s.store.CreateActivityEntries(tx, activityFromItems(&out, items)); err != nil {
			return apperr.Wrap(apperr.CodeStorage, op+".activity", err)
		}

		var totals models.Nutrients
		for _, it := range items {
			totals = totals.Add(it.Nutrients)
		}
		sum, err = s.store.GetDailySummary(tx, userID, day, true)
		if err != nil {
			return apperr.Wrap(apperr.CodeStorage, op+".summary", err)
		}
		sum.AddMeal(mealType, totals)
		if err := s.store.UpsertDailySummary(tx, sum); err != nil {
			return apperr.Wrap(apperr.CodeStorage, op+".summary", err)
		}
		out.Items = items
		return nil
	})
	if err != nil {
		err = apperr.Wrap(apperr.CodeStorage, op, err)
		s.log.Warn("meal commit rolled back", "user_id", userID, "dishes", len(dishes), "error", err)
		return nil, nil, err
	}

	s.log.Info("meal committed",
		"user_id", userID, "meal_id", out.ID, "type", mealType, "day", day,
		"dishes", len(out.Items), "kcal", sum.Totals.Calories)

	if s.alerts != nil {
		s.alerts.CheckDailyGoals(ctx, userID, sum)
	}
	return &out, sum, nil
}

func validateCommit(userID uint, mealType models.MealType, dishes []capture.RecognizedDish) error {
	const op = "meals.commit"
	if userID == 0 {
		return apperr.New(apperr.CodeValidation, op, "user id required")
	}
	if _, ok := models.ParseMealType(string(mealType)); !ok {
		return apperr.New(apperr.CodeValidation, op, fmt.Sprintf("unknown meal type %q", mealType))
	}
	if len(dishes) == 0 {
		return apperr.New(apperr.CodeValidation, op, "meal has no dishes")
	}
	for i, d := range dishes {
		if d.FoodReferenceID == 0 {
			return apperr.New(apperr.CodeMissingProfile, op, fmt.Sprintf("dish %d (%s) has no nutrition profile", i, d.Name))
		}
		if d.WeightGrams <= 0 {
			return apperr.New(apperr.CodeValidation, op, fmt.Sprintf("dish %d (%s) has no weight", i, d.Name))
		}
	}
	return nil
}

func itemsFromDishes(mealID uint, dishes []capture.RecognizedDish) ([]models.MealItem, error) {
	items := make([]models.MealItem, 0, len(dishes))
	for _, d := range dishes {
		var cands datatypes.JSON
		if len(d.Candidates) > 0 {
			raw, err := json.Marshal(d.Candidates)
			if err != nil {
				return nil, err
			}
			cands = datatypes.JSON(raw)
		}
		items = append(items, models.MealItem{
			MealID:          mealID,
			FoodReferenceID: d.FoodReferenceID,
			FoodLabel:       d.Name,
			WeightGrams:     d.WeightGrams,
			Confidence:      d.Confidence,
			Nutrients:       d.Nutrients,
			Candidates:      cands,
			PhotoURL:        d.PhotoURL,
			Safe:            len(d.Warnings) == 0,
			Warnings:        strings.Join(d.Warnings, "; "),
		})
	}
	return items, nil
}

// activityFromItems copies each written item into its feed row, so both
// rows carry the same nutrients and the meal's timestamp.
func activityFromItems(meal *models.Meal, items []models.MealItem) []models.ActivityLogEntry {
	out := make([]models.ActivityLogEntry, 0, len(items))
	for _, it := range items {
		out = append(out, models.ActivityLogEntry{
			UserID:      meal.UserID,
			MealID:      meal.ID,
			MealItemID:  it.ID,
			MealType:    meal.Type,
			FoodLabel:   it.FoodLabel,
			WeightGrams: it.WeightGrams,
			Nutrients:   it.Nutrients,
			LoggedAt:    meal.AteAt,
			Day:         meal.Day,
		})
	}
	return out
}

// DeleteMeal removes a meal and subtracts it from its day's summary in the
// same transaction.
func (s *MealService) DeleteMeal(ctx context.Context, userID, mealID uint) error {
	const op = "meals.delete"
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		var meal models.Meal
		err := tx.Preload("Items").Where("id = ? AND user_id = ?", mealID, userID).First(&meal).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.CodeNotFound, op, "meal not found")
		}
		if err != nil {
			return apperr.Wrap(apperr.CodeStorage, op, err)
		}

		var totals models.Nutrients
		for _, it := range meal.Items {
			totals = totals.Add(it.Nutrients)
		}
		sum, err := s.store.GetDailySummary(tx, userID, meal.Day, true)
		if err != nil {
			return apperr.Wrap(apperr.CodeStorage, op, err)
		}
		if sum.ID != 0 {
			sum.RemoveMeal(meal.Type, totals)
			if err := tx.Save(sum).Error; err != nil {
				return apperr.Wrap(apperr.CodeStorage, op, err)
			}
		}

		if _, err := s.store.DeleteMeal(tx, userID, mealID); err != nil {
			return apperr.Wrap(apperr.CodeStorage, op, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("meal deleted", "user_id", userID, "meal_id", mealID)
	return nil
}

func (s *MealService) GetMeal(ctx context.Context, userID, mealID uint) (*models.Meal, error) {
	var meal models.Meal
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND user_id = ?", mealID, userID).
		First(&meal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.CodeNotFound, "meals.get", "meal not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "meals.get", err)
	}
	return &meal, nil
}

// ListMeals returns the user's meals, newest first. A zero from or to
// leaves that side of the range open.
func (s *MealService) ListMeals(ctx context.Context, userID uint, from, to time.Time) ([]models.Meal, error) {
	q := s.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID)
	var meals []models.Meal
	if err := ateWithin(q, from, to).Order("ate_at DESC").Find(&meals).Error; err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "meals.list", err)
	}
	return meals, nil
}

// ateWithin bounds q to [from, to). A zero bound is open.
func ateWithin(q *gorm.DB, from, to time.Time) *gorm.DB {
	if !from.IsZero() {
		q = q.Where("ate_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("ate_at < ?", to)
	}
	return q
}

// ListMealsWithWarnings keeps only the items that carry dietary warnings.
func (s *MealService) ListMealsWithWarnings(ctx context.Context, userID uint, from, to time.Time) ([]MealWarnings, error) {
	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Items", "safe = ? OR warnings <> ''", false).
		Order("ate_at DESC")
	var meals []models.Meal
	if err := ateWithin(q, from, to).Find(&meals).Error; err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "meals.warnings", err)
	}

	out := make([]MealWarnings, 0, len(meals))
	for _, m := range meals {
		mw := MealWarnings{MealID: m.ID, Type: m.Type, AteAt: m.AteAt, MealSafe: true}
		for _, it := range m.Items {
			mw.Warnings = append(mw.Warnings, ItemWarning{
				MealItemID: it.ID,
				FoodLabel:  it.FoodLabel,
				Safe:       it.Safe,
				Warnings:   it.Warnings,
				Calories:   it.Calories,
			})
			if !it.Safe {
				mw.MealSafe = false
			}
		}
		out = append(out, mw)
	}
	return out, nil
}
