package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"nutritrack/apperr"
	"nutritrack/logger"
	"nutritrack/models"
)

const (
	AlertCaloriesOverGoal = "calories_over_goal"
	AlertSodiumOverGoal   = "sodium_over_goal"
)

// AlertBus records goal-crossing alerts and fans them out to websocket
// clients and push devices. It runs after a commit, never inside one.
type AlertBus struct {
	db    *gorm.DB
	goals *GoalService
	rt    *RealtimeHub
	push  *PushService
	log   *logger.Logger
}

func NewAlertBus(db *gorm.DB, goals *GoalService, rt *RealtimeHub, push *PushService, log *logger.Logger) *AlertBus {
	return &AlertBus{db: db, goals: goals, rt: rt, push: push, log: log.With("service", "AlertBus")}
}

// CheckDailyGoals emits at most one alert per code and day when the
// summary has reached the calorie or sodium target.
func (b *AlertBus) CheckDailyGoals(ctx context.Context, userID uint, sum *models.DailyNutritionSummary) []models.Alert {
	if sum == nil {
		return nil
	}
	goal, err := b.goals.GetGoal(ctx, userID)
	if err != nil {
		b.log.Warn("goal lookup failed; skipping alerts", "user_id", userID, "error", err)
		return nil
	}

	var fired []models.Alert
	check := func(code string, consumed, target float64, unit, label string) {
		if target <= 0 || consumed < target {
			return
		}
		msg := fmt.Sprintf("You've reached %.0f%s of %s today (goal %.0f%s).", consumed, unit, label, target, unit)
		if a, ok := b.Emit(ctx, userID, sum.Day, code, "warning", msg); ok {
			fired = append(fired, *a)
		}
	}
	check(AlertCaloriesOverGoal, sum.Totals.Calories, goal.Calories, " kcal", "calories")
	check(AlertSodiumOverGoal, sum.Totals.Sodium, goal.Sodium, " mg", "sodium")
	return fired
}

// Emit stores the alert unless the same code already fired for the day,
// then broadcasts it.
func (b *AlertBus) Emit(ctx context.Context, userID uint, day, code, typ, message string) (*models.Alert, bool) {
	var n int64
	if err := b.db.WithContext(ctx).Model(&models.Alert{}).
		Where("user_id = ? AND day = ? AND code = ?", userID, day, code).
		Count(&n).Error; err != nil {
		b.log.Warn("alert lookup failed", "user_id", userID, "code", code, "error", err)
		return nil, false
	}
	if n > 0 {
		return nil, false
	}

	a := &models.Alert{UserID: userID, Day: day, Code: code, Type: typ, Message: message, CreatedAt: time.Now()}
	if err := b.db.WithContext(ctx).Create(a).Error; err != nil {
		b.log.Warn("alert insert failed", "user_id", userID, "code", code, "error", err)
		return nil, false
	}
	b.log.Info("alert emitted", "user_id", userID, "code", code, "day", day)

	if b.rt != nil {
		b.rt.Publish(userID, "alert.created", a)
	}
	if b.push != nil {
		b.push.PushToUser(ctx, userID, "Daily goal reached", message, map[string]string{
			"type": typ, "code": code, "alertId": fmt.Sprintf("%d", a.ID),
		})
	}
	return a, true
}

func (b *AlertBus) ListAlerts(ctx context.Context, userID uint, day string) ([]models.Alert, error) {
	q := b.db.WithContext(ctx).Where("user_id = ?", userID)
	if day != "" {
		q = q.Where("day = ?", day)
	}
	var out []models.Alert
	err := q.Order("created_at DESC").Limit(100).Find(&out).Error
	return out, apperr.Wrap(apperr.CodeStorage, "alerts.list", err)
}
