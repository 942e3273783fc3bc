// Package capture fuses the scale and the classifier into dish decisions
// and collects accepted dishes into a meal awaiting commit.
package capture

import (
	"context"

	"nutritrack/classifier"
	"nutritrack/models"
)

// RecognizedDish is a dish that passed recognition, with nutrients computed
// at its measured weight. It is staged in a MealSession and only ever
// persisted as a MealItem.
type RecognizedDish struct {
	Name            string                  `json:"name"`
	Label           string                  `json:"label"`
	WeightGrams     float64                 `json:"weight_grams"`
	Confidence      float64                 `json:"confidence"`
	Nutrients       models.Nutrients        `json:"nutrients"`
	FoodReferenceID uint                    `json:"food_reference_id"`
	Candidates      []classifier.Prediction `json:"candidates,omitempty"`
	PhotoURL        string                  `json:"photo_url,omitempty"`
	Warnings        []string                `json:"warnings,omitempty"`

	per100g models.Nutrients
}

func (d RecognizedDish) Calories() float64 { return d.Nutrients.Calories }

// FoodLookup finds the per-100g profile for a canonical dish name. A missing
// profile is reported as an apperr not_found error.
type FoodLookup interface {
	GetFoodByName(ctx context.Context, name string) (*models.FoodReference, error)
}

// Committer persists a finished meal.
type Committer interface {
	CommitMeal(ctx context.Context, userID uint, mealType models.MealType, dishes []RecognizedDish, note string) (*models.Meal, *models.DailyNutritionSummary, error)
}

// Archiver stores the frame a dish was recognized from and returns its URL.
type Archiver interface {
	ArchiveFrame(ctx context.Context, userID uint, frame classifier.Frame) (string, error)
}

// Classifier is the ranked-prediction surface of classifier.Adapter.
type Classifier interface {
	Classify(ctx context.Context, frame classifier.Frame) ([]classifier.Prediction, error)
}
