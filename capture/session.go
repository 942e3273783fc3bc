package capture

import (
	"fmt"

	"nutritrack/apperr"
	"nutritrack/models"
)

// MealSession is the ordered list of accepted dishes for one meal. Totals
// are always derived from the list.
type MealSession struct {
	MealType models.MealType
	Note     string
	dishes   []RecognizedDish
}

func NewMealSession(mealType models.MealType) *MealSession {
	return &MealSession{MealType: mealType}
}

func (s *MealSession) Append(d RecognizedDish) {
	s.dishes = append(s.dishes, d)
}

// Remove deletes the dish at index i, keeping the order of the rest.
func (s *MealSession) Remove(i int) (RecognizedDish, error) {
	if i < 0 || i >= len(s.dishes) {
		return RecognizedDish{}, apperr.New(apperr.CodeValidation, "session.remove",
			fmt.Sprintf("dish index %d out of range [0,%d)", i, len(s.dishes)))
	}
	d := s.dishes[i]
	s.dishes = append(s.dishes[:i:i], s.dishes[i+1:]...)
	return d, nil
}

func (s *MealSession) Len() int { return len(s.dishes) }

// Dishes returns a copy of the staged dishes.
func (s *MealSession) Dishes() []RecognizedDish {
	return append([]RecognizedDish(nil), s.dishes...)
}

func (s *MealSession) Totals() models.Nutrients {
	var total models.Nutrients
	for _, d := range s.dishes {
		total = total.Add(d.Nutrients)
	}
	return total
}

func (s *MealSession) Clear() {
	s.dishes = nil
	s.Note = ""
}
