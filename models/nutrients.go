package models

import "math"

// Nutrients is the tracked nutrient vector. Stored per 100 g on a
// FoodReference and as absolute amounts everywhere else.
type Nutrients struct {
	Calories float64 `json:"calories" yaml:"calories"` // kcal
	Protein  float64 `json:"protein" yaml:"protein"`   // g
	Carbs    float64 `json:"carbs" yaml:"carbs"`       // g
	Fat      float64 `json:"fat" yaml:"fat"`           // g

	SaturatedFat       float64 `json:"saturated_fat" yaml:"saturated_fat"`             // g
	MonounsaturatedFat float64 `json:"monounsaturated_fat" yaml:"monounsaturated_fat"` // g
	PolyunsaturatedFat float64 `json:"polyunsaturated_fat" yaml:"polyunsaturated_fat"` // g
	TransFat           float64 `json:"trans_fat" yaml:"trans_fat"`                     // g

	Fiber       float64 `json:"fiber" yaml:"fiber"`             // g
	Sugar       float64 `json:"sugar" yaml:"sugar"`             // g
	Cholesterol float64 `json:"cholesterol" yaml:"cholesterol"` // mg
	Sodium      float64 `json:"sodium" yaml:"sodium"`           // mg
	Potassium   float64 `json:"potassium" yaml:"potassium"`     // mg
	Calcium     float64 `json:"calcium" yaml:"calcium"`         // mg
	Iron        float64 `json:"iron" yaml:"iron"`               // mg
	Magnesium   float64 `json:"magnesium" yaml:"magnesium"`     // mg
	Zinc        float64 `json:"zinc" yaml:"zinc"`               // mg
	Phosphorus  float64 `json:"phosphorus" yaml:"phosphorus"`   // mg
	VitaminA    float64 `json:"vitamin_a" yaml:"vitamin_a"`     // µg RAE
	VitaminC    float64 `json:"vitamin_c" yaml:"vitamin_c"`     // mg
	VitaminD    float64 `json:"vitamin_d" yaml:"vitamin_d"`     // µg
	VitaminB12  float64 `json:"vitamin_b12" yaml:"vitamin_b12"` // µg
}

// fields exposes every nutrient so arithmetic can't forget one.
func (n *Nutrients) fields() []*float64 {
	return []*float64{
		&n.Calories, &n.Protein, &n.Carbs, &n.Fat,
		&n.SaturatedFat, &n.MonounsaturatedFat, &n.PolyunsaturatedFat, &n.TransFat,
		&n.Fiber, &n.Sugar, &n.Cholesterol, &n.Sodium, &n.Potassium, &n.Calcium,
		&n.Iron, &n.Magnesium, &n.Zinc, &n.Phosphorus,
		&n.VitaminA, &n.VitaminC, &n.VitaminD, &n.VitaminB12,
	}
}

// Scale treats n as a per-100g profile and returns the amounts contained in
// weightGrams of the food.
func (n Nutrients) Scale(weightGrams float64) Nutrients {
	out := n
	for _, f := range out.fields() {
		*f = *f * weightGrams / 100
	}
	return out
}

func (n Nutrients) Add(o Nutrients) Nutrients {
	out := n
	of := o.fields()
	for i, f := range out.fields() {
		*f += *of[i]
	}
	return out
}

func (n Nutrients) Sub(o Nutrients) Nutrients {
	out := n
	of := o.fields()
	for i, f := range out.fields() {
		*f -= *of[i]
	}
	return out
}

func (n Nutrients) IsZero() bool {
	for _, f := range n.fields() {
		if *f != 0 {
			return false
		}
	}
	return true
}

// ApproxEqual compares field by field within tol.
func (n Nutrients) ApproxEqual(o Nutrients, tol float64) bool {
	of := o.fields()
	for i, f := range n.fields() {
		if math.Abs(*f-*of[i]) > tol {
			return false
		}
	}
	return true
}
