package utils

import (
	"fmt"
	"math"
	"strings"

	"nutritrack/models"
)

// AssessmentContext tunes the per-day limits the rules compare against.
type AssessmentContext struct {
	CalorieTarget float64 // 0 assumes 2000 kcal
	SodiumLimitMg float64 // 0 assumes 2300 mg
}

type WarningSeverity string

const (
	Info    WarningSeverity = "info"
	Caution WarningSeverity = "caution"
	High    WarningSeverity = "high"
)

// Warning is one finding about a portion.
type Warning struct {
	Code           string          `json:"code"`
	Severity       WarningSeverity `json:"severity"`
	Message        string          `json:"message"`
	Metric         string          `json:"metric,omitempty"`
	Value          float64         `json:"value,omitempty"`
	PercentOfLimit float64         `json:"percent_of_limit,omitempty"`
}

// AssessDish returns the caution and high findings for an eaten portion as
// plain messages. Info nudges are left out; a dish with no messages counts
// as safe.
func AssessDish(name string, n models.Nutrients) []string {
	var out []string
	for _, w := range AssessPortion(name, n, AssessmentContext{}) {
		if w.Severity != Info {
			out = append(out, w.Message)
		}
	}
	return out
}

// AssessPortion runs the DGA 2020-2025 rules over the absolute nutrients of
// one portion. Rules only fire on nutrients that are present.
func AssessPortion(name string, n models.Nutrients, ctx AssessmentContext) []Warning {
	var ws []Warning
	kcal := n.Calories
	if kcal <= 0 {
		kcal = 4*n.Carbs + 4*n.Protein + 9*n.Fat
	}
	kcalTarget := ctx.CalorieTarget
	if kcalTarget <= 0 {
		kcalTarget = 2000
	}
	sodLimit := ctx.SodiumLimitMg
	if sodLimit <= 0 {
		sodLimit = 2300
	}

	// Sugars: total sugar stands in for added sugar.
	if kcal > 0 && n.Sugar > 0 {
		if p := (n.Sugar * 4) / kcal; p >= 0.25 {
			ws = append(ws, Warning{
				Code:     "sugars_high_item",
				Severity: Caution,
				Message:  fmt.Sprintf("High sugars for this dish (%.0f%% of its calories).", p*100),
				Metric:   "sugar_pct_of_item_kcal",
				Value:    round2(p * 100),
			})
		}
	}
	if n.Sugar > 0 {
		limit := (0.10 * kcalTarget) / 4
		if share := n.Sugar / limit; share >= 0.40 {
			ws = append(ws, shareWarning("sugars_daily_share", High, "sugar", share))
		}
	}

	// Saturated fat, <10% kcal/day.
	if kcal > 0 && n.SaturatedFat > 0 {
		if p := (n.SaturatedFat * 9) / kcal; p >= 0.10 {
			ws = append(ws, Warning{
				Code:     "sat_fat_high_item",
				Severity: Caution,
				Message:  fmt.Sprintf("High saturated fat for this dish (%.0f%% of its calories).", p*100),
				Metric:   "sat_fat_pct_of_item_kcal",
				Value:    round2(p * 100),
			})
		}
		limit := (0.10 * kcalTarget) / 9
		switch share := n.SaturatedFat / limit; {
		case share >= 0.40:
			ws = append(ws, shareWarning("sat_fat_very_high_daily_share", High, "saturated-fat", share))
		case share >= 0.20:
			ws = append(ws, shareWarning("sat_fat_high_daily_share", Caution, "saturated-fat", share))
		}
	} else if looksHighSatSource(strings.ToLower(name)) {
		ws = append(ws, Warning{
			Code:     "sat_fat_source_heuristic",
			Severity: Info,
			Message:  "Likely high in saturated fat; consider leaner cuts.",
		})
	}

	// Sodium against the daily limit.
	if n.Sodium > 0 {
		switch share := n.Sodium / sodLimit; {
		case share >= 0.40:
			ws = append(ws, shareWarning("sodium_very_high", High, "sodium", share))
		case share >= 0.20:
			ws = append(ws, shareWarning("sodium_high", Caution, "sodium", share))
		}
		if kcal > 0 {
			if d := n.Sodium / kcal * 100; d >= 400 {
				ws = append(ws, Warning{
					Code:     "sodium_dense",
					Severity: Info,
					Message:  "High sodium relative to calories.",
					Metric:   "sodium_mg_per_100kcal",
					Value:    round2(d),
				})
			}
		}
		if n.Potassium > 0 && n.Sodium/n.Potassium > 1.5 {
			ws = append(ws, Warning{
				Code:     "sodium_potassium_ratio_high",
				Severity: Info,
				Message:  "More sodium than potassium; add vegetables or fruit.",
				Metric:   "na_to_k_ratio",
				Value:    round2(n.Sodium / n.Potassium),
			})
		}
	}

	if n.TransFat > 0 {
		sev := Caution
		if n.TransFat >= 0.5 {
			sev = High
		}
		ws = append(ws, Warning{
			Code:     "trans_fat_present",
			Severity: sev,
			Message:  fmt.Sprintf("Contains trans fat (%.2fg); keep intake as low as possible.", n.TransFat),
			Metric:   "trans_fat_g",
			Value:    round2(n.TransFat),
		})
	}

	if n.Cholesterol >= 200 {
		ws = append(ws, Warning{
			Code:     "cholesterol_high",
			Severity: Caution,
			Message:  fmt.Sprintf("High cholesterol for one dish (%.0f mg).", n.Cholesterol),
			Metric:   "cholesterol_mg",
			Value:    round2(n.Cholesterol),
		})
	}

	// Macro split against AMDR ranges.
	if macro := 4*n.Carbs + 4*n.Protein + 9*n.Fat; macro > 0 {
		if f := 9 * n.Fat / macro; f > 0.35 {
			ws = append(ws, Warning{
				Code:     "amdr_fat_out_of_range",
				Severity: Info,
				Message:  fmt.Sprintf("Fat is ~%.0f%% of macro calories (AMDR 20-35%%).", f*100),
				Metric:   "fat_pct_of_macro_kcal",
				Value:    round2(f * 100),
			})
		}
	}

	if kcal > 0 && n.Carbs >= 15 && n.Fiber > 0 && n.Fiber/kcal*100 < 1 {
		ws = append(ws, Warning{
			Code:     "fiber_low_nudge",
			Severity: Info,
			Message:  "Low fiber for a carbohydrate dish; pair with vegetables.",
			Metric:   "fiber_g_per_100kcal",
			Value:    round2(n.Fiber / kcal * 100),
		})
	}

	if isLikelyRefinedGrain(strings.ToLower(name)) {
		ws = append(ws, Warning{
			Code:     "refined_grain_nudge",
			Severity: Info,
			Message:  "Refined grain; brown rice is a whole-grain swap.",
		})
	}
	return ws
}

func shareWarning(code string, sev WarningSeverity, what string, share float64) Warning {
	return Warning{
		Code:           code,
		Severity:       sev,
		Message:        fmt.Sprintf("This dish provides ~%.0f%% of the daily %s limit.", share*100, what),
		Metric:         what + "_pct_of_daily_limit",
		Value:          round2(share * 100),
		PercentOfLimit: round2(share * 100),
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isLikelyRefinedGrain(name string) bool {
	return containsAny(name, "steamed rice", "garlic rice", "white rice", "pancit", "bihon", "canton")
}

func looksHighSatSource(name string) bool {
	return containsAny(name, "lechon", "chicharon", "sisig", "kare-kare", "longganisa", "tocino", "leche flan", "coconut", "ginataang", "laing")
}
