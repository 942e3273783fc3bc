package models

import (
	"bytes"
	"go/format"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNutrientsScale(t *testing.T) {
	per100 := Nutrients{Calories: 50, Protein: 4, Sodium: 300, VitaminB12: 0.5}
	got := per100.Scale(200)
	want := Nutrients{Calories: 100, Protein: 8, Sodium: 600, VitaminB12: 1}
	if !got.ApproxEqual(want, 1e-9) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestNutrientsAddSubRoundTrip(t *testing.T) {
	a := Nutrients{Calories: 300, Fat: 12, Iron: 2}
	b := Nutrients{Calories: 450, Fat: 3, Zinc: 1}
	if !a.Add(b).Sub(b).ApproxEqual(a, 1e-9) {
		t.Fatal("add then sub must restore the original vector")
	}
	if !(Nutrients{}).IsZero() || a.IsZero() {
		t.Fatal("IsZero misreports")
	}
}

func TestSummaryAddMealBuckets(t *testing.T) {
	var s DailyNutritionSummary
	s.AddMeal(MealLunch, Nutrients{Calories: 750})
	s.AddMeal(MealSnack, Nutrients{Calories: 100})
	if s.Totals.Calories != 850 || s.LunchCalories != 750 || s.SnackCalories != 100 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.BreakfastCalories != 0 || s.DinnerCalories != 0 {
		t.Fatalf("untouched buckets changed: %+v", s)
	}
	s.RemoveMeal(MealLunch, Nutrients{Calories: 750})
	if s.Totals.Calories != 100 || s.LunchCalories != 0 || s.MealCount != 1 {
		t.Fatalf("unexpected summary after removal %+v", s)
	}
}

func TestDefaultMealType(t *testing.T) {
	cases := []struct {
		hour int
		want MealType
	}{
		{4, MealSnack}, {5, MealBreakfast}, {10, MealBreakfast}, {11, MealLunch},
		{15, MealLunch}, {16, MealDinner}, {21, MealDinner}, {22, MealSnack},
	}
	for _, c := range cases {
		at := time.Date(2026, 10, 18, c.hour, 30, 0, 0, time.UTC)
		if got := DefaultMealType(at); got != c.want {
			t.Errorf("hour %d: got %s want %s", c.hour, got, c.want)
		}
	}
}

func TestParseMealType(t *testing.T) {
	if mt, ok := ParseMealType(" lunch "); !ok || mt != MealLunch {
		t.Fatalf("got %q %v", mt, ok)
	}
	if _, ok := ParseMealType("brunch"); ok {
		t.Fatal("brunch is not a meal type")
	}
}

func TestDayKeyUsesLocation(t *testing.T) {
	manila := time.FixedZone("PHT", 8*3600)
	at := time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC)
	if got := DayKey(at, manila); got != "2026-10-19" {
		t.Fatalf("got %s", got)
	}
}

func TestSourcesAreGofmted(t *testing.T) {
	files, err := filepath.Glob("*.go")
	if err != nil || len(files) == 0 {
		t.Fatalf("glob: %v (%d files)", err, len(files))
	}
	for _, name := range files {
		src, err := os.ReadFile(name)
		if err != nil {
			t.Fatal(err)
		}
		formatted, err := format.Source(src)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !bytes.Equal(src, formatted) {
			t.Errorf("%s is not gofmt-formatted", name)
		}
	}
}
