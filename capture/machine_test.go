package capture

import (
	"context"
	"errors"
	"math"
	"testing"

	"nutritrack/apperr"
	"nutritrack/classifier"
	"nutritrack/models"
	"nutritrack/scale"
)

type fakeFoods map[string]*models.FoodReference

func (f fakeFoods) GetFoodByName(_ context.Context, name string) (*models.FoodReference, error) {
	if food, ok := f[name]; ok {
		c := *food
		return &c, nil
	}
	return nil, apperr.New(apperr.CodeNotFound, "foods.get", "no profile for "+name)
}

var sinigang = &models.FoodReference{
	ID:   7,
	Name: "Pork Sinigang",
	Nutrients: models.Nutrients{
		Calories: 58, Protein: 4.9, Carbs: 2.6, Fat: 3.1,
		SaturatedFat: 1.1, Sodium: 310, Potassium: 180, VitaminC: 6.5,
	},
}

var adobo = &models.FoodReference{
	ID:        3,
	Name:      "Chicken Adobo",
	Nutrients: models.Nutrients{Calories: 190, Protein: 18, Carbs: 3, Fat: 11, Sodium: 540},
}

func testFoods() fakeFoods {
	return fakeFoods{sinigang.Name: sinigang, adobo.Name: adobo}
}

func newTestMachine(opts Options) *Machine {
	return NewMachine(testFoods(), models.MealLunch, opts)
}

// settle feeds a stable weight then one classified frame.
func settle(t *testing.T, m *Machine, grams int, preds ...classifier.Prediction) Effect {
	t.Helper()
	ctx := context.Background()
	if _, err := m.ObserveWeight(ctx, scale.Reading{Grams: grams, Stable: true}); err != nil {
		t.Fatalf("observe weight: %v", err)
	}
	eff, err := m.ObservePredictions(ctx, preds)
	if err != nil {
		t.Fatalf("observe predictions: %v", err)
	}
	return eff
}

func pred(label string, conf float64) classifier.Prediction {
	return classifier.Prediction{Label: label, Confidence: conf}
}

func TestSinigangBecomesDishReady(t *testing.T) {
	m := newTestMachine(Options{})
	eff := settle(t, m, 200, pred("sinigang_pork", 0.85))

	if m.Phase() != PhaseDishReady {
		t.Fatalf("phase = %s, want DISH_READY", m.Phase())
	}
	if !eff.StopScan || !eff.Changed() {
		t.Fatalf("entering DISH_READY must stop the scan: %+v", eff)
	}
	c := m.Candidate()
	if c.Name != "Pork Sinigang" || c.WeightGrams != 200 || c.Confidence != 0.85 {
		t.Fatalf("unexpected candidate %+v", c)
	}
	if want := sinigang.Calories * 2; math.Abs(c.Calories()-want) > 1e-9 {
		t.Fatalf("calorie estimate = %v, want %v", c.Calories(), want)
	}
}

func TestNegativeLabelGoesToError(t *testing.T) {
	m := newTestMachine(Options{})
	settle(t, m, 150, pred(classifier.NegativeLabel, 0.91))

	if m.Phase() != PhaseError {
		t.Fatalf("phase = %s, want ERROR", m.Phase())
	}
	st := m.State()
	if st.ErrorCode != apperr.CodeUnrecognizedDish || st.Message == "" {
		t.Fatalf("unexpected error state %+v", st)
	}
	if m.Session().Len() != 0 || m.Candidate() != nil {
		t.Fatal("nothing may be staged on ERROR")
	}
}

func TestBelowThresholdNeverLeavesScanning(t *testing.T) {
	labels := []string{"sinigang_pork", "adobo_chicken", classifier.NegativeLabel, "pizza"}
	weights := []int{1, 150, 200, 350, 900}
	for _, label := range labels {
		for _, grams := range weights {
			for _, stable := range []bool{false, true} {
				for conf := 0.0; conf < DefaultThreshold; conf += 0.05 {
					m := newTestMachine(Options{})
					ctx := context.Background()
					m.ObservePredictions(ctx, []classifier.Prediction{pred(label, conf)})
					m.ObserveWeight(ctx, scale.Reading{Grams: grams, Stable: stable})
					if m.Phase() != PhaseScanning {
						t.Fatalf("%s@%.2f %dg stable=%v left SCANNING -> %s", label, conf, grams, stable, m.Phase())
					}
				}
			}
		}
	}
}

func TestUnstableWeightNeverLeavesScanning(t *testing.T) {
	ctx := context.Background()
	for _, label := range []string{"sinigang_pork", classifier.NegativeLabel} {
		for _, conf := range []float64{0.7, 0.85, 1} {
			m := newTestMachine(Options{})
			for g := 0; g <= 300; g += 25 {
				m.ObserveWeight(ctx, scale.Reading{Grams: g})
				m.ObservePredictions(ctx, []classifier.Prediction{pred(label, conf)})
				if m.Phase() != PhaseScanning {
					t.Fatalf("%s@%.2f left SCANNING at %dg while unstable", label, conf, g)
				}
			}
		}
	}
}

func TestZeroWeightNeverLeavesScanning(t *testing.T) {
	m := newTestMachine(Options{})
	settle(t, m, 0, pred("sinigang_pork", 0.99))
	if m.Phase() != PhaseScanning {
		t.Fatalf("phase = %s at 0 g", m.Phase())
	}
}

func TestThresholdIsInclusive(t *testing.T) {
	m := newTestMachine(Options{})
	settle(t, m, 180, pred("adobo_chicken", 0.70))
	if m.Phase() != PhaseDishReady {
		t.Fatalf("phase = %s at exactly 0.70", m.Phase())
	}
}

func TestOnlyTopPredictionCounts(t *testing.T) {
	m := newTestMachine(Options{})
	settle(t, m, 180, pred("adobo_chicken", 0.69), pred("sinigang_pork", 0.68))
	if m.Phase() != PhaseScanning {
		t.Fatalf("phase = %s, runner-up predictions must be ignored", m.Phase())
	}
}

func TestMissingProfileIsDistinctError(t *testing.T) {
	m := newTestMachine(Options{})
	settle(t, m, 220, pred("kare_kare", 0.9))
	if m.Phase() != PhaseError {
		t.Fatalf("phase = %s, want ERROR", m.Phase())
	}
	if code := m.State().ErrorCode; code != apperr.CodeMissingProfile {
		t.Fatalf("error code = %q, want missing_profile", code)
	}
}

type brokenFoods struct{}

func (brokenFoods) GetFoodByName(context.Context, string) (*models.FoodReference, error) {
	return nil, errors.New("connection reset")
}

func TestLookupFailureStaysScanning(t *testing.T) {
	m := NewMachine(brokenFoods{}, models.MealLunch, Options{})
	m.ObserveWeight(context.Background(), scale.Reading{Grams: 200, Stable: true})
	_, err := m.ObservePredictions(context.Background(), []classifier.Prediction{pred("sinigang_pork", 0.9)})
	if !apperr.Is(err, apperr.CodeStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if m.Phase() != PhaseScanning {
		t.Fatalf("phase = %s", m.Phase())
	}
}

func TestAcceptAppendsFullNutrientsAndResets(t *testing.T) {
	m := newTestMachine(Options{
		Assess: func(name string, n models.Nutrients) []string {
			return []string{name + " checked"}
		},
	})
	settle(t, m, 200, pred("sinigang_pork", 0.85))

	eff, err := m.Accept("https://cdn.example/frames/1.jpg")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !eff.StartScan || eff.To != PhaseScanning {
		t.Fatalf("accept must restart scanning: %+v", eff)
	}
	if m.Session().Len() != 1 {
		t.Fatalf("session has %d dishes", m.Session().Len())
	}
	dish := m.Session().Dishes()[0]
	if !dish.Nutrients.ApproxEqual(sinigang.Nutrients.Scale(200), 1e-9) {
		t.Fatalf("nutrients not scaled: %+v", dish.Nutrients)
	}
	if dish.FoodReferenceID != sinigang.ID || dish.PhotoURL == "" || len(dish.Warnings) != 1 {
		t.Fatalf("unexpected dish %+v", dish)
	}
	if m.Snapshot().Stable || m.Snapshot().WeightGrams != 0 || m.Snapshot().Predictions != nil || m.Candidate() != nil {
		t.Fatalf("signals not reset: %+v", m.Snapshot())
	}
}

func TestRejectDiscardsCandidate(t *testing.T) {
	m := newTestMachine(Options{})
	settle(t, m, 200, pred("sinigang_pork", 0.85))
	if _, err := m.Reject(); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if m.Phase() != PhaseScanning || m.Session().Len() != 0 || m.Candidate() != nil {
		t.Fatalf("reject left state %+v", m.State())
	}
	if m.Snapshot().Stable {
		t.Fatal("signals must reset on reject")
	}
}

func TestRetryClearsError(t *testing.T) {
	m := newTestMachine(Options{})
	settle(t, m, 150, pred(classifier.NegativeLabel, 0.91))
	eff, err := m.Retry()
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !eff.StartScan || m.Phase() != PhaseScanning || m.State().Message != "" {
		t.Fatalf("retry left state %+v", m.State())
	}
}

func TestTransitionsRejectWrongPhase(t *testing.T) {
	m := newTestMachine(Options{})
	if _, err := m.Accept(""); !apperr.Is(err, apperr.CodeInvalidState) {
		t.Fatalf("accept while scanning: %v", err)
	}
	if _, err := m.Retry(); !apperr.Is(err, apperr.CodeInvalidState) {
		t.Fatalf("retry while scanning: %v", err)
	}
	if _, err := m.Review(); !apperr.Is(err, apperr.CodeInvalidState) {
		t.Fatalf("review with empty meal: %v", err)
	}
	if _, err := m.BeginCommit(); !apperr.Is(err, apperr.CodeInvalidState) {
		t.Fatalf("commit while scanning: %v", err)
	}
}

func TestCancelFromErrorClearsEverything(t *testing.T) {
	m := newTestMachine(Options{})
	settle(t, m, 200, pred("sinigang_pork", 0.85))
	m.Accept("")
	settle(t, m, 150, pred(classifier.NegativeLabel, 0.91))

	eff, err := m.Cancel()
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !eff.StopScan || m.Phase() != PhaseCancelled || m.Session().Len() != 0 {
		t.Fatalf("cancel left state %+v", m.State())
	}
	if _, err := m.Retry(); !apperr.Is(err, apperr.CodeInvalidState) {
		t.Fatal("no transition allowed after cancel")
	}
}

func acceptDish(t *testing.T, m *Machine, grams int, label string) {
	t.Helper()
	settle(t, m, grams, pred(label, 0.9))
	if _, err := m.Accept(""); err != nil {
		t.Fatalf("accept %s: %v", label, err)
	}
}

func TestAddThenRemoveRestoresTotals(t *testing.T) {
	m := newTestMachine(Options{})
	acceptDish(t, m, 300, "sinigang_pork")
	before := m.Session().Totals()

	acceptDish(t, m, 250, "adobo_chicken")
	if _, err := m.Review(); err != nil {
		t.Fatalf("review: %v", err)
	}
	removed, err := m.RemoveDish(1)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.Name != adobo.Name {
		t.Fatalf("removed %q", removed.Name)
	}
	if !m.Session().Totals().ApproxEqual(before, 1e-9) {
		t.Fatalf("totals %+v, want %+v", m.Session().Totals(), before)
	}
	if _, err := m.RemoveDish(5); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("out of range remove: %v", err)
	}
}

func TestSummaryResumeAndMealType(t *testing.T) {
	m := newTestMachine(Options{})
	acceptDish(t, m, 300, "sinigang_pork")
	if _, err := m.Review(); err != nil {
		t.Fatalf("review: %v", err)
	}
	if err := m.SetMealType(models.MealDinner); err != nil {
		t.Fatalf("set meal type: %v", err)
	}
	eff, err := m.Resume()
	if err != nil || !eff.StartScan || m.Phase() != PhaseScanning {
		t.Fatalf("resume: %v %+v", err, eff)
	}
	if m.Session().MealType != models.MealDinner || m.Session().Len() != 1 {
		t.Fatalf("resume lost the session: %+v", m.State())
	}
}

func TestCommitFailureKeepsSession(t *testing.T) {
	m := newTestMachine(Options{})
	acceptDish(t, m, 300, "sinigang_pork")
	acceptDish(t, m, 450, "adobo_chicken")
	m.Review()
	m.SetNote("with rice")

	req, err := m.BeginCommit()
	if err != nil {
		t.Fatalf("begin commit: %v", err)
	}
	if len(req.Dishes) != 2 || req.MealType != models.MealLunch || req.Note != "with rice" {
		t.Fatalf("unexpected commit request %+v", req)
	}
	if _, err := m.BeginCommit(); !apperr.Is(err, apperr.CodeInvalidState) {
		t.Fatal("second commit must be refused while one is running")
	}
	if _, err := m.RemoveDish(0); !apperr.Is(err, apperr.CodeInvalidState) {
		t.Fatal("edits must be refused while committing")
	}

	m.CompleteCommit(errors.New("disk full"))
	if m.Phase() != PhaseMealSummary || m.Session().Len() != 2 || m.Session().Note != "with rice" {
		t.Fatalf("failed commit changed the session: %+v", m.State())
	}

	if _, err := m.BeginCommit(); err != nil {
		t.Fatalf("retry commit: %v", err)
	}
	eff := m.CompleteCommit(nil)
	if eff.To != PhaseCommitted || m.Session().Len() != 0 {
		t.Fatalf("commit did not clear the session: %+v", m.State())
	}
}

func TestCommitRefusesEmptyMeal(t *testing.T) {
	m := newTestMachine(Options{})
	acceptDish(t, m, 300, "sinigang_pork")
	m.Review()
	m.RemoveDish(0)
	if _, err := m.BeginCommit(); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("empty commit: %v", err)
	}
}

func TestConfirmFramesDebounce(t *testing.T) {
	m := newTestMachine(Options{ConfirmFrames: 2})
	ctx := context.Background()
	m.ObserveWeight(ctx, scale.Reading{Grams: 200, Stable: true})

	m.ObservePredictions(ctx, []classifier.Prediction{pred("sinigang_pork", 0.9)})
	if m.Phase() != PhaseScanning {
		t.Fatal("one frame must not be enough with ConfirmFrames=2")
	}
	m.ObservePredictions(ctx, []classifier.Prediction{pred("adobo_chicken", 0.9)})
	if m.Phase() != PhaseScanning {
		t.Fatal("label change must restart the streak")
	}
	m.ObservePredictions(ctx, []classifier.Prediction{pred("adobo_chicken", 0.92)})
	if m.Phase() != PhaseDishReady || m.Candidate().Name != adobo.Name {
		t.Fatalf("phase = %s after two matching frames", m.Phase())
	}
}

func TestFailIsTerminal(t *testing.T) {
	m := newTestMachine(Options{})
	eff := m.Fail(classifier.ErrClassifierUnavailable)
	if m.Phase() != PhaseFailed || !eff.StopScan {
		t.Fatalf("fail: %+v", eff)
	}
	if m.State().ErrorCode != apperr.CodeClassifierUnavailable {
		t.Fatalf("error code = %q", m.State().ErrorCode)
	}
	if _, err := m.Cancel(); !apperr.Is(err, apperr.CodeInvalidState) {
		t.Fatal("failed capture cannot be cancelled")
	}
}
