package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nutritrack/apperr"
	"nutritrack/classifier"
	"nutritrack/models"
	"nutritrack/scale"
)

type Phase string

const (
	PhaseScanning    Phase = "SCANNING"
	PhaseDishReady   Phase = "DISH_READY"
	PhaseError       Phase = "ERROR"
	PhaseMealSummary Phase = "MEAL_SUMMARY"
	PhaseCommitted   Phase = "COMMITTED"
	PhaseCancelled   Phase = "CANCELLED"
	PhaseFailed      Phase = "FAILED"
)

func (p Phase) Terminal() bool {
	return p == PhaseCommitted || p == PhaseCancelled || p == PhaseFailed
}

const (
	msgUnrecognized   = "Sorry, we couldn't recognize this dish. Try another angle or a different dish."
	msgMissingProfile = "This dish was recognized but we have no nutrition data for it yet."
)

// Effect tells the caller what a transition needs done outside the machine.
type Effect struct {
	From, To  Phase
	StartScan bool // producers must be (re)started
	StopScan  bool // producers must be stopped and their late updates dropped
	Accepted  *RecognizedDish
}

func (e Effect) Changed() bool { return e.From != e.To }

type Options struct {
	ConfirmFrames int // consecutive frames with the same top label; <1 means 1
	// Assess returns dietary warnings for an accepted dish. Optional.
	Assess func(name string, n models.Nutrients) []string
}

// Machine is the capture state machine. It is not safe for concurrent use;
// Runner serializes access to it.
type Machine struct {
	opts  Options
	foods FoodLookup

	phase     Phase
	session   *MealSession
	snap      Snapshot
	candidate *RecognizedDish
	message   string
	errCode   apperr.Code

	streakLabel string
	streak      int
	committing  bool
}

func NewMachine(foods FoodLookup, mealType models.MealType, opts Options) *Machine {
	if opts.ConfirmFrames < 1 {
		opts.ConfirmFrames = 1
	}
	return &Machine{
		opts:    opts,
		foods:   foods,
		phase:   PhaseScanning,
		session: NewMealSession(mealType),
	}
}

func (m *Machine) Phase() Phase { return m.phase }

func (m *Machine) Session() *MealSession { return m.session }

func (m *Machine) Snapshot() Snapshot { return m.snap }

func (m *Machine) Candidate() *RecognizedDish {
	if m.candidate == nil {
		return nil
	}
	c := *m.candidate
	return &c
}

// ObserveWeight records a scale reading and re-evaluates.
func (m *Machine) ObserveWeight(ctx context.Context, r scale.Reading) (Effect, error) {
	if m.phase != PhaseScanning {
		return m.noop(), nil
	}
	m.snap.WeightGrams = r.Grams
	m.snap.Stable = r.Stable
	return m.evaluate(ctx)
}

// ObservePredictions records one classified frame and re-evaluates.
func (m *Machine) ObservePredictions(ctx context.Context, preds []classifier.Prediction) (Effect, error) {
	if m.phase != PhaseScanning {
		return m.noop(), nil
	}
	m.snap.Predictions = append([]classifier.Prediction(nil), preds...)
	switch {
	case len(preds) == 0:
		m.streakLabel, m.streak = "", 0
	case preds[0].Label == m.streakLabel:
		m.streak++
	default:
		m.streakLabel, m.streak = preds[0].Label, 1
	}
	return m.evaluate(ctx)
}

func (m *Machine) evaluate(ctx context.Context) (Effect, error) {
	d := Decide(m.snap, DefaultThreshold)
	if d.Verdict == VerdictWait || m.streak < m.opts.ConfirmFrames {
		return m.noop(), nil
	}
	if d.Verdict == VerdictUnrecognized {
		return m.toError(apperr.CodeUnrecognizedDish, msgUnrecognized), nil
	}

	food, err := m.foods.GetFoodByName(ctx, d.DishName)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return m.toError(apperr.CodeMissingProfile, msgMissingProfile), nil
		}
		return m.noop(), apperr.Wrap(apperr.CodeStorage, "capture.evaluate", err)
	}

	weight := float64(m.snap.WeightGrams)
	from := m.phase
	m.candidate = &RecognizedDish{
		Name:            food.Name,
		Label:           d.Label,
		WeightGrams:     weight,
		Confidence:      d.Confidence,
		Nutrients:       models.Nutrients{Calories: food.Calories * weight / 100},
		FoodReferenceID: food.ID,
		Candidates:      append([]classifier.Prediction(nil), m.snap.Predictions...),
		per100g:         food.Nutrients,
	}
	m.phase = PhaseDishReady
	return Effect{From: from, To: m.phase, StopScan: true}, nil
}

func (m *Machine) toError(code apperr.Code, msg string) Effect {
	from := m.phase
	m.phase = PhaseError
	m.errCode = code
	m.message = msg
	return Effect{From: from, To: m.phase, StopScan: true}
}

// Accept computes the full nutrient vector for the candidate, adds it to
// the session and returns to scanning.
func (m *Machine) Accept(photoURL string) (Effect, error) {
	if err := m.require("capture.accept", PhaseDishReady); err != nil {
		return Effect{}, err
	}
	dish := *m.candidate
	dish.Nutrients = dish.per100g.Scale(dish.WeightGrams)
	dish.PhotoURL = photoURL
	if m.opts.Assess != nil {
		dish.Warnings = m.opts.Assess(dish.Name, dish.Nutrients)
	}
	m.session.Append(dish)
	eff := m.rescan()
	eff.Accepted = &dish
	return eff, nil
}

func (m *Machine) Reject() (Effect, error) {
	if err := m.require("capture.reject", PhaseDishReady); err != nil {
		return Effect{}, err
	}
	return m.rescan(), nil
}

func (m *Machine) Retry() (Effect, error) {
	if err := m.require("capture.retry", PhaseError); err != nil {
		return Effect{}, err
	}
	return m.rescan(), nil
}

// Cancel abandons the capture from any live phase. Nothing is persisted.
func (m *Machine) Cancel() (Effect, error) {
	if m.phase.Terminal() || m.committing {
		return Effect{}, m.invalid("capture.cancel")
	}
	from := m.phase
	m.resetSignals()
	m.session.Clear()
	m.phase = PhaseCancelled
	return Effect{From: from, To: m.phase, StopScan: true}, nil
}

// Review opens the meal summary. Only reachable while scanning with at
// least one accepted dish.
func (m *Machine) Review() (Effect, error) {
	if err := m.require("capture.review", PhaseScanning); err != nil {
		return Effect{}, err
	}
	if m.session.Len() == 0 {
		return Effect{}, apperr.New(apperr.CodeInvalidState, "capture.review", "no dishes in this meal yet")
	}
	m.resetSignals()
	m.phase = PhaseMealSummary
	return Effect{From: PhaseScanning, To: m.phase, StopScan: true}, nil
}

func (m *Machine) Resume() (Effect, error) {
	if err := m.require("capture.resume", PhaseMealSummary); err != nil {
		return Effect{}, err
	}
	if m.committing {
		return Effect{}, m.invalid("capture.resume")
	}
	return m.rescan(), nil
}

func (m *Machine) RemoveDish(i int) (RecognizedDish, error) {
	if err := m.require("capture.remove_dish", PhaseMealSummary); err != nil {
		return RecognizedDish{}, err
	}
	if m.committing {
		return RecognizedDish{}, m.invalid("capture.remove_dish")
	}
	return m.session.Remove(i)
}

func (m *Machine) SetMealType(t models.MealType) error {
	if m.phase.Terminal() || m.committing {
		return m.invalid("capture.set_meal_type")
	}
	m.session.MealType = t
	return nil
}

func (m *Machine) SetNote(note string) error {
	if m.phase.Terminal() || m.committing {
		return m.invalid("capture.set_note")
	}
	m.session.Note = note
	return nil
}

// CommitRequest is what BeginCommit hands to the committer.
type CommitRequest struct {
	MealType models.MealType
	Note     string
	Dishes   []RecognizedDish
}

// BeginCommit freezes the session for a commit. Exactly one CompleteCommit
// must follow.
func (m *Machine) BeginCommit() (CommitRequest, error) {
	if err := m.require("capture.commit", PhaseMealSummary); err != nil {
		return CommitRequest{}, err
	}
	if m.committing {
		return CommitRequest{}, apperr.New(apperr.CodeInvalidState, "capture.commit", "commit already in progress")
	}
	if m.session.Len() == 0 {
		return CommitRequest{}, apperr.New(apperr.CodeValidation, "capture.commit", "meal has no dishes")
	}
	m.committing = true
	return CommitRequest{
		MealType: m.session.MealType,
		Note:     m.session.Note,
		Dishes:   m.session.Dishes(),
	}, nil
}

// CompleteCommit ends a commit. On failure the session stays as it was so
// the user can retry.
func (m *Machine) CompleteCommit(err error) Effect {
	m.committing = false
	if err != nil {
		return m.noop()
	}
	from := m.phase
	m.session.Clear()
	m.phase = PhaseCommitted
	return Effect{From: from, To: m.phase}
}

// Fail ends the session because a producer can no longer run.
func (m *Machine) Fail(err error) Effect {
	if m.phase.Terminal() {
		return m.noop()
	}
	from := m.phase
	m.resetSignals()
	m.phase = PhaseFailed
	m.errCode = apperr.CodeOf(err)
	if m.errCode == "" {
		m.errCode = apperr.CodeInternal
	}
	m.message = "The dish classifier is unavailable."
	if err != nil && !errors.Is(err, classifier.ErrClassifierUnavailable) {
		m.message = err.Error()
	}
	return Effect{From: from, To: m.phase, StopScan: true}
}

func (m *Machine) rescan() Effect {
	from := m.phase
	m.resetSignals()
	m.phase = PhaseScanning
	return Effect{From: from, To: m.phase, StartScan: true}
}

func (m *Machine) resetSignals() {
	m.snap = Snapshot{}
	m.candidate = nil
	m.message = ""
	m.errCode = ""
	m.streakLabel, m.streak = "", 0
}

func (m *Machine) require(op string, want Phase) error {
	if m.phase != want {
		return apperr.New(apperr.CodeInvalidState, op, fmt.Sprintf("not allowed in %s", m.phase))
	}
	return nil
}

func (m *Machine) invalid(op string) error {
	if m.committing {
		return apperr.New(apperr.CodeInvalidState, op, "commit in progress")
	}
	return apperr.New(apperr.CodeInvalidState, op, fmt.Sprintf("not allowed in %s", m.phase))
}

func (m *Machine) noop() Effect { return Effect{From: m.phase, To: m.phase} }

// State is the externally visible view of a capture.
type State struct {
	Phase      Phase            `json:"phase"`
	Signals    Snapshot         `json:"signals"`
	Candidate  *RecognizedDish  `json:"candidate,omitempty"`
	Message    string           `json:"message,omitempty"`
	ErrorCode  apperr.Code      `json:"error_code,omitempty"`
	MealType   models.MealType  `json:"meal_type"`
	Note       string           `json:"note,omitempty"`
	Dishes     []RecognizedDish `json:"dishes"`
	Totals     models.Nutrients `json:"totals"`
	Committing bool             `json:"committing,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (m *Machine) State() State {
	dishes := m.session.Dishes()
	if dishes == nil {
		dishes = []RecognizedDish{}
	}
	return State{
		Phase:      m.phase,
		Signals:    m.snap,
		Candidate:  m.Candidate(),
		Message:    m.message,
		ErrorCode:  m.errCode,
		MealType:   m.session.MealType,
		Note:       m.session.Note,
		Dishes:     dishes,
		Totals:     m.session.Totals(),
		Committing: m.committing,
		UpdatedAt:  time.Now(),
	}
}
