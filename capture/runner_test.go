package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nutritrack/apperr"
	"nutritrack/classifier"
	"nutritrack/logger"
	"nutritrack/models"
	"nutritrack/scale"
)

type fakeCommitter struct {
	mu    sync.Mutex
	err   error
	calls [][]RecognizedDish
}

func (f *fakeCommitter) CommitMeal(_ context.Context, userID uint, mealType models.MealType, dishes []RecognizedDish, note string) (*models.Meal, *models.DailyNutritionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dishes)
	if f.err != nil {
		return nil, nil, f.err
	}
	return &models.Meal{ID: 1, UserID: userID, Type: mealType, Note: note}, &models.DailyNutritionSummary{UserID: userID}, nil
}

type fakeArchiver struct{ n int }

func (a *fakeArchiver) ArchiveFrame(_ context.Context, _ uint, f classifier.Frame) (string, error) {
	a.n++
	return "https://cdn.example/" + string(f.Data), nil
}

// blockingArchiver parks every upload until release is closed.
type blockingArchiver struct {
	started chan struct{}
	release chan struct{}
}

func (a *blockingArchiver) ArchiveFrame(ctx context.Context, _ uint, _ classifier.Frame) (string, error) {
	a.started <- struct{}{}
	select {
	case <-a.release:
		return "https://cdn.example/slow.jpg", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func testRunnerConfig(model *classifier.StaticModel, committer Committer) RunnerConfig {
	return RunnerConfig{
		UserID:     42,
		Machine:    NewMachine(testFoods(), models.MealLunch, Options{}),
		Weights:    scale.Fixed{Grams: 200, Interval: time.Millisecond},
		Classifier: classifier.NewAdapter(model),
		Committer:  committer,
		Archiver:   &fakeArchiver{},
		Log:        logger.Nop(),
	}
}

func startRunner(t *testing.T, cfg RunnerConfig) *Runner {
	t.Helper()
	r := NewRunner(cfg)
	r.Start(context.Background())
	t.Cleanup(r.Close)
	return r
}

func newTestRunner(t *testing.T, model *classifier.StaticModel, committer Committer) *Runner {
	t.Helper()
	return startRunner(t, testRunnerConfig(model, committer))
}

// stateWithin reads the runner state and fails if the read blocks.
func stateWithin(t *testing.T, r *Runner, d time.Duration) State {
	t.Helper()
	ch := make(chan State, 1)
	go func() { ch <- r.State() }()
	select {
	case st := <-ch:
		return st
	case <-time.After(d):
		t.Fatal("State blocked")
		return State{}
	}
}

// waitPhase pushes a frame on every poll until the runner reaches want.
func waitPhase(t *testing.T, r *Runner, want Phase) State {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		st := r.State()
		if st.Phase == want {
			return st
		}
		if st.Phase == PhaseScanning {
			r.PushFrame(classifier.Frame{Data: []byte("frame.jpg"), ContentType: "image/jpeg"})
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("runner never reached %s, stuck in %s", want, r.State().Phase)
	return State{}
}

func TestRunnerReachesDishReadyAndAccepts(t *testing.T) {
	r := newTestRunner(t, classifier.NewStaticModel(pred("sinigang_pork", 0.85)), &fakeCommitter{})

	st := waitPhase(t, r, PhaseDishReady)
	if st.Candidate == nil || st.Candidate.Name != "Pork Sinigang" || st.Candidate.WeightGrams != 200 {
		t.Fatalf("unexpected candidate %+v", st.Candidate)
	}

	st, err := r.Accept(context.Background())
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if st.Phase != PhaseScanning || len(st.Dishes) != 1 {
		t.Fatalf("after accept: %+v", st)
	}
	if st.Dishes[0].PhotoURL != "https://cdn.example/frame.jpg" {
		t.Fatalf("photo url = %q", st.Dishes[0].PhotoURL)
	}
	if st.Signals.Stable || st.Signals.Predictions != nil {
		t.Fatalf("signals not reset: %+v", st.Signals)
	}
}

func TestRunnerAcceptDoesNotHoldLockDuringUpload(t *testing.T) {
	archiver := &blockingArchiver{started: make(chan struct{}, 1), release: make(chan struct{})}
	cfg := testRunnerConfig(classifier.NewStaticModel(pred("sinigang_pork", 0.85)), &fakeCommitter{})
	cfg.Archiver = archiver
	r := startRunner(t, cfg)

	waitPhase(t, r, PhaseDishReady)
	type result struct {
		st  State
		err error
	}
	done := make(chan result, 1)
	go func() {
		st, err := r.Accept(context.Background())
		done <- result{st, err}
	}()
	<-archiver.started

	if st := stateWithin(t, r, time.Second); st.Phase != PhaseDishReady {
		t.Fatalf("phase during upload = %s", st.Phase)
	}
	if err := r.PushFrame(classifier.Frame{Data: []byte("late.jpg")}); err != nil {
		t.Fatalf("push during upload: %v", err)
	}

	close(archiver.release)
	res := <-done
	if res.err != nil {
		t.Fatalf("accept: %v", res.err)
	}
	if len(res.st.Dishes) != 1 || res.st.Dishes[0].PhotoURL != "https://cdn.example/slow.jpg" {
		t.Fatalf("dishes after accept: %+v", res.st.Dishes)
	}
}

func TestRunnerAcceptRefusedWhenCandidateResolvedDuringUpload(t *testing.T) {
	archiver := &blockingArchiver{started: make(chan struct{}, 1), release: make(chan struct{})}
	cfg := testRunnerConfig(classifier.NewStaticModel(pred("sinigang_pork", 0.85)), &fakeCommitter{})
	cfg.Archiver = archiver
	r := startRunner(t, cfg)

	waitPhase(t, r, PhaseDishReady)
	done := make(chan error, 1)
	go func() {
		_, err := r.Accept(context.Background())
		done <- err
	}()
	<-archiver.started

	if _, err := r.Reject(); err != nil {
		t.Fatalf("reject during upload: %v", err)
	}
	close(archiver.release)

	if err := <-done; !apperr.Is(err, apperr.CodeInvalidState) {
		t.Fatalf("accept after reject: %v", err)
	}
	if st := r.State(); len(st.Dishes) != 0 || st.Phase != PhaseScanning {
		t.Fatalf("rejected candidate was kept: %+v", st)
	}
}

func TestRunnerOnChangeRunsOutsideLock(t *testing.T) {
	gate := make(chan struct{})
	var (
		mu   sync.Mutex
		seen []Phase
	)
	cfg := testRunnerConfig(classifier.NewStaticModel(pred("adobo_chicken", 0.9)), &fakeCommitter{})
	cfg.OnChange = func(st State) {
		<-gate
		mu.Lock()
		seen = append(seen, st.Phase)
		mu.Unlock()
	}
	r := startRunner(t, cfg)
	defer func() {
		select {
		case <-gate:
		default:
			close(gate)
		}
	}()

	// The listener is parked, so reaching DISH_READY proves the runner
	// kept evaluating without waiting on it.
	waitPhase(t, r, PhaseDishReady)
	stateWithin(t, r, time.Second)
	close(gate)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		last := PhaseScanning
		if len(seen) > 0 {
			last = seen[len(seen)-1]
		}
		mu.Unlock()
		if last == PhaseDishReady {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("listener never received the DISH_READY state")
}

func TestRunnerCommitFailureLeavesSessionIntact(t *testing.T) {
	committer := &fakeCommitter{err: apperr.New(apperr.CodeStorage, "meals.commit", "insert meal_items failed")}
	r := newTestRunner(t, classifier.NewStaticModel(pred("sinigang_pork", 0.85)), committer)

	waitPhase(t, r, PhaseDishReady)
	if _, err := r.Accept(context.Background()); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := r.Review(); err != nil {
		t.Fatalf("review: %v", err)
	}

	_, _, err := r.Commit(context.Background())
	if !apperr.Is(err, apperr.CodeStorage) {
		t.Fatalf("commit err = %v", err)
	}
	st := r.State()
	if st.Phase != PhaseMealSummary || len(st.Dishes) != 1 || st.Committing {
		t.Fatalf("failed commit changed state: %+v", st)
	}

	committer.mu.Lock()
	committer.err = nil
	committer.mu.Unlock()
	meal, _, err := r.Commit(context.Background())
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if meal.UserID != 42 || meal.Type != models.MealLunch {
		t.Fatalf("unexpected meal %+v", meal)
	}
	if st := r.State(); st.Phase != PhaseCommitted || len(st.Dishes) != 0 {
		t.Fatalf("after commit: %+v", st)
	}
	if len(committer.calls) != 2 {
		t.Fatalf("committer called %d times", len(committer.calls))
	}
}

func TestRunnerRejectRestartsScan(t *testing.T) {
	model := classifier.NewStaticModel(pred(classifier.NegativeLabel, 0.91))
	r := newTestRunner(t, model, &fakeCommitter{})

	st := waitPhase(t, r, PhaseError)
	if st.ErrorCode != apperr.CodeUnrecognizedDish {
		t.Fatalf("error code = %q", st.ErrorCode)
	}
	model.Set(pred("adobo_chicken", 0.8))
	if _, err := r.Retry(); err != nil {
		t.Fatalf("retry: %v", err)
	}
	st = waitPhase(t, r, PhaseDishReady)
	if st.Candidate.Name != "Chicken Adobo" {
		t.Fatalf("candidate after retry = %q", st.Candidate.Name)
	}
	if _, err := r.Reject(); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if st := r.State(); st.Phase != PhaseScanning || len(st.Dishes) != 0 {
		t.Fatalf("after reject: %+v", st)
	}
}

func TestRunnerClassifierUnavailableFails(t *testing.T) {
	model := classifier.NewStaticModel()
	model.Fail(errors.New("endpoint not running"))
	r := newTestRunner(t, model, &fakeCommitter{})

	st := waitPhase(t, r, PhaseFailed)
	if st.ErrorCode != apperr.CodeClassifierUnavailable {
		t.Fatalf("error code = %q", st.ErrorCode)
	}
	if err := r.PushFrame(classifier.Frame{}); !apperr.Is(err, apperr.CodeInvalidState) {
		t.Fatalf("push after failure: %v", err)
	}
}

func TestRunnerCancelStopsProducers(t *testing.T) {
	r := newTestRunner(t, classifier.NewStaticModel(), &fakeCommitter{})
	if _, err := r.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producers still running after cancel")
	}
	if r.State().Phase != PhaseCancelled {
		t.Fatalf("phase = %s", r.State().Phase)
	}
}

func TestFrameSlotKeepsLatest(t *testing.T) {
	s := NewFrameSlot()
	s.Publish(classifier.Frame{Data: []byte("1")})
	s.Publish(classifier.Frame{Data: []byte("2")})
	<-s.Ready()
	f, ok := s.Take()
	if !ok || string(f.Data) != "2" {
		t.Fatalf("took %q, want latest frame", f.Data)
	}
	if _, ok := s.Take(); ok {
		t.Fatal("slot should be empty after take")
	}
	if s.Dropped() != 1 {
		t.Fatalf("dropped = %d", s.Dropped())
	}
	s.Publish(classifier.Frame{Data: []byte("3")})
	s.Clear()
	if _, ok := s.Take(); ok {
		t.Fatal("clear must drop the pending frame")
	}
	select {
	case <-s.Ready():
		t.Fatal("clear must drain the ready signal")
	default:
	}
}
