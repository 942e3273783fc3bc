package capture

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"nutritrack/apperr"
	"nutritrack/classifier"
	"nutritrack/logger"
	"nutritrack/models"
	"nutritrack/scale"
)

type RunnerConfig struct {
	UserID     uint
	Machine    *Machine
	Weights    scale.Source
	Classifier Classifier
	Committer  Committer
	Archiver   Archiver // optional
	Log        *logger.Logger
	// OnChange receives the state after observed signals and transitions.
	// It runs on the runner's own goroutine without the lock held; states
	// published faster than it returns are coalesced to the latest.
	OnChange func(State)
}

// Runner drives one capture. While scanning, the scale and the classifier
// run as two producers; their updates are merged under one lock and each
// update re-evaluates the machine. Every scan has an epoch, and updates
// from an older epoch are dropped.
type Runner struct {
	cfg    RunnerConfig
	log    *logger.Logger
	frames *FrameSlot
	states *Slot[State]

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu         sync.Mutex
	m          *Machine
	epoch      uint64
	cancelScan context.CancelFunc
	lastFrame  *classifier.Frame
}

func NewRunner(cfg RunnerConfig) *Runner {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		cfg:    cfg,
		log:    log.With("component", "capture.Runner", "user_id", cfg.UserID),
		frames: NewFrameSlot(),
		states: NewSlot[State](),
		m:      cfg.Machine,
	}
}

// Start begins the first scan. ctx bounds the life of the whole capture.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx != nil {
		return
	}
	r.ctx, r.stop = context.WithCancel(ctx)
	if r.cfg.OnChange != nil {
		r.wg.Add(1)
		go r.deliverStates(r.ctx)
	}
	if r.m.Phase() == PhaseScanning {
		r.startScanLocked()
	}
	r.notifyLocked()
}

// Close stops any running scan and waits for the producers to exit.
func (r *Runner) Close() {
	r.mu.Lock()
	r.stopScanLocked()
	if r.stop != nil {
		r.stop()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) UserID() uint { return r.cfg.UserID }

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m.State()
}

// PushFrame hands a camera frame to the classifier producer. Frames that
// arrive outside SCANNING are dropped.
func (r *Runner) PushFrame(f classifier.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	phase := r.m.Phase()
	if phase.Terminal() {
		return apperr.New(apperr.CodeInvalidState, "capture.push_frame", "capture has ended")
	}
	if phase == PhaseScanning {
		r.frames.Publish(f)
	}
	return nil
}

// Accept archives the candidate's frame when an archiver is configured and
// moves the dish into the meal. The upload runs without the lock; if the
// candidate was resolved meanwhile the accept is refused.
func (r *Runner) Accept(ctx context.Context) (State, error) {
	r.mu.Lock()
	if r.m.Phase() != PhaseDishReady {
		defer r.mu.Unlock()
		_, err := r.m.Accept("")
		return r.m.State(), err
	}
	ep := r.epoch
	var frame *classifier.Frame
	if r.cfg.Archiver != nil && r.lastFrame != nil {
		f := *r.lastFrame
		frame = &f
	}
	r.mu.Unlock()

	photoURL := ""
	if frame != nil {
		url, err := r.cfg.Archiver.ArchiveFrame(ctx, r.cfg.UserID, *frame)
		if err != nil {
			r.log.Warn("frame archive failed; keeping dish without photo", "error", err)
		} else {
			photoURL = url
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ep != r.epoch || r.m.Phase() != PhaseDishReady {
		return r.m.State(), apperr.New(apperr.CodeInvalidState, "capture.accept", "candidate changed while accepting")
	}
	eff, err := r.m.Accept(photoURL)
	if err != nil {
		return r.m.State(), err
	}
	r.log.Info("dish accepted", "dish", eff.Accepted.Name, "grams", eff.Accepted.WeightGrams, "kcal", eff.Accepted.Calories())
	r.applyLocked(eff)
	return r.m.State(), nil
}

func (r *Runner) Reject() (State, error) { return r.transition((*Machine).Reject) }
func (r *Runner) Retry() (State, error) { return r.transition((*Machine).Retry) }
func (r *Runner) Cancel() (State, error) { return r.transition((*Machine).Cancel) }
func (r *Runner) Review() (State, error) { return r.transition((*Machine).Review) }
func (r *Runner) Resume() (State, error) { return r.transition((*Machine).Resume) }

func (r *Runner) transition(fn func(*Machine) (Effect, error)) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eff, err := fn(r.m)
	if err != nil {
		return r.m.State(), err
	}
	r.applyLocked(eff)
	return r.m.State(), nil
}

func (r *Runner) RemoveDish(i int) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.m.RemoveDish(i); err != nil {
		return r.m.State(), err
	}
	r.notifyLocked()
	return r.m.State(), nil
}

func (r *Runner) SetMealType(t models.MealType) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.m.SetMealType(t); err != nil {
		return r.m.State(), err
	}
	r.notifyLocked()
	return r.m.State(), nil
}

func (r *Runner) SetNote(note string) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.m.SetNote(note); err != nil {
		return r.m.State(), err
	}
	r.notifyLocked()
	return r.m.State(), nil
}

// Commit persists the meal. The lock is not held while the committer runs;
// the machine refuses other edits until the commit completes.
func (r *Runner) Commit(ctx context.Context) (*models.Meal, *models.DailyNutritionSummary, error) {
	r.mu.Lock()
	req, err := r.m.BeginCommit()
	r.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	meal, summary, err := r.cfg.Committer.CommitMeal(ctx, r.cfg.UserID, req.MealType, req.Dishes, req.Note)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyLocked(r.m.CompleteCommit(err))
	if err != nil {
		r.log.Warn("meal commit failed; session kept", "error", err, "dishes", len(req.Dishes))
		r.notifyLocked()
		return nil, nil, err
	}
	return meal, summary, nil
}

func (r *Runner) applyLocked(eff Effect) {
	if eff.StopScan {
		r.stopScanLocked()
	}
	if eff.StartScan {
		r.startScanLocked()
	}
	if eff.Changed() {
		r.log.Debug("capture transition", "from", eff.From, "to", eff.To)
		r.notifyLocked()
	}
}

func (r *Runner) notifyLocked() {
	if r.cfg.OnChange != nil {
		r.states.Publish(r.m.State())
	}
}

// deliverStates hands published states to OnChange until ctx is done, then
// flushes the last pending one.
func (r *Runner) deliverStates(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			if st, ok := r.states.Take(); ok {
				r.cfg.OnChange(st)
			}
			return
		case <-r.states.Ready():
		}
		if st, ok := r.states.Take(); ok {
			r.cfg.OnChange(st)
		}
	}
}

func (r *Runner) startScanLocked() {
	r.stopScanLocked()
	if r.ctx == nil {
		return
	}
	ep := r.epoch
	scanCtx, cancel := context.WithCancel(r.ctx)
	r.cancelScan = cancel
	r.frames.Clear()
	r.lastFrame = nil

	g, gctx := errgroup.WithContext(scanCtx)
	g.Go(func() error { return r.weightLoop(gctx, ep) })
	g.Go(func() error { return r.classifyLoop(gctx, ep) })

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := g.Wait()
		cancel()
		if err != nil {
			r.scanFailed(ep, err)
		}
	}()
}

// stopScanLocked cancels the running scan and moves to a new epoch so any
// update already in flight is ignored.
func (r *Runner) stopScanLocked() {
	if r.cancelScan != nil {
		r.cancelScan()
		r.cancelScan = nil
	}
	r.epoch++
}

func (r *Runner) weightLoop(ctx context.Context, ep uint64) error {
	for reading := range r.cfg.Weights.Start(ctx) {
		if done := r.observe(ep, func() (Effect, error) { return r.m.ObserveWeight(ctx, reading) }); done {
			return nil
		}
	}
	return nil
}

func (r *Runner) classifyLoop(ctx context.Context, ep uint64) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.frames.Ready():
		}
		frame, ok := r.frames.Take()
		if !ok {
			continue
		}
		preds, err := r.cfg.Classifier.Classify(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, classifier.ErrClassifierUnavailable) {
				return err
			}
			r.log.Warn("frame classification failed", "error", err)
			continue
		}
		if done := r.observe(ep, func() (Effect, error) {
			r.lastFrame = &frame
			return r.m.ObservePredictions(ctx, preds)
		}); done {
			return nil
		}
	}
}

// observe applies one producer update if its epoch is still current and
// reports whether the producer should exit.
func (r *Runner) observe(ep uint64, update func() (Effect, error)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ep != r.epoch || r.m.Phase() != PhaseScanning {
		return true
	}
	eff, err := update()
	if err != nil {
		r.log.Warn("capture evaluation failed", "error", err)
	}
	r.applyLocked(eff)
	if !eff.Changed() {
		r.notifyLocked()
	}
	return ep != r.epoch
}

func (r *Runner) scanFailed(ep uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ep != r.epoch {
		return
	}
	r.log.Error("capture producer failed", "error", err)
	r.applyLocked(r.m.Fail(err))
}
