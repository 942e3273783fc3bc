package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"nutritrack/apperr"
	"nutritrack/capture"
	"nutritrack/logger"
	"nutritrack/models"
	"nutritrack/scale"
	"nutritrack/utils"
)

type CaptureConfig struct {
	ConfirmFrames int
	Scale         scale.Options
	IdleTimeout   time.Duration // 0 means 15 minutes
}

// CaptureService owns the live capture sessions, at most one per user.
type CaptureService struct {
	cfg      CaptureConfig
	foods    capture.FoodLookup
	cls      capture.Classifier
	meals    capture.Committer
	archive  capture.Archiver
	hub      *RealtimeHub
	log      *logger.Logger
	now      func() time.Time
	newScale func() scale.Source

	mu       sync.Mutex
	sessions map[string]*captureEntry
	byUser   map[uint]string
}

type captureEntry struct {
	id      string
	userID  uint
	runner  *capture.Runner
	touched time.Time
}

// CaptureSession is what the API returns for a session.
type CaptureSession struct {
	ID    string        `json:"id"`
	State capture.State `json:"state"`
}

// NewCaptureService wires the capture pipeline. archive and hub may be nil.
func NewCaptureService(cfg CaptureConfig, foods capture.FoodLookup, cls capture.Classifier, meals capture.Committer, archive capture.Archiver, hub *RealtimeHub, log *logger.Logger) *CaptureService {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 15 * time.Minute
	}
	s := &CaptureService{
		cfg:      cfg,
		foods:    foods,
		cls:      cls,
		meals:    meals,
		archive:  archive,
		hub:      hub,
		log:      log.With("service", "CaptureService"),
		now:      time.Now,
		sessions: map[string]*captureEntry{},
		byUser:   map[uint]string{},
	}
	s.newScale = func() scale.Source { return scale.NewSimulator(cfg.Scale) }
	return s
}

// Start opens a capture for the user, closing any session they already
// had. An empty meal type is derived from the time of day.
func (s *CaptureService) Start(ctx context.Context, userID uint, mealType models.MealType) (*CaptureSession, error) {
	if userID == 0 {
		return nil, apperr.New(apperr.CodeValidation, "capture.start", "user required")
	}
	if mealType == "" {
		mealType = models.DefaultMealType(s.now())
	}
	if _, ok := models.ParseMealType(string(mealType)); !ok {
		return nil, apperr.New(apperr.CodeValidation, "capture.start", "unknown meal type")
	}

	id := uuid.NewString()
	m := capture.NewMachine(s.foods, mealType, capture.Options{
		ConfirmFrames: s.cfg.ConfirmFrames,
		Assess:        utils.AssessDish,
	})
	r := capture.NewRunner(capture.RunnerConfig{
		UserID:     userID,
		Machine:    m,
		Weights:    s.newScale(),
		Classifier: s.cls,
		Committer:  s.meals,
		Archiver:   s.archive,
		Log:        s.log,
		OnChange:   s.publisher(userID, id),
	})

	s.mu.Lock()
	prev := s.detachLocked(s.byUser[userID])
	s.sessions[id] = &captureEntry{id: id, userID: userID, runner: r, touched: s.now()}
	s.byUser[userID] = id
	s.mu.Unlock()

	if prev != nil {
		prev.runner.Close()
	}
	// The capture outlives the request that started it.
	r.Start(context.WithoutCancel(ctx))
	s.log.Info("capture started", "user_id", userID, "capture_id", id, "meal_type", mealType)
	return &CaptureSession{ID: id, State: r.State()}, nil
}

func (s *CaptureService) publisher(userID uint, id string) func(capture.State) {
	if s.hub == nil {
		return nil
	}
	return func(st capture.State) {
		s.hub.Publish(userID, "capture.state", CaptureSession{ID: id, State: st})
	}
}

// Get returns the user's runner for id and marks the session as used.
func (s *CaptureService) Get(userID uint, id string) (*capture.Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok || e.userID != userID {
		return nil, apperr.New(apperr.CodeNotFound, "capture.get", "capture session not found")
	}
	e.touched = s.now()
	return e.runner, nil
}

// Active returns the id of the user's current session, if any.
func (s *CaptureService) Active(userID uint) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byUser[userID]
	return id, ok
}

// End cancels and forgets a session.
func (s *CaptureService) End(userID uint, id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok || e.userID != userID {
		s.mu.Unlock()
		return apperr.New(apperr.CodeNotFound, "capture.end", "capture session not found")
	}
	s.detachLocked(id)
	s.mu.Unlock()

	if !e.runner.State().Phase.Terminal() {
		_, _ = e.runner.Cancel()
	}
	e.runner.Close()
	return nil
}

func (s *CaptureService) detachLocked(id string) *captureEntry {
	e, ok := s.sessions[id]
	if !ok {
		return nil
	}
	delete(s.sessions, id)
	if s.byUser[e.userID] == id {
		delete(s.byUser, e.userID)
	}
	return e
}

// Reap closes sessions idle for longer than the timeout and returns how
// many it removed.
func (s *CaptureService) Reap() int {
	cutoff := s.now().Add(-s.cfg.IdleTimeout)
	s.mu.Lock()
	var stale []*captureEntry
	for id, e := range s.sessions {
		if e.touched.Before(cutoff) {
			stale = append(stale, s.detachLocked(id))
		}
	}
	s.mu.Unlock()

	for _, e := range stale {
		e.runner.Close()
		s.log.Info("capture expired", "user_id", e.userID, "capture_id", e.id)
	}
	return len(stale)
}

// Run reaps idle sessions until ctx is done, then closes the rest.
func (s *CaptureService) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case <-t.C:
			s.Reap()
		}
	}
}

func (s *CaptureService) closeAll() {
	s.mu.Lock()
	all := make([]*captureEntry, 0, len(s.sessions))
	for id := range s.sessions {
		all = append(all, s.detachLocked(id))
	}
	s.mu.Unlock()
	for _, e := range all {
		e.runner.Close()
	}
}
