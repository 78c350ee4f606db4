// Package session drives one scan from opening the camera to committing or
// discarding the recognized result.
//
// A Session moves Idle → Previewing → Analyzing → ResultReady and back.
// Camera acquisition, image decoding and recognition run without the
// session lock held, so the state can be observed while they are pending.
// Every entry into a waiting state records an epoch; a result that arrives
// after the session was cancelled, closed or restarted is dropped.
package session

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "github.com/franckalain/mealscan/internal/errors"
	"github.com/franckalain/mealscan/internal/models"
)

const nonFoodWarning = "This may not be food. Check the result before adding it."

// Camera is the capture side of a session. capture.Controller implements it.
type Camera interface {
	StartLiveFeed(ctx context.Context) error
	StopLiveFeed() error
	Active() bool
	CaptureFrame() (models.ImageBuffer, error)
	ImportFile(r io.Reader) (models.ImageBuffer, error)
}

// Recognizer identifies food in a JPEG image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (models.NutritionEstimate, error)
}

// Committer appends a confirmed result to the diary.
type Committer interface {
	Commit(ctx context.Context, draft models.ScanDraft, img models.ImageBuffer) (models.FoodEntry, error)
}

// Result is a draft together with the image it was recognized from.
type Result struct {
	Draft models.ScanDraft   `json:"draft"`
	Image models.ImageBuffer `json:"image"`
}

// ErrorInfo is a dismissible message shown to the user.
type ErrorInfo struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// Snapshot is a consistent view of a session.
type Snapshot struct {
	ID         string     `json:"id"`
	State      State      `json:"state"`
	Busy       bool       `json:"busy"`
	FeedActive bool       `json:"feedActive"`
	Error      *ErrorInfo `json:"error,omitempty"`
	Warning    string     `json:"warning,omitempty"`
	Result     *Result    `json:"result,omitempty"`
}

// Observer is called after every transition, in order, with the state as
// of that transition. It must not call back into the session.
type Observer func(Snapshot)

// Option configures a Session.
type Option func(*Session)

// WithPolicy sets the non-food policy. The default is PolicyWarn.
func WithPolicy(p NonFoodPolicy) Option {
	return func(s *Session) { s.policy = p }
}

// WithObserver registers the transition callback.
func WithObserver(fn Observer) Option {
	return func(s *Session) { s.observer = fn }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// Session is safe for concurrent use.
type Session struct {
	id         string
	camera     Camera
	recognizer Recognizer
	committer  Committer
	policy     NonFoodPolicy
	observer   Observer
	log        logrus.FieldLogger

	mu         sync.Mutex
	state      State
	closed     bool
	committing bool
	epoch      uint64
	result     *Result
	errInfo    *ErrorInfo
	warning    string
	cancelOp   context.CancelFunc

	notifyMu sync.Mutex
}

// New creates an Idle session.
func New(camera Camera, recognizer Recognizer, committer Committer, opts ...Option) *Session {
	s := &Session{
		id:         uuid.NewString(),
		camera:     camera,
		recognizer: recognizer,
		committer:  committer,
		policy:     PolicyWarn,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("session_id", s.id)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Open starts the preview. If the camera cannot be acquired the session
// stays in Previewing with an error so that an image can still be
// imported.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed()
	}
	if s.state != Idle {
		err := s.transitionError("open")
		s.mu.Unlock()
		return err
	}
	s.state = Previewing
	s.clearLocked()
	epoch := s.bumpLocked()
	ctx, cancel := s.opContextLocked(ctx)
	defer cancel()
	s.unlockAndNotify()

	s.log.Debug("scan opened")
	return s.startFeed(ctx, epoch)
}

// Capture freezes the current frame and analyzes it.
func (s *Session) Capture(ctx context.Context) error {
	ctx, cancel, epoch, err := s.beginAnalysis(ctx, "capture")
	if err != nil {
		return err
	}
	defer cancel()

	img, err := s.camera.CaptureFrame()
	if err != nil {
		return s.fail(epoch, err)
	}
	return s.analyze(ctx, epoch, img)
}

// Import decodes an image file and analyzes it. It works whether or not
// the camera is available.
func (s *Session) Import(ctx context.Context, r io.Reader) error {
	ctx, cancel, epoch, err := s.beginAnalysis(ctx, "import")
	if err != nil {
		return err
	}
	defer cancel()

	img, err := s.camera.ImportFile(r)
	if err != nil {
		return s.fail(epoch, err)
	}
	if !s.current(epoch) {
		return errDiscarded()
	}
	return s.analyze(ctx, epoch, img)
}

// Retake discards the result and restarts the preview.
func (s *Session) Retake(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed()
	}
	if s.committing || s.state != ResultReady {
		err := s.transitionError("retake")
		s.mu.Unlock()
		return err
	}
	s.state = Previewing
	s.clearLocked()
	epoch := s.bumpLocked()
	ctx, cancel := s.opContextLocked(ctx)
	defer cancel()
	s.unlockAndNotify()

	s.log.Debug("result discarded for retake")
	return s.startFeed(ctx, epoch)
}

// Confirm commits the result to the diary and returns the session to Idle.
// If the commit fails the result is kept. The session reports busy while
// the commit is in flight.
func (s *Session) Confirm(ctx context.Context) (models.FoodEntry, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.FoodEntry{}, errClosed()
	}
	if s.committing || s.state != ResultReady || s.result == nil {
		err := s.transitionError("confirm")
		s.mu.Unlock()
		return models.FoodEntry{}, err
	}
	s.committing = true
	result := *s.result
	s.unlockAndNotify()

	entry, err := s.committer.Commit(ctx, result.Draft, result.Image)

	s.mu.Lock()
	s.committing = false
	if err != nil {
		if !s.closed {
			s.errInfo = errorInfo(err)
		}
		s.unlockAndNotify()
		s.log.WithError(err).Warn("commit failed")
		return models.FoodEntry{}, err
	}

	// Close may have reset the session while the commit was running.
	if !s.closed {
		s.state = Idle
		s.clearLocked()
		s.bumpLocked()
	}
	s.unlockAndNotify()

	s.log.WithField("entry_id", entry.ID).Info("scan confirmed")
	return entry, nil
}

// Cancel returns to Idle from any state, releasing the camera and dropping
// any pending or ready result.
func (s *Session) Cancel() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed()
	}
	if s.committing {
		err := s.transitionError("cancel")
		s.mu.Unlock()
		return err
	}
	s.resetLocked()
	s.unlockAndNotify()
	s.log.Debug("scan cancelled")
	return nil
}

// Close cancels the session for good. Later calls fail with
// SESSION_CLOSED. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.resetLocked()
	s.unlockAndNotify()
	s.log.Debug("scan closed")
	return nil
}

// DismissError clears the current message.
func (s *Session) DismissError() {
	s.mu.Lock()
	if s.errInfo == nil {
		s.mu.Unlock()
		return
	}
	s.errInfo = nil
	s.unlockAndNotify()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) beginAnalysis(ctx context.Context, op string) (context.Context, context.CancelFunc, uint64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, 0, errClosed()
	}
	if s.state != Previewing {
		err := s.transitionError(op)
		s.mu.Unlock()
		return nil, nil, 0, err
	}
	s.state = Analyzing
	s.errInfo = nil
	epoch := s.bumpLocked()
	ctx, cancel := s.opContextLocked(ctx)
	s.unlockAndNotify()
	return ctx, cancel, epoch, nil
}

func (s *Session) analyze(ctx context.Context, epoch uint64, img models.ImageBuffer) error {
	est, err := s.recognizer.Recognize(ctx, img.Data)
	if err != nil {
		return s.fail(epoch, err)
	}

	s.mu.Lock()
	if s.closed || s.epoch != epoch {
		s.mu.Unlock()
		s.log.Debug("late recognition result dropped")
		return errDiscarded()
	}

	if !est.IsFood {
		switch s.policy {
		case PolicyReject:
			err := apperrors.New(apperrors.ErrNotFood, "image does not contain food: "+est.Name)
			s.state = Previewing
			s.errInfo = errorInfo(err)
			s.unlockAndNotify()
			s.log.WithField("name", est.Name).Info("non-food result rejected")
			return err
		case PolicyWarn:
			s.warning = nonFoodWarning
		}
	}

	s.result = &Result{Draft: models.NewScanDraft(est), Image: img}
	s.state = ResultReady
	if err := s.camera.StopLiveFeed(); err != nil {
		s.log.WithError(err).Warn("failed to release camera")
	}
	s.unlockAndNotify()
	return nil
}

// fail returns an analysis to Previewing with a message. Images that failed
// are not kept.
func (s *Session) fail(epoch uint64, err error) error {
	s.mu.Lock()
	if s.closed || s.epoch != epoch {
		s.mu.Unlock()
		return errDiscarded()
	}
	s.state = Previewing
	s.errInfo = errorInfo(err)
	s.unlockAndNotify()
	s.log.WithError(err).Warn("scan failed")
	return err
}

func (s *Session) startFeed(ctx context.Context, epoch uint64) error {
	err := s.camera.StartLiveFeed(ctx)

	s.mu.Lock()
	if !s.closed && s.epoch != epoch && (s.state == Analyzing || s.state == ResultReady) {
		// An import overtook the preview. The scan is still live; a camera
		// granted after the result is ready is released again.
		if err == nil && s.state == ResultReady {
			if stopErr := s.camera.StopLiveFeed(); stopErr != nil {
				s.log.WithError(stopErr).Warn("failed to release camera")
			}
		}
		s.unlockAndNotify()
		if err != nil {
			s.log.WithError(err).Debug("camera not started, import in progress")
		}
		return nil
	}
	if s.closed || s.epoch != epoch {
		s.mu.Unlock()
		return errDiscarded()
	}
	if err != nil {
		s.errInfo = errorInfo(err)
	}
	s.unlockAndNotify()
	return err
}

func (s *Session) current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.epoch == epoch
}

// transitionError must be called with s.mu held.
func (s *Session) transitionError(op string) error {
	if s.state == Analyzing {
		return apperrors.New(apperrors.ErrSessionBusy, "still analyzing")
	}
	if s.committing {
		return apperrors.New(apperrors.ErrSessionBusy, "still saving")
	}
	return apperrors.New(apperrors.ErrInvalidTransition, op+" is not allowed in state "+s.state.String())
}

func (s *Session) bumpLocked() uint64 {
	s.epoch++
	return s.epoch
}

func (s *Session) clearLocked() {
	s.result = nil
	s.errInfo = nil
	s.warning = ""
}

// opContextLocked derives a context that Cancel and Close abort.
func (s *Session) opContextLocked(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancelOp = cancel
	return ctx, cancel
}

func (s *Session) resetLocked() {
	s.state = Idle
	s.clearLocked()
	s.bumpLocked()
	if s.cancelOp != nil {
		s.cancelOp()
		s.cancelOp = nil
	}
	if err := s.camera.StopLiveFeed(); err != nil {
		s.log.WithError(err).Warn("failed to release camera")
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:         s.id,
		State:      s.state,
		Busy:       s.state == Analyzing || s.committing,
		FeedActive: s.camera.Active(),
		Warning:    s.warning,
	}
	if s.errInfo != nil {
		e := *s.errInfo
		snap.Error = &e
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	return snap
}

// unlockAndNotify releases s.mu and delivers the snapshot taken under it.
// notifyMu keeps deliveries in transition order.
func (s *Session) unlockAndNotify() {
	snap := s.snapshotLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	if s.observer != nil {
		s.observer(snap)
	}
}

func errorInfo(err error) *ErrorInfo {
	return &ErrorInfo{Code: apperrors.CodeOf(err), Message: apperrors.UserMessage(err)}
}

func errClosed() error {
	return apperrors.New(apperrors.ErrSessionClosed, "session is closed")
}

func errDiscarded() error {
	return apperrors.New(apperrors.ErrSessionClosed, "scan was cancelled")
}
