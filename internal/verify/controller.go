// Package verify drives verification requests against the backend.
//
// A Controller owns the visible state of the latest request. Every Submit
// takes a new token; when an older request finishes after a newer one has
// started, its outcome is dropped so only the latest request is ever shown.
package verify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/factstrip/internal/model"
)

// DefaultTimeout is the wall-clock budget for one backend exchange
const DefaultTimeout = 60 * time.Second

// State is the lifecycle position of the current request
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Recorder receives every result that becomes visible
type Recorder interface {
	Add(result model.VerificationResult) model.HistoryEntry
}

// Status is a point-in-time copy of the controller's visible state
type Status struct {
	State  State
	Result *model.VerificationResult
	Err    *Error
	Token  uint64
}

// IsLoading reports whether the latest request is still in flight
func (s Status) IsLoading() bool { return s.State == StateSubmitting }

// Options configure a Controller. Zero values pick defaults.
type Options struct {
	Timeout  time.Duration
	Now      func() time.Time
	NewID    func() string
	OnChange func(Status) // called after every visible transition
	Logger   *zap.Logger
}

// Controller runs verification requests with latest-wins semantics
type Controller struct {
	backend  Backend
	recorder Recorder
	timeout  time.Duration
	now      func() time.Time
	newID    func() string
	onChange func(Status)
	logger   *zap.Logger

	mu     sync.Mutex
	token  uint64
	state  State
	result *model.VerificationResult
	err    *Error
}

// NewController creates a controller. recorder may be nil.
func NewController(backend Backend, recorder Recorder, opts Options) *Controller {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Controller{
		backend:  backend,
		recorder: recorder,
		timeout:  opts.Timeout,
		now:      opts.Now,
		newID:    opts.NewID,
		onChange: opts.OnChange,
		logger:   opts.Logger.Named("verify"),
	}
}

type outcome struct {
	payload map[string]any
	err     error
}

// Submit verifies statement in the given style and blocks until the
// exchange resolves or times out.
//
// The returned error is a *Error for classified failures, or ErrSuperseded
// if a newer Submit (or Clear) happened while this one was in flight.
func (c *Controller) Submit(ctx context.Context, statement string, style model.Style) (*model.VerificationResult, error) {
	statement = strings.TrimSpace(statement)
	parsedStyle, styleErr := model.ParseStyle(string(style))

	c.mu.Lock()
	c.token++
	token := c.token
	c.result = nil
	c.err = nil

	if statement == "" || styleErr != nil {
		msg := "Statement is required"
		if styleErr != nil && statement != "" {
			msg = styleErr.Error()
		}
		verr := validationError(msg)
		c.state = StateFailed
		c.err = verr
		status := c.statusLocked()
		c.mu.Unlock()

		c.logger.Debug("request rejected", zap.Uint64("token", token), zap.String("reason", msg))
		c.notify(status)
		return nil, verr
	}

	c.state = StateSubmitting
	status := c.statusLocked()
	c.mu.Unlock()
	c.notify(status)

	req := model.VerificationRequest{Statement: statement, Style: parsedStyle}
	c.logger.Debug("request started", zap.Uint64("token", token), zap.String("style", string(parsedStyle)))

	out := c.exchange(ctx, req)
	return c.finish(token, req, out)
}

// exchange runs the backend call under the deadline. The backend runs in its
// own goroutine so the deadline holds even if the backend ignores ctx.
func (c *Controller) exchange(ctx context.Context, req model.VerificationRequest) outcome {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		payload, err := c.backend.Verify(callCtx, req)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		if out.err == nil && callCtx.Err() != nil {
			// answered, but only after the deadline
			return outcome{err: callCtx.Err()}
		}
		return out
	case <-callCtx.Done():
		return outcome{err: callCtx.Err()}
	}
}

func (c *Controller) finish(token uint64, req model.VerificationRequest, out outcome) (*model.VerificationResult, error) {
	var result model.VerificationResult
	if out.err == nil {
		result = Normalize(out.payload, req, c.now(), c.newID)
	}

	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		c.logger.Debug("stale response dropped", zap.Uint64("token", token), zap.Bool("failed", out.err != nil))
		return nil, ErrSuperseded
	}

	if out.err != nil {
		verr := Classify(out.err)
		c.state = StateFailed
		c.err = verr
		status := c.statusLocked()
		c.mu.Unlock()

		c.logger.Info("verification failed",
			zap.Uint64("token", token),
			zap.String("kind", string(verr.Kind)),
			zap.Error(out.err))
		c.notify(status)
		return nil, verr
	}

	c.state = StateSucceeded
	c.result = &result
	// recorded under the lock so a stale request can never slip in between
	if c.recorder != nil {
		c.recorder.Add(result)
	}
	status := c.statusLocked()
	c.mu.Unlock()

	c.logger.Info("verification succeeded",
		zap.Uint64("token", token),
		zap.String("id", string(result.ID)),
		zap.String("verdict", string(result.Verdict)))
	c.notify(status)

	visible := result
	return &visible, nil
}

// Clear drops the visible result and error and returns to Idle.
// A request still in flight becomes stale.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.token++
	c.state = StateIdle
	c.result = nil
	c.err = nil
	status := c.statusLocked()
	c.mu.Unlock()

	c.notify(status)
}

// Status returns the current visible state
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	s := Status{State: c.state, Err: c.err, Token: c.token}
	if c.result != nil {
		r := *c.result
		s.Result = &r
	}
	return s
}

func (c *Controller) notify(s Status) {
	if c.onChange != nil {
		c.onChange(s)
	}
}
