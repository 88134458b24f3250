// Package dashboard ties the signal store, the cycle scheduler, the backend
// client and the views together behind the user actions of the board.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/anggasct/signalcycle"
	"github.com/anggasct/signalcycle/pkg/remote"
	"github.com/anggasct/signalcycle/pkg/render"
)

// Messages shown to the user when a backend call fails
const (
	MsgFetchFailed   = "Failed to fetch signal data"
	MsgUploadFailed  = "Failed to upload image"
	MsgTimingsFailed = "Failed to update signal timings"
)

// ErrorDisplayDuration is how long a failure message stays on the board
const ErrorDisplayDuration = 5 * time.Second

var errOffline = errors.New("no backend configured")

// Remote is the backend API used by the controller
type Remote interface {
	FetchSignals(ctx context.Context) (map[int]signalcycle.SignalUpdate, error)
	UploadImage(ctx context.Context, id int, filename string, data []byte) (remote.UploadResult, error)
	PushTimings(ctx context.Context, entries []remote.TimingEntry, totalTime int) (remote.PushResult, error)
}

// Controller is the application context of the board. It owns no globals;
// everything it touches is passed to New.
type Controller struct {
	signalcycle.BaseObserver

	store     *signalcycle.Store
	scheduler *signalcycle.Scheduler
	remote    Remote
	view      render.View
	clock     signalcycle.Clock
	logger    zerolog.Logger

	mutex             sync.Mutex
	ambulancePriority bool
	alert             *render.Alert
	lastError         string
	errorUntil        time.Time
}

// Option configures a Controller
type Option func(*Controller)

// WithRemote sets the backend. Without one the controller works offline and
// computes timings locally.
func WithRemote(r Remote) Option {
	return func(c *Controller) {
		c.remote = r
	}
}

// WithView sets the view that is re-rendered on every change
func WithView(v render.View) Option {
	return func(c *Controller) {
		c.view = v
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithClock sets the clock used for alert expiry. It should be the scheduler's clock.
func WithClock(clock signalcycle.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// New creates a controller and subscribes it to the scheduler
func New(store *signalcycle.Store, scheduler *signalcycle.Scheduler, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		scheduler: scheduler,
		clock:     signalcycle.RealClock{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	scheduler.AddObserver(c)
	return c
}

// Offline reports whether the controller runs without a backend
func (c *Controller) Offline() bool {
	return c.remote == nil
}

// LoadSignals merges the backend's signal list into the store
func (c *Controller) LoadSignals(ctx context.Context) error {
	if c.remote == nil {
		c.render()
		return nil
	}

	updates, err := c.remote.FetchSignals(ctx)
	if err != nil {
		c.fail(MsgFetchFailed, err)
		return err
	}

	running := c.scheduler.Running()
	for id, update := range updates {
		if running {
			// the cycle owns the lights while it runs
			update.Status = nil
		}
		c.store.Update(id, update)
	}

	c.logger.Debug().Int("signals", len(updates)).Msg("signals loaded")
	c.render()
	return nil
}

// UploadImage sends an image for signal id to the backend, merges the vehicle
// count and ambulance flag it reports, then pushes new timings. A failed upload
// leaves the store untouched.
func (c *Controller) UploadImage(ctx context.Context, id int, filename string, data []byte) (signalcycle.Signal, error) {
	if !c.store.Has(id) {
		return signalcycle.Signal{}, signalcycle.NewNotFoundError(id)
	}
	if c.remote == nil {
		err := signalcycle.NewNetworkError("upload image", errOffline)
		c.fail(MsgUploadFailed, err)
		return signalcycle.Signal{}, err
	}

	result, err := c.remote.UploadImage(ctx, id, filename, data)
	if err != nil {
		c.fail(MsgUploadFailed, err)
		return signalcycle.Signal{}, err
	}

	sig := c.store.Update(id, result.Update())
	c.logger.Info().
		Int("signal", id).
		Int("vehicles", result.VehicleCount).
		Bool("ambulance", result.AmbulanceDetected).
		Msg("image analysed")
	c.render()

	// timing failures are reported on the board; the upload itself succeeded
	if err := c.UpdateTimings(ctx); err != nil {
		c.logger.Debug().Err(err).Int("signal", id).Msg("upload kept without new timings")
	}

	if result.AmbulanceDetected {
		c.raiseAlert(sig)
	}

	if latest, err := c.store.Get(id); err == nil {
		sig = latest
	}
	return sig, nil
}

// SetTotalTime changes the cycle budget and recomputes the timings
func (c *Controller) SetTotalTime(ctx context.Context, seconds int) error {
	if err := c.scheduler.SetTotalTime(seconds); err != nil {
		c.fail(err.Error(), err)
		return err
	}
	c.logger.Info().Int("total_time", seconds).Msg("total time changed")
	return c.UpdateTimings(ctx)
}

// UpdateTimings computes a timing for every signal and publishes it. With a
// backend the timings are stored only once the backend accepts them, and the
// store is then refreshed from the backend. Offline they are stored directly.
func (c *Controller) UpdateTimings(ctx context.Context) error {
	signals := c.store.Snapshot()
	totalTime := c.scheduler.State().TotalTime
	timings := signalcycle.ComputeTimings(signals, totalTime)

	if c.remote == nil {
		c.applyTimings(timings)
		c.setAmbulancePriority(c.store.HasEmergency())
		c.render()
		return nil
	}

	result, err := c.remote.PushTimings(ctx, remote.TimingEntries(signals, timings), totalTime)
	if err != nil {
		c.fail(MsgTimingsFailed, err)
		return err
	}

	c.applyTimings(timings)
	c.setAmbulancePriority(result.AmbulancePriority)
	c.logger.Debug().Interface("timings", timings).Bool("ambulance_priority", result.AmbulancePriority).Msg("timings updated")

	return c.LoadSignals(ctx)
}

func (c *Controller) applyTimings(timings map[int]int) {
	updates := make(map[int]signalcycle.SignalUpdate, len(timings))
	for id, timing := range timings {
		updates[id] = signalcycle.SignalUpdate{}.WithTiming(timing)
	}
	c.store.UpdateMany(updates)
}

// Start starts the cycle
func (c *Controller) Start() error {
	if err := c.scheduler.Start(); err != nil {
		if errors.Is(err, signalcycle.ErrNoSignals) {
			c.fail("No signals to cycle", err)
		}
		return err
	}
	return nil
}

// Stop stops the cycle and puts every signal back to Waiting
func (c *Controller) Stop() error {
	return c.scheduler.Stop()
}

// Toggle starts a stopped cycle or stops a running one. It returns whether the cycle now runs.
func (c *Controller) Toggle() (bool, error) {
	if c.scheduler.Running() {
		return false, c.Stop()
	}
	if err := c.Start(); err != nil {
		return false, err
	}
	return true, nil
}

// Transitions returns the scheduler's transition table
func (c *Controller) Transitions() []signalcycle.Transition {
	return c.scheduler.Transitions()
}

// AmbulancePriority reports the backend's answer to the last timing update
func (c *Controller) AmbulancePriority() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.ambulancePriority
}

func (c *Controller) setAmbulancePriority(priority bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.ambulancePriority = priority
}

// Snapshot returns the board as it is now. Expired alerts and errors are left out.
func (c *Controller) Snapshot() render.Board {
	now := c.clock.Now()
	board := render.Board{
		Signals:   c.store.Snapshot(),
		State:     c.scheduler.State(),
		Phase:     c.scheduler.Phase().String(),
		UpdatedAt: now,
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	board.AmbulancePriority = c.ambulancePriority
	if c.alert.Active(now) {
		alert := *c.alert
		board.Alert = &alert
	}
	if c.lastError != "" && now.Before(c.errorUntil) {
		board.Error = c.lastError
	}
	return board
}

// Render redraws the views
func (c *Controller) Render() {
	c.render()
}

func (c *Controller) render() {
	if c.view == nil {
		return
	}
	if err := c.view.Render(c.Snapshot()); err != nil {
		c.logger.Warn().Err(err).Msg("render board")
	}
}

func (c *Controller) fail(message string, err error) {
	c.logger.Error().Err(err).Msg(message)

	c.mutex.Lock()
	c.lastError = message
	c.errorUntil = c.clock.Now().Add(ErrorDisplayDuration)
	c.mutex.Unlock()

	if c.view != nil {
		c.view.ShowError(message)
	}
}

func (c *Controller) raiseAlert(sig signalcycle.Signal) {
	c.mutex.Lock()
	c.alert = &render.Alert{
		SignalID:   sig.ID,
		SignalName: sig.Name,
		Expires:    c.clock.Now().Add(signalcycle.EmergencyAlertDuration),
	}
	c.mutex.Unlock()

	c.logger.Warn().Int("signal", sig.ID).Str("name", sig.Name).Msg("emergency alert")
	if c.view != nil {
		c.view.ShowEmergency(sig)
	}
	c.render()
}

// OnTransition re-renders the board on every phase change
func (c *Controller) OnTransition(from, to signalcycle.Phase, event signalcycle.Event, state signalcycle.CycleState) {
	c.render()
}

// OnEmergency raises the alert when the turn reaches a signal with an ambulance
func (c *Controller) OnEmergency(signal signalcycle.Signal, state signalcycle.CycleState) {
	c.raiseAlert(signal)
}

// OnError logs scheduler errors
func (c *Controller) OnError(err error) {
	c.logger.Error().Err(err).Msg("scheduler error")
}
