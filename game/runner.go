package game

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pthm-cable/scrapline/save"
)

// ErrStopped is returned for commands sent after the runner stopped.
var ErrStopped = errors.New("runner stopped")

// Saver persists a document.
type Saver interface {
	Save(ctx context.Context, doc *save.Document) error
}

// Command runs a function against the session on the runner goroutine.
type Command struct {
	Fn    func(*Session) error
	Reply chan error // Optional; buffered by Do
}

// RunnerOptions configure a Runner.
type RunnerOptions struct {
	Saver     Saver
	Autopilot *Autopilot
	OnTick    func(TickResult) // Called on the runner goroutine
}

// Runner owns a Session on a single goroutine. Commands arrive on the inbox;
// the combat ticker runs only while the battle is running and the autosave
// ticker runs with the persisted period.
type Runner struct {
	Inbox chan Command

	session   *Session
	saver     Saver
	autopilot *Autopilot
	onTick    func(TickResult)
	view      atomic.Pointer[View]

	combat   *time.Ticker
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewRunner wraps a session. Call Run to start the loop.
func NewRunner(s *Session, opts RunnerOptions) *Runner {
	r := &Runner{
		Inbox:     make(chan Command, 64),
		session:   s,
		saver:     opts.Saver,
		autopilot: opts.Autopilot,
		onTick:    opts.OnTick,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	r.publish()
	return r
}

// View returns the latest published projection.
func (r *Runner) View() View {
	return *r.view.Load()
}

// Do runs fn on the runner goroutine and waits for its result.
func (r *Runner) Do(ctx context.Context, fn func(*Session) error) error {
	reply := make(chan error, 1)
	select {
	case r.Inbox <- Command{Fn: fn, Reply: reply}:
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends the loop and waits for it to exit. No tick fires after Stop
// returns. Stop is safe to call more than once.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
	<-r.done
}

// Done is closed once the loop has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Run drives the loop until Stop is called or ctx is cancelled. The
// document is saved once more on exit.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)

	period := r.autosavePeriod()
	autosave := time.NewTicker(period)
	defer autosave.Stop()
	defer r.stopCombat()

	r.syncCombat()
	for {
		select {
		case <-r.quit:
			r.save(context.WithoutCancel(ctx))
			return
		case <-ctx.Done():
			r.save(context.WithoutCancel(ctx))
			return
		case cmd := <-r.Inbox:
			r.handleCommand(cmd)
			if p := r.autosavePeriod(); p != period {
				period = p
				autosave.Reset(period)
			}
		case <-r.combatC():
			r.tick()
		case <-autosave.C:
			r.save(ctx)
		}
	}
}

func (r *Runner) handleCommand(cmd Command) {
	var err error
	if cmd.Fn != nil {
		err = cmd.Fn(r.session)
	}
	if cmd.Reply != nil {
		cmd.Reply <- err
	}
	r.syncCombat()
	r.publish()
}

func (r *Runner) tick() {
	// A command may have ended the battle after the tick was queued.
	if !r.session.Running() {
		r.syncCombat()
		return
	}
	res := r.session.Tick()
	if r.onTick != nil {
		r.onTick(res)
	}
	if r.autopilot != nil {
		if err := r.autopilot.Act(r.session); err != nil {
			slog.Debug("autopilot_action_rejected", "error", err)
		}
	}
	r.syncCombat()
	r.publish()
}

// syncCombat starts the combat ticker when the battle is running and stops
// it otherwise.
func (r *Runner) syncCombat() {
	running := r.session.Running()
	switch {
	case running && r.combat == nil:
		r.combat = time.NewTicker(r.tickPeriod())
	case !running && r.combat != nil:
		r.stopCombat()
	}
}

func (r *Runner) stopCombat() {
	if r.combat != nil {
		r.combat.Stop()
		r.combat = nil
	}
}

// combatC returns the combat ticker channel, nil while stopped.
func (r *Runner) combatC() <-chan time.Time {
	if r.combat == nil {
		return nil
	}
	return r.combat.C
}

// tickPeriod scales the combat tick by the persisted combat speed.
func (r *Runner) tickPeriod() time.Duration {
	period := r.session.cfg.Derived.TickDuration
	if speed := r.session.doc.Settings.CombatSpeed; speed > 0 {
		period = time.Duration(float64(period) / speed)
	}
	return max(period, time.Millisecond)
}

func (r *Runner) autosavePeriod() time.Duration {
	if d := r.session.doc.Settings.AutosaveInterval(); d > 0 {
		return d
	}
	if secs := r.session.cfg.Save.AutosaveSeconds; secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 30 * time.Second
}

func (r *Runner) save(ctx context.Context) {
	if r.saver == nil {
		return
	}
	if err := r.saver.Save(ctx, r.session.Document()); err != nil {
		slog.Error("autosave_failed", "error", err)
	}
}

func (r *Runner) publish() {
	v := r.session.View()
	r.view.Store(&v)
}
