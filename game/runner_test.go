package game

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pthm-cable/scrapline/save"
)

type countingSaver struct {
	saves atomic.Int64
}

func (c *countingSaver) Save(context.Context, *save.Document) error {
	c.saves.Add(1)
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(time.Millisecond):
		}
	}
}

func startRunner(t *testing.T, saver Saver, ticks *atomic.Int64) *Runner {
	t.Helper()
	s := testSession(t, oneDrone(0))
	s.doc.Settings.CombatSpeed = 50
	r := NewRunner(s, RunnerOptions{
		Saver:  saver,
		OnTick: func(TickResult) { ticks.Add(1) },
	})
	go r.Run(context.Background())
	t.Cleanup(r.Stop)
	return r
}

func TestRunnerNoTickAfterStop(t *testing.T) {
	saver := &countingSaver{}
	var ticks atomic.Int64
	r := startRunner(t, saver, &ticks)
	ctx := context.Background()

	if got := r.View().State; got != StateIdle {
		t.Errorf("initial view state = %s, want idle", got)
	}
	if err := r.Do(ctx, func(s *Session) error { return s.StartRun("vanguard", "") }); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	waitFor(t, "combat ticks", func() bool { return ticks.Load() >= 3 })

	r.Stop()
	n := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	if got := ticks.Load(); got != n {
		t.Errorf("ticks after Stop: %d -> %d", n, got)
	}
	if saver.saves.Load() == 0 {
		t.Error("no save on stop")
	}
	if err := r.Do(ctx, func(*Session) error { return nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("Do after Stop: got %v, want ErrStopped", err)
	}
	r.Stop()
}

func TestRunnerCombatTickerFollowsBattleState(t *testing.T) {
	var ticks atomic.Int64
	r := startRunner(t, nil, &ticks)
	ctx := context.Background()

	if err := r.Do(ctx, func(s *Session) error { return s.StartRun("vanguard", "") }); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	waitFor(t, "running view", func() bool { return r.View().State == StateRunning && r.View().ClockMs > 0 })

	err := r.Do(ctx, func(s *Session) error {
		for _, ref := range s.battle.ordered() {
			ref.enemy.HP = 0
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	waitFor(t, "wave clear", func() bool { return r.View().State == StateWaveClear })

	n := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	if got := ticks.Load(); got != n {
		t.Errorf("combat ticked while not running: %d -> %d", n, got)
	}
	if v := r.View(); !v.StageCleared || v.Mode != ModeStory {
		t.Errorf("view = mode %q cleared %v", v.Mode, v.StageCleared)
	}

	if err := r.Do(ctx, func(s *Session) error { return s.AdvanceStage() }); err != nil {
		t.Fatalf("AdvanceStage: %v", err)
	}
	waitFor(t, "ticks to resume", func() bool { return ticks.Load() > n })
}

func TestRunnerReturnsCommandErrors(t *testing.T) {
	var ticks atomic.Int64
	r := startRunner(t, nil, &ticks)
	err := r.Do(context.Background(), func(s *Session) error { return s.AdvanceStage() })
	if !errors.Is(err, ErrNoRun) {
		t.Errorf("got %v, want ErrNoRun", err)
	}
}
