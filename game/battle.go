package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/looplab/fsm"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/scrapline/components"
	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/content"
	"github.com/pthm-cable/scrapline/rng"
	"github.com/pthm-cable/scrapline/systems"
	"github.com/pthm-cable/scrapline/talent"
	"github.com/pthm-cable/scrapline/telemetry"
)

// Battle states.
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateWaveClear = "resolving-wave-clear"
	StateGameOver  = "game-over"
)

// Battle events.
const (
	eventStart    = "start"
	eventClear    = "clear"
	eventDefeat   = "defeat"
	eventContinue = "continue"
	eventReset    = "reset"
)

// Rejection reasons for queued player actions.
var (
	ErrNotRunning        = errors.New("battle is not running")
	ErrUnknownAbility    = errors.New("unknown ability")
	ErrUnknownConsumable = errors.New("unknown consumable")
	ErrNotReady          = errors.New("action gauge not full")
	ErrOnCooldown        = errors.New("ability on cooldown")
	ErrStunned           = errors.New("stunned")
	ErrResource          = errors.New("resource unavailable")
	ErrNoItem            = errors.New("no item left")
)

// Loadout is the combatant a battle starts with.
type Loadout struct {
	Pilot     content.Pilot
	HP        float64
	MaxHP     float64
	Energy    float64
	Heat      float64
	Bonuses   talent.Bonuses
	Items     map[string]int // Consumable id -> count, shared with the owner
	Abilities []string       // Defaults to the pilot's abilities
}

// Action is one resolved actor action, in the shape replays record.
type Action struct {
	Actor  string
	Type   string
	Result string
}

// TickResult reports what a tick did.
type TickResult struct {
	ClockMs     int64
	Events      []telemetry.Event
	Log         []string
	Actions     []Action
	State       string
	WaveCleared bool
	Defeated    bool
	Rejected    error // Set when the queued action was refused
}

// EnemySnapshot is a read-only copy of one enemy.
type EnemySnapshot struct {
	ID        int
	Template  string
	Name      string
	HP        float64
	MaxHP     float64
	Charge    float64
	Intent    string
	Defending bool
	Charged   bool
	Boss      bool
	Phase     int
	Affix     string
	WeakPoint string
	Statuses  []components.StatusEffect
}

type queuedAction struct {
	ability    string
	consumable string
}

// Battle runs one encounter: the player against the enemies of the current
// wave. Enemies are ark entities; the lifecycle is a state machine. A Battle
// is not safe for concurrent use; the runner goroutine owns it.
type Battle struct {
	cfg   config.CombatConfig
	cat   *content.Catalog
	src   rng.Source
	perf  *telemetry.PerfCollector
	state *fsm.FSM

	world       *ecs.World
	enemyMapper *ecs.Map5[components.Enemy, components.Gauge, components.Intent, components.Statuses, components.Stance]
	enemyFilter *ecs.Filter5[components.Enemy, components.Gauge, components.Intent, components.Statuses, components.Stance]
	bossMap     *ecs.Map[components.Boss]
	affixMap    *ecs.Map[components.Affix]
	weakMap     *ecs.Map[components.WeakPoint]

	player    components.Player
	abilities []string
	bonuses   talent.Bonuses
	items     map[string]int

	queued   *queuedAction
	clockMs  int64
	nextID   int
	nextSlot int
	log      []string
}

// NewBattle creates an idle battle for a loadout.
func NewBattle(cfg config.CombatConfig, cat *content.Catalog, src rng.Source, lo Loadout) *Battle {
	b := &Battle{
		cfg:    cfg,
		cat:    cat,
		src:    src,
		world:  ecs.NewWorld(),
		nextID: 1,
	}
	b.enemyMapper = ecs.NewMap5[components.Enemy, components.Gauge, components.Intent, components.Statuses, components.Stance](b.world)
	b.enemyFilter = ecs.NewFilter5[components.Enemy, components.Gauge, components.Intent, components.Statuses, components.Stance](b.world)
	b.bossMap = ecs.NewMap[components.Boss](b.world)
	b.affixMap = ecs.NewMap[components.Affix](b.world)
	b.weakMap = ecs.NewMap[components.WeakPoint](b.world)

	b.state = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{StateIdle}, Dst: StateRunning},
			{Name: eventClear, Src: []string{StateRunning}, Dst: StateWaveClear},
			{Name: eventDefeat, Src: []string{StateRunning}, Dst: StateGameOver},
			{Name: eventContinue, Src: []string{StateWaveClear}, Dst: StateRunning},
			{Name: eventReset, Src: []string{StateRunning, StateWaveClear, StateGameOver}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				slog.Debug("battle_state", "from", e.Src, "to", e.Dst, "event", e.Event, "clock_ms", b.clockMs)
			},
		},
	)

	b.SetLoadout(lo)
	return b
}

// SetLoadout replaces the player's vitals and bonuses. Statuses, charge and
// cooldowns carry over.
func (b *Battle) SetLoadout(lo Loadout) {
	p := lo.Pilot
	b.player.PilotID = p.ID
	b.player.MaxHP = lo.MaxHP
	b.player.HP = min(lo.HP, lo.MaxHP)
	b.player.MaxEnergy = p.MaxEnergy
	b.player.Energy = min(lo.Energy, p.MaxEnergy)
	b.player.MaxHeat = p.MaxHeat
	b.player.Heat = min(max(lo.Heat, 0), p.MaxHeat)
	b.player.Speed = p.Speed
	b.player.BaseDamage = p.BaseDamage
	b.bonuses = lo.Bonuses
	b.items = lo.Items
	if b.items == nil {
		b.items = make(map[string]int)
	}
	b.abilities = lo.Abilities
	if len(b.abilities) == 0 {
		b.abilities = p.Abilities
	}
}

// SetPerf attaches a perf collector timing each tick phase.
func (b *Battle) SetPerf(p *telemetry.PerfCollector) {
	b.perf = p
}

// State returns the current lifecycle state.
func (b *Battle) State() string {
	return b.state.Current()
}

// Running reports whether ticks advance the battle.
func (b *Battle) Running() bool {
	return b.state.Is(StateRunning)
}

// ClockMs returns the battle clock.
func (b *Battle) ClockMs() int64 {
	return b.clockMs
}

// Player returns a copy of the player combatant.
func (b *Battle) Player() components.Player {
	p := b.player
	p.Cooldowns = make(map[string]int64, len(b.player.Cooldowns))
	for k, v := range b.player.Cooldowns {
		p.Cooldowns[k] = v
	}
	p.Statuses = slices.Clone(b.player.Statuses)
	return p
}

// Abilities returns the ability ids available to the player.
func (b *Battle) Abilities() []string {
	return b.abilities
}

// Items returns the consumable counts.
func (b *Battle) Items() map[string]int {
	return b.items
}

// Bonuses returns the bonuses the resolver applies.
func (b *Battle) Bonuses() talent.Bonuses {
	return b.bonuses
}

// Log returns the most recent combat log lines, oldest first.
func (b *Battle) Log() []string {
	return slices.Clone(b.log)
}

// SpawnWave creates the enemies of a wave and starts or resumes combat.
// It returns the snapshots of the spawned enemies.
func (b *Battle) SpawnWave(specs []components.EnemySpec) ([]EnemySnapshot, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("spawn wave: no enemies")
	}
	event := eventStart
	switch b.state.Current() {
	case StateIdle:
	case StateWaveClear:
		event = eventContinue
	default:
		return nil, fmt.Errorf("spawn wave in state %s", b.state.Current())
	}

	ids := make(map[int]bool, len(specs))
	for _, spec := range specs {
		ids[b.spawnEnemy(spec)] = true
	}
	if err := b.state.Event(context.Background(), event); err != nil {
		return nil, fmt.Errorf("spawn wave: %w", err)
	}

	var spawned []EnemySnapshot
	for _, e := range b.Enemies() {
		if ids[e.ID] {
			spawned = append(spawned, e)
		}
	}
	return spawned, nil
}

func (b *Battle) spawnEnemy(spec components.EnemySpec) int {
	id := b.nextID
	b.nextID++
	enemy := components.Enemy{
		ID:       id,
		Template: spec.Template,
		Name:     spec.Name,
		HP:       spec.HP,
		MaxHP:    spec.HP,
		Speed:    spec.Speed,
		Damage:   spec.Damage,
		Scrap:    spec.Scrap,
		Slot:     b.nextSlot,
	}
	b.nextSlot++
	intent := components.Intent{Weights: spec.Intents}
	intent.Kind = systems.ChooseIntent(intent.Weights, b.src)

	entity := b.enemyMapper.NewEntity(&enemy, &components.Gauge{}, &intent, &components.Statuses{}, &components.Stance{})
	if spec.Boss {
		b.bossMap.Add(entity, &components.Boss{Phase: 1, AbilityReadyAtMs: b.clockMs + int64(b.cfg.BossAbilityCooldownMs)})
	}
	if spec.Affix != nil {
		affix := *spec.Affix
		b.affixMap.Add(entity, &affix)
	}
	if spec.WeakPoint != nil {
		weak := *spec.WeakPoint
		b.weakMap.Add(entity, &weak)
	}
	return id
}

// Reset removes every enemy and returns the battle to idle.
func (b *Battle) Reset() {
	b.removeEnemies(func(*components.Enemy) bool { return true })
	b.queued = nil
	if !b.state.Is(StateIdle) {
		if err := b.state.Event(context.Background(), eventReset); err != nil {
			slog.Warn("battle_reset_failed", "error", err)
		}
	}
}

// QueueAbility queues an ability for the next tick. A later queue call
// replaces an earlier one.
func (b *Battle) QueueAbility(id string) error {
	if !b.Running() {
		return ErrNotRunning
	}
	if _, ok := b.cat.Ability(id); !ok || !slices.Contains(b.abilities, id) {
		return fmt.Errorf("%w: %s", ErrUnknownAbility, id)
	}
	b.queued = &queuedAction{ability: id}
	return nil
}

// QueueConsumable queues a consumable for the next tick.
func (b *Battle) QueueConsumable(id string) error {
	if !b.Running() {
		return ErrNotRunning
	}
	if _, ok := b.cat.Consumable(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConsumable, id)
	}
	b.queued = &queuedAction{consumable: id}
	return nil
}

// ApplyHazard strikes the player at wave spawn. A hazard never kills: the
// player is left with at least 1 HP.
func (b *Battle) ApplyHazard(amount float64) telemetry.Event {
	dealt := min(amount, max(b.player.HP-1, 0))
	b.player.HP -= dealt
	b.appendLog(fmt.Sprintf("hazard strikes for %.0f", dealt))
	return telemetry.NewHazardEvent(b.clockMs, dealt)
}

// enemyRef pairs an entity with its component pointers for one pass.
type enemyRef struct {
	entity ecs.Entity
	enemy  *components.Enemy
	gauge  *components.Gauge
	intent *components.Intent
	status *components.Statuses
	stance *components.Stance
}

// ordered returns living entities sorted by spawn slot. Component pointers
// stay valid until the next structural change to the world.
func (b *Battle) ordered() []enemyRef {
	var refs []enemyRef
	query := b.enemyFilter.Query()
	for query.Next() {
		e, g, i, s, st := query.Get()
		refs = append(refs, enemyRef{entity: query.Entity(), enemy: e, gauge: g, intent: i, status: s, stance: st})
	}
	slices.SortFunc(refs, func(a, c enemyRef) int { return a.enemy.Slot - c.enemy.Slot })
	return refs
}

// Enemies returns read-only snapshots in slot order.
func (b *Battle) Enemies() []EnemySnapshot {
	refs := b.ordered()
	out := make([]EnemySnapshot, 0, len(refs))
	for _, r := range refs {
		snap := EnemySnapshot{
			ID:        r.enemy.ID,
			Template:  r.enemy.Template,
			Name:      r.enemy.Name,
			HP:        r.enemy.HP,
			MaxHP:     r.enemy.MaxHP,
			Charge:    r.gauge.Charge,
			Intent:    r.intent.Kind,
			Defending: r.stance.Defending,
			Charged:   r.stance.Charged,
			Statuses:  slices.Clone(r.status.List),
		}
		if b.bossMap.Has(r.entity) {
			snap.Boss = true
			snap.Phase = b.bossMap.Get(r.entity).Phase
		}
		if b.affixMap.Has(r.entity) {
			snap.Affix = b.affixMap.Get(r.entity).ID
		}
		if b.weakMap.Has(r.entity) {
			snap.WeakPoint = b.weakMap.Get(r.entity).Class
		}
		out = append(out, snap)
	}
	return out
}

// EnemyCount returns the number of enemies in the world.
func (b *Battle) EnemyCount() int {
	n := 0
	query := b.enemyFilter.Query()
	for query.Next() {
		n++
	}
	return n
}

// Tick advances the battle one combat tick. It does nothing unless running.
func (b *Battle) Tick() TickResult {
	if !b.Running() {
		return TickResult{ClockMs: b.clockMs, State: b.State()}
	}
	dt := int64(b.cfg.TickMs)
	b.clockMs += dt
	t := &tickState{res: TickResult{ClockMs: b.clockMs}}

	b.startPhase(systems.PhasePlayerAction)
	b.playerAction(t)

	b.startPhase(systems.PhaseCleanup)
	b.removeDead(t)

	b.startPhase(systems.PhaseStatuses)
	if b.statuses(t, dt) {
		b.removeDead(t)
	}

	if b.Running() {
		b.startPhase(systems.PhaseRegen)
		b.regen(t, dt)

		b.startPhase(systems.PhaseEnemies)
		b.enemyPhase(t, dt)
	}

	b.startPhase(systems.PhaseWaveCheck)
	if b.Running() && b.EnemyCount() == 0 {
		if err := b.state.Event(context.Background(), eventClear); err != nil {
			slog.Warn("battle_clear_failed", "error", err)
		}
		t.res.WaveCleared = true
		t.event(telemetry.NewWaveClearedEvent(b.clockMs))
		t.logf(b, "wave cleared")
	}

	t.res.State = b.State()
	return t.res
}

func (b *Battle) startPhase(phase string) {
	if b.perf != nil {
		b.perf.StartPhase(phase)
	}
}

type tickState struct {
	res TickResult
}

func (t *tickState) event(ev telemetry.Event) {
	t.res.Events = append(t.res.Events, ev)
}

func (t *tickState) logf(b *Battle, format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	t.res.Log = append(t.res.Log, line)
	b.appendLog(line)
}

func (t *tickState) action(actor, kind, result string) {
	t.res.Actions = append(t.res.Actions, Action{Actor: actor, Type: kind, Result: result})
}

func (b *Battle) appendLog(line string) {
	b.log = append(b.log, line)
	if limit := b.cfg.LogHistory; limit > 0 && len(b.log) > limit {
		b.log = slices.Clone(b.log[len(b.log)-limit:])
	}
}

func (b *Battle) pools() systems.Pools {
	return systems.Pools{
		Energy:    b.player.Energy,
		MaxEnergy: b.player.MaxEnergy,
		Heat:      b.player.Heat,
		MaxHeat:   b.player.MaxHeat,
		Jammed:    b.player.Jammed,
		Hidden:    b.player.Hidden,
		HiddenMs:  b.player.HiddenMs,
	}
}

func (b *Battle) setPools(p systems.Pools) {
	b.player.Energy = p.Energy
	b.player.Heat = p.Heat
	b.player.Jammed = p.Jammed
	b.player.Hidden = p.Hidden
	b.player.HiddenMs = p.HiddenMs
}

// playerAction resolves the queued action. The queue is cleared whether the
// action succeeds or is rejected.
func (b *Battle) playerAction(t *tickState) {
	q := b.queued
	if q == nil {
		return
	}
	b.queued = nil

	var err error
	if q.ability != "" {
		err = b.useAbility(t, q.ability)
	} else {
		err = b.useConsumable(t, q.consumable)
	}
	if err != nil {
		ref := q.ability + q.consumable
		t.res.Rejected = err
		t.event(telemetry.NewRejectedEvent(b.clockMs, ref))
		t.logf(b, "%s rejected: %v", ref, err)
		slog.Debug("action_rejected", "ref", ref, "error", err)
	}
}

func (b *Battle) useAbility(t *tickState, id string) error {
	a, ok := b.cat.Ability(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAbility, id)
	}
	if b.player.Charge < b.cfg.AbilityChargeCost {
		return ErrNotReady
	}
	if systems.HasStatus(b.player.Statuses, components.StatusStun) {
		return ErrStunned
	}
	if cd := b.player.Cooldown(id); cd > 0 {
		return fmt.Errorf("%w: %s %dms", ErrOnCooldown, id, cd)
	}

	refs := b.ordered()
	views := make([]systems.EnemyView, len(refs))
	for i, r := range refs {
		views[i] = systems.EnemyView{
			HP:        r.enemy.HP,
			Alive:     r.enemy.Alive(),
			Defending: r.stance.Defending,
		}
		if b.affixMap.Has(r.entity) {
			views[i].Armor = b.affixMap.Get(r.entity).Armor
		}
		if b.weakMap.Has(r.entity) {
			views[i].WeakPoint = b.weakMap.Get(r.entity)
		}
	}

	out := systems.ResolveAbility(systems.AbilityInput{
		Ability:    a,
		BaseDamage: b.player.BaseDamage,
		Pools:      b.pools(),
		Enemies:    views,
		Bonuses:    b.bonuses,
		CritRoll:   b.src.Float64(),
		Overdrive:  systems.HasStatus(b.player.Statuses, components.StatusOverdrive),
		Combat:     b.cfg,
	})
	if !out.Consumed {
		return fmt.Errorf("%w: %s", ErrResource, out.Log)
	}

	b.player.Charge -= b.cfg.AbilityChargeCost
	cdr := min(b.bonuses.Get(talent.EffectCooldownPct), 0.9)
	b.player.SetCooldown(id, int64(float64(a.CooldownMs)*(1-cdr)))
	b.setPools(out.Pools)
	for _, s := range out.SelfStatuses {
		b.player.Statuses = systems.ApplyStatus(b.player.Statuses, s)
	}

	t.event(telemetry.NewAbilityEvent(b.clockMs, id, out.Crit))
	for _, idx := range out.Targets {
		r := refs[idx]
		dmg := out.PerTarget[idx]
		r.enemy.HP = max(r.enemy.HP-dmg, 0)
		t.event(telemetry.NewDamageDealtEvent(b.clockMs, r.enemy.ID, id, dmg, out.Crit))
		for _, s := range out.TargetStatuses {
			r.status.List = systems.ApplyStatus(r.status.List, s)
		}
		b.updateBossPhase(t, r)
	}
	t.logf(b, "%s", out.Log)
	t.action("player", "ability:"+id, out.Log)
	return nil
}

func (b *Battle) useConsumable(t *tickState, id string) error {
	c, ok := b.cat.Consumable(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConsumable, id)
	}
	if b.items[id] <= 0 {
		return fmt.Errorf("%w: %s", ErrNoItem, id)
	}
	if b.player.Charge < b.cfg.ConsumableChargeCost {
		return ErrNotReady
	}
	if systems.HasStatus(b.player.Statuses, components.StatusStun) {
		return ErrStunned
	}

	b.items[id]--
	b.player.Charge -= b.cfg.ConsumableChargeCost
	if c.Heal > 0 {
		b.player.HP = min(b.player.MaxHP, b.player.HP+b.player.MaxHP*c.Heal)
	}
	if c.Energy > 0 {
		b.player.Energy = min(b.player.MaxEnergy, b.player.Energy+c.Energy)
	}
	if c.Vent > 0 {
		b.player.Heat = max(0, b.player.Heat-c.Vent)
		b.player.Jammed = false
	}
	if c.Shield > 0 {
		b.player.Statuses = systems.ApplyStatus(b.player.Statuses, components.StatusEffect{
			Type: components.StatusShield, RemainingMs: c.ShieldMs, Value: c.Shield,
		})
	}
	t.event(telemetry.NewConsumableEvent(b.clockMs, id))
	t.logf(b, "used %s", c.Name)
	t.action("player", "item:"+id, "used "+c.Name)
	return nil
}

func (b *Battle) updateBossPhase(t *tickState, r enemyRef) {
	if !b.bossMap.Has(r.entity) || !r.enemy.Alive() {
		return
	}
	boss := b.bossMap.Get(r.entity)
	if phase := systems.BossPhase(r.enemy.HP, r.enemy.MaxHP, b.cfg.BossPhaseThreshold); phase > boss.Phase {
		boss.Phase = phase
		t.logf(b, "%s enters phase %d", r.enemy.Name, phase)
	}
}

// removeDead emits kill events and removes destroyed enemies in two passes
// so the query is never modified while iterating.
func (b *Battle) removeDead(t *tickState) {
	b.removeEnemies(func(e *components.Enemy) bool { return !e.Alive() }, func(e *components.Enemy, boss bool) {
		t.event(telemetry.NewKillEvent(b.clockMs, e.ID, e.Template, boss, e.Scrap))
		t.logf(b, "%s destroyed", e.Name)
	})
}

func (b *Battle) removeEnemies(match func(*components.Enemy) bool, onRemove ...func(*components.Enemy, bool)) {
	type dead struct {
		entity ecs.Entity
		enemy  components.Enemy
		boss   bool
	}
	var toRemove []dead
	query := b.enemyFilter.Query()
	for query.Next() {
		e, _, _, _, _ := query.Get()
		if match(e) {
			toRemove = append(toRemove, dead{entity: query.Entity(), enemy: *e})
		}
	}
	slices.SortFunc(toRemove, func(a, c dead) int { return a.enemy.Slot - c.enemy.Slot })

	for _, d := range toRemove {
		d.boss = b.bossMap.Has(d.entity)
		for _, fn := range onRemove {
			fn(&d.enemy, d.boss)
		}
		b.world.RemoveEntity(d.entity)
	}
}

// statuses ticks player and enemy effects. It reports whether any enemy
// died from burns. Enemies still tick on the tick a burn destroys the player.
func (b *Battle) statuses(t *tickState, dt int64) bool {
	var tick systems.StatusTick
	b.player.Statuses, tick = systems.ProcessStatuses(b.player.Statuses, dt)
	for _, st := range tick.Expired {
		t.event(telemetry.NewStatusExpiredEvent(b.clockMs, telemetry.PlayerID, string(st)))
	}
	if tick.Damage > 0 {
		b.player.HP -= tick.Damage
		t.event(telemetry.NewDamageTakenEvent(b.clockMs, telemetry.PlayerID, string(components.StatusBurn), tick.Damage))
		t.logf(b, "burn deals %.0f to you", tick.Damage)
		b.defeatIfDead(t, telemetry.PlayerID)
	}

	burned := false
	for _, r := range b.ordered() {
		var et systems.StatusTick
		r.status.List, et = systems.ProcessStatuses(r.status.List, dt)
		for _, st := range et.Expired {
			t.event(telemetry.NewStatusExpiredEvent(b.clockMs, r.enemy.ID, string(st)))
		}
		if et.Damage > 0 {
			r.enemy.HP = max(r.enemy.HP-et.Damage, 0)
			t.event(telemetry.NewDamageDealtEvent(b.clockMs, r.enemy.ID, string(components.StatusBurn), et.Damage, false))
			if !r.enemy.Alive() {
				burned = true
			}
			b.updateBossPhase(t, r)
		}
	}
	return burned
}

func (b *Battle) regen(t *tickState, dt int64) {
	if !systems.HasStatus(b.player.Statuses, components.StatusStun) {
		speed := b.player.Speed * (1 + b.bonuses.Get(talent.EffectChargeSpeedPct))
		b.player.Charge = systems.AdvanceGauge(b.player.Charge, b.cfg.PlayerChargeRate, speed, dt)
	}
	p := systems.RegenPools(b.pools(),
		b.cfg.EnergyRegen*(1+b.bonuses.Get(talent.EffectEnergyRegenPct)),
		b.cfg.HeatVent*(1+b.bonuses.Get(talent.EffectHeatVentPct)),
		float64(dt)/1000,
	)
	if b.player.Hidden && !p.Hidden {
		t.logf(b, "you surface")
	}
	b.setPools(p)
	b.player.DecayCooldowns(dt)
}

// enemyPhase charges each enemy in slot order and resolves full gauges.
// Defeat is checked after every action.
func (b *Battle) enemyPhase(t *tickState, dt int64) {
	for _, r := range b.ordered() {
		if !r.enemy.Alive() || systems.HasStatus(r.status.List, components.StatusStun) {
			continue
		}
		r.gauge.Charge = systems.AdvanceGauge(r.gauge.Charge, b.cfg.EnemyChargeRate, r.enemy.Speed, dt)
		if r.gauge.Charge < 100 {
			continue
		}
		r.gauge.Charge = 0
		b.enemyAct(t, r)
		if b.defeatIfDead(t, r.enemy.ID) {
			return
		}
	}
}

func (b *Battle) enemyAct(t *tickState, r enemyRef) {
	in := systems.EnemyActionInput{
		Name:   r.enemy.Name,
		HP:     r.enemy.HP,
		MaxHP:  r.enemy.MaxHP,
		Damage: r.enemy.Damage,
		Intent: r.intent.Kind,
		Stance: *r.stance,
		NowMs:  b.clockMs,
		Hidden: b.player.Hidden,
		Reduce: b.bonuses.Get(talent.EffectDamageReductionPct),
		Combat: b.cfg,
	}
	if b.affixMap.Has(r.entity) {
		in.Affix = b.affixMap.Get(r.entity)
	}
	var boss *components.Boss
	if b.bossMap.Has(r.entity) {
		boss = b.bossMap.Get(r.entity)
		in.Boss = boss
	}

	out := systems.ResolveEnemyAction(in)
	*r.stance = out.Stance
	if out.BossAbility && boss != nil {
		boss.AbilityReadyAtMs = out.NextBossReady
	}

	switch {
	case out.Missed:
		t.event(telemetry.NewMissEvent(b.clockMs, r.enemy.ID))
	case out.PlayerDamage > 0:
		var left, absorbed float64
		b.player.Statuses, left, absorbed = systems.AbsorbWithShield(b.player.Statuses, out.PlayerDamage)
		if absorbed > 0 {
			t.logf(b, "shield absorbs %.0f", absorbed)
		}
		if left > 0 {
			b.player.HP -= left
			t.event(telemetry.NewDamageTakenEvent(b.clockMs, r.enemy.ID, r.enemy.Template, left))
		}
	}
	if out.EnemyHeal > 0 {
		r.enemy.HP = min(r.enemy.MaxHP, r.enemy.HP+out.EnemyHeal)
	}
	for _, s := range out.PlayerStatuses {
		b.player.Statuses = systems.ApplyStatus(b.player.Statuses, s)
	}
	t.logf(b, "%s", out.Log)
	t.action(r.enemy.Name, out.Intent, out.Log)

	r.intent.Kind = systems.ChooseIntent(r.intent.Weights, b.src)
}

// defeatIfDead moves to game-over when the player has no HP left.
func (b *Battle) defeatIfDead(t *tickState, killer int) bool {
	if b.player.Alive() || !b.Running() {
		return !b.player.Alive()
	}
	b.player.HP = 0
	if err := b.state.Event(context.Background(), eventDefeat); err != nil {
		slog.Warn("battle_defeat_failed", "error", err)
	}
	t.res.Defeated = true
	t.event(telemetry.NewDefeatEvent(b.clockMs, killer))
	t.logf(b, "you have been destroyed")
	return true
}
