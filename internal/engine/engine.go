package engine

import (
	"sync"
	"time"

	"github.com/sonigraph/sonigraph/internal/audio"
	"github.com/sonigraph/sonigraph/internal/config"
	"github.com/sonigraph/sonigraph/internal/effects"
	"github.com/sonigraph/sonigraph/internal/journal"
	"github.com/sonigraph/sonigraph/internal/lifecycle"
	"github.com/sonigraph/sonigraph/internal/logging"
	"github.com/sonigraph/sonigraph/internal/schedule"
	"github.com/sonigraph/sonigraph/internal/theme"
	"github.com/sonigraph/sonigraph/internal/transition"
	"github.com/sonigraph/sonigraph/internal/types"
	"github.com/sonigraph/sonigraph/internal/voice"
)

// Engine is the top-level façade. It receives snapshots of clusters or
// communities, detects transitions and structural evolution against the
// previous snapshot, keeps lifecycle state per entity, drives the voice
// manager and the effect trigger, and journals every event.
//
// Clusters and communities are tracked against separate previous
// snapshots so an application can feed either stream without the other
// registering mass dissolutions.
type Engine struct {
	mu       sync.Mutex
	cfg      config.Bundle
	sched    *schedule.Scheduler
	voices   *voice.Manager
	trigger  *effects.Trigger
	tracker  *lifecycle.Tracker
	journal  *journal.Journal
	part     Partitioner
	hub      HubWeighter
	prevC    map[string]types.Entity // previous cluster snapshot
	prevM    map[string]types.Entity // previous community snapshot
	ticks    int
	disposed bool
}

// New builds an engine on the given backend. statePath enables the event
// journal; pass "" to run without one.
func New(backend audio.Backend, cfg config.Bundle, statePath string) *Engine {
	cfg.Validate()
	sched := schedule.New()
	e := &Engine{
		cfg:     cfg,
		sched:   sched,
		voices:  voice.NewManager(backend, sched, cfg.Audio),
		trigger: effects.NewTrigger(backend, sched, cfg.Evolution, cfg.Audio),
		tracker: lifecycle.NewTracker(),
		part:    componentPartitioner{},
		hub:     identityHub{},
		prevC:   make(map[string]types.Entity),
		prevM:   make(map[string]types.Entity),
	}
	if statePath != "" {
		e.journal = journal.New(statePath)
	}
	return e
}

// SetPartitioner replaces the default connected-components partitioner
func (e *Engine) SetPartitioner(p Partitioner) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p != nil {
		e.part = p
	}
}

// SetQuantizer installs a scale quantizer for voice frequencies
func (e *Engine) SetQuantizer(q ScaleQuantizer) {
	if q == nil {
		return
	}
	e.voices.SetQuantizer(q.Snap)
}

// SetHubWeighter installs a hub-influence volume weighter
func (e *Engine) SetHubWeighter(w HubWeighter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if w == nil {
		return
	}
	e.hub = w
	e.voices.SetHubWeighter(w.Weight)
}

// SetLayoutWidth tells the voice manager how wide the graph layout is,
// for spatial panning
func (e *Engine) SetLayoutWidth(w float64) {
	e.voices.SetLayoutWidth(w)
}

// AttachStore mirrors journal entries into a queryable store. No-op
// when the engine runs without a journal.
func (e *Engine) AttachStore(s *journal.Store) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.journal != nil {
		e.journal.AttachStore(s)
	}
}

// ProcessClusters ingests a cluster snapshot
func (e *Engine) ProcessClusters(clusters []types.Cluster) {
	entities := make([]types.Entity, len(clusters))
	for i, c := range clusters {
		entities[i] = types.EntityFromCluster(c)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prevC = e.processLocked(e.prevC, entities)
}

// ProcessCommunities partitions the raw graph and ingests the resulting
// community snapshot
func (e *Engine) ProcessCommunities(nodes []types.Node, links []types.Link) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	communities := e.part.Partition(nodes, links, e.cfg.Community)
	entities := make([]types.Entity, len(communities))
	for i, c := range communities {
		entities[i] = types.EntityFromCommunity(c)
	}
	e.prevM = e.processLocked(e.prevM, entities)
}

// processLocked runs one tick against the given previous snapshot and
// returns the new one. Caller holds e.mu.
func (e *Engine) processLocked(prev map[string]types.Entity, curr []types.Entity) map[string]types.Entity {
	if e.disposed {
		return prev
	}
	now := time.Now()
	e.ticks++

	transitions := transition.DetectTransitions(prev, curr, now)
	evolutions := transition.DetectEvolution(prev, curr, e.cfg.Evolution, now)

	if e.journal != nil {
		for _, ev := range transitions {
			if err := e.journal.LogTransition(ev); err != nil {
				logging.Warn("engine", "journal transition: %v", err)
			}
		}
		for _, ev := range evolutions {
			if err := e.journal.LogEvolution(ev); err != nil {
				logging.Warn("engine", "journal evolution: %v", err)
			}
		}
	}

	e.tracker.Tick(curr, evolutions, now)
	e.voices.ProcessSnapshot(curr)

	currByID := make(map[string]types.Entity, len(curr))
	for _, en := range curr {
		currByID[en.ID] = en
	}
	for _, ev := range evolutions {
		e.trigger.Trigger(ev, e.evolutionTheme(ev, prev, currByID))
	}
	for _, ev := range transitions {
		// Formation and dissolution already sound through the evolution
		// palette; doubling them here would stack two effects per tick.
		if ev.Type == types.TransitionFormation || ev.Type == types.TransitionDissolution {
			continue
		}
		e.trigger.TriggerTransition(ev, e.transitionTheme(ev, prev, currByID))
	}

	next := make(map[string]types.Entity, len(curr))
	for _, en := range curr {
		next[en.ID] = en
	}
	return next
}

// evolutionTheme picks the theme variation for an evolution event. The
// entity lives in the current snapshot except for dissolutions, where
// only the previous one still knows its type.
func (e *Engine) evolutionTheme(ev types.EvolutionEvent, prev, curr map[string]types.Entity) types.AudioTheme {
	return entityTheme(ev.EntityID, ev.Intensity, prev, curr)
}

func (e *Engine) transitionTheme(ev types.TransitionEvent, prev, curr map[string]types.Entity) types.AudioTheme {
	strength := 0.5
	if ev.NewStrength != nil {
		strength = *ev.NewStrength
	}
	return entityTheme(ev.EntityID, strength, prev, curr)
}

func entityTheme(entityID string, fallbackStrength float64, prev, curr map[string]types.Entity) types.AudioTheme {
	if en, ok := curr[entityID]; ok {
		return theme.ThemeVariation(en.Type, en.Strength())
	}
	if en, ok := prev[entityID]; ok {
		return theme.ThemeVariation(en.Type, en.Strength())
	}
	return theme.ThemeVariation("", fallbackStrength)
}

// UpdateGraphData hands the raw graph to the hub weighter as context
// for future volume weighting
func (e *Engine) UpdateGraphData(nodes []types.Node, links []types.Link) {
	e.mu.Lock()
	hub := e.hub
	e.mu.Unlock()
	hub.UpdateGraph(nodes, links)
}

// UpdateSettings replaces the audio settings
func (e *Engine) UpdateSettings(s config.Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.cfg.Audio = s
	e.cfg.Validate()
	e.voices.UpdateSettings(e.cfg.Audio)
	e.trigger.UpdateSettings(e.cfg.Evolution, e.cfg.Audio)
}

// UpdateCommunitySettings replaces the community partitioning bounds
func (e *Engine) UpdateCommunitySettings(s config.CommunitySettings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.cfg.Community = s
	e.cfg.Validate()
}

// UpdateEvolutionSettings replaces the evolution detection thresholds
// and event audio settings
func (e *Engine) UpdateEvolutionSettings(s config.EvolutionSettings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.cfg.Evolution = s
	e.cfg.Validate()
	e.trigger.UpdateSettings(e.cfg.Evolution, e.cfg.Audio)
}

// Analysis is a point-in-time view of one entity: its last known
// snapshot state, its voice if sounding, its lifecycle phase, and its
// recent journal history.
type Analysis struct {
	EntityID  string                `json:"entity_id"`
	Present   bool                  `json:"present"`
	Entity    *types.Entity         `json:"entity,omitempty"`
	Voice     *types.ActiveVoice    `json:"voice,omitempty"`
	Lifecycle *types.LifecycleState `json:"lifecycle,omitempty"`
	History   []journal.Entry       `json:"history,omitempty"`
}

// ClusterAnalysis reports on one cluster by id
func (e *Engine) ClusterAnalysis(id string) Analysis {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.analysisLocked(id, e.prevC)
}

// CommunityAnalysis reports on one community by id
func (e *Engine) CommunityAnalysis(id string) Analysis {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.analysisLocked(id, e.prevM)
}

func (e *Engine) analysisLocked(id string, snap map[string]types.Entity) Analysis {
	a := Analysis{EntityID: id}
	if en, ok := snap[id]; ok {
		a.Present = true
		a.Entity = &en
	}
	a.Voice = e.voices.ActiveVoice(id)
	a.Lifecycle = e.tracker.State(id)
	if e.journal != nil {
		history, err := e.journal.RecentFor(id, 20)
		if err != nil {
			logging.Warn("engine", "journal history for %s: %v", id, err)
		} else {
			a.History = history
		}
	}
	return a
}

// ActiveVoices returns the currently sounding voices
func (e *Engine) ActiveVoices() []types.ActiveVoice {
	return e.voices.ActiveVoices()
}

// Stats summarizes engine activity since construction
type Stats struct {
	Ticks        int `json:"ticks"`
	ActiveVoices int `json:"active_voices"`
	TrackedLives int `json:"tracked_lives"`
	EffectsFired int `json:"effects_fired"`
}

// Stats returns activity counters
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	ticks := e.ticks
	// The tracker has no lock of its own; Tick mutates it under e.mu
	tracked := e.tracker.Count()
	e.mu.Unlock()
	return Stats{
		Ticks:        ticks,
		ActiveVoices: e.voices.ActiveCount(),
		TrackedLives: tracked,
		EffectsFired: e.trigger.Fired(),
	}
}

// Dispose tears down voices, effects, and all pending work. Idempotent;
// every entry point is a no-op afterwards.
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	ticks := e.ticks
	e.mu.Unlock()

	e.voices.Dispose()
	e.trigger.Dispose()
	e.sched.Dispose()
	logging.Info("engine", "disposed after %d ticks", ticks)
}
