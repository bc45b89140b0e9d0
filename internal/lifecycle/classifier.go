// internal/lifecycle assigns each community a lifecycle phase from its age,
// stability, and the events of the current tick. The phase is recomputed on
// every tick rather than advanced along fixed edges, so an entity can move
// back and forth between growing and stable as the graph shifts. That
// oscillation is deliberate; do not add hysteresis here without changing
// the audible design.
package lifecycle

import (
	"time"

	"github.com/sonigraph/sonigraph/internal/types"
)

// Age boundaries for the baseline phases
const (
	formingMaxAge = 3  // below this the entity is always forming
	matureMinAge  = 10 // above this plus high stability = mature
)

// matureMinStability is the stability floor for the mature phase
const matureMinStability = 0.5

// eventPriority orders transient phases when several events hit one entity
// in the same tick. Lower index wins.
var eventPriority = []types.EvolutionType{
	types.EvolutionGrowth,
	types.EvolutionMerge,
	types.EvolutionSplit,
	types.EvolutionDecline,
	types.EvolutionBridging,
}

// phaseForEvent maps an evolution event type to its transient phase
var phaseForEvent = map[types.EvolutionType]types.LifecyclePhase{
	types.EvolutionGrowth:   types.PhaseGrowing,
	types.EvolutionMerge:    types.PhaseMerging,
	types.EvolutionSplit:    types.PhaseSplitting,
	types.EvolutionDecline:  types.PhaseDeclining,
	types.EvolutionBridging: types.PhaseBridging,
}

// Tracker owns the lifecycle states for all known communities
type Tracker struct {
	states map[string]*types.LifecycleState
}

// NewTracker creates an empty lifecycle tracker
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]*types.LifecycleState)}
}

// State returns the tracked state for an entity, or nil if unknown
func (t *Tracker) State(entityID string) *types.LifecycleState {
	if s, ok := t.states[entityID]; ok {
		out := *s
		return &out
	}
	return nil
}

// Count returns how many entities are tracked
func (t *Tracker) Count() int {
	return len(t.states)
}

// Tick recomputes every entity's phase for the current snapshot. Survivors
// age by one tick; new entities start at age zero in the forming phase;
// entities absent from the snapshot are dropped. The events slice holds
// everything detected this tick.
func (t *Tracker) Tick(entities []types.Entity, events []types.EvolutionEvent, now time.Time) {
	// Group this tick's events by entity, merge/split events also touch
	// their sources and targets
	byEntity := make(map[string][]types.EvolutionType)
	for _, ev := range events {
		byEntity[ev.EntityID] = append(byEntity[ev.EntityID], ev.Type)
		for _, id := range ev.SourceIDs {
			byEntity[id] = append(byEntity[id], ev.Type)
		}
		for _, id := range ev.TargetIDs {
			byEntity[id] = append(byEntity[id], ev.Type)
		}
	}

	present := make(map[string]bool, len(entities))
	for _, e := range entities {
		present[e.ID] = true

		state, ok := t.states[e.ID]
		if !ok {
			state = &types.LifecycleState{
				Phase:           types.PhaseForming,
				Age:             0,
				LastPhaseChange: now,
			}
			t.states[e.ID] = state
		} else {
			state.Age++
		}

		next := classify(state.Age, e.Characteristics.Stability, byEntity[e.ID])
		if next != state.Phase {
			state.PreviousPhase = state.Phase
			state.Phase = next
			state.LastPhaseChange = now
		}
	}

	for id := range t.states {
		if !present[id] {
			delete(t.states, id)
		}
	}
}

// classify derives the phase for one entity on one tick
func classify(age int, stability float64, tickEvents []types.EvolutionType) types.LifecyclePhase {
	if age < formingMaxAge {
		return types.PhaseForming
	}

	for _, candidate := range eventPriority {
		for _, ev := range tickEvents {
			if ev == candidate {
				return phaseForEvent[candidate]
			}
		}
	}

	if age > matureMinAge && stability > matureMinStability {
		return types.PhaseMature
	}
	return types.PhaseStable
}
